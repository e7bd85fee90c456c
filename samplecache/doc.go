// SPDX-License-Identifier: EPL-2.0

// Package samplecache resolves sound keys into decoded sample buffers.
//
// Each key is registered once with a Provider that opens its byte stream.
// Nothing is decoded at registration. The first Get for a key opens the
// stream, decodes it and stores the samples in a bounded LRU; later reads
// are served from memory and refresh the entry's recency.
//
// Decoding runs outside the cache lock. Concurrent misses on the same key
// share one decode, so a provider is opened at most once per miss. A failed
// decode is logged and reported to the caller as not found.
//
// The default decoder is the canonical raw WAV reader: a 44 byte header is
// skipped and 16-bit little endian samples are divided by 32768. Buffers
// handed out by Get are shared between callers and must not be modified.
package samplecache
