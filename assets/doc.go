// SPDX-License-Identifier: EPL-2.0

// Package assets feeds the sample cache from audio files on disk.
//
// The cache only understands canonical WAV (mono, 16-bit, fixed rate). A
// Loader picks a decoder from the file extension, folds and resamples the
// decoded audio, and hands the cache a freshly written canonical WAV:
//
//	loader, _ := assets.NewLoader()
//	n, err := loader.RegisterDir(cache, "sounds")
//
// A file at sounds/sfx/door.ogg is registered under the key "sfx/door".
// Convert does the same transcoding ahead of time, writing the result to
// disk.
package assets
