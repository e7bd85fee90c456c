// SPDX-License-Identifier: EPL-2.0

// Package audslot manages a fixed pool of playback slots for short sound
// samples.
//
// The building blocks live in subpackages:
//   - allocator hands out controller IDs by priority and evicts weaker holders
//   - samplecache decodes registered sounds on demand and keeps them in an LRU
//   - speaker abstracts the output device and ships a software implementation
//   - scheduler runs deferred per-tick work such as fades and lifespans
//   - session ties them together into play, queue, pause and recover calls
//   - config, metrics and assets load settings, export counters and feed the
//     cache from files on disk
//
// The audslot command (cmd/audslot) prepares assets and plays them through
// the software speakers.
//
// Decoders for WAV, MP3, Ogg Vorbis and AIFF are in formats/. Sounds are
// cached as canonical mono 16-bit PCM; Canonicalize converts any decoded
// source into that shape:
//
//	src, _ := mp3.Decoder{}.Decode(file)
//	pcm, err := audslot.Canonicalize(src, 48000)
//	if err != nil {
//		return err
//	}
//	err = wav.WriteWAV16(out, 48000, pcm)
package audslot
