// SPDX-License-Identifier: EPL-2.0

// Package wav decodes and writes the PCM 16-bit WAV files the sample cache
// is fed with.
//
// # Decoders
//
// RawDecoder is the canonical path. It skips the fixed 44-byte header
// without looking at it and reads the remainder as mono 16-bit PCM at a
// fixed rate (48kHz by default). Each sample v becomes v / 32768.
//
//	src, err := wav.RawDecoder{}.Decode(file)
//
// Decoder validates the RIFF container with github.com/go-audio/wav first,
// rejects anything but 16-bit integer PCM, and reports the channel count and
// rate found in the fmt chunk:
//
//	src, err := wav.Decoder{}.Decode(file)
//	canonical := audio.Normalize(src, 48000)
//
// # Writing
//
// WriteWAV16 writes mono 16-bit PCM with a canonical header, so its output
// round-trips through RawDecoder:
//
//	err := wav.WriteWAV16(file, 48000, samples)
//
// # Errors
//
//   - ErrTruncatedHeader: fewer than 44 bytes were available
//   - ErrNotWavFile: the RIFF/WAVE container could not be parsed
//   - ErrOnlyPCM16bitSupported: the fmt chunk declares another encoding
//   - ErrUnsupportedWavLayout: no usable data chunk
package wav
