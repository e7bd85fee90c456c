// SPDX-License-Identifier: EPL-2.0

// Package vorbis decodes Ogg Vorbis assets through
// github.com/jfreymuth/oggvorbis.
//
// Vorbis is the usual choice for longer ambient loops and music beds, where
// uncompressed WAV would bloat an asset directory.
//
// # Decoding
//
//	file, _ := os.Open("wind.ogg")
//	src, err := vorbis.Decoder{}.Decode(file)
//	if err != nil {
//		return err
//	}
//
//	buf := make([]float32, src.BufSize())
//	n, err := src.ReadSamples(buf)
//
// # Output
//
// oggvorbis already decodes to float32, so samples are passed through as
// interleaved values in [-1, 1]. Channel count and rate come from the
// stream's identification header; nothing is folded or resampled here.
//
// ReadSamples only hands out whole frames. A destination whose length is
// not a multiple of the channel count is filled up to the last whole frame,
// and a destination shorter than one frame reads nothing.
//
// # Errors
//
// ErrNotVorbis wraps the oggvorbis error when the stream header cannot be
// read. Errors during decoding are wrapped with a "vorbis read" prefix;
// the end of the stream is reported as io.EOF together with the last
// samples.
package vorbis
