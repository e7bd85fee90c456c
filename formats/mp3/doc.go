// SPDX-License-Identifier: EPL-2.0

// Package mp3 decodes MP3 assets through github.com/hajimehoshi/go-mp3.
//
// # Output
//
// go-mp3 always produces 16-bit little-endian stereo, even for mono files,
// at the stream's own rate. Each sample v is returned as v / 32768.
// Channels therefore reports 2 for every stream; the asset loader folds it
// into canonical mono before the sample cache sees it:
//
//	src, err := mp3.Decoder{}.Decode(file)
//	if err != nil {
//		return err
//	}
//	pcm, err := audslot.Canonicalize(src, 48000)
//
// MPEG-1 and MPEG-2 Layer III are supported; other layers fail to decode.
//
// # Errors
//
// ErrNotMP3 wraps the go-mp3 error when no valid frame header is found at
// the start of the stream.
package mp3
