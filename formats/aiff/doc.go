// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes AIFF assets through github.com/go-audio/aiff.
//
// AIFF is the uncompressed PCM container from Apple platforms. Sound packs
// exported from macOS tools often ship in it, so the asset loader accepts
// .aif and .aiff files next to WAV.
//
// # Supported Streams
//
// The decoder handles:
//   - uncompressed PCM at 8, 16, 24 or 32 bits
//   - any channel count, reported as found in the COMM chunk
//   - any sample rate, reported as found in the COMM chunk
//
// AIFF-C (compressed) files and other bit depths are rejected.
//
// # Decoding
//
//	file, _ := os.Open("door.aiff")
//	src, err := aiff.Decoder{}.Decode(file)
//	if err != nil {
//		return err
//	}
//	defer src.Close()
//
// go-audio/aiff needs to seek within the container. Readers that are not
// an io.ReadSeeker are read fully into memory first, which is fine for the
// short clips this module deals with.
//
// # Output
//
// Samples are interleaved float32 values. Each integer sample is divided by
// the full scale of its bit depth (128, 32768, 8388608 or 2147483648), so
// output stays within [-1, 1). Nothing is resampled here; pass the source
// to audslot.Canonicalize or audio.Normalize to reach the cache format:
//
//	pcm, err := audslot.Canonicalize(src, 48000)
//
// # Errors
//
//   - ErrNotAiffFile: the FORM/AIFF container could not be parsed
//   - ErrUnsupportedBitDepth: the COMM chunk declares another bit depth
//   - ErrUnsupportedAiffLayout: no usable format (e.g. zero channels)
//
// Check them with errors.Is:
//
//	if errors.Is(err, aiff.ErrUnsupportedBitDepth) {
//		// convert the asset with an external tool first
//	}
//
// # AIFF and WAV
//
// Both containers hold plain PCM. AIFF stores samples big-endian and the
// sample rate as an 80-bit float; go-audio/aiff hides both differences, so
// the output of this package matches what formats/wav produces for the same
// audio.
package aiff
