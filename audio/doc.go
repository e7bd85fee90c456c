// SPDX-License-Identifier: EPL-2.0

// Package audio provides the low-level audio primitives the sample cache and
// the asset loader are built on.
//
// # Source Interface
//
// The Source interface is the foundation of every decode path:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float32) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Decoders in the formats subpackages return a Source, and processors such as
// Resampler and MonoMixer wrap one, so they can be chained.
//
// # Normalisation
//
// Playback slots consume mono float samples at a single fixed rate. Normalize
// inserts a MonoMixer and a Resampler only where a source deviates from that
// layout:
//
//	canonical := audio.Normalize(src, 48000)
//	samples, err := audio.ReadAll(canonical)
//
// # Format Registry
//
// The registry maps file extensions to decoders:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	registry.Register("mp3", mp3.Decoder{})
//	decoder, err := registry.ForPath("sfx/alarm.mp3")
//
// # Sample Format
//
// Samples are float32 in the range [-1.0, 1.0]. A 16-bit PCM value v maps to
// v / 32768.
package audio
