// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	goaudio "github.com/go-audio/audio"
	gowav "github.com/go-audio/wav"

	"github.com/ik5/audslot/audio"
)

// HeaderSize is the length of a canonical RIFF/WAVE header with a single
// fmt chunk followed by the data chunk.
const HeaderSize = 44

// DefaultSampleRate is the rate assumed by RawDecoder when none is set.
const DefaultSampleRate = 48000

// pcmSource converts little-endian int16 frames from r into float32.
type pcmSource struct {
	r          io.Reader
	sampleRate int
	channels   int
	buf        []byte
}

func (s *pcmSource) SampleRate() int { return s.sampleRate }
func (s *pcmSource) Channels() int   { return s.channels }
func (s *pcmSource) BufSize() int    { return cap(s.buf) / 2 }
func (s *pcmSource) Close() error    { return nil }

func (s *pcmSource) ReadSamples(dst []float32) (int, error) {
	if len(s.buf) < len(dst)*2 {
		s.buf = make([]byte, len(dst)*2)
	}

	n, err := io.ReadFull(s.r, s.buf[:len(dst)*2])
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		err = io.EOF
	case err != nil:
		return 0, fmt.Errorf("reading pcm data: %w", err)
	}

	samples := n / 2
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(s.buf[2*i:]))
		dst[i] = float32(v) / 32768.0
	}

	return samples, err
}

// RawDecoder treats its input as a canonical WAV: the first 44 bytes are
// skipped without inspection and the rest is read as mono 16-bit PCM at
// SampleRate. Input in any other layout decodes into noise.
type RawDecoder struct {
	SampleRate int
}

func (d RawDecoder) Decode(r io.Reader) (audio.Source, error) {
	skipped, err := io.CopyN(io.Discard, r, HeaderSize)
	if err != nil {
		if skipped < HeaderSize && (errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF)) {
			return nil, ErrTruncatedHeader
		}
		return nil, fmt.Errorf("skipping WAV header: %w", err)
	}

	rate := d.SampleRate
	if rate <= 0 {
		rate = DefaultSampleRate
	}

	return &pcmSource{
		r:          r,
		sampleRate: rate,
		channels:   1,
		buf:        make([]byte, 8192),
	}, nil
}

// intReader is the part of gowav.Decoder the strict source needs.
type intReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

type strictSource struct {
	dec        intReader
	format     *goaudio.Format
	sampleRate int
	channels   int
	intBuf     *goaudio.IntBuffer
}

func (s *strictSource) SampleRate() int { return s.sampleRate }
func (s *strictSource) Channels() int   { return s.channels }
func (s *strictSource) Close() error    { return nil }
func (s *strictSource) BufSize() int {
	if s.intBuf != nil {
		return cap(s.intBuf.Data)
	}
	return 4096
}

func (s *strictSource) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}

	if s.intBuf == nil || cap(s.intBuf.Data) < len(dst) {
		s.intBuf = &goaudio.IntBuffer{Data: make([]int, len(dst)), Format: s.format}
	}
	s.intBuf.Data = s.intBuf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.intBuf)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("reading pcm buffer: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}

	for i := range n {
		dst[i] = float32(s.intBuf.Data[i]) / 32768.0
	}

	return n, nil
}

// Decoder validates the RIFF container with go-audio/wav before streaming.
// Only 16-bit integer PCM is accepted; any channel count and sample rate are
// reported as found, so callers normalise with audio.Normalize.
type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading wav data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	dec := gowav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWavFile
	}
	if dec.WavAudioFormat != 1 || dec.BitDepth != 16 {
		return nil, ErrOnlyPCM16bitSupported
	}

	format := dec.Format()
	if format == nil || format.NumChannels == 0 {
		return nil, ErrUnsupportedWavLayout
	}
	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavLayout, err)
	}

	return &strictSource{
		dec:        dec,
		format:     format,
		sampleRate: format.SampleRate,
		channels:   format.NumChannels,
	}, nil
}
