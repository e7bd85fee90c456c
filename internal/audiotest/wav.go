// SPDX-License-Identifier: EPL-2.0

package audiotest

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"sync/atomic"
)

// WAV builds a canonical 44-byte-header PCM16 WAV file.
func WAV(sampleRate, channels int, samples ...int16) []byte {
	buf := new(bytes.Buffer)

	dataSize := uint32(len(samples) * 2)
	blockAlign := uint16(channels * 2)

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, 36+dataSize)
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate)*uint32(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, blockAlign)
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, dataSize)
	_ = binary.Write(buf, binary.LittleEndian, samples)

	return buf.Bytes()
}

// MonoWAV is WAV for a single channel at 48kHz.
func MonoWAV(samples ...int16) []byte {
	return WAV(48000, 1, samples...)
}

// Tone returns n samples of constant value v.
func Tone(v int16, n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// Stream is a stream provider that counts how often it was opened.
type Stream struct {
	data  []byte
	err   error
	calls atomic.Int64

	mu     sync.Mutex
	onOpen func()
}

// NewStream returns a provider serving data on every Open.
func NewStream(data []byte) *Stream {
	return &Stream{data: data}
}

// NewFailingStream returns a provider whose Open always fails with err.
func NewFailingStream(err error) *Stream {
	return &Stream{err: err}
}

// OnOpen installs a hook run inside Open before the reader is returned.
func (s *Stream) OnOpen(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onOpen = fn
}

// Open matches the stream provider signature.
func (s *Stream) Open() (io.Reader, error) {
	s.calls.Add(1)

	s.mu.Lock()
	hook := s.onOpen
	s.mu.Unlock()
	if hook != nil {
		hook()
	}

	if s.err != nil {
		return nil, s.err
	}
	return bytes.NewReader(s.data), nil
}

// Calls reports how many times Open ran.
func (s *Stream) Calls() int {
	return int(s.calls.Load())
}
