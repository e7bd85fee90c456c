// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/ik5/audslot/audio"
	"github.com/ik5/audslot/internal/audiotest"
)

type failingWriter struct{ after int }

func (w *failingWriter) Write(p []byte) (int, error) {
	if w.after <= 0 {
		return 0, errors.New("disk full")
	}
	w.after--
	return len(p), nil
}

func TestWriteWAV16_Header(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	if err := WriteWAV16(buf, 48000, []int16{1, 2, 3}); err != nil {
		t.Fatalf("WriteWAV16() error = %v", err)
	}

	want := audiotest.MonoWAV(1, 2, 3)
	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("WriteWAV16() = % x, want % x", buf.Bytes(), want)
	}
	if rate := binary.LittleEndian.Uint32(buf.Bytes()[24:28]); rate != 48000 {
		t.Errorf("sample rate field = %d, want 48000", rate)
	}
}

func TestWriteWAV16_RoundTrip(t *testing.T) {
	t.Parallel()

	// spans several write chunks
	samples := make([]int16, writeChunk*2+17)
	for i := range samples {
		samples[i] = int16(i%2000 - 1000)
	}

	buf := new(bytes.Buffer)
	if err := WriteWAV16(buf, 48000, samples); err != nil {
		t.Fatalf("WriteWAV16() error = %v", err)
	}

	src, err := RawDecoder{}.Decode(buf)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	got, err := audio.ReadAll(src)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if len(got) != len(samples) {
		t.Fatalf("len = %d, want %d", len(got), len(samples))
	}
	for i, s := range samples {
		if want := float32(s) / 32768; got[i] != want {
			t.Fatalf("sample[%d] = %v, want %v", i, got[i], want)
		}
	}
}

func TestWriteWAV16_Empty(t *testing.T) {
	t.Parallel()

	buf := new(bytes.Buffer)
	if err := WriteWAV16(buf, 8000, nil); err != nil {
		t.Fatalf("WriteWAV16() error = %v", err)
	}
	if buf.Len() != HeaderSize {
		t.Errorf("len = %d, want %d", buf.Len(), HeaderSize)
	}
}

func TestWriteWAV16_WriterErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		after int
	}{
		{"header", 0},
		{"data", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := WriteWAV16(&failingWriter{after: tt.after}, 8000, []int16{1, 2})
			if err == nil {
				t.Error("WriteWAV16() error = nil, want error")
			}
		})
	}
}
