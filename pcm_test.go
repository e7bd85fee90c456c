// SPDX-License-Identifier: EPL-2.0

package audslot

import (
	"errors"
	"testing"

	"github.com/ik5/audslot/internal/audiotest"
)

func TestCanonicalize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		rate     int
		channels int
		frames   int
		target   int
		wantLen  int
	}{
		{"already canonical", 48000, 1, 480, 48000, 480},
		{"stereo fold", 48000, 2, 480, 48000, 480},
		{"upsample stereo", 24000, 2, 240, 48000, 480},
		{"downsample mono", 48000, 1, 480, 16000, 160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			src := audiotest.NewConstantSource(tt.rate, tt.channels, tt.frames, 0.5)
			pcm, err := Canonicalize(src, tt.target)
			if err != nil {
				t.Fatalf("Canonicalize() error = %v", err)
			}
			if len(pcm) != tt.wantLen {
				t.Fatalf("len = %d, want %d", len(pcm), tt.wantLen)
			}
			for i, v := range pcm {
				if v < 16380 || v > 16386 {
					t.Fatalf("pcm[%d] = %d, want ~16383", i, v)
				}
			}
		})
	}
}

func TestCanonicalize_InvalidRate(t *testing.T) {
	t.Parallel()

	_, err := Canonicalize(audiotest.NewSilentSource(8000, 1, 10), 0)
	if !errors.Is(err, ErrInvalidRate) {
		t.Errorf("Canonicalize() error = %v, want ErrInvalidRate", err)
	}
}

func TestFloat32ToInt16(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32767},
		{2.5, 32767},
		{-3, -32767},
		{0.5, 16383},
	}

	for _, tt := range tests {
		if got := Float32ToInt16(tt.in); got != tt.want {
			t.Errorf("Float32ToInt16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
