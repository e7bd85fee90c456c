// SPDX-License-Identifier: EPL-2.0

package audslot

import (
	"errors"
	"fmt"

	"github.com/ik5/audslot/audio"
)

// ErrInvalidRate is returned for non-positive target rates.
var ErrInvalidRate = errors.New("target sample rate must be positive")

// Canonicalize drains src into mono 16-bit PCM at rate.
// The source is closed once drained.
func Canonicalize(src audio.Source, rate int) ([]int16, error) {
	if rate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidRate, rate)
	}

	pipeline := audio.Normalize(src, rate)
	defer pipeline.Close()

	samples, err := audio.ReadAll(pipeline)
	if err != nil {
		return nil, fmt.Errorf("canonicalize: %w", err)
	}

	return ToPCM16(samples), nil
}

// ToPCM16 converts float samples in [-1, 1] to 16-bit PCM, clamping
// anything outside that range.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, x := range samples {
		out[i] = Float32ToInt16(x)
	}
	return out
}

// Float32ToInt16 clamps x to [-1, 1] and scales by 32767.
func Float32ToInt16(x float32) int16 {
	if x > 1 {
		x = 1
	} else if x < -1 {
		x = -1
	}
	return int16(x * 32767.0)
}
