// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// maxIdleReads bounds how many consecutive empty reads a source may return
// before the resampler treats it as exhausted.
const maxIdleReads = 8

// Resampler streams from src to a target sample rate using Catmull-Rom
// interpolation over a sliding window of source frames. Channel count is
// preserved. When downsampling, a one-pole low-pass is applied on ingest.
type Resampler struct {
	src      Source
	channels int
	dstRate  int
	step     float64 // source frames advanced per output frame

	window  []float32 // interleaved source frames not yet discarded
	pos     float64   // read head, in frames, relative to window[0]
	readBuf []float32
	eof     bool

	lowPass bool
	alpha   float32
	state   []float32
	primed  bool
}

func NewResampler(src Source, dstRate int) *Resampler {
	channels := max(src.Channels(), 1)
	step := float64(src.SampleRate()) / float64(dstRate)

	return &Resampler{
		src:      src,
		channels: channels,
		dstRate:  dstRate,
		step:     step,
		readBuf:  make([]float32, channels*1024),
		lowPass:  step > 1,
		alpha:    0.5,
		state:    make([]float32, channels),
	}
}

func (r *Resampler) SampleRate() int { return r.dstRate }
func (r *Resampler) Channels() int   { return r.channels }
func (r *Resampler) BufSize() int    { return r.src.BufSize() }

func (r *Resampler) Close() error {
	if err := r.src.Close(); err != nil {
		return fmt.Errorf("closing resampler source: %w", err)
	}
	return nil
}

func (r *Resampler) frames() int { return len(r.window) / r.channels }

// fill pulls source frames until the window holds at least need frames or
// the source is exhausted.
func (r *Resampler) fill(need int) error {
	idle := 0
	for r.frames() < need && !r.eof {
		n, err := r.src.ReadSamples(r.readBuf)
		n -= n % r.channels
		if n > 0 {
			idle = 0
			r.ingest(r.readBuf[:n])
		} else {
			idle++
		}

		switch {
		case errors.Is(err, io.EOF):
			r.eof = true
		case err != nil:
			return fmt.Errorf("resampler read: %w", err)
		case idle >= maxIdleReads:
			r.eof = true
		}
	}
	return nil
}

func (r *Resampler) ingest(samples []float32) {
	if !r.lowPass {
		r.window = append(r.window, samples...)
		return
	}

	if !r.primed {
		copy(r.state, samples[:r.channels])
		r.primed = true
	}
	for i, v := range samples {
		c := i % r.channels
		y := r.alpha*v + (1-r.alpha)*r.state[c]
		r.state[c] = y
		r.window = append(r.window, y)
	}
}

func (r *Resampler) at(frame, channel int) float32 {
	last := r.frames() - 1
	frame = min(max(frame, 0), last)
	return r.window[frame*r.channels+channel]
}

// ReadSamples produces interleaved samples at the target rate.
// dst length must be a multiple of the channel count.
func (r *Resampler) ReadSamples(dst []float32) (int, error) {
	if len(dst)%r.channels != 0 {
		return 0, ErrInvalidDstSize
	}

	written := 0
	for written*r.channels < len(dst) {
		base := int(r.pos)
		if err := r.fill(base + 3); err != nil {
			return written * r.channels, err
		}
		if base >= r.frames() {
			break
		}

		x := float32(r.pos - float64(base))
		for c := range r.channels {
			dst[written*r.channels+c] = catmullRom(
				r.at(base-1, c), r.at(base, c), r.at(base+1, c), r.at(base+2, c), x)
		}
		written++
		r.pos += r.step
	}

	r.compact()

	if written == 0 && r.eof {
		return 0, io.EOF
	}
	return written * r.channels, nil
}

// compact drops frames that can no longer be part of an interpolation window.
func (r *Resampler) compact() {
	drop := min(int(r.pos)-1, r.frames())
	if drop <= 0 {
		return
	}
	r.window = append(r.window[:0], r.window[drop*r.channels:]...)
	r.pos -= float64(drop)
}

// catmullRom interpolates between y1 and y2 at fractional position x.
func catmullRom(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	return ((a0*x+a1)*x+a2)*x + y1
}
