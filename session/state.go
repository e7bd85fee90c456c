// SPDX-License-Identifier: EPL-2.0

package session

import (
	"fmt"
	"time"

	"github.com/ik5/audslot/allocator"
	"github.com/ik5/audslot/speaker"
)

const (
	DefaultMinDistance = speaker.DefaultMinDistance
	DefaultMaxDistance = speaker.DefaultMaxDistance

	// GlobalRange is the max distance used for non-spatial broadcasts.
	GlobalRange = 1e6
)

// ConfigureFunc receives a freshly created speaker after the standard
// settings were applied.
type ConfigureFunc func(speaker.Speaker)

// Clip is one entry of a session's play list.
type Clip struct {
	Key  string
	Loop bool
}

// Params describes a playback request. Start from DefaultParams; the zero
// value plays at volume 0.
type Params struct {
	Position    speaker.Vec3
	Loop        bool
	Volume      float32
	MinDistance float32
	MaxDistance float32
	Spatial     bool
	Priority    allocator.Priority
	Configure   ConfigureFunc
	Filter      speaker.ListenerFilter

	// Queue appends behind the current clip instead of replacing it.
	Queue bool
	// Persistent keeps a recoverable snapshot when the session is evicted
	// or released.
	Persistent bool
	// Lifespan, when positive, fades the session out after it elapses.
	Lifespan time.Duration
	// AutoCleanup releases the session once its queue drains or it is
	// stopped.
	AutoCleanup bool
}

func DefaultParams() Params {
	return Params{
		Volume:      1,
		MinDistance: DefaultMinDistance,
		MaxDistance: DefaultMaxDistance,
		Spatial:     true,
		Priority:    allocator.Medium,
	}
}

func (p Params) Validate() error {
	return validateSettings(p.Volume, p.MinDistance, p.MaxDistance, p.Lifespan, p.Priority)
}

// GlobalParams describes a non-spatial broadcast.
type GlobalParams struct {
	Volume      float32
	Loop        bool
	Priority    allocator.Priority
	Filter      speaker.ListenerFilter
	Queue       bool
	Persistent  bool
	Lifespan    time.Duration
	AutoCleanup bool
	// FadeIn, when positive, ramps the volume up right after start.
	FadeIn time.Duration
}

func DefaultGlobalParams() GlobalParams {
	return GlobalParams{Volume: 1, Priority: allocator.Medium}
}

func (g GlobalParams) params() Params {
	filter := g.Filter
	if filter == nil {
		filter = speaker.AllListeners
	}
	return Params{
		Volume:      g.Volume,
		Loop:        g.Loop,
		MinDistance: 0,
		MaxDistance: GlobalRange,
		Spatial:     false,
		Priority:    g.Priority,
		Filter:      filter,
		Queue:       g.Queue,
		Persistent:  g.Persistent,
		Lifespan:    g.Lifespan,
		AutoCleanup: g.AutoCleanup,
	}
}

// State is the recoverable snapshot of a session.
type State struct {
	Key         string
	Loop        bool
	Queue       []Clip
	Position    speaker.Vec3
	Volume      float32
	MinDistance float32
	MaxDistance float32
	Spatial     bool
	Priority    allocator.Priority
	// Offset is the playback position in seconds within the first clip.
	Offset      float64
	Paused      bool
	Lifespan    time.Duration
	AutoCleanup bool
	Persistent  bool
	Configure   ConfigureFunc
	Filter      speaker.ListenerFilter
}

func newState(key string, p Params) State {
	return State{
		Key:         key,
		Loop:        p.Loop,
		Position:    p.Position,
		Volume:      p.Volume,
		MinDistance: p.MinDistance,
		MaxDistance: p.MaxDistance,
		Spatial:     p.Spatial,
		Priority:    p.Priority,
		Lifespan:    p.Lifespan,
		AutoCleanup: p.AutoCleanup,
		Persistent:  p.Persistent,
		Configure:   p.Configure,
		Filter:      p.Filter,
	}
}

// Clips returns the play list with the current clip first.
func (s State) Clips() []Clip {
	var out []Clip
	if s.Key != "" {
		out = append(out, Clip{Key: s.Key, Loop: s.Loop})
	}
	return append(out, s.Queue...)
}

// withClips replaces the play list.
func (s State) withClips(clips []Clip) State {
	s.Queue = nil
	s.Key, s.Loop = "", false
	if len(clips) == 0 {
		return s
	}
	s.Key, s.Loop = clips[0].Key, clips[0].Loop
	s.Queue = append([]Clip(nil), clips[1:]...)
	return s
}

// remaining keeps the last n clips of the play list. A drained list is left
// whole so a recovery replays it from the start.
func (s State) remaining(n int) State {
	clips := s.Clips()
	if n <= 0 {
		s.Offset = 0
		return s
	}
	if n >= len(clips) {
		return s
	}
	return s.withClips(clips[len(clips)-n:])
}

// Validate checks that a snapshot can be played back as stored.
func (s State) Validate() error {
	if s.Key == "" && len(s.Queue) == 0 {
		return fmt.Errorf("%w: no audio key or queued clips", ErrInvalidState)
	}
	for i, c := range s.Queue {
		if c.Key == "" {
			return fmt.Errorf("%w: queued clip %d has no key", ErrInvalidState, i)
		}
	}
	if err := validateSettings(s.Volume, s.MinDistance, s.MaxDistance, s.Lifespan, s.Priority); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	}
	if s.Offset < 0 {
		return fmt.Errorf("%w: negative offset %v", ErrInvalidState, s.Offset)
	}
	return nil
}

func validateSettings(volume, minDist, maxDist float32, lifespan time.Duration, p allocator.Priority) error {
	switch {
	case !(volume >= 0 && volume <= 1):
		return fmt.Errorf("%w: volume %v outside [0, 1]", ErrInvalidArgument, volume)
	case !(minDist >= 0):
		return fmt.Errorf("%w: min distance %v", ErrInvalidArgument, minDist)
	case !(maxDist >= minDist):
		return fmt.Errorf("%w: max distance %v below min distance %v", ErrInvalidArgument, maxDist, minDist)
	case lifespan < 0:
		return fmt.Errorf("%w: negative lifespan %v", ErrInvalidArgument, lifespan)
	case !p.Valid():
		return fmt.Errorf("%w: priority %d", ErrInvalidArgument, int(p))
	}
	return nil
}
