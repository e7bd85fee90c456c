// SPDX-License-Identifier: EPL-2.0

package speaker

import (
	"math"

	"github.com/ik5/audslot/allocator"
)

// Vec3 is a world position.
type Vec3 struct {
	X, Y, Z float32
}

func (v Vec3) Distance(o Vec3) float32 {
	dx, dy, dz := v.X-o.X, v.Y-o.Y, v.Z-o.Z
	return float32(math.Sqrt(float64(dx*dx + dy*dy + dz*dz)))
}

// Speaker is one playback voice bound to a controller ID.
//
// Play replaces whatever is queued and starts at offset seconds into
// samples. Queue appends behind the current clip and starts playback when
// the speaker is idle. The queue-empty handler fires when the last clip
// finishes on its own or is skipped; it must not block.
type Speaker interface {
	ID() allocator.ID

	Play(samples []float32, loop bool, offset float64)
	Queue(samples []float32, loop bool)
	Stop()
	Pause()
	Resume()
	// Skip drops up to count clips starting with the current one and
	// reports how many were dropped.
	Skip(count int) int
	Destroy()

	SetVolume(v float32)
	Volume() float32
	SetMinDistance(d float32)
	SetMaxDistance(d float32)
	SetSpatial(spatial bool)
	SetPosition(p Vec3)
	Position() Vec3

	Playing() bool
	Paused() bool
	// PlaybackOffset is the position in seconds within the current clip.
	PlaybackOffset() float64
	// QueueLength counts clips including the one playing.
	QueueLength() int
	IsQueueEmpty() bool
	SetQueueEmptyHandler(fn func())
}

// ListenerFilter reports whether listener may hear a speaker.
type ListenerFilter func(listener string) bool

// AllListeners admits everyone.
func AllListeners(string) bool { return true }

// ListenerFilterer is implemented by speakers that can restrict their
// audience.
type ListenerFilterer interface {
	SetValidListeners(filter ListenerFilter)
}

// Factory creates and tracks speakers by controller ID.
type Factory interface {
	// Create builds a speaker for id at pos, replacing any speaker already
	// bound to id.
	Create(pos Vec3, id allocator.ID) (Speaker, error)
	Get(id allocator.ID) (Speaker, bool)
	// Remove destroys and forgets the speaker for id.
	Remove(id allocator.ID) bool
	Clear()
}
