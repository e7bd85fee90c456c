// SPDX-License-Identifier: EPL-2.0

package session

import "github.com/ik5/audslot/allocator"

type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventPaused
	EventResumed
	EventStopped
	EventSkipped
	EventQueueEmptied
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventStopped:
		return "stopped"
	case EventSkipped:
		return "skipped"
	case EventQueueEmptied:
		return "queue_emptied"
	}
	return "unknown"
}

// Event is published after the state change it describes is complete.
type Event struct {
	Kind EventKind
	ID   allocator.ID
	Key  string
	// Count is the number of clips dropped by a skip.
	Count int
	// Evicted marks a stop forced by a higher priority request.
	Evicted bool
	// Recovered marks a start that restored a stored snapshot.
	Recovered bool
}

// EventHandler runs on the goroutine that caused the event, with no manager
// lock held.
type EventHandler func(Event)

type subscriber struct {
	id uint64
	fn EventHandler
}
