// SPDX-License-Identifier: EPL-2.0

package allocator

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
)

// ID identifies one controller slot. The zero value is never allocated.
type ID uint8

const (
	InvalidID   ID  = 0
	MaxCapacity int = 255
)

// StopFunc is invoked once when the holder of id is evicted, on the
// goroutine calling Allocate and without the allocator lock held.
type StopFunc func(id ID)

// Request describes a slot request. State is only kept when Persistent is set.
type Request[S any] struct {
	Priority   Priority
	Stop       StopFunc
	Persistent bool
	State      S
}

type slot struct {
	priority   Priority
	stop       StopFunc
	persistent bool
	// evicting is set while the stop callback runs.
	evicting bool
}

// Stats is a point-in-time view of allocator counters.
type Stats struct {
	Capacity    int
	Allocated   int
	Recoverable int
	Allocations uint64
	Evictions   uint64
	Failures    uint64
	Releases    uint64
}

type options struct {
	capacity int
	logger   *slog.Logger
}

type Option func(*options)

// WithCapacity limits the pool to IDs 1..n.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Allocator hands out IDs by priority and keeps recoverable state of type S.
type Allocator[S any] struct {
	mu       sync.Mutex
	logger   *slog.Logger
	capacity int

	// slots is indexed by ID; slots[0] is unused.
	slots       []*slot
	states      map[ID]S
	recoverable map[ID]S
	stats       Stats
	owner       any
}

func New[S any](opts ...Option) (*Allocator[S], error) {
	o := options{capacity: MaxCapacity}
	for _, opt := range opts {
		opt(&o)
	}

	if o.capacity < 1 || o.capacity > MaxCapacity {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCapacity, o.capacity)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Allocator[S]{
		logger:      o.logger.With("component", "allocator"),
		capacity:    o.capacity,
		slots:       make([]*slot, o.capacity+1),
		states:      make(map[ID]S),
		recoverable: make(map[ID]S),
	}, nil
}

// Allocate assigns the lowest free ID to req, or evicts a holder with a
// strictly lower priority. The evicted holder's stop callback runs before
// the slot is handed over: while it runs, IsAllocated and PriorityOf still
// report the old holder and its live state can still be saved.
func (a *Allocator[S]) Allocate(req Request[S]) (ID, error) {
	if !req.Priority.Valid() {
		return InvalidID, fmt.Errorf("%w: %d", ErrInvalidPriority, int(req.Priority))
	}

	a.mu.Lock()
	for {
		if id := a.freeSlot(); id != InvalidID {
			a.assign(id, req)
			a.mu.Unlock()
			a.logger.Debug("allocated controller", "id", id, "priority", req.Priority)
			return id, nil
		}

		id := a.evictionCandidate(req.Priority)
		if id == InvalidID {
			a.stats.Failures++
			a.mu.Unlock()
			a.logger.Debug("allocation failed", "priority", req.Priority)
			return InvalidID, fmt.Errorf("%w: requested %s", ErrExhausted, req.Priority)
		}

		victim := a.slots[id]
		victim.evicting = true
		a.mu.Unlock()

		a.logger.Info("evicting controller",
			"id", id, "evicted_priority", victim.priority, "priority", req.Priority,
			"persistent", victim.persistent)
		if victim.stop != nil {
			victim.stop(id)
		}

		a.mu.Lock()
		switch a.slots[id] {
		case victim:
			a.retire(id, victim)
			a.stats.Evictions++
		case nil:
			// Released by its holder while stopping.
		default:
			// Released and taken by another request meanwhile.
			continue
		}
		a.assign(id, req)
		a.mu.Unlock()
		return id, nil
	}
}

// assign installs req in id. Caller holds a.mu.
func (a *Allocator[S]) assign(id ID, req Request[S]) {
	a.slots[id] = &slot{priority: req.Priority, stop: req.Stop, persistent: req.Persistent}
	if req.Persistent {
		a.states[id] = req.State
	}
	a.stats.Allocations++
}

// Claim binds a to owner. Stop callbacks run on the goroutine that calls
// Allocate, so an allocator serves the holders of a single owner; a second
// owner gets ErrClaimed. Claiming again with the same owner is a no-op.
// owner must be comparable; a pointer is the usual choice.
func (a *Allocator[S]) Claim(owner any) error {
	if owner == nil {
		return fmt.Errorf("%w: nil owner", ErrClaimed)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.owner != nil && a.owner != owner {
		return ErrClaimed
	}
	a.owner = owner
	return nil
}

// freeSlot returns the lowest unoccupied ID. Caller holds a.mu.
func (a *Allocator[S]) freeSlot() ID {
	for i := 1; i <= a.capacity; i++ {
		if a.slots[i] == nil {
			return ID(i)
		}
	}
	return InvalidID
}

// evictionCandidate picks the lowest priority below p, then the lowest ID.
// Caller holds a.mu.
func (a *Allocator[S]) evictionCandidate(p Priority) ID {
	best := InvalidID
	for i := 1; i <= a.capacity; i++ {
		s := a.slots[i]
		if s == nil || s.evicting || s.priority >= p {
			continue
		}
		if best == InvalidID || s.priority < a.slots[best].priority {
			best = ID(i)
		}
	}
	return best
}

// retire moves a persistent holder's live state into the recoverable store.
// Caller holds a.mu.
func (a *Allocator[S]) retire(id ID, s *slot) {
	state, ok := a.states[id]
	delete(a.states, id)
	if s.persistent && ok {
		a.recoverable[id] = state
	}
}

// UpdateStopCallback swaps the stop callback of an allocated ID.
func (a *Allocator[S]) UpdateStopCallback(id ID, fn StopFunc) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.lookup(id)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrNotAllocated, id)
	}
	s.stop = fn
	return nil
}

// ReleaseId frees id. Without force a persistent holder's state stays
// recoverable; with force every snapshot under id is dropped for good.
func (a *Allocator[S]) ReleaseId(id ID, force bool) error {
	a.mu.Lock()

	s := a.lookup(id)
	if s == nil {
		purged := false
		if force {
			purged = a.purge(id)
		}
		a.mu.Unlock()

		if purged {
			a.logger.Warn("recoverable state removed permanently", "id", id)
			return nil
		}
		return fmt.Errorf("%w: %d", ErrNotAllocated, id)
	}

	purged := false
	if force {
		purged = a.purge(id)
	} else {
		a.retire(id, s)
	}
	a.slots[id] = nil
	a.stats.Releases++
	a.mu.Unlock()

	if purged {
		a.logger.Warn("released controller and removed its state permanently", "id", id)
	} else {
		a.logger.Debug("released controller", "id", id, "priority", s.priority)
	}
	return nil
}

// purge drops both tiers of state for id. Caller holds a.mu.
func (a *Allocator[S]) purge(id ID) bool {
	_, live := a.states[id]
	_, rec := a.recoverable[id]
	delete(a.states, id)
	delete(a.recoverable, id)
	return live || rec
}

// lookup returns the slot for id or nil. Caller holds a.mu.
func (a *Allocator[S]) lookup(id ID) *slot {
	if id == InvalidID || int(id) > a.capacity {
		return nil
	}
	return a.slots[id]
}

// GetSpeakerState returns the snapshot stored under id. A recoverable
// snapshot from an evicted or released holder wins over the live state of
// the current holder.
func (a *Allocator[S]) GetSpeakerState(id ID) (S, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if s, ok := a.recoverable[id]; ok {
		return s, true
	}
	s, ok := a.states[id]
	return s, ok
}

// TakeState removes and returns the recoverable snapshot under id.
func (a *Allocator[S]) TakeState(id ID) (S, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.recoverable[id]
	delete(a.recoverable, id)
	return s, ok
}

// Recoverable returns the snapshot left by an evicted or released holder,
// ignoring the live state of whoever holds id now.
func (a *Allocator[S]) Recoverable(id ID) (S, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.recoverable[id]
	return s, ok
}

// Restore puts a snapshot back under id unless another one took its place.
func (a *Allocator[S]) Restore(id ID, state S) bool {
	if id == InvalidID || int(id) > a.capacity {
		return false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.recoverable[id]; ok {
		return false
	}
	a.recoverable[id] = state
	return true
}

// Abandon frees id and discards its live state, leaving any recoverable
// snapshot of an earlier holder in place. It undoes an allocation whose
// holder never started.
func (a *Allocator[S]) Abandon(id ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.lookup(id) == nil {
		return fmt.Errorf("%w: %d", ErrNotAllocated, id)
	}
	delete(a.states, id)
	a.slots[id] = nil
	a.stats.Releases++
	return nil
}

// SaveState replaces the live snapshot of a persistent holder.
func (a *Allocator[S]) SaveState(id ID, state S) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.lookup(id)
	if s == nil {
		return fmt.Errorf("%w: %d", ErrNotAllocated, id)
	}
	if !s.persistent {
		return fmt.Errorf("%w: %d", ErrNotPersistent, id)
	}
	a.states[id] = state
	return nil
}

// DeleteState drops every snapshot under id without touching occupancy.
func (a *Allocator[S]) DeleteState(id ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.purge(id)
}

// CleanupEvictedSpeakers purges all recoverable snapshots and reports how
// many were dropped. Live state of current holders is kept.
func (a *Allocator[S]) CleanupEvictedSpeakers() int {
	a.mu.Lock()
	n := len(a.recoverable)
	clear(a.recoverable)
	a.mu.Unlock()

	if n > 0 {
		a.logger.Info("purged recoverable state", "count", n)
	}
	return n
}

func (a *Allocator[S]) Capacity() int { return a.capacity }

// Free reports how many IDs are currently unoccupied.
func (a *Allocator[S]) Free() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.capacity - a.allocated()
}

func (a *Allocator[S]) allocated() int {
	n := 0
	for _, s := range a.slots[1:] {
		if s != nil {
			n++
		}
	}
	return n
}

// Allocated lists occupied IDs in ascending order.
func (a *Allocator[S]) Allocated() []ID {
	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]ID, 0, a.capacity)
	for i := 1; i <= a.capacity; i++ {
		if a.slots[i] != nil {
			ids = append(ids, ID(i))
		}
	}
	return ids
}

func (a *Allocator[S]) IsAllocated(id ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.lookup(id) != nil
}

func (a *Allocator[S]) PriorityOf(id ID) (Priority, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.lookup(id)
	if s == nil {
		return 0, false
	}
	return s.priority, true
}

func (a *Allocator[S]) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	st := a.stats
	st.Capacity = a.capacity
	st.Allocated = a.allocated()
	st.Recoverable = len(a.recoverable)
	return st
}
