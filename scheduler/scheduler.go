// SPDX-License-Identifier: EPL-2.0

package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var ErrInvalidInterval = errors.New("tick interval must be positive")

// TaskID identifies a scheduled task. The zero value is never issued.
type TaskID uint64

// TickFunc runs once per Advance with the elapsed time. Returning true
// retires the task.
type TickFunc func(dt time.Duration) (done bool)

type task struct {
	id        TaskID
	owner     string
	wake      time.Duration
	fn        func()
	tick      TickFunc
	cancelled atomic.Bool
}

type Option func(*Scheduler)

func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// Scheduler holds delayed and per-tick tasks against a virtual clock that
// only moves through Advance.
type Scheduler struct {
	mu      sync.Mutex
	now     time.Duration
	nextID  TaskID
	timers  timerHeap
	tickers []*task
	byID    map[TaskID]*task
	logger  *slog.Logger
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{byID: make(map[TaskID]*task)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	s.logger = s.logger.With("component", "scheduler")
	return s
}

// Now is the virtual time accumulated by Advance.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.now
}

// After runs fn once the clock has moved at least delay past now. A zero
// delay runs on the next Advance.
func (s *Scheduler) After(owner string, delay time.Duration, fn func()) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.newTask(owner)
	t.wake = s.now + max(delay, 0)
	t.fn = fn
	heap.Push(&s.timers, t)
	return t.id
}

// Every runs fn on each Advance, starting with the next one, until it
// returns true or is cancelled.
func (s *Scheduler) Every(owner string, fn TickFunc) TaskID {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := s.newTask(owner)
	t.tick = fn
	s.tickers = append(s.tickers, t)
	return t.id
}

// newTask registers a task. Caller holds s.mu.
func (s *Scheduler) newTask(owner string) *task {
	s.nextID++
	t := &task{id: s.nextID, owner: owner}
	s.byID[t.id] = t
	return t
}

// Cancel stops a pending task. It reports false if the task already ran or
// was cancelled.
func (s *Scheduler) Cancel(id TaskID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.byID[id]
	if !ok {
		return false
	}
	delete(s.byID, id)
	t.cancelled.Store(true)
	return true
}

// CancelOwner stops every pending task tagged with owner.
func (s *Scheduler) CancelOwner(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, t := range s.byID {
		if t.owner == owner {
			delete(s.byID, id)
			t.cancelled.Store(true)
			n++
		}
	}
	return n
}

// Pending counts tasks that have neither run to completion nor been
// cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.byID)
}

// PendingFor counts pending tasks tagged with owner.
func (s *Scheduler) PendingFor(owner string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, t := range s.byID {
		if t.owner == owner {
			n++
		}
	}
	return n
}

// Advance moves the clock by dt, then runs due delayed tasks in wake order
// followed by every per-tick task.
func (s *Scheduler) Advance(dt time.Duration) {
	s.mu.Lock()
	s.now += max(dt, 0)

	var due []*task
	for {
		wake, ok := s.timers.peekWake()
		if !ok || wake > s.now {
			break
		}
		t := heap.Pop(&s.timers).(*task)
		if t.cancelled.Load() {
			continue
		}
		delete(s.byID, t.id)
		due = append(due, t)
	}

	live := s.tickers[:0]
	for _, t := range s.tickers {
		if !t.cancelled.Load() {
			live = append(live, t)
		}
	}
	clear(s.tickers[len(live):])
	s.tickers = live
	ticks := append([]*task(nil), live...)
	s.mu.Unlock()

	for _, t := range due {
		if !t.cancelled.Load() {
			s.run(t, func() { t.fn() })
		}
	}

	for _, t := range ticks {
		if t.cancelled.Load() {
			continue
		}
		done := false
		s.run(t, func() { done = t.tick(dt) })
		if done {
			s.retire(t)
		}
	}
}

func (s *Scheduler) retire(t *task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byID, t.id)
	t.cancelled.Store(true)
}

func (s *Scheduler) run(t *task, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task panicked", "task", t.id, "owner", t.owner, "panic", r)
			s.retire(t)
		}
	}()
	fn()
}

// Run drives Advance from a wall-clock ticker until ctx is done. A non-nil
// before runs ahead of every Advance with the same elapsed time.
func (s *Scheduler) Run(ctx context.Context, interval time.Duration, before func(dt time.Duration)) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			dt := now.Sub(last)
			if before != nil {
				before(dt)
			}
			s.Advance(dt)
			last = now
		}
	}
}
