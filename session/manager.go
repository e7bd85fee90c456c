// SPDX-License-Identifier: EPL-2.0

package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ik5/audslot/allocator"
	"github.com/ik5/audslot/scheduler"
	"github.com/ik5/audslot/speaker"
)

const (
	DefaultFade         = time.Second
	DefaultTickInterval = 20 * time.Millisecond
)

// Samples resolves audio keys into decoded sample buffers.
type Samples interface {
	Get(key string) ([]float32, bool)
}

// ticker is implemented by factories that render on the manager's clock.
type ticker interface {
	Tick(dt time.Duration)
}

type options struct {
	allocator    *allocator.Allocator[State]
	capacity     int
	scheduler    *scheduler.Scheduler
	logger       *slog.Logger
	fadeIn       time.Duration
	fadeOut      time.Duration
	tickInterval time.Duration
}

type Option func(*options)

// WithAllocator uses a instead of creating an allocator. An allocator
// serves one manager: stop callbacks of evicted sessions run inside the
// evicting manager's lock, so New fails when a is already in use by another
// manager.
func WithAllocator(a *allocator.Allocator[State]) Option {
	return func(o *options) { o.allocator = a }
}

// WithCapacity sizes the allocator the manager creates.
func WithCapacity(n int) Option {
	return func(o *options) { o.capacity = n }
}

func WithScheduler(s *scheduler.Scheduler) Option {
	return func(o *options) { o.scheduler = s }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDefaultFades sets the durations used when a fade is requested with a
// zero duration and when a lifespan expires.
func WithDefaultFades(in, out time.Duration) Option {
	return func(o *options) {
		o.fadeIn = in
		o.fadeOut = out
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tickInterval = d }
}

// session is one live playback bound to a controller ID. token changes with
// every new session so deferred work can tell a slot's occupants apart.
type session struct {
	id       allocator.ID
	token    string
	spk      speaker.Speaker
	state    State
	fadeTask scheduler.TaskID
}

// Manager turns playback requests into controller IDs with live speakers.
type Manager struct {
	mu       sync.Mutex
	samples  Samples
	alloc    *allocator.Allocator[State]
	factory  speaker.Factory
	sched    *scheduler.Scheduler
	sessions map[allocator.ID]*session
	logger   *slog.Logger

	fadeIn       time.Duration
	fadeOut      time.Duration
	tickInterval time.Duration

	pending     []Event
	subscribers []subscriber
	nextSub     uint64
	closed      bool
}

func New(samples Samples, factory speaker.Factory, opts ...Option) (*Manager, error) {
	if samples == nil || factory == nil {
		return nil, fmt.Errorf("%w: samples and factory are required", ErrInvalidArgument)
	}

	o := options{
		capacity:     allocator.MaxCapacity,
		fadeIn:       DefaultFade,
		fadeOut:      DefaultFade,
		tickInterval: DefaultTickInterval,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.fadeIn < 0 || o.fadeOut < 0 {
		return nil, fmt.Errorf("%w: negative default fade", ErrInvalidArgument)
	}
	if o.tickInterval <= 0 {
		return nil, fmt.Errorf("%w: tick interval %v", ErrInvalidArgument, o.tickInterval)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if o.allocator == nil {
		a, err := allocator.New[State](allocator.WithCapacity(o.capacity), allocator.WithLogger(o.logger))
		if err != nil {
			return nil, fmt.Errorf("creating allocator: %w", err)
		}
		o.allocator = a
	}
	if o.scheduler == nil {
		o.scheduler = scheduler.New(scheduler.WithLogger(o.logger))
	}

	m := &Manager{
		samples:      samples,
		alloc:        o.allocator,
		factory:      factory,
		sched:        o.scheduler,
		sessions:     make(map[allocator.ID]*session),
		logger:       o.logger.With("component", "session"),
		fadeIn:       o.fadeIn,
		fadeOut:      o.fadeOut,
		tickInterval: o.tickInterval,
	}
	if err := m.alloc.Claim(m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return m, nil
}

// unlock releases m.mu and then publishes the events queued while it was
// held.
func (m *Manager) unlock() {
	events := m.pending
	m.pending = nil
	subs := m.subscribers
	m.mu.Unlock()

	for _, ev := range events {
		for _, s := range subs {
			s.fn(ev)
		}
	}
}

// emit queues ev for delivery by unlock. Caller holds m.mu.
func (m *Manager) emit(ev Event) {
	m.pending = append(m.pending, ev)
}

// Subscribe registers h for every event and returns a function removing it.
func (m *Manager) Subscribe(h EventHandler) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSub++
	id := m.nextSub
	m.subscribers = append(slices.Clone(m.subscribers), subscriber{id: id, fn: h})

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		m.subscribers = slices.DeleteFunc(slices.Clone(m.subscribers), func(s subscriber) bool {
			return s.id == id
		})
	}
}

// PlayAudio starts key on a new controller ID. It returns InvalidID and an
// error wrapping ErrInvalidArgument, ErrNotFound or ErrResourceExhausted
// when nothing was started.
func (m *Manager) PlayAudio(key string, p Params) (allocator.ID, error) {
	return m.play(key, p, 0)
}

// PlayGlobalAudio plays key for every listener regardless of position.
func (m *Manager) PlayGlobalAudio(key string, g GlobalParams) (allocator.ID, error) {
	if g.FadeIn < 0 {
		return allocator.InvalidID, fmt.Errorf("%w: negative fade in %v", ErrInvalidArgument, g.FadeIn)
	}
	return m.play(key, g.params(), g.FadeIn)
}

func (m *Manager) play(key string, p Params, fadeIn time.Duration) (allocator.ID, error) {
	if key == "" {
		return allocator.InvalidID, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	if err := p.Validate(); err != nil {
		return allocator.InvalidID, err
	}

	samples, ok := m.samples.Get(key)
	if !ok {
		m.logger.Debug("no samples for key", "key", key)
		return allocator.InvalidID, fmt.Errorf("%w: audio key %q", ErrNotFound, key)
	}

	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return allocator.InvalidID, ErrClosed
	}

	st := newState(key, p)
	s, err := m.startLocked(st, [][]float32{samples}, 0, p.Queue, false)
	if err != nil {
		return allocator.InvalidID, err
	}

	if fadeIn > 0 {
		m.fadeInLocked(s, fadeIn)
	}
	return s.id, nil
}

// startLocked allocates a slot, builds its speaker and starts the play list
// in st. clips holds the samples for st.Clips() in order. With queue set the
// first clip is queued rather than played. Caller holds m.mu.
func (m *Manager) startLocked(st State, clips [][]float32, offset float64, queue, recovered bool) (*session, error) {
	token := uuid.NewString()

	id, err := m.alloc.Allocate(allocator.Request[State]{
		Priority:   st.Priority,
		Stop:       m.evictor(token),
		Persistent: st.Persistent,
		State:      st,
	})
	if err != nil {
		if errors.Is(err, allocator.ErrExhausted) {
			return nil, fmt.Errorf("%w: %w", ErrResourceExhausted, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	spk, err := m.factory.Create(st.Position, id)
	if err != nil {
		if aerr := m.alloc.Abandon(id); aerr != nil {
			m.logger.Warn("rolling back allocation", "id", id, "error", aerr)
		}
		return nil, fmt.Errorf("creating speaker for %d: %w", id, err)
	}

	s := &session{id: id, token: token, spk: spk, state: st}
	m.configure(s)

	// The device may render the whole clip as soon as it is started, so the
	// drain handler goes in first.
	spk.SetQueueEmptyHandler(func() {
		m.sched.After(token, 0, func() { m.queueEmptied(id, token) })
	})

	list := st.Clips()
	if queue {
		spk.Queue(clips[0], list[0].Loop)
	} else {
		spk.Play(clips[0], list[0].Loop, offset)
	}
	for i := 1; i < len(list); i++ {
		spk.Queue(clips[i], list[i].Loop)
	}
	if st.Paused {
		spk.Pause()
	}
	if st.Lifespan > 0 {
		m.sched.After(token, st.Lifespan, func() { m.expire(id, token) })
	}

	m.sessions[id] = s
	m.emit(Event{Kind: EventStarted, ID: id, Key: list[0].Key, Recovered: recovered})
	m.logger.Debug("session started",
		"id", id, "key", list[0].Key, "priority", st.Priority, "persistent", st.Persistent)

	return s, nil
}

func (m *Manager) configure(s *session) {
	st := s.state
	s.spk.SetVolume(st.Volume)
	s.spk.SetMinDistance(st.MinDistance)
	s.spk.SetMaxDistance(st.MaxDistance)
	s.spk.SetSpatial(st.Spatial)

	if f, ok := s.spk.(speaker.ListenerFilterer); ok && st.Filter != nil {
		f.SetValidListeners(st.Filter)
	}
	if st.Configure != nil {
		st.Configure(s.spk)
	}
}

// evictor builds the stop callback handed to the allocator. It runs inside
// Allocate, which only this manager calls and only with m.mu held. The slot
// is handed over once it returns, so it saves the live snapshot, which the
// allocator then keeps as recoverable, and must not release id.
func (m *Manager) evictor(token string) allocator.StopFunc {
	return func(id allocator.ID) {
		s := m.sessions[id]
		if s == nil || s.token != token {
			return
		}

		m.save(s)
		m.dropLocked(s)
		m.emit(Event{Kind: EventStopped, ID: id, Key: s.state.Key, Evicted: true})
		m.logger.Info("session evicted", "id", id, "key", s.state.Key)
	}
}

// snapshot refreshes s.state from the speaker's playback position.
func (m *Manager) snapshot(s *session) State {
	st := s.state.remaining(s.spk.QueueLength())
	if s.spk.QueueLength() > 0 {
		st.Offset = s.spk.PlaybackOffset()
	}
	st.Paused = s.spk.Paused()
	s.state = st
	return st
}

// save snapshots s and stores it with the allocator when persistent.
// Caller holds m.mu.
func (m *Manager) save(s *session) {
	st := m.snapshot(s)
	if !st.Persistent {
		return
	}
	if err := m.alloc.SaveState(s.id, st); err != nil {
		m.logger.Warn("saving session state", "id", s.id, "error", err)
	}
}

// dropLocked stops s and forgets it without touching the allocator.
func (m *Manager) dropLocked(s *session) {
	m.sched.CancelOwner(s.token)
	s.spk.SetQueueEmptyHandler(nil)
	s.spk.Stop()
	s.spk.Destroy()
	m.factory.Remove(s.id)
	delete(m.sessions, s.id)
}

// teardownLocked ends s and returns its ID to the allocator. Callers save
// the snapshot first when they want the current position kept.
func (m *Manager) teardownLocked(s *session, force bool) {
	m.dropLocked(s)

	if err := m.alloc.ReleaseId(s.id, force); err != nil {
		m.logger.Warn("releasing controller", "id", s.id, "error", err)
	}
	m.emit(Event{Kind: EventStopped, ID: s.id, Key: s.state.Key})
}

// lookup returns the live session for id. Caller holds m.mu.
func (m *Manager) lookup(id allocator.ID) (*session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: controller %d", ErrNotFound, id)
	}
	return s, nil
}

// current looks up id and checks it still belongs to token.
func (m *Manager) current(id allocator.ID, token string) *session {
	s := m.sessions[id]
	if s == nil || s.token != token {
		return nil
	}
	return s
}

func (m *Manager) queueEmptied(id allocator.ID, token string) {
	m.mu.Lock()
	defer m.unlock()

	s := m.current(id, token)
	if s == nil || !s.spk.IsQueueEmpty() {
		return
	}

	m.emit(Event{Kind: EventQueueEmptied, ID: id, Key: s.state.Key})
	if s.state.AutoCleanup {
		m.logger.Debug("queue drained, cleaning up", "id", id)
		m.save(s)
		m.teardownLocked(s, false)
	}
}

func (m *Manager) expire(id allocator.ID, token string) {
	m.mu.Lock()
	defer m.unlock()

	s := m.current(id, token)
	if s == nil {
		return
	}
	m.logger.Debug("lifespan elapsed", "id", id)
	m.fadeOutLocked(s, m.fadeOut)
}

// ActiveIDs lists controller IDs with live sessions in ascending order.
func (m *Manager) ActiveIDs() []allocator.ID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return slices.Sorted(maps.Keys(m.sessions))
}

// AllocatorStats exposes the counters of the underlying allocator.
func (m *Manager) AllocatorStats() allocator.Stats { return m.alloc.Stats() }

// State returns the stored snapshot for id, live or recoverable.
func (m *Manager) State(id allocator.ID) (State, bool) {
	return m.alloc.GetSpeakerState(id)
}

// Tick advances playback and deferred work by dt.
func (m *Manager) Tick(dt time.Duration) {
	m.tickDevice(dt)
	m.sched.Advance(dt)
}

func (m *Manager) tickDevice(dt time.Duration) {
	if t, ok := m.factory.(ticker); ok {
		t.Tick(dt)
	}
}

// Run ticks the manager on the wall clock until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	return m.sched.Run(ctx, m.tickInterval, m.tickDevice)
}

// CleanupAllSpeakers ends every session, clears the factory and purges all
// recoverable state. It returns the number of sessions ended.
func (m *Manager) CleanupAllSpeakers() int {
	m.mu.Lock()
	defer m.unlock()

	return m.cleanupLocked()
}

func (m *Manager) cleanupLocked() int {
	ids := slices.Sorted(maps.Keys(m.sessions))
	// Positions are not saved; every snapshot is purged below.
	for _, id := range ids {
		m.teardownLocked(m.sessions[id], false)
	}
	m.factory.Clear()
	purged := m.alloc.CleanupEvictedSpeakers()

	m.logger.Info("cleaned up all speakers", "sessions", len(ids), "snapshots", purged)
	return len(ids)
}

// Close ends all sessions. Later playback requests fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.unlock()

	if m.closed {
		return nil
	}
	m.closed = true
	m.cleanupLocked()
	return nil
}
