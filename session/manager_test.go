// SPDX-License-Identifier: EPL-2.0

package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ik5/audslot/allocator"
	"github.com/ik5/audslot/internal/audiotest"
	"github.com/ik5/audslot/samplecache"
	"github.com/ik5/audslot/speaker"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// Fixture lengths at 48 kHz.
var fixtures = map[string]int{
	"short": 480,   // 10ms
	"mid":   4800,  // 100ms
	"long":  48000, // 1s
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, ev)
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

func (r *recorder) find(kind EventKind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ev := range r.events {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return Event{}, false
}

func (r *recorder) last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}

type harness struct {
	m       *Manager
	factory *speaker.LocalFactory
	cache   *samplecache.Cache
	events  *recorder
}

func newHarness(t *testing.T, capacity int, opts ...Option) *harness {
	t.Helper()

	cache, err := samplecache.New(samplecache.DefaultCapacity)
	require.NoError(t, err)
	for key, n := range fixtures {
		s := audiotest.NewStream(audiotest.MonoWAV(audiotest.Tone(16384, n)...))
		_, err := cache.Register(key, s.Open)
		require.NoError(t, err)
	}

	factory := speaker.NewLocalFactory()
	opts = append([]Option{WithCapacity(capacity)}, opts...)
	m, err := New(cache, factory, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	rec := &recorder{}
	m.Subscribe(rec.handle)

	return &harness{m: m, factory: factory, cache: cache, events: rec}
}

func (h *harness) speaker(t *testing.T, id allocator.ID) speaker.Speaker {
	t.Helper()

	spk, ok := h.factory.Get(id)
	require.True(t, ok, "no speaker for %d", id)
	return spk
}

func (h *harness) play(t *testing.T, key string, p Params) allocator.ID {
	t.Helper()

	id, err := h.m.PlayAudio(key, p)
	require.NoError(t, err)
	require.NotEqual(t, allocator.InvalidID, id)
	return id
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := New(nil, speaker.NewLocalFactory())
	assert.ErrorIs(t, err, ErrInvalidArgument)

	cache, err := samplecache.New(1)
	require.NoError(t, err)

	_, err = New(cache, speaker.NewLocalFactory(), WithDefaultFades(-1, 0))
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = New(cache, speaker.NewLocalFactory(), WithCapacity(300))
	assert.ErrorIs(t, err, allocator.ErrInvalidCapacity)

	_, err = New(cache, speaker.NewLocalFactory(), WithTickInterval(0))
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestPlayAudio_ConfiguresSpeaker(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 4)

	configured := false
	p := DefaultParams()
	p.Volume = 0.6
	p.Position = speaker.Vec3{X: 2}
	p.MinDistance = 3
	p.MaxDistance = 9
	p.Configure = func(speaker.Speaker) { configured = true }

	id := h.play(t, "long", p)
	assert.Equal(t, allocator.ID(1), id)
	assert.True(t, configured)

	spk := h.speaker(t, id)
	assert.True(t, spk.Playing())
	assert.InDelta(t, 0.6, spk.Volume(), 1e-6)
	assert.Equal(t, speaker.Vec3{X: 2}, spk.Position())

	ev, ok := h.events.find(EventStarted)
	require.True(t, ok)
	assert.Equal(t, Event{Kind: EventStarted, ID: id, Key: "long"}, ev)
	assert.Equal(t, []allocator.ID{id}, h.m.ActiveIDs())
}

func TestPlayAudio_InvalidArgumentsAllocateNothing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		key    string
		mutate func(*Params)
	}{
		{"volume above one", "short", func(p *Params) { p.Volume = 1.5 }},
		{"negative volume", "short", func(p *Params) { p.Volume = -0.1 }},
		{"max below min", "short", func(p *Params) { p.MinDistance, p.MaxDistance = 5, 2 }},
		{"negative min distance", "short", func(p *Params) { p.MinDistance = -1 }},
		{"negative lifespan", "short", func(p *Params) { p.Lifespan = -time.Second }},
		{"bad priority", "short", func(p *Params) { p.Priority = allocator.Priority(99) }},
		{"empty key", "", func(*Params) {}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t, 2)
			free := h.m.AllocatorStats().Capacity - h.m.AllocatorStats().Allocated

			p := DefaultParams()
			tt.mutate(&p)
			id, err := h.m.PlayAudio(tt.key, p)

			assert.ErrorIs(t, err, ErrInvalidArgument)
			assert.Equal(t, allocator.InvalidID, id)
			st := h.m.AllocatorStats()
			assert.Equal(t, free, st.Capacity-st.Allocated)
			assert.Equal(t, uint64(0), st.Allocations)
		})
	}
}

func TestPlayAudio_UnknownKey(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	id, err := h.m.PlayAudio("missing", DefaultParams())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, allocator.InvalidID, id)
	assert.Empty(t, h.m.ActiveIDs())
}

func TestPlayAudio_Exhausted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1)
	p := DefaultParams()
	p.Priority = allocator.High
	h.play(t, "long", p)

	id, err := h.m.PlayAudio("short", p)
	assert.ErrorIs(t, err, ErrResourceExhausted)
	assert.Equal(t, allocator.InvalidID, id)
}

type failingFactory struct {
	*speaker.LocalFactory
}

func (failingFactory) Create(speaker.Vec3, allocator.ID) (speaker.Speaker, error) {
	return nil, errors.New("renderer unavailable")
}

func TestPlayAudio_SpeakerFailureReleasesID(t *testing.T) {
	t.Parallel()

	cache, err := samplecache.New(2)
	require.NoError(t, err)
	_, err = cache.Register("k", audiotest.NewStream(audiotest.MonoWAV(1, 2, 3)).Open)
	require.NoError(t, err)

	m, err := New(cache, failingFactory{speaker.NewLocalFactory()}, WithCapacity(1))
	require.NoError(t, err)
	defer m.Close()

	p := DefaultParams()
	p.Persistent = true
	_, err = m.PlayAudio("k", p)
	require.Error(t, err)

	st := m.AllocatorStats()
	assert.Equal(t, 0, st.Allocated)
	assert.Equal(t, 0, st.Recoverable)
	_, ok := m.State(1)
	assert.False(t, ok)
}

func TestEviction_StopsLowerPrioritySession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)

	low := DefaultParams()
	low.Priority = allocator.Low
	low.Persistent = true
	low.Volume = 0.3
	med := DefaultParams()
	high := DefaultParams()
	high.Priority = allocator.High

	lowID := h.play(t, "long", low)
	h.play(t, "long", med)
	lowSpeaker := h.speaker(t, lowID)

	h.m.Tick(100 * time.Millisecond)

	id := h.play(t, "short", high)
	assert.Equal(t, lowID, id)
	assert.False(t, lowSpeaker.Playing(), "evicted speaker is stopped")

	kinds := h.events.kinds()
	require.GreaterOrEqual(t, len(kinds), 4)
	assert.Equal(t, []EventKind{EventStopped, EventStarted}, kinds[len(kinds)-2:])
	ev, ok := h.events.find(EventStopped)
	require.True(t, ok)
	assert.True(t, ev.Evicted)

	st, ok := h.m.State(lowID)
	require.True(t, ok)
	assert.True(t, st.Persistent)
	assert.Equal(t, "long", st.Key)
	assert.InDelta(t, 0.3, st.Volume, 1e-6)
	assert.Equal(t, allocator.Low, st.Priority)
	assert.InDelta(t, 0.1, st.Offset, 1e-3)
}

func TestEviction_CancelsDeferredWorkOfOldSession(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 1, WithDefaultFades(0, 0))

	low := DefaultParams()
	low.Priority = allocator.Low
	low.Lifespan = 50 * time.Millisecond
	h.play(t, "long", low)

	high := DefaultParams()
	high.Priority = allocator.High
	id := h.play(t, "long", high)

	h.m.Tick(100 * time.Millisecond)
	assert.Equal(t, []allocator.ID{id}, h.m.ActiveIDs(), "stale lifespan must not end the new occupant")
	assert.True(t, h.speaker(t, id).Playing())
}

func TestRecoverSpeaker_RoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 4)

	p := DefaultParams()
	p.Persistent = true
	p.Volume = 0.7
	p.Position = speaker.Vec3{X: 1, Y: 2, Z: 3}
	p.Spatial = false
	p.MinDistance = 2
	p.MaxDistance = 20
	id := h.play(t, "long", p)

	require.NoError(t, h.m.DestroySpeaker(id, false))
	assert.Empty(t, h.m.ActiveIDs())

	newID, err := h.m.RecoverSpeaker(id, true)
	require.NoError(t, err)
	require.NotEqual(t, allocator.InvalidID, newID)

	spk := h.speaker(t, newID)
	assert.True(t, spk.Playing())
	assert.InDelta(t, 0.7, spk.Volume(), 1e-6)
	assert.Equal(t, p.Position, spk.Position())

	st, ok := h.m.State(newID)
	require.True(t, ok)
	assert.False(t, st.Spatial)
	assert.InDelta(t, 2, st.MinDistance, 1e-6)
	assert.InDelta(t, 20, st.MaxDistance, 1e-6)

	last := h.events.last()
	assert.Equal(t, EventStarted, last.Kind)
	assert.True(t, last.Recovered)

	_, err = h.m.RecoverSpeaker(id, true)
	assert.ErrorIs(t, err, ErrInvalidState, "old id now hosts the recovered session")
}

func TestRecoverSpeaker_ResumesAtOffset(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 4)

	p := DefaultParams()
	p.Persistent = true
	id := h.play(t, "long", p)

	h.m.Tick(250 * time.Millisecond)
	require.NoError(t, h.m.PauseAudio(id))
	require.NoError(t, h.m.DestroySpeaker(id, false))

	st, ok := h.m.State(id)
	require.True(t, ok)
	assert.InDelta(t, 0.25, st.Offset, 1e-3)
	assert.True(t, st.Paused)

	newID, err := h.m.RecoverSpeaker(id, false)
	require.NoError(t, err)

	spk := h.speaker(t, newID)
	assert.InDelta(t, 0.25, spk.PlaybackOffset(), 1e-3)
	assert.True(t, spk.Paused())

	require.NoError(t, h.m.DestroySpeaker(newID, false))
	again, err := h.m.RecoverSpeaker(newID, true)
	require.NoError(t, err)
	spk = h.speaker(t, again)
	assert.InDelta(t, 0, spk.PlaybackOffset(), 1e-9)
	assert.False(t, spk.Paused())
}

func TestRecoverSpeaker_RestoresQueueOrder(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 4)

	p := DefaultParams()
	p.Persistent = true
	id := h.play(t, "mid", p)
	require.NoError(t, h.m.QueueAudio(id, "short", false))
	require.NoError(t, h.m.QueueAudio(id, "long", true))
	require.NoError(t, h.m.DestroySpeaker(id, false))

	newID, err := h.m.RecoverSpeaker(id, false)
	require.NoError(t, err)

	status, ok := h.m.GetQueueStatus(newID)
	require.True(t, ok)
	assert.Equal(t, 3, status.Length)
	assert.Equal(t, []Clip{{Key: "mid"}, {Key: "short"}, {Key: "long", Loop: true}}, status.Clips)
}

func TestRecoverSpeaker_Failures(t *testing.T) {
	t.Parallel()

	t.Run("no snapshot", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 2)
		id := h.play(t, "short", DefaultParams())
		require.NoError(t, h.m.DestroySpeaker(id, false))

		_, err := h.m.RecoverSpeaker(id, false)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("still playing", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 2)
		id := h.play(t, "short", DefaultParams())

		_, err := h.m.RecoverSpeaker(id, false)
		assert.ErrorIs(t, err, ErrInvalidState)
	})

	t.Run("force removed", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 2)
		p := DefaultParams()
		p.Persistent = true
		id := h.play(t, "short", p)
		require.NoError(t, h.m.DestroySpeaker(id, true))

		_, ok := h.m.State(id)
		assert.False(t, ok)
		_, err := h.m.RecoverSpeaker(id, false)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("invalid snapshot", func(t *testing.T) {
		t.Parallel()

		tests := []State{
			{Persistent: true, Volume: 1, MaxDistance: 1},
			{Persistent: true, Key: "short", Volume: 2, MaxDistance: 1},
			{Persistent: true, Key: "short", Volume: 1, MinDistance: 3, MaxDistance: 1},
			{Persistent: true, Key: "short", Volume: 1, MaxDistance: 1, Lifespan: -1},
			{Persistent: false, Key: "short", Volume: 1, MaxDistance: 1},
		}

		for _, st := range tests {
			a, err := allocator.New[State](allocator.WithCapacity(2))
			require.NoError(t, err)
			h := newHarness(t, 2, WithAllocator(a))

			id, err := a.Allocate(allocator.Request[State]{Priority: allocator.Low, Persistent: true, State: st})
			require.NoError(t, err)
			require.NoError(t, a.ReleaseId(id, false))

			_, err = h.m.RecoverSpeaker(id, false)
			assert.ErrorIs(t, err, ErrInvalidState, "%+v", st)
			assert.Empty(t, h.m.ActiveIDs())
			_, ok := a.Recoverable(id)
			assert.True(t, ok, "failed recovery keeps the snapshot")
		}
	})

	t.Run("exhausted keeps snapshot", func(t *testing.T) {
		t.Parallel()

		h := newHarness(t, 1)
		low := DefaultParams()
		low.Priority = allocator.Low
		low.Persistent = true
		lowID := h.play(t, "long", low)

		high := DefaultParams()
		high.Priority = allocator.High
		highID := h.play(t, "long", high)

		_, err := h.m.RecoverSpeaker(lowID, false)
		assert.ErrorIs(t, err, ErrResourceExhausted)

		require.NoError(t, h.m.DestroySpeaker(highID, false))
		newID, err := h.m.RecoverSpeaker(lowID, false)
		require.NoError(t, err)
		assert.Equal(t, []allocator.ID{newID}, h.m.ActiveIDs())
	})
}

func TestFadeInAudio(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	p := DefaultParams()
	p.Volume = 0.8
	id := h.play(t, "long", p)
	spk := h.speaker(t, id)

	require.NoError(t, h.m.FadeInAudio(id, 100*time.Millisecond))
	assert.InDelta(t, 0, spk.Volume(), 1e-6)

	h.m.Tick(50 * time.Millisecond)
	assert.InDelta(t, 0.4, spk.Volume(), 1e-3)

	h.m.Tick(50 * time.Millisecond)
	assert.InDelta(t, 0.8, spk.Volume(), 1e-6)

	assert.ErrorIs(t, h.m.FadeInAudio(id, -time.Second), ErrInvalidArgument)
}

func TestFadeOutAudio_ReleasesAfterFade(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	p := DefaultParams()
	p.Persistent = true
	id := h.play(t, "long", p)
	spk := h.speaker(t, id)

	h.m.Tick(200 * time.Millisecond)
	require.NoError(t, h.m.FadeOutAudio(id, 100*time.Millisecond))

	h.m.Tick(50 * time.Millisecond)
	assert.InDelta(t, 0.5, spk.Volume(), 1e-3)
	assert.Equal(t, []allocator.ID{id}, h.m.ActiveIDs())

	h.m.Tick(50 * time.Millisecond)
	assert.Empty(t, h.m.ActiveIDs())
	assert.Equal(t, 0, h.m.AllocatorStats().Allocated)

	st, ok := h.m.State(id)
	require.True(t, ok)
	assert.InDelta(t, 0.2, st.Offset, 1e-3, "offset captured before the fade")
}

func TestFadeOutAudio_DefaultDuration(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, WithDefaultFades(0, 40*time.Millisecond))
	id := h.play(t, "long", DefaultParams())

	require.NoError(t, h.m.FadeOutAudio(id, 0))
	h.m.Tick(20 * time.Millisecond)
	assert.Len(t, h.m.ActiveIDs(), 1)
	h.m.Tick(20 * time.Millisecond)
	assert.Empty(t, h.m.ActiveIDs())
}

func TestSetSpeakerVolume_CancelsFade(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	id := h.play(t, "long", DefaultParams())
	spk := h.speaker(t, id)

	require.NoError(t, h.m.FadeOutAudio(id, 100*time.Millisecond))
	h.m.Tick(50 * time.Millisecond)
	require.NoError(t, h.m.SetSpeakerVolume(id, 0.9))

	h.m.Tick(100 * time.Millisecond)
	assert.InDelta(t, 0.9, spk.Volume(), 1e-6)
	assert.Equal(t, []allocator.ID{id}, h.m.ActiveIDs())

	assert.ErrorIs(t, h.m.SetSpeakerVolume(id, 1.2), ErrInvalidArgument)
}

func TestLifespan(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, WithDefaultFades(0, 0))
	p := DefaultParams()
	p.Lifespan = 100 * time.Millisecond
	id := h.play(t, "long", p)

	h.m.Tick(60 * time.Millisecond)
	assert.Equal(t, []allocator.ID{id}, h.m.ActiveIDs())

	h.m.Tick(60 * time.Millisecond)
	assert.Empty(t, h.m.ActiveIDs())
	_, ok := h.events.find(EventStopped)
	assert.True(t, ok)
}

func TestAutoCleanupOnQueueDrain(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	p := DefaultParams()
	p.AutoCleanup = true
	id := h.play(t, "short", p)

	h.m.Tick(20 * time.Millisecond)
	assert.Empty(t, h.m.ActiveIDs())
	assert.Equal(t, 0, h.m.AllocatorStats().Allocated)

	kinds := h.events.kinds()
	assert.Equal(t, []EventKind{EventStarted, EventQueueEmptied, EventStopped}, kinds)

	_, ok := h.factory.Get(id)
	assert.False(t, ok)
}

// eagerFactory renders a stretch of audio as soon as a clip starts, as a
// device goroutine may do before the rest of the session is wired.
type eagerFactory struct {
	*speaker.LocalFactory
}

func (f eagerFactory) Create(pos speaker.Vec3, id allocator.ID) (speaker.Speaker, error) {
	spk, err := f.LocalFactory.Create(pos, id)
	if err != nil {
		return nil, err
	}
	return eagerSpeaker{Speaker: spk, device: f.LocalFactory}, nil
}

type eagerSpeaker struct {
	speaker.Speaker
	device *speaker.LocalFactory
}

func (s eagerSpeaker) Play(samples []float32, loop bool, offset float64) {
	s.Speaker.Play(samples, loop, offset)
	s.device.Tick(50 * time.Millisecond)
}

func TestAutoCleanupWhenDrainedDuringStart(t *testing.T) {
	t.Parallel()

	cache, err := samplecache.New(2)
	require.NoError(t, err)
	_, err = cache.Register("short", audiotest.NewStream(audiotest.MonoWAV(audiotest.Tone(16384, fixtures["short"])...)).Open)
	require.NoError(t, err)

	m, err := New(cache, eagerFactory{speaker.NewLocalFactory()}, WithCapacity(1))
	require.NoError(t, err)
	defer m.Close()

	rec := &recorder{}
	m.Subscribe(rec.handle)

	p := DefaultParams()
	p.AutoCleanup = true
	_, err = m.PlayAudio("short", p)
	require.NoError(t, err)

	m.Tick(20 * time.Millisecond)
	assert.Empty(t, m.ActiveIDs(), "drained session releases its id")
	assert.Equal(t, 0, m.AllocatorStats().Allocated)
	assert.Equal(t, []EventKind{EventStarted, EventQueueEmptied, EventStopped}, rec.kinds())
}

func TestNew_AllocatorServesOneManager(t *testing.T) {
	t.Parallel()

	a, err := allocator.New[State](allocator.WithCapacity(1))
	require.NoError(t, err)

	first := newHarness(t, 1, WithAllocator(a))

	cache, err := samplecache.New(1)
	require.NoError(t, err)
	_, err = New(cache, speaker.NewLocalFactory(), WithAllocator(a))
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, allocator.ErrClaimed)

	low := DefaultParams()
	low.Priority = allocator.Low
	id := first.play(t, "long", low)

	high := DefaultParams()
	high.Priority = allocator.High
	assert.Equal(t, id, first.play(t, "short", high))

	ev, ok := first.events.find(EventStopped)
	require.True(t, ok, "owner hears about its own eviction")
	assert.True(t, ev.Evicted)
}

func TestQueueDrainWithoutAutoCleanupKeepsSlot(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	id := h.play(t, "short", DefaultParams())

	h.m.Tick(20 * time.Millisecond)
	assert.Equal(t, []allocator.ID{id}, h.m.ActiveIDs())
	_, ok := h.events.find(EventQueueEmptied)
	assert.True(t, ok)

	require.NoError(t, h.m.QueueAudio(id, "mid", false))
	assert.True(t, h.speaker(t, id).Playing())
}

func TestQueueSkipClear(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	id := h.play(t, "long", DefaultParams())
	require.NoError(t, h.m.QueueAudio(id, "mid", false))
	require.NoError(t, h.m.QueueAudio(id, "short", false))

	status, ok := h.m.GetQueueStatus(id)
	require.True(t, ok)
	assert.Equal(t, 3, status.Length)
	assert.False(t, status.Empty)
	assert.True(t, status.Playing)

	require.NoError(t, h.m.SkipAudio(id, 1))
	ev, ok := h.events.find(EventSkipped)
	require.True(t, ok)
	assert.Equal(t, 1, ev.Count)

	status, _ = h.m.GetQueueStatus(id)
	assert.Equal(t, []Clip{{Key: "mid"}, {Key: "short"}}, status.Clips)

	h.m.Tick(30 * time.Millisecond)
	require.NoError(t, h.m.ClearSpeakerQueue(id))
	status, _ = h.m.GetQueueStatus(id)
	assert.Equal(t, 1, status.Length)
	assert.Equal(t, []Clip{{Key: "mid"}}, status.Clips)
	assert.InDelta(t, 0.03, status.Offset, 1e-3, "clearing keeps the current position")

	assert.ErrorIs(t, h.m.SkipAudio(id, 0), ErrInvalidArgument)
	assert.ErrorIs(t, h.m.QueueAudio(id, "missing", false), ErrNotFound)
	assert.ErrorIs(t, h.m.QueueAudio(id, "", false), ErrInvalidArgument)
}

func TestPauseResumeStop(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	id := h.play(t, "long", DefaultParams())
	spk := h.speaker(t, id)

	require.NoError(t, h.m.PauseAudio(id))
	assert.True(t, spk.Paused())
	require.NoError(t, h.m.ResumeAudio(id))
	assert.True(t, spk.Playing())
	require.NoError(t, h.m.StopAudio(id))
	assert.False(t, spk.Playing())
	assert.Equal(t, []allocator.ID{id}, h.m.ActiveIDs(), "stop without auto cleanup keeps the slot")

	assert.Equal(t, []EventKind{EventStarted, EventPaused, EventResumed, EventStopped}, h.events.kinds())

	require.NoError(t, h.m.SetSpeakerPosition(id, speaker.Vec3{Y: 4}))
	assert.Equal(t, speaker.Vec3{Y: 4}, spk.Position())
}

func TestStopAudio_AutoCleanupReleases(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	p := DefaultParams()
	p.AutoCleanup = true
	id := h.play(t, "long", p)

	require.NoError(t, h.m.StopAudio(id))
	assert.Empty(t, h.m.ActiveIDs())
}

func TestControlOnUnknownID(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	const id = allocator.ID(9)

	for name, err := range map[string]error{
		"stop":     h.m.StopAudio(id),
		"pause":    h.m.PauseAudio(id),
		"resume":   h.m.ResumeAudio(id),
		"skip":     h.m.SkipAudio(id, 1),
		"fade in":  h.m.FadeInAudio(id, time.Second),
		"fade out": h.m.FadeOutAudio(id, time.Second),
		"volume":   h.m.SetSpeakerVolume(id, 0.5),
		"position": h.m.SetSpeakerPosition(id, speaker.Vec3{}),
		"destroy":  h.m.DestroySpeaker(id, false),
		"clear":    h.m.ClearSpeakerQueue(id),
		"queue":    h.m.QueueAudio(id, "short", false),
	} {
		assert.ErrorIs(t, err, ErrNotFound, name)
	}

	_, ok := h.m.GetQueueStatus(id)
	assert.False(t, ok)
	assert.Empty(t, h.events.kinds())
	assert.Zero(t, h.m.AllocatorStats().Allocations, "unknown ids change nothing")
}

func TestPlayGlobalAudio(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	g := DefaultGlobalParams()
	g.Volume = 0.5
	g.FadeIn = 100 * time.Millisecond

	id, err := h.m.PlayGlobalAudio("long", g)
	require.NoError(t, err)

	spk := h.speaker(t, id)
	assert.InDelta(t, 0, spk.Volume(), 1e-6)

	h.m.Tick(100 * time.Millisecond)
	assert.InDelta(t, 0.5, spk.Volume(), 1e-6)

	st, ok := h.m.GetQueueStatus(id)
	require.True(t, ok)
	assert.True(t, st.Playing)

	out := h.factory.Mix(make([]float32, 1))
	assert.InDelta(t, 0.25, out[0], 1e-3, "non spatial output ignores distance")

	g.FadeIn = -1
	_, err = h.m.PlayGlobalAudio("long", g)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCleanupAllSpeakers(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 4)
	p := DefaultParams()
	p.Persistent = true
	for range 3 {
		h.play(t, "long", p)
	}

	assert.Equal(t, 3, h.m.CleanupAllSpeakers())
	assert.Empty(t, h.m.ActiveIDs())
	assert.Equal(t, 0, h.factory.Len())

	st := h.m.AllocatorStats()
	assert.Equal(t, 0, st.Allocated)
	assert.Equal(t, 0, st.Recoverable)
}

func TestClose(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)
	h.play(t, "long", DefaultParams())

	require.NoError(t, h.m.Close())
	require.NoError(t, h.m.Close())
	assert.Empty(t, h.m.ActiveIDs())

	_, err := h.m.PlayAudio("short", DefaultParams())
	assert.ErrorIs(t, err, ErrClosed)
	_, err = h.m.RecoverSpeaker(1, false)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSubscribe_HandlerMayCallManager(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2)

	var seen []allocator.ID
	unsubscribe := h.m.Subscribe(func(ev Event) {
		if ev.Kind == EventStarted {
			seen = h.m.ActiveIDs()
		}
	})

	id := h.play(t, "short", DefaultParams())
	assert.Equal(t, []allocator.ID{id}, seen)

	unsubscribe()
	seen = nil
	h.play(t, "short", DefaultParams())
	assert.Nil(t, seen)
}

func TestRun(t *testing.T) {
	t.Parallel()

	h := newHarness(t, 2, WithTickInterval(time.Millisecond))
	p := DefaultParams()
	p.AutoCleanup = true
	h.play(t, "short", p)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- h.m.Run(ctx) }()

	require.Eventually(t, func() bool { return len(h.m.ActiveIDs()) == 0 }, 2*time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errc, context.Canceled)
}
