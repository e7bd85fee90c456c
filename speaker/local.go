// SPDX-License-Identifier: EPL-2.0

package speaker

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ik5/audslot/allocator"
)

const (
	DefaultSampleRate  = 48000
	DefaultMinDistance = 1
	DefaultMaxDistance = 15
	DefaultListener    = "local"
)

type clip struct {
	samples []float32
	loop    bool
}

// LocalSpeaker is an in-memory Speaker rendered by its LocalFactory.
type LocalSpeaker struct {
	id   allocator.ID
	rate int

	mu        sync.Mutex
	queue     []clip
	pos       int
	playing   bool
	paused    bool
	destroyed bool

	volume      float32
	minDistance float32
	maxDistance float32
	spatial     bool
	position    Vec3
	filter      ListenerFilter
	onEmpty     func()
}

var (
	_ Speaker          = (*LocalSpeaker)(nil)
	_ ListenerFilterer = (*LocalSpeaker)(nil)
)

func newLocalSpeaker(id allocator.ID, pos Vec3, rate int) *LocalSpeaker {
	return &LocalSpeaker{
		id:          id,
		rate:        rate,
		volume:      1,
		minDistance: DefaultMinDistance,
		maxDistance: DefaultMaxDistance,
		spatial:     true,
		position:    pos,
		filter:      AllListeners,
	}
}

func (s *LocalSpeaker) ID() allocator.ID { return s.id }

func (s *LocalSpeaker) Play(samples []float32, loop bool, offset float64) {
	start := 0
	if offset > 0 {
		start = min(int(offset*float64(s.rate)), len(samples))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.queue = append(s.queue[:0], clip{samples: samples, loop: loop})
	s.pos = start
	s.playing = true
	s.paused = false
}

func (s *LocalSpeaker) Queue(samples []float32, loop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.destroyed {
		return
	}
	s.queue = append(s.queue, clip{samples: samples, loop: loop})
	if !s.playing {
		s.pos = 0
		s.playing = true
	}
}

func (s *LocalSpeaker) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.queue = s.queue[:0]
	s.pos = 0
	s.playing = false
	s.paused = false
}

func (s *LocalSpeaker) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playing {
		s.paused = true
	}
}

func (s *LocalSpeaker) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.paused = false
}

func (s *LocalSpeaker) Skip(count int) int {
	s.mu.Lock()
	if count <= 0 || len(s.queue) == 0 {
		s.mu.Unlock()
		return 0
	}

	n := min(count, len(s.queue))
	s.queue = append(s.queue[:0], s.queue[n:]...)
	s.pos = 0
	drained := len(s.queue) == 0
	if drained {
		s.playing = false
		s.paused = false
	}
	handler := s.onEmpty
	s.mu.Unlock()

	if drained && handler != nil {
		handler()
	}
	return n
}

func (s *LocalSpeaker) Destroy() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.destroyed = true
	s.queue = nil
	s.playing = false
	s.onEmpty = nil
}

func (s *LocalSpeaker) SetVolume(v float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = min(max(v, 0), 1)
}

func (s *LocalSpeaker) Volume() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.volume
}

func (s *LocalSpeaker) SetMinDistance(d float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.minDistance = d
}

func (s *LocalSpeaker) SetMaxDistance(d float32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.maxDistance = d
}

func (s *LocalSpeaker) SetSpatial(spatial bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.spatial = spatial
}

func (s *LocalSpeaker) SetPosition(p Vec3) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.position = p
}

func (s *LocalSpeaker) Position() Vec3 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.position
}

func (s *LocalSpeaker) SetValidListeners(filter ListenerFilter) {
	if filter == nil {
		filter = AllListeners
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.filter = filter
}

func (s *LocalSpeaker) SetQueueEmptyHandler(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onEmpty = fn
}

func (s *LocalSpeaker) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.playing && !s.paused
}

func (s *LocalSpeaker) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.paused
}

func (s *LocalSpeaker) PlaybackOffset() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return 0
	}
	return float64(s.pos) / float64(s.rate)
}

func (s *LocalSpeaker) QueueLength() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.queue)
}

func (s *LocalSpeaker) IsQueueEmpty() bool { return s.QueueLength() == 0 }

// gain folds volume and distance attenuation for a listener at l.
// Caller holds s.mu.
func (s *LocalSpeaker) gain(l Vec3) float32 {
	if !s.spatial {
		return s.volume
	}

	d := s.position.Distance(l)
	switch {
	case d <= s.minDistance:
		return s.volume
	case d >= s.maxDistance || s.maxDistance <= s.minDistance:
		return 0
	}
	return s.volume * (s.maxDistance - d) / (s.maxDistance - s.minDistance)
}

// mix adds up to len(dst) rendered samples into dst and advances playback.
func (s *LocalSpeaker) mix(dst []float32, listener string, at Vec3) {
	s.mu.Lock()
	if !s.playing || s.paused || s.destroyed {
		s.mu.Unlock()
		return
	}

	g := s.gain(at)
	if !s.filter(listener) {
		g = 0
	}

	drained := false
	for i := 0; i < len(dst); {
		if len(s.queue) == 0 {
			s.playing = false
			drained = true
			break
		}

		c := s.queue[0]
		n := copy(dst[i:], c.samples[s.pos:])
		for j := i; j < i+n; j++ {
			dst[j] *= g
		}
		i += n
		s.pos += n

		if s.pos >= len(c.samples) {
			s.pos = 0
			if !c.loop || len(c.samples) == 0 {
				s.queue = s.queue[1:]
			}
		}
	}
	if !drained && len(s.queue) == 0 {
		s.playing = false
		drained = true
	}
	handler := s.onEmpty
	s.mu.Unlock()

	if drained && handler != nil {
		handler()
	}
}

// LocalFactory creates LocalSpeakers and renders their mix.
type LocalFactory struct {
	mu       sync.Mutex
	speakers map[allocator.ID]*LocalSpeaker
	rate     int
	listener string
	at       Vec3
	logger   *slog.Logger
}

var _ Factory = (*LocalFactory)(nil)

type LocalOption func(*LocalFactory)

func WithSampleRate(rate int) LocalOption {
	return func(f *LocalFactory) { f.rate = rate }
}

// WithListener sets who the mix is rendered for and where they stand.
func WithListener(name string, at Vec3) LocalOption {
	return func(f *LocalFactory) {
		f.listener = name
		f.at = at
	}
}

func WithLogger(l *slog.Logger) LocalOption {
	return func(f *LocalFactory) { f.logger = l }
}

func NewLocalFactory(opts ...LocalOption) *LocalFactory {
	f := &LocalFactory{
		speakers: make(map[allocator.ID]*LocalSpeaker),
		rate:     DefaultSampleRate,
		listener: DefaultListener,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rate <= 0 {
		f.rate = DefaultSampleRate
	}
	if f.logger == nil {
		f.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	f.logger = f.logger.With("component", "speaker")
	return f
}

func (f *LocalFactory) SampleRate() int { return f.rate }

func (f *LocalFactory) Create(pos Vec3, id allocator.ID) (Speaker, error) {
	if id == allocator.InvalidID {
		return nil, ErrInvalidID
	}

	s := newLocalSpeaker(id, pos, f.rate)

	f.mu.Lock()
	old := f.speakers[id]
	f.speakers[id] = s
	f.mu.Unlock()

	if old != nil {
		old.Destroy()
		f.logger.Debug("replaced speaker", "id", id)
	}
	return s, nil
}

func (f *LocalFactory) Get(id allocator.ID) (Speaker, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.speakers[id]
	if !ok {
		return nil, false
	}
	return s, true
}

func (f *LocalFactory) Remove(id allocator.ID) bool {
	f.mu.Lock()
	s, ok := f.speakers[id]
	delete(f.speakers, id)
	f.mu.Unlock()

	if ok {
		s.Destroy()
	}
	return ok
}

func (f *LocalFactory) Clear() {
	f.mu.Lock()
	all := slices.Collect(maps.Values(f.speakers))
	clear(f.speakers)
	f.mu.Unlock()

	for _, s := range all {
		s.Destroy()
	}
}

func (f *LocalFactory) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.speakers)
}

// Mix renders every speaker into dst, overwriting it, and returns dst.
// Samples are summed without limiting.
func (f *LocalFactory) Mix(dst []float32) []float32 {
	clear(dst)

	f.mu.Lock()
	ids := slices.Sorted(maps.Keys(f.speakers))
	all := make([]*LocalSpeaker, len(ids))
	for i, id := range ids {
		all[i] = f.speakers[id]
	}
	f.mu.Unlock()

	scratch := make([]float32, len(dst))

	for _, s := range all {
		clear(scratch)
		s.mix(scratch, f.listener, f.at)
		for i, v := range scratch {
			dst[i] += v
		}
	}
	return dst
}

// Tick advances every speaker by dt without keeping the output.
func (f *LocalFactory) Tick(dt time.Duration) {
	n := int(dt.Seconds() * float64(f.rate))
	if n <= 0 {
		return
	}
	f.Mix(make([]float32, n))
}

func (f *LocalFactory) String() string {
	return fmt.Sprintf("local(%d Hz, listener %s)", f.rate, f.listener)
}
