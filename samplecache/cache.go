// SPDX-License-Identifier: EPL-2.0

package samplecache

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/ik5/audslot/audio"
	"github.com/ik5/audslot/formats/wav"
)

const DefaultCapacity = 50

// Provider opens the encoded stream for one key. Readers that implement
// io.Closer are closed after decoding.
type Provider func() (io.Reader, error)

// Stats is a point-in-time view of cache counters.
type Stats struct {
	Entries        int
	Capacity       int
	Providers      int
	Hits           uint64
	Misses         uint64
	Decodes        uint64
	DecodeFailures uint64
	Evictions      uint64
}

type options struct {
	decoder    audio.Decoder
	sampleRate int
	logger     *slog.Logger
}

type Option func(*options)

// WithDecoder replaces the raw WAV decoder, e.g. with wav.Decoder{} to
// validate headers.
func WithDecoder(d audio.Decoder) Option {
	return func(o *options) { o.decoder = d }
}

// WithSampleRate sets the rate decoded audio is brought to. Sources with a
// different rate or more than one channel are folded and resampled.
func WithSampleRate(rate int) Option {
	return func(o *options) { o.sampleRate = rate }
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Cache maps keys to decoded mono samples.
type Cache struct {
	mu        sync.RWMutex
	providers map[string]Provider

	entries    *lru.Cache[string, []float32]
	group      singleflight.Group
	decoder    audio.Decoder
	sampleRate int
	capacity   int
	logger     *slog.Logger

	hits, misses, decodes, failures, evictions atomic.Uint64
}

func New(capacity int, opts ...Option) (*Cache, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrInvalidArgument, capacity)
	}

	o := options{sampleRate: wav.DefaultSampleRate}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %d", ErrInvalidArgument, o.sampleRate)
	}
	if o.decoder == nil {
		o.decoder = wav.RawDecoder{SampleRate: o.sampleRate}
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	c := &Cache{
		providers:  make(map[string]Provider),
		decoder:    o.decoder,
		sampleRate: o.sampleRate,
		capacity:   capacity,
		logger:     o.logger.With("component", "samplecache"),
	}

	entries, err := lru.NewWithEvict(capacity, c.dropped)
	if err != nil {
		return nil, fmt.Errorf("creating lru: %w", err)
	}
	c.entries = entries

	return c, nil
}

func (c *Cache) dropped(key string, samples []float32) {
	c.logger.Debug("sample dropped", "key", key, "samples", len(samples))
}

// Register binds key to provider without opening it. The first registration
// of a key wins; later ones are ignored and reported as false.
func (c *Cache) Register(key string, provider Provider) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("%w: empty key", ErrInvalidArgument)
	}
	if provider == nil {
		return false, fmt.Errorf("%w: nil provider for %q", ErrInvalidArgument, key)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.providers[key]; ok {
		c.logger.Debug("provider already registered", "key", key)
		return false, nil
	}
	c.providers[key] = provider
	return true, nil
}

// Registered reports whether key has a provider.
func (c *Cache) Registered(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.providers[key]
	return ok
}

// Get returns the samples for key, decoding them on a miss. It reports false
// when no provider is registered or decoding fails.
func (c *Cache) Get(key string) ([]float32, bool) {
	if samples, ok := c.entries.Get(key); ok {
		c.hits.Add(1)
		return samples, true
	}
	c.misses.Add(1)

	c.mu.RLock()
	provider, ok := c.providers[key]
	c.mu.RUnlock()
	if !ok {
		c.logger.Debug("no provider", "key", key)
		return nil, false
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if samples, ok := c.entries.Peek(key); ok {
			return samples, nil
		}

		samples, err := c.decode(provider)
		if err != nil {
			return nil, err
		}
		if c.entries.Add(key, samples) {
			c.evictions.Add(1)
		}
		return samples, nil
	})
	if err != nil {
		c.failures.Add(1)
		c.logger.Warn("decode failed", "key", key, "error", err)
		return nil, false
	}

	return v.([]float32), true
}

func (c *Cache) decode(provider Provider) ([]float32, error) {
	c.decodes.Add(1)

	r, err := provider()
	if err != nil {
		return nil, fmt.Errorf("opening stream: %w", err)
	}
	if closer, ok := r.(io.Closer); ok {
		defer closer.Close()
	}

	src, err := c.decoder.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decoding stream: %w", err)
	}

	pipeline := audio.Normalize(src, c.sampleRate)
	defer pipeline.Close()

	samples, err := audio.ReadAll(pipeline)
	if err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, ErrEmptySample
	}
	return samples, nil
}

// Contains reports whether key is cached without touching its recency.
func (c *Cache) Contains(key string) bool { return c.entries.Contains(key) }

// Remove drops the cached samples for key. The provider stays registered.
func (c *Cache) Remove(key string) bool { return c.entries.Remove(key) }

// Purge drops every cached buffer.
func (c *Cache) Purge() { c.entries.Purge() }

func (c *Cache) Len() int { return c.entries.Len() }

// Keys lists cached keys from least to most recently used.
func (c *Cache) Keys() []string { return c.entries.Keys() }

// Resize changes the capacity, evicting the oldest entries if it shrinks.
func (c *Cache) Resize(capacity int) error {
	if capacity <= 0 {
		return fmt.Errorf("%w: capacity %d", ErrInvalidArgument, capacity)
	}

	c.mu.Lock()
	c.capacity = capacity
	c.mu.Unlock()

	if n := c.entries.Resize(capacity); n > 0 {
		c.evictions.Add(uint64(n))
	}
	return nil
}

func (c *Cache) Stats() Stats {
	c.mu.RLock()
	providers := len(c.providers)
	capacity := c.capacity
	c.mu.RUnlock()

	return Stats{
		Entries:        c.entries.Len(),
		Capacity:       capacity,
		Providers:      providers,
		Hits:           c.hits.Load(),
		Misses:         c.misses.Load(),
		Decodes:        c.decodes.Load(),
		DecodeFailures: c.failures.Load(),
		Evictions:      c.evictions.Load(),
	}
}
