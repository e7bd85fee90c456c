// SPDX-License-Identifier: EPL-2.0

// Package metrics exposes slot allocation, sample cache and playback event
// figures as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ik5/audslot/allocator"
	"github.com/ik5/audslot/samplecache"
	"github.com/ik5/audslot/session"
)

const namespace = "audslot"

// AllocatorSource is satisfied by *session.Manager.
type AllocatorSource interface {
	AllocatorStats() allocator.Stats
}

// CacheSource is satisfied by *samplecache.Cache.
type CacheSource interface {
	Stats() samplecache.Stats
}

// Metrics is a prometheus.Collector. Gauges and counters owned by the
// allocator and the cache are read when the registry is scraped; playback
// events are counted as they happen through Observe.
type Metrics struct {
	alloc AllocatorSource
	cache CacheSource

	events *prometheus.CounterVec

	slotCapacity    *prometheus.Desc
	slotAllocated   *prometheus.Desc
	slotRecoverable *prometheus.Desc
	slotOps         *prometheus.Desc

	cacheEntries   *prometheus.Desc
	cacheCapacity  *prometheus.Desc
	cacheProviders *prometheus.Desc
	cacheLookups   *prometheus.Desc
	cacheDecodes   *prometheus.Desc
	cacheEvictions *prometheus.Desc
}

// New creates the collector and registers it with registry. Either source
// may be nil, in which case its metrics are not reported.
func New(registry prometheus.Registerer, alloc AllocatorSource, cache CacheSource) (*Metrics, error) {
	m := &Metrics{
		alloc: alloc,
		cache: cache,
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "events_total",
			Help:      "Playback events emitted by the session manager",
		}, []string{"kind", "evicted"}),

		slotCapacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "slots", "capacity"),
			"Number of controller IDs the allocator can hand out", nil, nil),
		slotAllocated: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "slots", "allocated"),
			"Controller IDs currently in use", nil, nil),
		slotRecoverable: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "slots", "recoverable"),
			"Stored snapshots of stopped persistent sessions", nil, nil),
		slotOps: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "slots", "operations_total"),
			"Allocator operations by outcome", []string{"op"}, nil),

		cacheEntries: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "entries"),
			"Decoded samples held in memory", nil, nil),
		cacheCapacity: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "capacity"),
			"Maximum number of decoded samples held in memory", nil, nil),
		cacheProviders: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "providers"),
			"Registered sample providers", nil, nil),
		cacheLookups: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "lookups_total"),
			"Sample lookups by result", []string{"result"}, nil),
		cacheDecodes: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "decodes_total"),
			"Provider decodes by result", []string{"result"}, nil),
		cacheEvictions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "cache", "evictions_total"),
			"Decoded samples dropped to stay within capacity", nil, nil),
	}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe counts ev. It has the session.EventHandler signature so it can be
// passed straight to Manager.Subscribe.
func (m *Metrics) Observe(ev session.Event) {
	evicted := "false"
	if ev.Evicted {
		evicted = "true"
	}
	m.events.WithLabelValues(ev.Kind.String(), evicted).Inc()
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.events.Describe(ch)
	ch <- m.slotCapacity
	ch <- m.slotAllocated
	ch <- m.slotRecoverable
	ch <- m.slotOps
	ch <- m.cacheEntries
	ch <- m.cacheCapacity
	ch <- m.cacheProviders
	ch <- m.cacheLookups
	ch <- m.cacheDecodes
	ch <- m.cacheEvictions
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.events.Collect(ch)

	if m.alloc != nil {
		s := m.alloc.AllocatorStats()
		ch <- prometheus.MustNewConstMetric(m.slotCapacity, prometheus.GaugeValue, float64(s.Capacity))
		ch <- prometheus.MustNewConstMetric(m.slotAllocated, prometheus.GaugeValue, float64(s.Allocated))
		ch <- prometheus.MustNewConstMetric(m.slotRecoverable, prometheus.GaugeValue, float64(s.Recoverable))
		ch <- prometheus.MustNewConstMetric(m.slotOps, prometheus.CounterValue, float64(s.Allocations), "allocate")
		ch <- prometheus.MustNewConstMetric(m.slotOps, prometheus.CounterValue, float64(s.Evictions), "evict")
		ch <- prometheus.MustNewConstMetric(m.slotOps, prometheus.CounterValue, float64(s.Failures), "exhausted")
		ch <- prometheus.MustNewConstMetric(m.slotOps, prometheus.CounterValue, float64(s.Releases), "release")
	}

	if m.cache != nil {
		s := m.cache.Stats()
		ch <- prometheus.MustNewConstMetric(m.cacheEntries, prometheus.GaugeValue, float64(s.Entries))
		ch <- prometheus.MustNewConstMetric(m.cacheCapacity, prometheus.GaugeValue, float64(s.Capacity))
		ch <- prometheus.MustNewConstMetric(m.cacheProviders, prometheus.GaugeValue, float64(s.Providers))
		ch <- prometheus.MustNewConstMetric(m.cacheLookups, prometheus.CounterValue, float64(s.Hits), "hit")
		ch <- prometheus.MustNewConstMetric(m.cacheLookups, prometheus.CounterValue, float64(s.Misses), "miss")
		ch <- prometheus.MustNewConstMetric(m.cacheDecodes, prometheus.CounterValue, float64(s.Decodes), "ok")
		ch <- prometheus.MustNewConstMetric(m.cacheDecodes, prometheus.CounterValue, float64(s.DecodeFailures), "error")
		ch <- prometheus.MustNewConstMetric(m.cacheEvictions, prometheus.CounterValue, float64(s.Evictions))
	}
}
