// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector. Counters are atomic and registered on first
// use; gauges are sampled from callbacks when a snapshot is taken.

package control

import (
	"sync"
	"sync/atomic"
)

// MetricsRegistry holds named counters and gauges.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	gauges   map[string]func() int64
}

// NewMetricsRegistry creates an empty registry.
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		counters: make(map[string]*atomic.Int64),
		gauges:   make(map[string]func() int64),
	}
}

// Counter returns the counter for key, creating it at zero.
func (mr *MetricsRegistry) Counter(key string) *atomic.Int64 {
	mr.mu.RLock()
	c, ok := mr.counters[key]
	mr.mu.RUnlock()
	if ok {
		return c
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if c, ok = mr.counters[key]; !ok {
		c = new(atomic.Int64)
		mr.counters[key] = c
	}
	return c
}

// Add increments key by delta.
func (mr *MetricsRegistry) Add(key string, delta int64) {
	mr.Counter(key).Add(delta)
}

// Get returns the current value of a counter or gauge, or 0.
func (mr *MetricsRegistry) Get(key string) int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	if c, ok := mr.counters[key]; ok {
		return c.Load()
	}
	if g, ok := mr.gauges[key]; ok {
		return g()
	}
	return 0
}

// RegisterGauge installs a sampled value, replacing any previous gauge.
func (mr *MetricsRegistry) RegisterGauge(key string, fn func() int64) {
	mr.mu.Lock()
	mr.gauges[key] = fn
	mr.mu.Unlock()
}

// Snapshot returns every counter and gauge.
func (mr *MetricsRegistry) Snapshot() map[string]int64 {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]int64, len(mr.counters)+len(mr.gauges))
	for k, c := range mr.counters {
		out[k] = c.Load()
	}
	for k, g := range mr.gauges {
		out[k] = g()
	}
	return out
}
