// Package stats implements the Statistics component: running counters
// plus a moving-percentile sampler capped at a fixed ring-buffer size
// (spec §5 "per-histogram sample ring buffer capped at 1000 with
// oldest-eviction").
package stats

import (
	"sort"
	"sync"
	"sync/atomic"
)

// RingBufferCap bounds every sampler's retained history.
const RingBufferCap = 1000

// Sampler is a mutex-guarded fixed-capacity ring buffer of duration
// samples (milliseconds), used to derive moving percentiles.
type Sampler struct {
	mu     sync.Mutex
	buf    []float64
	next   int
	filled bool
}

// NewSampler constructs an empty Sampler.
func NewSampler() *Sampler {
	return &Sampler{buf: make([]float64, RingBufferCap)}
}

// Observe records one sample, evicting the oldest once the buffer is
// full.
func (s *Sampler) Observe(valueMillis float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf[s.next] = valueMillis
	s.next = (s.next + 1) % RingBufferCap
	if s.next == 0 {
		s.filled = true
	}
}

// Percentile returns the p-th percentile (0..1) of the currently
// retained samples, or 0 if none have been recorded.
func (s *Sampler) Percentile(p float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.next
	if s.filled {
		n = RingBufferCap
	}
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, s.buf[:n])
	sort.Float64s(sorted)

	idx := int(p * float64(n-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

// Counters accumulates atomic, lock-free running totals for a single
// pipeline stage.
type Counters struct {
	succeeded atomic.Int64
	failed    atomic.Int64
	retried   atomic.Int64
}

// IncrementSucceeded records one successful outcome.
func (c *Counters) IncrementSucceeded() { c.succeeded.Add(1) }

// IncrementFailed records one failed outcome.
func (c *Counters) IncrementFailed() { c.failed.Add(1) }

// IncrementRetried records one retry reschedule.
func (c *Counters) IncrementRetried() { c.retried.Add(1) }

// CountersSnapshot is a point-in-time copy of Counters.
type CountersSnapshot struct {
	Succeeded int64
	Failed    int64
	Retried   int64
}

// Snapshot copies the current totals.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		Succeeded: c.succeeded.Load(),
		Failed:    c.failed.Load(),
		Retried:   c.retried.Load(),
	}
}

// Statistics aggregates the relay's running counters and latency
// samplers, distinct from the Router's own routing-only Stats: this is
// the delivery-pipeline-wide in-process view. The management API does not
// expose it; health and subscription stats are computed separately.
type Statistics struct {
	Delivery Counters
	Latency  *Sampler
}

// New constructs an empty Statistics accumulator.
func New() *Statistics {
	return &Statistics{Latency: NewSampler()}
}

// RecordAttempt folds one delivery attempt's outcome and duration into
// the accumulator.
func (s *Statistics) RecordAttempt(success bool, durationMillis float64) {
	if success {
		s.Delivery.IncrementSucceeded()
	} else {
		s.Delivery.IncrementFailed()
	}
	s.Latency.Observe(durationMillis)
}

// RecordRetry folds one retry reschedule into the accumulator.
func (s *Statistics) RecordRetry() {
	s.Delivery.IncrementRetried()
}

// Snapshot is a point-in-time view suitable for the health/stats API.
type Snapshot struct {
	Delivery CountersSnapshot
	P50Millis float64
	P95Millis float64
	P99Millis float64
}

// Snapshot copies the accumulator's current state.
func (s *Statistics) Snapshot() Snapshot {
	return Snapshot{
		Delivery:  s.Delivery.Snapshot(),
		P50Millis: s.Latency.Percentile(0.50),
		P95Millis: s.Latency.Percentile(0.95),
		P99Millis: s.Latency.Percentile(0.99),
	}
}
