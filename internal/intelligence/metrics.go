// internal/intelligence/metrics.go
package intelligence

import (
	"math"
	"sort"
	"sync"
)

const latencyWindowSize = 1000

// Status labels derived from the fraction of calls meeting target.
const (
	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusDegraded  = "degraded"
)

// Metrics is the point-in-time performance view served by GetMetrics.
type Metrics struct {
	TotalCalls       int64            `json:"totalCalls"`
	CacheHits        int64            `json:"cacheHits"`
	CacheHitRatio    float64          `json:"cacheHitRatio"`
	AverageLatencyMs float64          `json:"averageLatencyMs"`
	P95LatencyMs     float64          `json:"p95LatencyMs"`
	P99LatencyMs     float64          `json:"p99LatencyMs"`
	ProducerFailures map[string]int64 `json:"producerFailures"`
	Status           string           `json:"status"`
}

// latencyTracker is a bounded ring of recent call latencies shared
// across requests. Approximate under heavy interleaving, never
// corrupt.
type latencyTracker struct {
	mu         sync.Mutex
	samples    []float64
	next       int
	filled     bool
	totalCalls int64
	cacheHits  int64
	failures   map[string]int64
	targetMs   float64
}

func newLatencyTracker(targetMs float64) *latencyTracker {
	return &latencyTracker{
		samples:  make([]float64, latencyWindowSize),
		failures: make(map[string]int64),
		targetMs: targetMs,
	}
}

func (t *latencyTracker) recordCall(latencyMs float64, cacheHit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalCalls++
	if cacheHit {
		t.cacheHits++
	}
	t.samples[t.next] = latencyMs
	t.next++
	if t.next == len(t.samples) {
		t.next = 0
		t.filled = true
	}
}

func (t *latencyTracker) recordFailure(producer string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[producer]++
}

func (t *latencyTracker) snapshot() Metrics {
	t.mu.Lock()
	defer t.mu.Unlock()

	window := t.window()
	m := Metrics{
		TotalCalls:       t.totalCalls,
		CacheHits:        t.cacheHits,
		ProducerFailures: make(map[string]int64, len(t.failures)),
		Status:           StatusExcellent,
	}
	for k, v := range t.failures {
		m.ProducerFailures[k] = v
	}
	if t.totalCalls > 0 {
		m.CacheHitRatio = float64(t.cacheHits) / float64(t.totalCalls)
	}
	if len(window) == 0 {
		return m
	}

	total := 0.0
	withinTarget := 0
	for _, v := range window {
		total += v
		if v <= t.targetMs {
			withinTarget++
		}
	}
	m.AverageLatencyMs = total / float64(len(window))
	m.P95LatencyMs = percentile(window, 0.95)
	m.P99LatencyMs = percentile(window, 0.99)

	fraction := float64(withinTarget) / float64(len(window))
	switch {
	case fraction >= 0.95:
		m.Status = StatusExcellent
	case fraction >= 0.80:
		m.Status = StatusGood
	default:
		m.Status = StatusDegraded
	}
	return m
}

func (t *latencyTracker) window() []float64 {
	if t.filled {
		out := make([]float64, len(t.samples))
		copy(out, t.samples)
		return out
	}
	out := make([]float64, t.next)
	copy(out, t.samples[:t.next])
	return out
}

func percentile(samples []float64, q float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
