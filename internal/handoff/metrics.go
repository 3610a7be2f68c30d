// internal/handoff/metrics.go
package handoff

import (
	"math"
	"sort"
	"sync"
)

const latencyWindowSize = 1000

// Overall handoff performance labels.
const (
	StatusExcellent = "excellent"
	StatusGood      = "good"
	StatusDegraded  = "degraded"
)

// Metrics is the point-in-time view served by GetMetrics.
type Metrics struct {
	TotalPreservations      int64   `json:"totalPreservations"`
	FailedPreservations     int64   `json:"failedPreservations"`
	TotalRetrievals         int64   `json:"totalRetrievals"`
	RetrievalHits           int64   `json:"retrievalHits"`
	PreservationP99Ms       float64 `json:"preservationP99Ms"`
	RetrievalP99Ms          float64 `json:"retrievalP99Ms"`
	PreservationWithinSLA   bool    `json:"preservationWithinSla"`
	RetrievalWithinSLA      bool    `json:"retrievalWithinSla"`
	Status                  string  `json:"status"`
	AverageSnapshotSizeKB   float64 `json:"averageSnapshotSizeKb"`
	OversizedSnapshotCount  int64   `json:"oversizedSnapshotCount"`
}

// latencyWindow is a bounded ring of operation latencies.
type latencyWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	filled  bool
}

func newLatencyWindow() *latencyWindow {
	return &latencyWindow{samples: make([]float64, latencyWindowSize)}
}

func (w *latencyWindow) record(latencyMs float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = latencyMs
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.filled = true
	}
}

func (w *latencyWindow) p99() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	var window []float64
	if w.filled {
		window = make([]float64, len(w.samples))
		copy(window, w.samples)
	} else {
		window = make([]float64, w.next)
		copy(window, w.samples[:w.next])
	}
	if len(window) == 0 {
		return 0
	}
	sort.Float64s(window)
	idx := int(math.Ceil(0.99*float64(len(window)))) - 1
	if idx < 0 {
		idx = 0
	}
	return window[idx]
}
