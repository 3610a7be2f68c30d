package intelligence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPercentile(t *testing.T) {
	samples := make([]float64, 100)
	for i := range samples {
		samples[i] = float64(i + 1)
	}

	assert.Equal(t, float64(95), percentile(samples, 0.95))
	assert.Equal(t, float64(99), percentile(samples, 0.99))
	assert.Equal(t, float64(0), percentile(nil, 0.95))
	assert.Equal(t, float64(7), percentile([]float64{7}, 0.99))
}

func TestLatencyTracker_StatusBands(t *testing.T) {
	tests := []struct {
		name     string
		slowOf20 int
		expected string
	}{
		{"all within target", 0, StatusExcellent},
		{"5 percent slow still excellent", 1, StatusExcellent},
		{"15 percent slow is good", 3, StatusGood},
		{"30 percent slow is degraded", 6, StatusDegraded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := newLatencyTracker(200)
			for i := 0; i < 20; i++ {
				latency := 50.0
				if i < tt.slowOf20 {
					latency = 500.0
				}
				tracker.recordCall(latency, false)
			}
			assert.Equal(t, tt.expected, tracker.snapshot().Status)
		})
	}
}

func TestLatencyTracker_WindowWrapsAround(t *testing.T) {
	tracker := newLatencyTracker(200)
	for i := 0; i < latencyWindowSize+100; i++ {
		tracker.recordCall(10, false)
	}

	m := tracker.snapshot()
	assert.Equal(t, int64(latencyWindowSize+100), m.TotalCalls)
	assert.Equal(t, float64(10), m.AverageLatencyMs)
}

func TestLatencyTracker_EmptySnapshot(t *testing.T) {
	m := newLatencyTracker(200).snapshot()
	assert.Equal(t, int64(0), m.TotalCalls)
	assert.Equal(t, float64(0), m.CacheHitRatio)
	assert.Equal(t, StatusExcellent, m.Status)
}
