package server

import (
	"sort"
	"sync"
	"time"
)

// Metrics holds request telemetry for the dashboard server.
type Metrics struct {
	mu sync.RWMutex

	requestCounts  map[string]int64           // operation -> count
	requestErrors  map[string]int64           // operation -> error count
	requestLatency map[string][]time.Duration // operation -> latency samples (bounded slice)
	maxSamples     int

	startTime time.Time
}

// NewMetrics creates a new metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCounts:  make(map[string]int64),
		requestErrors:  make(map[string]int64),
		requestLatency: make(map[string][]time.Duration),
		maxSamples:     1000, // Keep last 1000 samples per operation
		startTime:      time.Now(),
	}
}

// RecordRequest records one handled request.
func (m *Metrics) RecordRequest(operation string, latency time.Duration, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requestCounts[operation]++
	if failed {
		m.requestErrors[operation]++
	}

	samples := m.requestLatency[operation]
	if len(samples) >= m.maxSamples {
		// Drop oldest sample to maintain max size
		samples = samples[1:]
	}
	m.requestLatency[operation] = append(samples, latency)
}

// OperationStats summarizes one operation's request history.
type OperationStats struct {
	Count  int64   `json:"count"`
	Errors int64   `json:"errors"`
	AvgMS  float64 `json:"avg_ms"`
	P95MS  float64 `json:"p95_ms"`
}

// Snapshot returns per-operation stats plus server uptime.
type Snapshot struct {
	UptimeSeconds float64                   `json:"uptime_seconds"`
	Operations    map[string]OperationStats `json:"operations"`
}

// Snapshot computes a point-in-time summary of all recorded requests.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := Snapshot{
		UptimeSeconds: time.Since(m.startTime).Seconds(),
		Operations:    make(map[string]OperationStats, len(m.requestCounts)),
	}
	for op, count := range m.requestCounts {
		stats := OperationStats{Count: count, Errors: m.requestErrors[op]}
		if samples := m.requestLatency[op]; len(samples) > 0 {
			var total time.Duration
			sorted := make([]time.Duration, len(samples))
			copy(sorted, samples)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
			for _, s := range sorted {
				total += s
			}
			stats.AvgMS = float64(total.Milliseconds()) / float64(len(sorted))
			stats.P95MS = float64(sorted[len(sorted)*95/100].Milliseconds())
		}
		snap.Operations[op] = stats
	}
	return snap
}
