package server

import (
	"testing"
	"time"
)

func TestMetrics_RecordAndSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordRequest("issues", 10*time.Millisecond, false)
	m.RecordRequest("issues", 30*time.Millisecond, false)
	m.RecordRequest("issues", 20*time.Millisecond, true)
	m.RecordRequest("stats", 5*time.Millisecond, false)

	snap := m.Snapshot()
	issues := snap.Operations["issues"]
	if issues.Count != 3 {
		t.Errorf("count = %d, want 3", issues.Count)
	}
	if issues.Errors != 1 {
		t.Errorf("errors = %d, want 1", issues.Errors)
	}
	if issues.AvgMS < 15 || issues.AvgMS > 25 {
		t.Errorf("avg = %v, want ~20", issues.AvgMS)
	}
	if snap.Operations["stats"].Count != 1 {
		t.Errorf("stats count = %d, want 1", snap.Operations["stats"].Count)
	}
	if snap.UptimeSeconds < 0 {
		t.Errorf("uptime = %v", snap.UptimeSeconds)
	}
}

func TestMetrics_BoundedSamples(t *testing.T) {
	m := NewMetrics()
	m.maxSamples = 10

	for i := 0; i < 100; i++ {
		m.RecordRequest("issues", time.Millisecond, false)
	}

	m.mu.RLock()
	n := len(m.requestLatency["issues"])
	m.mu.RUnlock()
	if n != 10 {
		t.Errorf("samples = %d, want bounded at 10", n)
	}
	if got := m.Snapshot().Operations["issues"].Count; got != 100 {
		t.Errorf("count = %d, want 100 (counts are not sampled)", got)
	}
}
