package cache

import (
	"sync"
	"time"
)

// Metrics counts cache operations per tier. Call sites record explicitly
// via Observe* rather than through a wrapping layer, so what is measured
// stays visible at each call.
type Metrics struct {
	mu        sync.Mutex
	hits      int64
	misses    int64
	sets      int64
	deletes   int64
	errors    int64
	totalTime time.Duration
}

func (m *Metrics) ObserveGet(start time.Time, hit bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if hit {
		m.hits++
	} else {
		m.misses++
	}
	m.totalTime += time.Since(start)
}

func (m *Metrics) ObserveSet(start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets++
	m.totalTime += time.Since(start)
}

func (m *Metrics) ObserveDelete(start time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deletes++
	m.totalTime += time.Since(start)
}

func (m *Metrics) ObserveError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors++
}

// MetricsSnapshot is a point-in-time copy of the counters
type MetricsSnapshot struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Sets      int64   `json:"sets"`
	Deletes   int64   `json:"deletes"`
	Errors    int64   `json:"errors"`
	HitRate   float64 `json:"hit_rate"`
	AvgTimeMs float64 `json:"avg_time_ms"`
	TotalOps  int64   `json:"total_operations"`
}

// Snapshot returns a consistent copy of the counters
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := MetricsSnapshot{
		Hits:    m.hits,
		Misses:  m.misses,
		Sets:    m.sets,
		Deletes: m.deletes,
		Errors:  m.errors,
	}
	s.TotalOps = s.Hits + s.Misses + s.Sets + s.Deletes
	if s.Hits+s.Misses > 0 {
		s.HitRate = float64(s.Hits) / float64(s.Hits+s.Misses) * 100
	}
	if s.TotalOps > 0 {
		s.AvgTimeMs = float64(m.totalTime.Milliseconds()) / float64(s.TotalOps)
	}
	return s
}
