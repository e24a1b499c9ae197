package stats

import (
	"context"
	"log"
	"sort"
	"sync"
)

// Flusher persists a drained counter snapshot
type Flusher interface {
	FlushUsageCounters(ctx context.Context, counts map[uint]int64) error
}

// Aggregator batches per-bank usage increments in memory. A background task
// drains and persists the map periodically; a failed flush merges the
// drained snapshot back in (added, not overwritten) so increments are never
// silently lost. That makes delivery at-least-once: a partially succeeded
// flush can double-count, which is acceptable for advisory statistics.
type Aggregator struct {
	mu     sync.Mutex
	counts map[uint]int64
}

// NewAggregator creates an empty aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{counts: make(map[uint]int64)}
}

// Increment records one use of a bank
func (a *Aggregator) Increment(tikuID uint) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.counts[tikuID]++
}

// Snapshot returns a copy of the live counters
func (a *Aggregator) Snapshot() map[uint]int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	snapshot := make(map[uint]int64, len(a.counts))
	for id, n := range a.counts {
		snapshot[id] = n
	}
	return snapshot
}

// TopBanks returns up to n bank ids ordered by live count, most used first.
// Feeds the cache warmup after a mass invalidation.
func (a *Aggregator) TopBanks(n int) []uint {
	snapshot := a.Snapshot()

	ids := make([]uint, 0, len(snapshot))
	for id := range snapshot {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if snapshot[ids[i]] != snapshot[ids[j]] {
			return snapshot[ids[i]] > snapshot[ids[j]]
		}
		return ids[i] < ids[j]
	})

	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// Flush atomically drains the live map and persists the snapshot. On
// persistence failure the snapshot is merged back so nothing is dropped.
func (a *Aggregator) Flush(ctx context.Context, flusher Flusher) error {
	a.mu.Lock()
	drained := a.counts
	a.counts = make(map[uint]int64)
	a.mu.Unlock()

	if len(drained) == 0 {
		return nil
	}

	if err := flusher.FlushUsageCounters(ctx, drained); err != nil {
		a.mu.Lock()
		for id, n := range drained {
			a.counts[id] += n
		}
		a.mu.Unlock()
		log.Printf("[STATS] usage flush failed, %d counters re-queued: %v", len(drained), err)
		return err
	}
	return nil
}
