package stats

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFlusher struct {
	mu     sync.Mutex
	calls  []map[uint]int64
	failed bool
}

func (f *fakeFlusher) FlushUsageCounters(_ context.Context, counts map[uint]int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed {
		return errors.New("store down")
	}
	f.calls = append(f.calls, counts)
	return nil
}

func TestIncrementAndSnapshot(t *testing.T) {
	agg := NewAggregator()
	agg.Increment(1)
	agg.Increment(1)
	agg.Increment(2)

	assert.Equal(t, map[uint]int64{1: 2, 2: 1}, agg.Snapshot())
}

func TestTopBanks(t *testing.T) {
	agg := NewAggregator()
	for i := 0; i < 3; i++ {
		agg.Increment(5)
	}
	agg.Increment(2)
	agg.Increment(2)
	agg.Increment(9)

	assert.Equal(t, []uint{5, 2, 9}, agg.TopBanks(10))
	assert.Equal(t, []uint{5}, agg.TopBanks(1))
	assert.Empty(t, NewAggregator().TopBanks(3))
}

func TestFlushDrainsCounters(t *testing.T) {
	agg := NewAggregator()
	flusher := &fakeFlusher{}
	agg.Increment(1)
	agg.Increment(1)

	require.NoError(t, agg.Flush(context.Background(), flusher))
	assert.Equal(t, map[uint]int64{1: 2}, flusher.calls[0])
	assert.Empty(t, agg.Snapshot())

	// nothing pending, nothing flushed
	require.NoError(t, agg.Flush(context.Background(), flusher))
	assert.Len(t, flusher.calls, 1)
}

func TestFlushFailureRequeuesCounters(t *testing.T) {
	agg := NewAggregator()
	flusher := &fakeFlusher{failed: true}
	agg.Increment(3)

	require.Error(t, agg.Flush(context.Background(), flusher))

	// the counter survives and merges with later increments
	agg.Increment(3)
	assert.Equal(t, map[uint]int64{3: 2}, agg.Snapshot())

	flusher.failed = false
	require.NoError(t, agg.Flush(context.Background(), flusher))
	assert.Equal(t, map[uint]int64{3: 2}, flusher.calls[0])
}
