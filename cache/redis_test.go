package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	pool := NewRedisPool(mr.Addr(), "", 0, time.Second)
	return NewRedisCache(pool, &Codec{Threshold: 1024}), mr
}

func TestRedisSetGet(t *testing.T) {
	r, mr := newTestRedis(t)

	assert.True(t, r.Set("greeting", "hello", time.Minute))
	assert.True(t, mr.Exists("cache:greeting"))

	var out string
	assert.True(t, r.Get("greeting", &out))
	assert.Equal(t, "hello", out)

	assert.False(t, r.Get("absent", &out))
}

func TestRedisTTLAndExists(t *testing.T) {
	r, mr := newTestRedis(t)

	r.Set("k", 1, 90*time.Second)
	assert.True(t, r.Exists("k"))

	ttl, ok := r.TTL("k")
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, ttl)

	mr.FastForward(2 * time.Minute)
	assert.False(t, r.Exists("k"))
	_, ok = r.TTL("k")
	assert.False(t, ok)
}

func TestRedisDelete(t *testing.T) {
	r, _ := newTestRedis(t)

	r.Set("k", 1, time.Minute)
	assert.True(t, r.Delete("k"))
	assert.False(t, r.Delete("k"))
}

func TestRedisCorruptEntryDropped(t *testing.T) {
	r, mr := newTestRedis(t)

	require.NoError(t, mr.Set("cache:bad", "\x00not json"))

	var out map[string]int
	assert.False(t, r.Get("bad", &out))
	assert.False(t, mr.Exists("cache:bad"))
}

func TestRedisMGetMSet(t *testing.T) {
	r, _ := newTestRedis(t)
	codec := &Codec{Threshold: 1024}

	entries := make(map[string][]byte)
	for i := 1; i <= 3; i++ {
		data, err := codec.Encode(i * 10)
		require.NoError(t, err)
		entries[fmt.Sprintf("question_%d", i)] = data
	}
	assert.True(t, r.MSet(entries, time.Minute))

	got := r.MGet([]string{"question_1", "question_3", "question_9"})
	require.Len(t, got, 2)

	var v int
	require.NoError(t, codec.Decode(got["question_3"], &v))
	assert.Equal(t, 30, v)
}

func TestRedisDeleteByPattern(t *testing.T) {
	r, mr := newTestRedis(t)

	for i := 0; i < 7; i++ {
		r.Set(fmt.Sprintf("question_%d", i), i, time.Minute)
	}
	r.Set("bank_index_1", 1, time.Minute)

	assert.Equal(t, 7, r.DeleteByPattern("question_"))
	assert.True(t, mr.Exists("cache:bank_index_1"))
	assert.Equal(t, 1, r.KeyCount())
}

func TestRedisUnavailableDegrades(t *testing.T) {
	r, mr := newTestRedis(t)
	r.Set("k", 1, time.Minute)
	mr.Close()

	assert.False(t, r.Available())

	var out int
	assert.False(t, r.Get("k", &out))
	assert.False(t, r.Set("k", 2, time.Minute))
	assert.False(t, r.Delete("k"))
	assert.Empty(t, r.MGet([]string{"k"}))
	assert.Equal(t, 0, r.DeleteByPattern("q"))
	assert.Equal(t, 0, r.KeyCount())
}

func TestRedisMetrics(t *testing.T) {
	r, _ := newTestRedis(t)

	r.Set("k", 1, time.Minute)
	var out int
	r.Get("k", &out)
	r.Get("missing", &out)
	r.Delete("k")

	snap := r.Metrics.Snapshot()
	assert.Equal(t, int64(1), snap.Hits)
	assert.Equal(t, int64(1), snap.Misses)
	assert.Equal(t, int64(1), snap.Sets)
	assert.Equal(t, int64(1), snap.Deletes)
	assert.InDelta(t, 50.0, snap.HitRate, 0.01)
}
