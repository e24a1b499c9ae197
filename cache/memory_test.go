package cache

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemoryCacheSetGet(t *testing.T) {
	m := NewMemoryCache(10, time.Minute)

	m.Set("a", "one", 0)
	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "one", v)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}

func TestMemoryCacheLazyExpiry(t *testing.T) {
	m := NewMemoryCache(10, time.Minute)

	m.Set("a", "one", 10*time.Millisecond)
	assert.True(t, m.Contains("a"))

	time.Sleep(20 * time.Millisecond)
	assert.False(t, m.Contains("a"))
	_, ok := m.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemoryCacheLRUEviction(t *testing.T) {
	m := NewMemoryCache(3, time.Minute)
	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Set("c", 3, 0)

	// touch a so b becomes the eviction victim
	_, _ = m.Get("a")
	m.Set("d", 4, 0)

	assert.True(t, m.Contains("a"))
	assert.False(t, m.Contains("b"))
	assert.True(t, m.Contains("c"))
	assert.True(t, m.Contains("d"))
	assert.Equal(t, int64(1), m.Stats().Evictions)
}

func TestMemoryCacheUpdateInPlace(t *testing.T) {
	m := NewMemoryCache(2, time.Minute)
	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Set("a", 10, 0)

	v, ok := m.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 10, v)
	assert.Equal(t, 2, m.Len())
}

func TestMemoryCacheDeleteByPrefix(t *testing.T) {
	m := NewMemoryCache(10, time.Minute)
	m.Set("question_1", 1, 0)
	m.Set("question_2", 2, 0)
	m.Set("bank_index_1", 3, 0)

	assert.Equal(t, 2, m.DeleteByPrefix("question_"))
	assert.False(t, m.Contains("question_1"))
	assert.True(t, m.Contains("bank_index_1"))
}

func TestMemoryCacheSweep(t *testing.T) {
	m := NewMemoryCache(10, time.Minute)
	for i := 0; i < 5; i++ {
		m.Set(fmt.Sprintf("short_%d", i), i, 5*time.Millisecond)
	}
	m.Set("long", 1, time.Minute)

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 5, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestMemoryCachePurge(t *testing.T) {
	m := NewMemoryCache(10, time.Minute)
	m.Set("a", 1, 0)
	m.Set("b", 2, 0)
	m.Purge()
	assert.Equal(t, 0, m.Len())
	assert.False(t, m.Contains("a"))
}
