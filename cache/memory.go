package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

type memoryEntry struct {
	key       string
	value     any
	expiresAt time.Time
}

// MemoryCache is the process-local first tier: a bounded map with per-entry
// TTL and LRU eviction. Expiry is lazy, checked on every access, so no
// background sweep is required, though Sweep exists to bound growth from
// entries that are never touched again. The single mutex covers the whole
// check-then-evict-then-insert sequence.
type MemoryCache struct {
	mu         sync.Mutex
	capacity   int
	defaultTTL time.Duration
	ll         *list.List // front = most recently used
	items      map[string]*list.Element

	hits      int64
	misses    int64
	sets      int64
	evictions int64
}

// NewMemoryCache creates a local tier holding at most capacity entries
func NewMemoryCache(capacity int, defaultTTL time.Duration) *MemoryCache {
	if capacity <= 0 {
		capacity = 1000
	}
	return &MemoryCache{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

// Get returns the value for key, expiring it lazily if its TTL has elapsed
func (m *MemoryCache) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		m.misses++
		return nil, false
	}

	entry := el.Value.(*memoryEntry)
	if time.Now().After(entry.expiresAt) {
		m.removeElement(el)
		m.misses++
		return nil, false
	}

	m.ll.MoveToFront(el)
	m.hits++
	return entry.value, true
}

// Contains reports presence with the same lazy-expiry check as Get, so an
// entry that is logically absent never reports as present.
func (m *MemoryCache) Contains(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false
	}
	if time.Now().After(el.Value.(*memoryEntry).expiresAt) {
		m.removeElement(el)
		return false
	}
	return true
}

// Set inserts or replaces the entry for key. Expired entries are evicted
// first, then the least-recently-used entry if the cache is still full.
func (m *MemoryCache) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = m.defaultTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[key]; ok {
		entry := el.Value.(*memoryEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(ttl)
		m.ll.MoveToFront(el)
		m.sets++
		return
	}

	m.evictExpired()
	for m.ll.Len() >= m.capacity {
		if oldest := m.ll.Back(); oldest != nil {
			m.removeElement(oldest)
			m.evictions++
		}
	}

	el := m.ll.PushFront(&memoryEntry{
		key:       key,
		value:     value,
		expiresAt: time.Now().Add(ttl),
	})
	m.items[key] = el
	m.sets++
}

// Delete removes key, reporting whether it was present
func (m *MemoryCache) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[key]
	if !ok {
		return false
	}
	m.removeElement(el)
	return true
}

// DeleteByPrefix removes every entry whose key starts with prefix
func (m *MemoryCache) DeleteByPrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, el := range m.items {
		if strings.HasPrefix(key, prefix) {
			m.removeElement(el)
			removed++
		}
	}
	return removed
}

// Sweep removes all expired entries, returning how many were dropped
func (m *MemoryCache) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.evictExpired()
}

// Purge empties the cache
func (m *MemoryCache) Purge() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ll.Init()
	m.items = make(map[string]*list.Element)
}

// Len returns the current number of entries, counting not-yet-swept expired ones
func (m *MemoryCache) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// MemoryStats is a snapshot of the local tier counters
type MemoryStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Sets      int64 `json:"sets"`
	Evictions int64 `json:"evictions"`
	Size      int   `json:"current_size"`
	Capacity  int   `json:"max_size"`
}

// Stats returns a snapshot of the counters
func (m *MemoryCache) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{
		Hits:      m.hits,
		Misses:    m.misses,
		Sets:      m.sets,
		Evictions: m.evictions,
		Size:      m.ll.Len(),
		Capacity:  m.capacity,
	}
}

// callers must hold m.mu
func (m *MemoryCache) removeElement(el *list.Element) {
	m.ll.Remove(el)
	delete(m.items, el.Value.(*memoryEntry).key)
}

// callers must hold m.mu
func (m *MemoryCache) evictExpired() int {
	now := time.Now()
	removed := 0
	for el := m.ll.Back(); el != nil; {
		prev := el.Prev()
		if now.After(el.Value.(*memoryEntry).expiresAt) {
			m.removeElement(el)
			m.evictions++
			removed++
		}
		el = prev
	}
	return removed
}
