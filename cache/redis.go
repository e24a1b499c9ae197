package cache

import (
	"errors"
	"log"
	"time"

	"github.com/gomodule/redigo/redis"
)

// ErrCacheUnavailable reports that the distributed tier is unreachable.
// Callers degrade to the next tier instead of failing the request.
var ErrCacheUnavailable = errors.New("distributed cache unavailable")

const (
	cachePrefix     = "cache:"
	deleteBatchSize = 100
	scanCount       = 100
)

// RedisCache is the distributed, cross-process cache tier. All keys are
// namespaced under "cache:". Every operation degrades to a miss/no-op when
// the server is unreachable; retrying a Set after a timeout is safe because
// SETEX is idempotent for identical payloads.
type RedisCache struct {
	pool    *redis.Pool
	codec   *Codec
	Metrics Metrics
}

// NewRedisPool builds a redigo pool with bounded dial/read/write timeouts so
// no cache operation can block past the configured cutoff.
func NewRedisPool(addr, password string, db int, timeout time.Duration) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     4,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{
				redis.DialDatabase(db),
				redis.DialConnectTimeout(timeout),
				redis.DialReadTimeout(timeout),
				redis.DialWriteTimeout(timeout),
			}
			if password != "" {
				opts = append(opts, redis.DialPassword(password))
			}
			return redis.Dial("tcp", addr, opts...)
		},
	}
}

// NewRedisCache wraps an existing pool. Tests hand in a pool pointed at
// miniredis.
func NewRedisCache(pool *redis.Pool, codec *Codec) *RedisCache {
	return &RedisCache{pool: pool, codec: codec}
}

func (r *RedisCache) key(key string) string {
	return cachePrefix + key
}

// Available probes the server with a PING
func (r *RedisCache) Available() bool {
	conn := r.pool.Get()
	defer conn.Close()

	if _, err := redis.String(conn.Do("PING")); err != nil {
		return false
	}
	return true
}

// GetRaw fetches the stored envelope for key. Unreachable server and absent
// key both report a miss.
func (r *RedisCache) GetRaw(key string) ([]byte, bool) {
	if !r.Available() {
		return nil, false
	}
	start := time.Now()

	conn := r.pool.Get()
	defer conn.Close()

	data, err := redis.Bytes(conn.Do("GET", r.key(key)))
	if err != nil {
		if !errors.Is(err, redis.ErrNil) {
			r.Metrics.ObserveError()
			log.Printf("[CACHE] redis get %s failed: %v", key, err)
		}
		r.Metrics.ObserveGet(start, false)
		return nil, false
	}

	r.Metrics.ObserveGet(start, true)
	return data, true
}

// Get fetches and decodes the entry for key into out. A corrupt payload
// reports a miss and the entry is deleted so it cannot poison later reads.
func (r *RedisCache) Get(key string, out any) bool {
	data, ok := r.GetRaw(key)
	if !ok {
		return false
	}
	if err := r.codec.Decode(data, out); err != nil {
		log.Printf("[CACHE] dropping corrupt entry %s: %v", key, err)
		r.Metrics.ObserveError()
		r.Delete(key)
		return false
	}
	return true
}

// SetRaw stores an already-encoded envelope under key with the given TTL
func (r *RedisCache) SetRaw(key string, data []byte, ttl time.Duration) bool {
	if !r.Available() {
		return false
	}
	start := time.Now()

	conn := r.pool.Get()
	defer conn.Close()

	if _, err := conn.Do("SETEX", r.key(key), int(ttl.Seconds()), data); err != nil {
		r.Metrics.ObserveError()
		log.Printf("[CACHE] redis set %s failed: %v", key, err)
		return false
	}

	r.Metrics.ObserveSet(start)
	return true
}

// Set encodes value and stores it under key with the given TTL
func (r *RedisCache) Set(key string, value any, ttl time.Duration) bool {
	data, err := r.codec.Encode(value)
	if err != nil {
		r.Metrics.ObserveError()
		log.Printf("[CACHE] redis set %s failed to encode: %v", key, err)
		return false
	}
	return r.SetRaw(key, data, ttl)
}

// Delete removes the entry for key, reporting whether one existed
func (r *RedisCache) Delete(key string) bool {
	if !r.Available() {
		return false
	}
	start := time.Now()

	conn := r.pool.Get()
	defer conn.Close()

	n, err := redis.Int(conn.Do("DEL", r.key(key)))
	if err != nil {
		r.Metrics.ObserveError()
		log.Printf("[CACHE] redis delete %s failed: %v", key, err)
		return false
	}

	r.Metrics.ObserveDelete(start)
	return n > 0
}

// Exists reports whether key is present without fetching it
func (r *RedisCache) Exists(key string) bool {
	if !r.Available() {
		return false
	}

	conn := r.pool.Get()
	defer conn.Close()

	n, err := redis.Int(conn.Do("EXISTS", r.key(key)))
	if err != nil {
		return false
	}
	return n > 0
}

// TTL returns the remaining lifetime of key, or false if absent/unreachable
func (r *RedisCache) TTL(key string) (time.Duration, bool) {
	if !r.Available() {
		return 0, false
	}

	conn := r.pool.Get()
	defer conn.Close()

	secs, err := redis.Int(conn.Do("TTL", r.key(key)))
	if err != nil || secs < 0 {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// MGet fetches many keys in one round trip. The result holds raw envelopes
// keyed by the logical key; absent keys are simply missing from the map.
func (r *RedisCache) MGet(keys []string) map[string][]byte {
	result := make(map[string][]byte)
	if len(keys) == 0 || !r.Available() {
		return result
	}
	start := time.Now()

	conn := r.pool.Get()
	defer conn.Close()

	args := make([]any, len(keys))
	for i, k := range keys {
		args[i] = r.key(k)
	}

	values, err := redis.ByteSlices(conn.Do("MGET", args...))
	if err != nil {
		r.Metrics.ObserveError()
		log.Printf("[CACHE] redis mget failed: %v", err)
		return result
	}

	for i, v := range values {
		if v != nil {
			r.Metrics.ObserveGet(start, true)
			result[keys[i]] = v
		} else {
			r.Metrics.ObserveGet(start, false)
		}
	}
	return result
}

// MSet stores many pre-encoded envelopes with a shared TTL in one pipelined batch
func (r *RedisCache) MSet(entries map[string][]byte, ttl time.Duration) bool {
	if len(entries) == 0 || !r.Available() {
		return false
	}
	start := time.Now()

	conn := r.pool.Get()
	defer conn.Close()

	pending := 0
	for key, data := range entries {
		if err := conn.Send("SETEX", r.key(key), int(ttl.Seconds()), data); err != nil {
			r.Metrics.ObserveError()
			log.Printf("[CACHE] redis mset failed: %v", err)
			return false
		}
		pending++
	}

	if err := conn.Flush(); err != nil {
		r.Metrics.ObserveError()
		log.Printf("[CACHE] redis mset flush failed: %v", err)
		return false
	}
	for i := 0; i < pending; i++ {
		if _, err := conn.Receive(); err != nil {
			r.Metrics.ObserveError()
			log.Printf("[CACHE] redis mset receive failed: %v", err)
			return false
		}
	}

	r.Metrics.ObserveSet(start)
	return true
}

// DeleteByPattern removes every entry whose logical key starts with prefix,
// returning how many were deleted. Keys are discovered with SCAN and removed
// in bounded batches so the server is never blocked on one huge DEL.
func (r *RedisCache) DeleteByPattern(prefix string) int {
	if !r.Available() {
		return 0
	}
	start := time.Now()

	conn := r.pool.Get()
	defer conn.Close()

	match := r.key(prefix) + "*"
	cursor := 0
	var keys []any

	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", match, "COUNT", scanCount))
		if err != nil {
			r.Metrics.ObserveError()
			log.Printf("[CACHE] redis scan %s failed: %v", prefix, err)
			return 0
		}

		var batch []string
		if _, err := redis.Scan(values, &cursor, &batch); err != nil {
			r.Metrics.ObserveError()
			return 0
		}
		for _, k := range batch {
			keys = append(keys, k)
		}
		if cursor == 0 {
			break
		}
	}

	deleted := 0
	for i := 0; i < len(keys); i += deleteBatchSize {
		end := i + deleteBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		n, err := redis.Int(conn.Do("DEL", keys[i:end]...))
		if err != nil {
			r.Metrics.ObserveError()
			log.Printf("[CACHE] redis batch delete failed: %v", err)
			break
		}
		deleted += n
	}

	r.Metrics.ObserveDelete(start)
	return deleted
}

// KeyCount returns how many namespaced cache keys currently exist
func (r *RedisCache) KeyCount() int {
	if !r.Available() {
		return 0
	}

	conn := r.pool.Get()
	defer conn.Close()

	match := cachePrefix + "*"
	cursor := 0
	count := 0
	for {
		values, err := redis.Values(conn.Do("SCAN", cursor, "MATCH", match, "COUNT", scanCount))
		if err != nil {
			return count
		}
		var batch []string
		if _, err := redis.Scan(values, &cursor, &batch); err != nil {
			return count
		}
		count += len(batch)
		if cursor == 0 {
			break
		}
	}
	return count
}
