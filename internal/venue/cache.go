package venue

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// ttlCache wraps a ristretto cache for one value type with a fixed TTL.
// get returns only entries whose TTL has not lapsed (ristretto treats an
// expired entry as a miss), so a caller's fallback to the cache after an
// upstream failure finds a value only while the last successful set is
// still within its TTL; an entry past its TTL is not returned.
type ttlCache[V any] struct {
	cache *ristretto.Cache[string, V]
	ttl   time.Duration
}

func newTTLCache[V any](ttl time.Duration) *ttlCache[V] {
	c, err := ristretto.NewCache(&ristretto.Config[string, V]{
		NumCounters: 1e4,
		MaxCost:     1 << 20,
		BufferItems: 64,
	})
	if err != nil {
		// NewCache only fails on invalid config constants above, which are
		// fixed and known-good; a panic here would be a programming error.
		panic(err)
	}
	return &ttlCache[V]{cache: c, ttl: ttl}
}

func (c *ttlCache[V]) set(key string, v V) {
	c.cache.SetWithTTL(key, v, 1, c.ttl)
	c.cache.Wait()
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	return c.cache.Get(key)
}
