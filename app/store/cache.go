package store

import (
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// noStatus is the negative cache sentinel meaning "looked up, nothing on
// disk". Distinct from a missing cache entry which means "not looked up yet".
type noStatusType struct{}

func (noStatusType) RequestID() ID { return nil }

var noStatus Status = noStatusType{}

// statusCache is a bounded LRU from encoded id to status. Simple get/put go
// straight to the thread-safe LRU; the miss path is double-checked under a
// mutex so concurrent misses on one id cause a single disk load. Eviction
// drops the in-memory shortcut only, never the persisted copy.
type statusCache struct {
	lru *lru.Cache[string, Status]
	mu  sync.Mutex // serializes the load-on-miss path
}

func newStatusCache(size int) (*statusCache, error) {
	c, err := lru.New[string, Status](size)
	if err != nil {
		return nil, err
	}
	return &statusCache{lru: c}, nil
}

// getOrLoad returns the cached status for the key, loading and caching it on
// a miss. A nil result from load is cached as the negative sentinel and
// returned as nil.
func (c *statusCache) getOrLoad(key string, load func() Status) Status {
	if st, ok := c.lru.Get(key); ok {
		return fromSentinel(st)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if st, ok := c.lru.Get(key); ok { // another caller may have just loaded it
		return fromSentinel(st)
	}

	st := load()
	if st == nil {
		c.lru.Add(key, noStatus)
		return nil
	}
	c.lru.Add(key, st)
	return st
}

func (c *statusCache) put(key string, st Status) { c.lru.Add(key, st) }

// removePrefix drops the entry for the key and every descendant entry. The
// disk subtree goes away as one unit, the cache has to follow or stale
// descendants would keep resolving.
func (c *statusCache) removePrefix(key string) {
	for _, k := range c.lru.Keys() {
		if k == key || key == "" || strings.HasPrefix(k, key+"/") {
			c.lru.Remove(k)
		}
	}
}

func (c *statusCache) len() int { return c.lru.Len() }

func fromSentinel(st Status) Status {
	if st == noStatus {
		return nil
	}
	return st
}
