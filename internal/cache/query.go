package cache

import "time"

// QueryCache implements C12: a content-hash-keyed cache from a query string
// to its already-fused, reranked, context-expanded result list. Generic over
// R so internal/searcher can supply its own SearchResult type without this
// package importing it (avoiding a cache <-> searcher import cycle).
type QueryCache[R any] struct {
	store *Store[R]
}

// NewQueryCache creates a QueryCache with the given capacity and TTL. No
// disk persistence: query results are cheap to recompute and depend on the
// current index state, so persisting them across process restarts would
// risk serving stale results against a since-reindexed corpus.
func NewQueryCache[R any](capacity int, ttl time.Duration) *QueryCache[R] {
	return &QueryCache[R]{store: New[R](capacity, ttl, "")}
}

// Get returns the cached result list for query, or ok=false on absence or
// expiration.
func (c *QueryCache[R]) Get(query string) (R, bool) {
	return c.store.Get(KeyOf(query))
}

// Insert stores the result list for query. Callers must not call Insert for
// a query whose search was cancelled (§4.12/P10): a cancelled search never
// populates the cache, since its result list may be incomplete.
func (c *QueryCache[R]) Insert(query string, results R) {
	c.store.Put(KeyOf(query), results)
}

// Clear removes every cached query.
func (c *QueryCache[R]) Clear() { c.store.Clear() }

// Stats returns hit/miss counters and hit rate.
func (c *QueryCache[R]) Stats() Stats { return c.store.Stats() }
