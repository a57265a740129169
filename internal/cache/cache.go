// Package cache implements the EmbeddingCache (C3) and QueryCache (C12):
// both are content-hash-keyed LRU+TTL caches, so the two are expressed here
// as instantiations of one generic store. Disk persistence is available when
// a Store has a directory; QueryCache never sets one. Grounded
// on the teacher's internal/embed/cached.go (LRU wrapping, SHA-256 keying)
// and internal/embed/lock.go (cross-process lock for disk persistence),
// generalized to add TTL (the teacher's plain lru.Cache has none) via
// golang-lru/v2's expirable variant.
package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	expirable "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/latchkey-dev/hybridsearch/internal/errors"
)

// Stats reports cache hit/miss counters (§4.3/§4.11 "stats").
type Stats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// HitRate returns hits/(hits+misses), 0 when there have been no lookups.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// entry is the persisted unit: the raw key string is kept alongside the
// value so load_from_disk can repopulate the cache without needing to
// recompute hashes for values whose original input text is not retained
// elsewhere.
type entry[V any] struct {
	Key   string
	Value V
}

// Store is a generic content-hash-keyed LRU+TTL cache. EmbeddingCache and
// QueryCache are both Store instantiations over different value types.
type Store[V any] struct {
	mu      sync.Mutex
	lru     *expirable.LRU[string, V]
	hits    int64
	misses  int64
	ttl     time.Duration
	dir     string // empty disables disk persistence
}

// New creates a Store with the given capacity and TTL. ttl <= 0 means
// entries never expire. dir, if non-empty, is the directory save_to_disk/
// load_from_disk persist to.
func New[V any](capacity int, ttl time.Duration, dir string) *Store[V] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Store[V]{
		lru: expirable.NewLRU[string, V](capacity, nil, ttl),
		ttl: ttl,
		dir: dir,
	}
}

// KeyOf hashes arbitrary input text into the content-hash key used to
// address entries (SHA-256 of the exact input string, per §4.3).
func KeyOf(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached value for key, or ok=false on absence or
// expiration. expirable.LRU already removes expired entries on access, so
// no separate eviction step is needed here.
func (s *Store[V]) Get(key string) (V, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.lru.Get(key)
	if ok {
		atomic.AddInt64(&s.hits, 1)
	} else {
		atomic.AddInt64(&s.misses, 1)
	}
	return v, ok
}

// Put inserts or overwrites the value for key.
func (s *Store[V]) Put(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(key, value)
}

// GetBatch looks up multiple keys at once, reporting which were found.
func (s *Store[V]) GetBatch(keys []string) (map[string]V, []string) {
	found := make(map[string]V, len(keys))
	var missing []string
	for _, k := range keys {
		if v, ok := s.Get(k); ok {
			found[k] = v
		} else {
			missing = append(missing, k)
		}
	}
	return found, missing
}

// PutBatch inserts multiple key/value pairs.
func (s *Store[V]) PutBatch(entries map[string]V) {
	for k, v := range entries {
		s.Put(k, v)
	}
}

// Clear removes every entry and resets hit/miss counters.
func (s *Store[V]) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
	atomic.StoreInt64(&s.hits, 0)
	atomic.StoreInt64(&s.misses, 0)
}

// Stats returns the current hit/miss/entry counts.
func (s *Store[V]) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Hits:    atomic.LoadInt64(&s.hits),
		Misses:  atomic.LoadInt64(&s.misses),
		Entries: s.lru.Len(),
	}
}

func (s *Store[V]) diskPath() string {
	return filepath.Join(s.dir, "cache.gob")
}

// SaveToDisk serializes all live entries to <dir>/cache.gob under an
// exclusive cross-process file lock (github.com/gofrs/flock, matching the
// teacher's internal/embed/lock.go pattern). A persistence failure is
// returned to the caller to log; it never corrupts in-memory state.
func (s *Store[V]) SaveToDisk() error {
	if s.dir == "" {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	lock := NewFileLock(s.dir)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache dir: %w", err)
	}
	defer lock.Unlock()

	s.mu.Lock()
	keys := s.lru.Keys()
	entries := make([]entry[V], 0, len(keys))
	for _, k := range keys {
		if v, ok := s.lru.Peek(k); ok {
			entries = append(entries, entry[V]{Key: k, Value: v})
		}
	}
	s.mu.Unlock()

	tmp := s.diskPath() + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create cache file: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(entries); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}
	return os.Rename(tmp, s.diskPath())
}

// LoadFromDisk reads <dir>/cache.gob and repopulates the cache, discarding
// anything beyond capacity via normal LRU eviction. If the file is absent
// this is a no-op. If the file is corrupt, the store is treated as empty
// (per §4.3's "never returned in corrupted form" invariant) and the error
// is returned for the caller to log, not raised as a hard failure.
func (s *Store[V]) LoadFromDisk() error {
	if s.dir == "" {
		return nil
	}

	lock := NewFileLock(s.dir)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("lock cache dir: %w", err)
	}
	defer lock.Unlock()

	f, err := os.Open(s.diskPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	var entries []entry[V]
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return &errors.CorruptIndexError{Path: s.diskPath(), Reason: err.Error()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.lru.Add(e.Key, e.Value)
	}
	return nil
}
