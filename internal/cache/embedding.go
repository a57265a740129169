package cache

import "time"

// EmbeddingEntry is the value stored per content hash (§4.3).
type EmbeddingEntry struct {
	Embedding   []float32
	Timestamp   time.Time
	ContentHash string
}

// EmbeddingCache implements C3: a content-hash-keyed cache of embeddings.
type EmbeddingCache struct {
	store *Store[EmbeddingEntry]
}

// NewEmbeddingCache creates an EmbeddingCache with the given capacity, TTL
// (0 disables expiry) and optional persistence directory.
func NewEmbeddingCache(capacity int, ttl time.Duration, dir string) *EmbeddingCache {
	return &EmbeddingCache{store: New[EmbeddingEntry](capacity, ttl, dir)}
}

// Get returns the cached embedding for text, or ok=false on absence or
// expiration.
func (c *EmbeddingCache) Get(text string) ([]float32, bool) {
	entry, ok := c.store.Get(KeyOf(text))
	if !ok {
		return nil, false
	}
	return entry.Embedding, true
}

// Put stores the embedding for text, stamping the current time and content
// hash.
func (c *EmbeddingCache) Put(text string, vec []float32) {
	key := KeyOf(text)
	c.store.Put(key, EmbeddingEntry{
		Embedding:   vec,
		Timestamp:   time.Now(),
		ContentHash: key,
	})
}

// GetBatch looks up multiple texts at once.
func (c *EmbeddingCache) GetBatch(texts []string) (map[string][]float32, []string) {
	found := make(map[string][]float32, len(texts))
	var missing []string
	for _, text := range texts {
		if vec, ok := c.Get(text); ok {
			found[text] = vec
		} else {
			missing = append(missing, text)
		}
	}
	return found, missing
}

// PutBatch stores multiple text/embedding pairs.
func (c *EmbeddingCache) PutBatch(entries map[string][]float32) {
	for text, vec := range entries {
		c.Put(text, vec)
	}
}

// Clear removes every entry.
func (c *EmbeddingCache) Clear() { c.store.Clear() }

// Stats returns hit/miss counters and hit rate.
func (c *EmbeddingCache) Stats() Stats { return c.store.Stats() }

// SaveToDisk persists all live entries. Persistence failures are returned
// for the caller to log; they never abort the embedding path.
func (c *EmbeddingCache) SaveToDisk() error { return c.store.SaveToDisk() }

// LoadFromDisk repopulates the cache from a prior SaveToDisk. A corrupt or
// missing file leaves the cache empty rather than erroring hard.
func (c *EmbeddingCache) LoadFromDisk() error { return c.store.LoadFromDisk() }
