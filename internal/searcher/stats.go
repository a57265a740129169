package searcher

import (
	"context"

	"github.com/latchkey-dev/hybridsearch/internal/cache"
	"github.com/latchkey-dev/hybridsearch/internal/chunk"
)

// Stats aggregates inventory counts and cache hit rates across every owned
// index and cache (§6 "stats").
func (u *UnifiedSearcher) Stats(ctx context.Context) (*SearcherStats, error) {
	counts, err := u.meta.Counts(ctx)
	if err != nil {
		return nil, err
	}

	return &SearcherStats{
		FilesIndexed:        counts.Files,
		ChunksIndexed:       counts.Chunks,
		SymbolsIndexed:      counts.Symbols,
		BM25Documents:       u.bm25.Count(),
		VectorRecords:       u.vector.Count(),
		EmbeddingCacheStats: toCacheStats(u.embedCache.Stats()),
		QueryCacheStats:     toCacheStats(u.queryCache.Stats()),
	}, nil
}

// ClearIndex empties every owned index and cache, returning the searcher to
// its freshly-constructed state (§4.12 "clear_index").
func (u *UnifiedSearcher) ClearIndex(ctx context.Context) error {
	u.bm25.Clear()
	u.text.Clear()
	u.vector.Clear()
	u.symbols.Clear()
	u.embedCache.Clear()
	u.queryCache.Clear()

	u.chunksMu.Lock()
	u.chunksByFile = make(map[string][]*chunk.Chunk)
	u.chunksMu.Unlock()

	return u.meta.Clear(ctx)
}

func toCacheStats(s cache.Stats) CacheStats {
	return CacheStats{Hits: s.Hits, Misses: s.Misses, Entries: s.Entries, HitRate: s.HitRate()}
}
