// Package searcher implements the UnifiedSearcher (C13): the orchestrator
// that owns the lifecycles of every index and cache (C3-C12) and exposes
// the caller-visible Searcher API of spec.md §6 (search/index_file/
// index_directory/clear_index/stats). Grounded on the teacher's
// internal/search/engine.go Engine (parallel fan-out via
// golang.org/x/sync/errgroup, parallelSearch/fuseResults/enrichResults
// pipeline shape, EngineOption functional options), generalized from two
// retrieval sources to spec.md's four plus the symbol source the teacher
// lacks entirely.
package searcher

import (
	"github.com/latchkey-dev/hybridsearch/internal/chunk"
	"github.com/latchkey-dev/hybridsearch/internal/fusion"
)

// SearchResult is the caller-visible hit (§3's SearchResult): a file plus
// its three-chunk context window, the fused/reranked score, and which
// retrieval source(s) produced it.
type SearchResult struct {
	FileID string
	Prev   *chunk.Chunk
	Target *chunk.Chunk
	Next   *chunk.Chunk
	Score  float64
	Source fusion.Source
}

// IndexStats is index_directory's return value (§4.12).
type IndexStats struct {
	FilesIndexed  int
	ChunksCreated int
	Errors        int
}

// SearcherStats is stats()'s return value (§6), aggregating inventory
// counts and cache hit rates across every owned index.
type SearcherStats struct {
	FilesIndexed        int
	ChunksIndexed       int
	SymbolsIndexed      int
	BM25Documents       int
	VectorRecords       int
	EmbeddingCacheStats CacheStats
	QueryCacheStats     CacheStats
}

// CacheStats mirrors internal/cache.Stats without importing internal/cache
// into this package's public surface.
type CacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
	HitRate float64
}
