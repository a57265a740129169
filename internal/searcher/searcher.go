package searcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/latchkey-dev/hybridsearch/internal/bm25index"
	"github.com/latchkey-dev/hybridsearch/internal/cache"
	"github.com/latchkey-dev/hybridsearch/internal/chunk"
	"github.com/latchkey-dev/hybridsearch/internal/config"
	hsctx "github.com/latchkey-dev/hybridsearch/internal/context"
	"github.com/latchkey-dev/hybridsearch/internal/embed"
	"github.com/latchkey-dev/hybridsearch/internal/errors"
	"github.com/latchkey-dev/hybridsearch/internal/fusion"
	"github.com/latchkey-dev/hybridsearch/internal/logging"
	"github.com/latchkey-dev/hybridsearch/internal/metastore"
	"github.com/latchkey-dev/hybridsearch/internal/symbolindex"
	"github.com/latchkey-dev/hybridsearch/internal/telemetry"
	"github.com/latchkey-dev/hybridsearch/internal/textindex"
	"github.com/latchkey-dev/hybridsearch/internal/tokenize"
	"github.com/latchkey-dev/hybridsearch/internal/vectorindex"
)

const maxConcurrentEmbedCalls = 4

// UnifiedSearcher (C13) owns every index and cache's lifecycle and exposes
// the five caller-visible operations of §4.12/§6: index_file,
// index_directory, search, clear_index and stats, plus the MarkFileChanged/
// MarkFileRemoved watcher seam SPEC_FULL.md §4 adds. Grounded on the
// teacher's internal/search.Engine: the same constructor-with-functional-
// options shape, and its parallelSearch/fuseResults/enrichResults pipeline
// generalized from two sources to four.
type UnifiedSearcher struct {
	cfg config.Config

	chunker   *chunk.LineChunker
	tokenizer *tokenize.Tokenizer
	parser    *chunk.Parser
	extractor *chunk.SymbolExtractor
	languages *chunk.LanguageRegistry

	bm25    *bm25index.Index
	text    *textindex.TextIndex
	vector  *vectorindex.Index
	symbols *symbolindex.Index

	embedCache *cache.EmbeddingCache
	queryCache *cache.QueryCache[[]SearchResult]

	meta *metastore.Store

	embedder embed.Embedder
	embedSem chan struct{}

	chunksMu     sync.RWMutex
	chunksByFile map[string][]*chunk.Chunk

	expander *hsctx.Expander

	weights fusion.Weights
	topK    int

	breakers *errors.SourceBreakers

	metrics *telemetry.QueryMetrics

	textIndexPathOverride string
	logCleanup            func()
}

// Option configures a UnifiedSearcher at construction.
type Option func(*UnifiedSearcher)

// WithMetrics attaches a query-metrics recorder (§4.11).
func WithMetrics(m *telemetry.QueryMetrics) Option {
	return func(u *UnifiedSearcher) { u.metrics = m }
}

// WithTextIndexPath overrides the on-disk TextIndex location; by default
// New uses an in-memory index. Must be passed before any indexing call.
func WithTextIndexPath(path string) Option {
	return func(u *UnifiedSearcher) { u.textIndexPathOverride = path }
}

// WithLogging enables structured file-based logging (internal/logging) for
// the lifetime of this searcher: every index-write failure, cache
// persistence failure and corrupt-index rebuild (§7 of spec.md) then
// surfaces through cfg's sink instead of whatever the process-wide default
// slog handler happens to be. The returned cleanup is invoked by Close.
func WithLogging(cfg logging.Config) Option {
	return func(u *UnifiedSearcher) {
		logger, cleanup, err := logging.Setup(cfg)
		if err != nil {
			slog.Warn("searcher_logging_setup_failed", "error", err.Error())
			return
		}
		slog.SetDefault(logger)
		u.logCleanup = cleanup
	}
}

// New constructs a UnifiedSearcher from cfg, a caller-supplied Embedder
// (constructor-injected per §5's open-question decision, never a package
// singleton) and a metastore path (empty for in-memory). Every owned index
// is freshly created; callers wanting persisted state across restarts are
// expected to layer that on top via each index's own Save/Load (not this
// package's concern).
func New(cfg config.Config, embedder embed.Embedder, metaPath string, opts ...Option) (*UnifiedSearcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("searcher: invalid config: %w", err)
	}

	u := &UnifiedSearcher{
		cfg:          cfg,
		embedder:     embedder,
		embedSem:     make(chan struct{}, maxConcurrentEmbedCalls),
		chunksByFile: make(map[string][]*chunk.Chunk),
		topK:         cfg.TopK,
		weights: fusion.Weights{
			Exact:       cfg.FusionWeights["exact"],
			Statistical: cfg.FusionWeights["statistical"],
			Semantic:    cfg.FusionWeights["semantic"],
			Symbol:      cfg.FusionWeights["symbol"],
		},
		breakers: errors.NewSourceBreakers(),
	}
	for _, opt := range opts {
		opt(u)
	}

	meta, rebuilt, err := metastore.Open(context.Background(), metaPath)
	if err != nil {
		return nil, fmt.Errorf("searcher: open metastore: %w", err)
	}
	if rebuilt {
		slog.Warn("searcher_metastore_rebuilt", "path", metaPath)
	}
	u.meta = meta

	text, err := textindex.New(u.textIndexPathOverride)
	if err != nil {
		return nil, fmt.Errorf("searcher: open text index: %w", err)
	}
	u.text = text

	u.bm25 = bm25index.New(bm25index.Config{K1: cfg.BM25K1, B: cfg.BM25B})
	u.vector = vectorindex.New(cfg.EmbeddingDim)
	u.symbols = symbolindex.New()

	u.tokenizer = tokenize.New(tokenize.Options{
		MinTermLength:  cfg.BM25MinTermLength,
		MaxTermLength:  cfg.BM25MaxTermLength,
		StopWords:      tokenize.BuildStopWordMap(cfg.BM25StopWords),
		EnableStemming: cfg.EnableStemming,
		EnableNgrams:   cfg.EnableNgrams,
		MaxNgramSize:   cfg.MaxNgramSize,
	})

	u.chunker = chunk.NewLineChunker(cfg.ChunkSize, cfg.ChunkOverlap, cfg.MaxFileSize)
	u.languages = chunk.DefaultRegistry()
	u.parser = chunk.NewParserWithRegistry(u.languages)
	u.extractor = chunk.NewSymbolExtractorWithRegistry(u.languages)

	u.embedCache = cache.NewEmbeddingCache(cfg.EmbeddingCacheSize, time.Duration(cfg.EmbeddingCacheTTLS)*time.Second, "")
	u.queryCache = cache.NewQueryCache[[]SearchResult](cfg.SearchCacheSize, time.Duration(cfg.SearchCacheTTLS)*time.Second)

	u.expander = hsctx.New(chunksByFileAdapter{u})

	return u, nil
}

// chunksByFileAdapter satisfies internal/context's ChunkStore without
// exporting UnifiedSearcher's internal locking on that interface directly.
type chunksByFileAdapter struct{ u *UnifiedSearcher }

func (a chunksByFileAdapter) ChunksForFile(fileID string) []*chunk.Chunk {
	return a.u.chunksForFile(fileID)
}

func (u *UnifiedSearcher) chunksForFile(fileID string) []*chunk.Chunk {
	u.chunksMu.RLock()
	defer u.chunksMu.RUnlock()
	return u.chunksByFile[fileID]
}

// Close releases every owned resource that holds one (on-disk text index
// segment, metastore connection, embedder).
func (u *UnifiedSearcher) Close() error {
	var errs []error
	if err := u.text.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := u.meta.Close(); err != nil {
		errs = append(errs, err)
	}
	if u.embedder != nil {
		if err := u.embedder.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if u.logCleanup != nil {
		u.logCleanup()
	}
	return stderrors.Join(errs...)
}

func snippetOf(content string) string {
	const maxSnippet = 500
	r := []rune(content)
	if len(r) <= maxSnippet {
		return content
	}
	return string(r[:maxSnippet])
}

func isValidUTF8(content []byte) bool {
	return utf8.Valid(content)
}
