package searcher

import (
	"context"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	hsctx "github.com/latchkey-dev/hybridsearch/internal/context"
	"github.com/latchkey-dev/hybridsearch/internal/errors"
	"github.com/latchkey-dev/hybridsearch/internal/fusion"
	"github.com/latchkey-dev/hybridsearch/internal/rerank"
	"github.com/latchkey-dev/hybridsearch/internal/telemetry"
)

const sourceFanoutMultiplier = 3

// Search runs query against every retrieval source in parallel, fuses the
// ranked lists via weighted RRF, reranks, expands each hit's context window
// and returns the result, consulting and (on a completed, uncancelled
// search) populating the query cache. Grounded on the teacher's
// internal/search/engine.go parallelSearch (errgroup-based fan-out with
// independent per-source error capture) generalized from two sources to
// four, with a circuit breaker (§4 ambient resilience pattern) guarding
// each.
func (u *UnifiedSearcher) Search(ctx context.Context, query string) ([]SearchResult, error) {
	start := time.Now()

	if cached, ok := u.queryCache.Get(query); ok {
		return cached, nil
	}

	k := u.topK * sourceFanoutMultiplier
	if k <= 0 {
		k = fusion.DefaultTopK * sourceFanoutMultiplier
	}

	var exactHits, statHits, semanticHits, symbolHits []fusion.Hit
	var exactErr, statErr, semanticErr, symbolErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		exactHits, exactErr = u.runSource(fusion.SourceExact, func() ([]fusion.Hit, error) {
			return u.searchExact(gctx, query, k)
		})
		return nil
	})
	g.Go(func() error {
		statHits, statErr = u.runSource(fusion.SourceStatistical, func() ([]fusion.Hit, error) {
			return u.searchStatistical(query, k)
		})
		return nil
	})
	g.Go(func() error {
		semanticHits, semanticErr = u.runSource(fusion.SourceSemantic, func() ([]fusion.Hit, error) {
			return u.searchSemantic(gctx, query, k)
		})
		return nil
	})
	g.Go(func() error {
		symbolHits, symbolErr = u.runSource(fusion.SourceSymbol, func() ([]fusion.Hit, error) {
			return u.searchSymbol(query, k)
		})
		return nil
	})
	_ = g.Wait() // the per-source goroutines never return a non-nil error themselves

	if ctx.Err() != nil {
		// Cancelled mid-flight: return whatever sources completed, but never
		// populate the query cache with a possibly-incomplete result (P10).
		fused := fusion.Fuse(exactHits, statHits, semanticHits, symbolHits, u.weights, u.topK)
		return u.expandResults(rerank.Rerank(query, fused)), nil
	}

	if exactErr != nil && statErr != nil && semanticErr != nil && symbolErr != nil {
		return nil, &errors.BackendUnavailableError{Source: "all"}
	}

	fused := fusion.Fuse(exactHits, statHits, semanticHits, symbolHits, u.weights, u.topK)
	reranked := rerank.Rerank(query, fused)
	results := u.expandResults(reranked)

	u.queryCache.Insert(query, results)

	if u.metrics != nil {
		u.metrics.Record(telemetry.QueryEvent{
			Query:       query,
			QueryType:   classifyQuery(exactHits, statHits, semanticHits, symbolHits),
			ResultCount: len(results),
			Latency:     time.Since(start),
			Timestamp:   start,
		})
	}

	return results, nil
}

// runSource executes fn guarded by the circuit breaker for source, recording
// success/failure so a persistently failing backend is skipped (fails fast)
// until its reset timeout elapses. The breaker-to-BackendUnavailableError
// translation lives in errors.GuardSource, not here.
func (u *UnifiedSearcher) runSource(source fusion.Source, fn func() ([]fusion.Hit, error)) ([]fusion.Hit, error) {
	hits, err := errors.GuardSource(u.breakers, source, fn)
	if err != nil && u.metrics != nil {
		u.metrics.RecordSourceFailure(source)
	}
	return hits, err
}

func (u *UnifiedSearcher) searchExact(ctx context.Context, query string, k int) ([]fusion.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil
	}
	matches, err := u.text.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	hits := make([]fusion.Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, fusion.Hit{
			FileID:     m.FileID,
			ChunkIndex: -1,
			LineRange:  [2]int{m.LineNumber, m.LineNumber},
			Snippet:    m.Content,
		})
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (u *UnifiedSearcher) searchStatistical(query string, k int) ([]fusion.Hit, error) {
	tokens := u.tokenizer.Tokenize(query, "")
	terms := make([]string, 0, len(tokens))
	for _, t := range tokens {
		terms = append(terms, t.Text)
	}
	matches := u.bm25.Search(terms, k)
	hits := make([]fusion.Hit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, fusion.Hit{
			FileID:     m.DocID.FileID,
			ChunkIndex: m.DocID.Index,
			LineRange:  m.LineRange,
			Snippet:    m.Snippet,
		})
	}
	return hits, nil
}

func (u *UnifiedSearcher) searchSemantic(ctx context.Context, query string, k int) ([]fusion.Hit, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil
	}
	vec, err := u.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := u.vector.Search(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	hits := make([]fusion.Hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, fusion.Hit{
			FileID:     r.FileID,
			ChunkIndex: r.ChunkIndex,
			LineRange:  r.LineRange,
			Snippet:    snippetOf(r.Content),
		})
	}
	return hits, nil
}

// searchSymbol treats each whitespace-separated query token as a candidate
// identifier name (§4.7's symbol source is a flat name lookup, not a parser
// over the query string).
func (u *UnifiedSearcher) searchSymbol(query string, k int) ([]fusion.Hit, error) {
	var hits []fusion.Hit
	seen := make(map[string]struct{})
	for _, tok := range strings.Fields(query) {
		for _, s := range u.symbols.FindAllReferences(tok) {
			key := s.FileID + "#" + strconv.Itoa(s.StartLine)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			hits = append(hits, fusion.Hit{
				FileID:     s.FileID,
				ChunkIndex: -1,
				LineRange:  [2]int{s.StartLine, s.EndLine},
				Snippet:    s.Signature,
				Language:   s.Language,
			})
		}
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// expandResults maps each fused/reranked hit to its three-chunk context
// window, preferring a direct chunk_index lookup and falling back to a
// line-based lookup for line-addressed (exact/symbol) hits.
func (u *UnifiedSearcher) expandResults(fused []*fusion.FusedResult) []SearchResult {
	out := make([]SearchResult, 0, len(fused))
	for _, r := range fused {
		window, ok := u.windowFor(r)
		if !ok {
			continue
		}
		out = append(out, SearchResult{
			FileID: r.FileID,
			Prev:   window.Prev,
			Target: window.Target,
			Next:   window.Next,
			Score:  r.Score,
			Source: r.Source,
		})
	}
	return out
}

func (u *UnifiedSearcher) windowFor(r *fusion.FusedResult) (hsctx.Window, bool) {
	if r.ChunkIndex >= 0 {
		for _, c := range u.chunksForFile(r.FileID) {
			if c.Index == r.ChunkIndex {
				return u.expander.ExpandChunk(c), true
			}
		}
	}
	return u.expander.ExpandLine(r.FileID, r.LineRange[0])
}

// classifyQuery tags a completed search by which single source answered it,
// or Hybrid when more than one (the common case, since every query fans out
// to all four sources) or none did.
func classifyQuery(exact, stat, semantic, symbol []fusion.Hit) telemetry.QueryType {
	contributors := 0
	var only telemetry.QueryType
	if len(exact) > 0 {
		contributors++
		only = telemetry.QueryTypeExact
	}
	if len(stat) > 0 {
		contributors++
		only = telemetry.QueryTypeStatistical
	}
	if len(semantic) > 0 {
		contributors++
		only = telemetry.QueryTypeSemantic
	}
	if len(symbol) > 0 {
		contributors++
		only = telemetry.QueryTypeSymbol
	}
	if contributors == 1 {
		return only
	}
	return telemetry.QueryTypeHybrid
}
