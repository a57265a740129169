// Package fusion implements Fusion (C9): weighted Reciprocal Rank Fusion
// over the four retrieval sources, per spec.md §4.8. Generalizes the
// teacher's two-source internal/search/fusion.go RRFFusion (same RRF core,
// same deterministic sorted-slice/tie-break construction) to four weighted
// sources with dedup-by-snippet-prefix and exact/symbol dominance over
// overlapping semantic hits.
package fusion

import "sort"

// K is the RRF smoothing constant (§4.8).
const K = 60

// Source labels a FusedResult's contributing retrieval source(s).
type Source string

const (
	SourceExact       Source = "Exact"
	SourceStatistical Source = "Statistical"
	SourceSemantic    Source = "Semantic"
	SourceSymbol      Source = "Symbol"
	SourceHybrid      Source = "Hybrid"
)

// Weights are the per-source RRF weights (§4.8 defaults).
type Weights struct {
	Exact       float64
	Statistical float64
	Semantic    float64
	Symbol      float64
}

// DefaultWeights returns the spec's default weighting.
func DefaultWeights() Weights {
	return Weights{Exact: 0.40, Statistical: 0.25, Semantic: 0.25, Symbol: 0.10}
}

// DefaultTopK is the default number of fused results returned (§4.8).
const DefaultTopK = 20

// Hit is one ranked retrieval-source result, already in list order (rank 0
// is the best match within that source).
type Hit struct {
	FileID     string
	ChunkIndex int
	LineRange  [2]int
	Snippet    string
	Language   string
}

// FusedResult is one entry of the fused output (§4.8's FusedResult).
type FusedResult struct {
	FileID     string
	ChunkIndex int
	LineRange  [2]int
	Snippet    string
	Language   string
	Score      float64
	Source     Source
}

type accumulator struct {
	result  *FusedResult
	sources map[Source]struct{}
}

// Fuse combines the four ranked source lists into one ordered list,
// truncated to topK (DefaultTopK if topK <= 0).
func Fuse(exact, statistical, semantic, symbol []Hit, weights Weights, topK int) []*FusedResult {
	if topK <= 0 {
		topK = DefaultTopK
	}

	dominance := dominanceRanges(exact, symbol)
	filteredSemantic := suppressOverlapping(semantic, dominance)

	accum := make(map[string]*accumulator)
	contribute(accum, exact, weights.Exact, SourceExact)
	contribute(accum, statistical, weights.Statistical, SourceStatistical)
	contribute(accum, filteredSemantic, weights.Semantic, SourceSemantic)
	contribute(accum, symbol, weights.Symbol, SourceSymbol)

	results := make([]*FusedResult, 0, len(accum))
	for _, a := range accum {
		if len(a.sources) > 1 {
			a.result.Source = SourceHybrid
		} else {
			for s := range a.sources {
				a.result.Source = s
			}
		}
		results = append(results, a.result)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		if results[i].FileID != results[j].FileID {
			return results[i].FileID < results[j].FileID
		}
		return results[i].LineRange[0] < results[j].LineRange[0]
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results
}

// dedupKey is (file_id, first 50 bytes of snippet), per §4.8.
func dedupKey(fileID, snippet string) string {
	cut := snippet
	if len(cut) > 50 {
		cut = cut[:50]
	}
	return fileID + "\x00" + cut
}

func contribute(accum map[string]*accumulator, hits []Hit, weight float64, source Source) {
	for rank, h := range hits {
		key := dedupKey(h.FileID, h.Snippet)
		a, ok := accum[key]
		if !ok {
			a = &accumulator{
				result: &FusedResult{
					FileID:     h.FileID,
					ChunkIndex: h.ChunkIndex,
					LineRange:  h.LineRange,
					Snippet:    h.Snippet,
					Language:   h.Language,
				},
				sources: make(map[Source]struct{}),
			}
			accum[key] = a
		}
		a.result.Score += weight / float64(K+rank+1)
		a.sources[source] = struct{}{}
	}
}

// dominanceRanges collects, per file, the line ranges of exact and symbol
// hits — sources that dominate overlapping semantic hits (§4.8).
func dominanceRanges(exact, symbol []Hit) map[string][][2]int {
	ranges := make(map[string][][2]int)
	for _, h := range exact {
		ranges[h.FileID] = append(ranges[h.FileID], h.LineRange)
	}
	for _, h := range symbol {
		ranges[h.FileID] = append(ranges[h.FileID], h.LineRange)
	}
	return ranges
}

func suppressOverlapping(semantic []Hit, dominance map[string][][2]int) []Hit {
	filtered := make([]Hit, 0, len(semantic))
	for _, h := range semantic {
		if overlapsAny(h.LineRange, dominance[h.FileID]) {
			continue
		}
		filtered = append(filtered, h)
	}
	return filtered
}

func overlapsAny(r [2]int, others [][2]int) bool {
	for _, o := range others {
		if r[0] <= o[1] && o[0] <= r[1] {
			return true
		}
	}
	return false
}
