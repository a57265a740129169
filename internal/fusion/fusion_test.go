package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFuse_SingleSourceOrderingPreservesRank(t *testing.T) {
	exact := []Hit{
		{FileID: "a.go", LineRange: [2]int{1, 1}, Snippet: "first"},
		{FileID: "b.go", LineRange: [2]int{1, 1}, Snippet: "second"},
	}
	results := Fuse(exact, nil, nil, nil, DefaultWeights(), 10)
	require.Len(t, results, 2)
	assert.Equal(t, "a.go", results[0].FileID)
	assert.Greater(t, results[0].Score, results[1].Score)
	assert.Equal(t, SourceExact, results[0].Source)
}

func TestFuse_CollidingKeySumsScoresAndLabelsHybrid(t *testing.T) {
	exact := []Hit{{FileID: "a.go", LineRange: [2]int{1, 1}, Snippet: "shared snippet text"}}
	stat := []Hit{{FileID: "a.go", LineRange: [2]int{1, 1}, Snippet: "shared snippet text"}}

	results := Fuse(exact, stat, nil, nil, DefaultWeights(), 10)
	require.Len(t, results, 1)
	assert.Equal(t, SourceHybrid, results[0].Source)

	wantScore := DefaultWeights().Exact/float64(K+1) + DefaultWeights().Statistical/float64(K+1)
	assert.InEpsilon(t, wantScore, results[0].Score, 1e-9)
}

func TestFuse_ExactSuppressesOverlappingSemantic(t *testing.T) {
	exact := []Hit{{FileID: "a.go", LineRange: [2]int{10, 10}, Snippet: "exact hit"}}
	semantic := []Hit{{FileID: "a.go", LineRange: [2]int{8, 15}, Snippet: "overlapping semantic chunk"}}

	results := Fuse(exact, nil, semantic, nil, DefaultWeights(), 10)
	require.Len(t, results, 1)
	assert.Equal(t, SourceExact, results[0].Source)
}

func TestFuse_SymbolSuppressesOverlappingSemantic(t *testing.T) {
	symbol := []Hit{{FileID: "a.go", LineRange: [2]int{5, 5}, Snippet: "func Foo"}}
	semantic := []Hit{{FileID: "a.go", LineRange: [2]int{1, 20}, Snippet: "whole function body chunk"}}

	results := Fuse(nil, nil, semantic, symbol, DefaultWeights(), 10)
	require.Len(t, results, 1)
	assert.Equal(t, SourceSymbol, results[0].Source)
}

func TestFuse_NonOverlappingSemanticSurvives(t *testing.T) {
	exact := []Hit{{FileID: "a.go", LineRange: [2]int{10, 10}, Snippet: "exact hit"}}
	semantic := []Hit{{FileID: "a.go", LineRange: [2]int{50, 60}, Snippet: "distant semantic chunk"}}

	results := Fuse(exact, nil, semantic, nil, DefaultWeights(), 10)
	require.Len(t, results, 2)
}

func TestFuse_TieBreaksOnFileIDThenLine(t *testing.T) {
	// Identical scores come from three independent single-hit lists, each
	// contributing the same weight at rank 0, so the tie-break alone
	// decides ordering.
	results := Fuse(
		[]Hit{{FileID: "b.go", LineRange: [2]int{1, 1}, Snippet: "p"}},
		[]Hit{{FileID: "a.go", LineRange: [2]int{20, 20}, Snippet: "q"}},
		nil,
		[]Hit{{FileID: "a.go", LineRange: [2]int{5, 5}, Snippet: "r"}},
		Weights{Exact: 0.25, Statistical: 0.25, Semantic: 0.25, Symbol: 0.25},
		10,
	)
	require.Len(t, results, 3)
	assert.Equal(t, "a.go", results[0].FileID)
	assert.Equal(t, 5, results[0].LineRange[0])
	assert.Equal(t, "a.go", results[1].FileID)
	assert.Equal(t, 20, results[1].LineRange[0])
	assert.Equal(t, "b.go", results[2].FileID)
}

func TestFuse_TopKTruncates(t *testing.T) {
	var exact []Hit
	for i := 0; i < 30; i++ {
		exact = append(exact, Hit{FileID: "a.go", LineRange: [2]int{i, i}, Snippet: string(rune('a' + i))})
	}
	results := Fuse(exact, nil, nil, nil, DefaultWeights(), 0)
	assert.Len(t, results, DefaultTopK)
}

func TestFuse_EmptyInputsReturnEmpty(t *testing.T) {
	results := Fuse(nil, nil, nil, nil, DefaultWeights(), 10)
	assert.Empty(t, results)
}
