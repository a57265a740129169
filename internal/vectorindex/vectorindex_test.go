package vectorindex

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchkey-dev/hybridsearch/internal/errors"
)

func unit(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := float32(math.Sqrt(sum))
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / norm
	}
	return out
}

func TestVectorIndex_InsertRejectsDimensionMismatch(t *testing.T) {
	idx := New(4)
	err := idx.Insert(Record{ID: "a", Embedding: []float32{1, 2, 3}})
	require.Error(t, err)
	var dimErr *errors.DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)
}

func TestVectorIndex_InsertRejectsNonFiniteEmbedding(t *testing.T) {
	idx := New(3)
	err := idx.Insert(Record{ID: "a", Embedding: []float32{1, float32(math.NaN()), 0}})
	require.Error(t, err)
	var invalidErr *errors.InvalidEmbeddingError
	assert.ErrorAs(t, err, &invalidErr)
}

func TestVectorIndex_SearchRanksByCosineSimilarityDescending(t *testing.T) {
	idx := New(3)
	require.NoError(t, idx.Insert(Record{ID: "close", FileID: "a.go", Embedding: unit([]float32{1, 0, 0})}))
	require.NoError(t, idx.Insert(Record{ID: "far", FileID: "b.go", Embedding: unit([]float32{0, 1, 0})}))
	require.NoError(t, idx.Insert(Record{ID: "mid", FileID: "c.go", Embedding: unit([]float32{0.7, 0.7, 0})}))

	results, err := idx.Search(context.Background(), unit([]float32{1, 0, 0}), 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "close", results[0].ID)
	assert.Equal(t, "far", results[2].ID)
}

func TestVectorIndex_SearchTieBreaksOnLexicographicID(t *testing.T) {
	idx := New(2)
	v := unit([]float32{1, 1})
	require.NoError(t, idx.Insert(Record{ID: "zeta", Embedding: v}))
	require.NoError(t, idx.Insert(Record{ID: "alpha", Embedding: v}))

	results, err := idx.Search(context.Background(), v, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].ID)
	assert.Equal(t, "zeta", results[1].ID)
}

func TestVectorIndex_DeleteByFileRemovesOnlyThatFile(t *testing.T) {
	idx := New(2)
	v := unit([]float32{1, 0})
	require.NoError(t, idx.Insert(Record{ID: "a1", FileID: "a.go", Embedding: v}))
	require.NoError(t, idx.Insert(Record{ID: "a2", FileID: "a.go", Embedding: v}))
	require.NoError(t, idx.Insert(Record{ID: "b1", FileID: "b.go", Embedding: v}))

	idx.DeleteByFile("a.go")
	assert.Equal(t, 1, idx.Count())

	results, err := idx.Search(context.Background(), v, 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b1", results[0].ID)
}

func TestVectorIndex_ReinsertSameIDReplaces(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Insert(Record{ID: "a", FileID: "f.go", Embedding: unit([]float32{1, 0})}))
	require.NoError(t, idx.Insert(Record{ID: "a", FileID: "f.go", Embedding: unit([]float32{0, 1})}))

	assert.Equal(t, 1, idx.Count())
	results, err := idx.Search(context.Background(), unit([]float32{0, 1}), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0, results[0].Score, 1e-5)
}

func TestVectorIndex_BuildIndexRefusesBelowThreshold(t *testing.T) {
	idx := New(2)
	for i := 0; i < 50; i++ {
		require.NoError(t, idx.Insert(Record{ID: fmt.Sprintf("r%d", i), Embedding: unit([]float32{1, float32(i)})}))
	}

	err := idx.BuildIndex()
	require.Error(t, err)
	var insufficient *errors.InsufficientRecordsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, 50, insufficient.Available)
	assert.Equal(t, 100, insufficient.Required)

	// Flat scan still works below the threshold.
	results, err := idx.Search(context.Background(), unit([]float32{1, 0}), 5)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestVectorIndex_BuildIndexSucceedsAtThreshold(t *testing.T) {
	idx := New(2)
	for i := 0; i < 100; i++ {
		require.NoError(t, idx.Insert(Record{ID: fmt.Sprintf("r%d", i), Embedding: unit([]float32{1, float32(i)})}))
	}

	require.NoError(t, idx.BuildIndex())

	results, err := idx.Search(context.Background(), unit([]float32{1, 0}), 5)
	require.NoError(t, err)
	assert.Len(t, results, 5)
}

func TestVectorIndex_ClearRemovesEverything(t *testing.T) {
	idx := New(2)
	require.NoError(t, idx.Insert(Record{ID: "a", Embedding: unit([]float32{1, 0})}))
	idx.Clear()
	assert.Equal(t, 0, idx.Count())
}

func TestVectorIndex_SaveLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	idx := New(2)
	require.NoError(t, idx.Insert(Record{ID: "a", FileID: "f.go", Embedding: unit([]float32{1, 0})}))

	path := filepath.Join(dir, "vec.gob")
	require.NoError(t, idx.Save(path))

	loaded := New(2)
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 1, loaded.Count())
}

func TestVectorIndex_LoadRejectsDimensionMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := New(2)
	require.NoError(t, idx.Insert(Record{ID: "a", Embedding: unit([]float32{1, 0})}))
	path := filepath.Join(dir, "vec.gob")
	require.NoError(t, idx.Save(path))

	loaded := New(3)
	err := loaded.Load(path)
	require.Error(t, err)
	var corrupt *errors.CorruptIndexError
	assert.ErrorAs(t, err, &corrupt)
}

func TestVectorIndex_EmptyIndexSearchReturnsEmpty(t *testing.T) {
	idx := New(2)
	results, err := idx.Search(context.Background(), unit([]float32{1, 0}), 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}
