package bm25index

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchkey-dev/hybridsearch/internal/chunk"
)

func doc(fileID string, idx int, terms ...WeightedTerm) *Document {
	return &Document{
		DocID:     chunk.DocID{FileID: fileID, Index: idx},
		FileID:    fileID,
		LineRange: [2]int{1, 10},
		Snippet:   fileID,
		Terms:     terms,
	}
}

func wt(text string, line int) WeightedTerm {
	return WeightedTerm{Text: text, Line: line, Weight: 1.0}
}

func TestBM25_ClosedFormScoreMatchesFormula(t *testing.T) {
	// N=3, df(t)=2: two of three docs contain "foo".
	idx := New(DefaultConfig())
	require.NoError(t, idx.AddDocument(doc("a.go", 0, wt("foo", 1), wt("bar", 1))))
	require.NoError(t, idx.AddDocument(doc("b.go", 0, wt("foo", 1), wt("baz", 1), wt("qux", 1))))
	require.NoError(t, idx.AddDocument(doc("c.go", 0, wt("bar", 1))))

	matches := idx.Search([]string{"foo"}, 10)
	require.Len(t, matches, 2)

	avgLen := idx.avgLength()
	k1, b := DefaultConfig().K1, DefaultConfig().B
	wantIDF := math.Log((3 - 2 + 0.5) / (2 + 0.5))

	for _, m := range matches {
		var docLen float64
		if m.DocID.FileID == "a.go" {
			docLen = 2
		} else {
			docLen = 3
		}
		f := 1.0 // weighted tf of "foo" in each doc
		want := wantIDF * (f * (k1 + 1)) / (f + k1*(1-b+b*docLen/avgLen))
		assert.InEpsilon(t, want, m.Score, 1e-6)
	}
}

func TestBM25_IDFMonotonicity(t *testing.T) {
	idx := New(DefaultConfig())
	require.NoError(t, idx.AddDocument(doc("a.go", 0, wt("common", 1), wt("rare", 1))))
	require.NoError(t, idx.AddDocument(doc("b.go", 0, wt("common", 1))))
	require.NoError(t, idx.AddDocument(doc("c.go", 0, wt("common", 1))))

	idfRare := idx.idf("rare")
	idfCommon := idx.idf("common")
	assert.Greater(t, idfRare, idfCommon)
}

func TestBM25_TieBreakOnFileIDThenChunkIndex(t *testing.T) {
	idx := New(DefaultConfig())
	// Identical term frequencies and doc lengths produce identical scores.
	require.NoError(t, idx.AddDocument(doc("b.go", 1, wt("same", 1))))
	require.NoError(t, idx.AddDocument(doc("a.go", 2, wt("same", 1))))
	require.NoError(t, idx.AddDocument(doc("a.go", 1, wt("same", 1))))

	matches := idx.Search([]string{"same"}, 10)
	require.Len(t, matches, 3)
	assert.Equal(t, "a.go", matches[0].DocID.FileID)
	assert.Equal(t, 1, matches[0].DocID.Index)
	assert.Equal(t, "a.go", matches[1].DocID.FileID)
	assert.Equal(t, 2, matches[1].DocID.Index)
	assert.Equal(t, "b.go", matches[2].DocID.FileID)
}

func TestBM25_ReindexReplacesDocument(t *testing.T) {
	idx := New(DefaultConfig())
	id := chunk.DocID{FileID: "a.go", Index: 0}
	require.NoError(t, idx.AddDocument(&Document{DocID: id, FileID: "a.go", Terms: []WeightedTerm{wt("old", 1)}}))
	require.NoError(t, idx.AddDocument(&Document{DocID: id, FileID: "a.go", Terms: []WeightedTerm{wt("new", 1)}}))

	assert.Equal(t, 1, idx.Count())
	assert.Empty(t, idx.Search([]string{"old"}, 10))
	assert.Len(t, idx.Search([]string{"new"}, 10), 1)
}

func TestBM25_RemoveByFileDeletesAllItsDocuments(t *testing.T) {
	idx := New(DefaultConfig())
	require.NoError(t, idx.AddDocument(doc("a.go", 0, wt("x", 1))))
	require.NoError(t, idx.AddDocument(doc("a.go", 1, wt("x", 1))))
	require.NoError(t, idx.AddDocument(doc("b.go", 0, wt("x", 1))))

	idx.RemoveByFile("a.go")
	assert.Equal(t, 1, idx.Count())
	matches := idx.Search([]string{"x"}, 10)
	require.Len(t, matches, 1)
	assert.Equal(t, "b.go", matches[0].DocID.FileID)
}

func TestBM25_EmptyIndexReturnsNoMatches(t *testing.T) {
	idx := New(DefaultConfig())
	assert.Empty(t, idx.Search([]string{"anything"}, 10))
}

func TestBM25_SaveLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	idx := New(DefaultConfig())
	require.NoError(t, idx.AddDocument(doc("a.go", 0, wt("hello", 1))))

	path := dir + "/bm25.gob"
	require.NoError(t, idx.Save(path))

	loaded := New(DefaultConfig())
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, 1, loaded.Count())
	assert.Len(t, loaded.Search([]string{"hello"}, 10), 1)
}

func TestBM25_LoadRejectsSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	idx := New(DefaultConfig())
	require.NoError(t, idx.AddDocument(doc("a.go", 0, wt("hello", 1))))
	path := dir + "/bm25.gob"
	require.NoError(t, idx.Save(path))

	// Corrupt the schema version by re-saving through a forged snapshot.
	forged := snapshot{SchemaVersion: snapshotSchemaVersion + 1}
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, gobEncode(f, forged))
	require.NoError(t, f.Close())

	loaded := New(DefaultConfig())
	err = loaded.Load(path)
	require.Error(t, err)
}
