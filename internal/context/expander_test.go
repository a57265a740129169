package context_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchkey-dev/hybridsearch/internal/chunk"
	hsctx "github.com/latchkey-dev/hybridsearch/internal/context"
)

type fakeStore struct {
	byFile map[string][]*chunk.Chunk
}

func (f *fakeStore) ChunksForFile(fileID string) []*chunk.Chunk { return f.byFile[fileID] }

func threeChunks() []*chunk.Chunk {
	return []*chunk.Chunk{
		{FileID: "a.go", Index: 0, StartLine: 1, EndLine: 10},
		{FileID: "a.go", Index: 1, StartLine: 8, EndLine: 20},
		{FileID: "a.go", Index: 2, StartLine: 18, EndLine: 30},
	}
}

func TestExpandChunk_Middle(t *testing.T) {
	chunks := threeChunks()
	store := &fakeStore{byFile: map[string][]*chunk.Chunk{"a.go": chunks}}
	e := hsctx.New(store)

	w := e.ExpandChunk(chunks[1])
	require.NotNil(t, w.Target)
	assert.Equal(t, 1, w.Target.Index)
	require.NotNil(t, w.Prev)
	assert.Equal(t, 0, w.Prev.Index)
	require.NotNil(t, w.Next)
	assert.Equal(t, 2, w.Next.Index)
}

func TestExpandChunk_First(t *testing.T) {
	chunks := threeChunks()
	store := &fakeStore{byFile: map[string][]*chunk.Chunk{"a.go": chunks}}
	e := hsctx.New(store)

	w := e.ExpandChunk(chunks[0])
	assert.Nil(t, w.Prev)
	require.NotNil(t, w.Next)
}

func TestExpandChunk_Last(t *testing.T) {
	chunks := threeChunks()
	store := &fakeStore{byFile: map[string][]*chunk.Chunk{"a.go": chunks}}
	e := hsctx.New(store)

	w := e.ExpandChunk(chunks[2])
	assert.Nil(t, w.Next)
	require.NotNil(t, w.Prev)
}

func TestExpandLine_OverlapFavorsEarlierChunk(t *testing.T) {
	chunks := threeChunks()
	store := &fakeStore{byFile: map[string][]*chunk.Chunk{"a.go": chunks}}
	e := hsctx.New(store)

	// line 9 is in both chunk 0 (1-10) and chunk 1 (8-20)'s overlap.
	w, ok := e.ExpandLine("a.go", 9)
	require.True(t, ok)
	assert.Equal(t, 0, w.Target.Index)
}

func TestExpandLine_NotFound(t *testing.T) {
	store := &fakeStore{byFile: map[string][]*chunk.Chunk{}}
	e := hsctx.New(store)

	_, ok := e.ExpandLine("missing.go", 1)
	assert.False(t, ok)
}
