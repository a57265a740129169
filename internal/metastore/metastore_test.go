package metastore_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchkey-dev/hybridsearch/internal/metastore"
)

func TestStore_UpsertAndGetFile(t *testing.T) {
	ctx := context.Background()
	s, rebuilt, err := metastore.Open(ctx, "")
	require.NoError(t, err)
	assert.False(t, rebuilt)
	defer s.Close()

	rec := metastore.FileRecord{
		FileID: "main.go", Path: "main.go", Size: 100,
		Language: "go", State: "Indexed", IndexedAt: time.Now(),
	}
	require.NoError(t, s.UpsertFile(ctx, rec))

	got, err := s.GetFile(ctx, "main.go")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "go", got.Language)
	assert.Equal(t, "Indexed", got.State)
}

func TestStore_GetFile_Unknown(t *testing.T) {
	ctx := context.Background()
	s, _, err := metastore.Open(ctx, "")
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetFile(ctx, "nope.go")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_DeleteFile(t *testing.T) {
	ctx := context.Background()
	s, _, err := metastore.Open(ctx, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertFile(ctx, metastore.FileRecord{FileID: "a.go", Path: "a.go", State: "Indexed", IndexedAt: time.Now()}))
	require.NoError(t, s.SaveChunkLengths(ctx, "a.go", map[int]float64{0: 10, 1: 20}))
	require.NoError(t, s.SaveSymbolCount(ctx, "a.go", 3))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Files)
	assert.Equal(t, 2, counts.Chunks)
	assert.Equal(t, 3, counts.Symbols)

	require.NoError(t, s.DeleteFile(ctx, "a.go"))

	counts, err = s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Files)
	assert.Equal(t, 0, counts.Chunks)
	assert.Equal(t, 0, counts.Symbols)
}

func TestStore_SetFileState(t *testing.T) {
	ctx := context.Background()
	s, _, err := metastore.Open(ctx, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertFile(ctx, metastore.FileRecord{FileID: "a.go", Path: "a.go", State: "Indexing", IndexedAt: time.Now()}))
	require.NoError(t, s.SetFileState(ctx, "a.go", "Indexed"))

	got, err := s.GetFile(ctx, "a.go")
	require.NoError(t, err)
	assert.Equal(t, "Indexed", got.State)
}

func TestStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, _, err := metastore.Open(ctx, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.UpsertFile(ctx, metastore.FileRecord{FileID: "a.go", Path: "a.go", State: "Indexed", IndexedAt: time.Now()}))
	require.NoError(t, s.Clear(ctx))

	counts, err := s.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, counts.Files)
}
