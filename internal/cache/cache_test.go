package cache

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetMissThenPutThenHit(t *testing.T) {
	s := New[int](10, 0, "")

	_, ok := s.Get("k1")
	assert.False(t, ok)

	s.Put("k1", 42)
	v, ok := s.Get("k1")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestStore_HitRateIsZeroWithNoLookups(t *testing.T) {
	s := New[int](10, 0, "")
	assert.Equal(t, 0.0, s.Stats().HitRate())
}

func TestStore_EntriesExpireAfterTTL(t *testing.T) {
	s := New[int](10, 20*time.Millisecond, "")
	s.Put("k1", 1)

	_, ok := s.Get("k1")
	require.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok = s.Get("k1")
	assert.False(t, ok)
}

func TestStore_LRUEvictsOldestWhenFull(t *testing.T) {
	s := New[int](2, 0, "")
	s.Put("a", 1)
	s.Put("b", 2)
	s.Put("c", 3) // evicts "a"

	_, ok := s.Get("a")
	assert.False(t, ok)
	_, ok = s.Get("b")
	assert.True(t, ok)
	_, ok = s.Get("c")
	assert.True(t, ok)
}

func TestStore_ClearResetsEntriesAndStats(t *testing.T) {
	s := New[int](10, 0, "")
	s.Put("a", 1)
	s.Get("a")
	s.Get("missing")

	s.Clear()
	stats := s.Stats()
	assert.Equal(t, int64(0), stats.Hits)
	assert.Equal(t, int64(0), stats.Misses)
	assert.Equal(t, 0, stats.Entries)
}

func TestStore_SaveAndLoadFromDiskRoundTrips(t *testing.T) {
	dir := t.TempDir()
	s := New[int](10, 0, dir)
	s.Put("a", 1)
	s.Put("b", 2)

	require.NoError(t, s.SaveToDisk())

	loaded := New[int](10, 0, dir)
	require.NoError(t, loaded.LoadFromDisk())

	v, ok := loaded.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	v, ok = loaded.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
}

func TestStore_LoadFromDiskMissingFileIsNoop(t *testing.T) {
	dir := t.TempDir()
	s := New[int](10, 0, dir)
	require.NoError(t, s.LoadFromDisk())
	assert.Equal(t, 0, s.Stats().Entries)
}

func TestStore_LoadFromDiskCorruptFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(dir+"/cache.gob", []byte("not a gob file"), 0o644))

	s := New[int](10, 0, dir)
	err := s.LoadFromDisk()
	assert.Error(t, err)
	assert.Equal(t, 0, s.Stats().Entries)
}

func TestEmbeddingCache_PutAndGet(t *testing.T) {
	c := NewEmbeddingCache(10, 0, "")
	vec := []float32{1, 2, 3}
	c.Put("hello world", vec)

	got, ok := c.Get("hello world")
	require.True(t, ok)
	assert.Equal(t, vec, got)
}

func TestEmbeddingCache_BatchOperations(t *testing.T) {
	c := NewEmbeddingCache(10, 0, "")
	c.PutBatch(map[string][]float32{
		"a": {1},
		"b": {2},
	})

	found, missing := c.GetBatch([]string{"a", "b", "c"})
	assert.Len(t, found, 2)
	assert.Equal(t, []string{"c"}, missing)
}

func TestQueryCache_InsertAndGet(t *testing.T) {
	type result struct{ Path string }
	qc := NewQueryCache[[]result](10, 0)

	qc.Insert("foo bar", []result{{Path: "a.go"}})
	got, ok := qc.Get("foo bar")
	require.True(t, ok)
	require.Len(t, got, 1)
	assert.Equal(t, "a.go", got[0].Path)
}

func TestQueryCache_ClearRemovesEntries(t *testing.T) {
	qc := NewQueryCache[int](10, 0)
	qc.Insert("q", 1)
	qc.Clear()
	_, ok := qc.Get("q")
	assert.False(t, ok)
}
