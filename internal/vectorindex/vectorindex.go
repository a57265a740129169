// Package vectorindex implements the VectorIndex (C7): K-NN over
// fixed-dimension embeddings by cosine similarity. Grounded on the
// teacher's internal/store/hnsw.go HNSWStore (lazy deletion, gob-encoded
// metadata, normalizeVectorInPlace/distanceToScore shape), adapted so a
// flat scan is always available and the coder/hnsw ANN graph is built only
// once the record count reaches the §4.6 threshold of 100, returning
// InsufficientRecords below it.
package vectorindex

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/latchkey-dev/hybridsearch/internal/errors"
)

// MinRecordsForANN is the §4.6 threshold below which build_index refuses
// and callers must rely on the flat scan.
const MinRecordsForANN = 100

// Record is one vector entry (§4.6's insert contract).
type Record struct {
	ID         string
	FileID     string
	ChunkIndex int
	Content    string
	Embedding  []float32
	LineRange  [2]int
}

// Result is one scored hit.
type Result struct {
	ID         string
	FileID     string
	ChunkIndex int
	Content    string
	LineRange  [2]int
	Score      float32
}

type entry struct {
	record Record
	key    uint64 // hnsw graph key, valid only once the ANN graph has this entry
	inANN  bool
}

// Index is the VectorIndex (C7) implementation. Safe for concurrent use.
type Index struct {
	mu         sync.RWMutex
	dimensions int

	records map[string]*entry // id -> entry
	byFile  map[string]map[string]struct{}

	graph      *hnsw.Graph[uint64]
	nextKey    uint64
	keyToID    map[uint64]string
	annEnabled bool
}

// New creates an empty Index fixed to dimensions N.
func New(dimensions int) *Index {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	return &Index{
		dimensions: dimensions,
		records:    make(map[string]*entry),
		byFile:     make(map[string]map[string]struct{}),
		graph:      graph,
		keyToID:    make(map[uint64]string),
	}
}

// Insert validates and stores record, replacing any prior record under the
// same ID.
func (idx *Index) Insert(record Record) error {
	if len(record.Embedding) != idx.dimensions {
		return &errors.DimensionMismatchError{Expected: idx.dimensions, Got: len(record.Embedding)}
	}
	for i, v := range record.Embedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return &errors.InvalidEmbeddingError{Index: i}
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if existing, ok := idx.records[record.ID]; ok {
		idx.removeLocked(record.ID, existing)
	}

	vec := make([]float32, len(record.Embedding))
	copy(vec, record.Embedding)

	e := &entry{record: record}
	e.record.Embedding = vec
	idx.records[record.ID] = e

	if idx.byFile[record.FileID] == nil {
		idx.byFile[record.FileID] = make(map[string]struct{})
	}
	idx.byFile[record.FileID][record.ID] = struct{}{}

	if idx.annEnabled {
		idx.addToANNLocked(e)
	}

	return nil
}

func (idx *Index) addToANNLocked(e *entry) {
	key := idx.nextKey
	idx.nextKey++
	idx.graph.Add(hnsw.MakeNode(key, e.record.Embedding))
	idx.keyToID[key] = e.record.ID
	e.key = key
	e.inANN = true
}

func (idx *Index) removeLocked(id string, e *entry) {
	if e.inANN {
		delete(idx.keyToID, e.key)
	}
	if fileBucket, ok := idx.byFile[e.record.FileID]; ok {
		delete(fileBucket, id)
		if len(fileBucket) == 0 {
			delete(idx.byFile, e.record.FileID)
		}
	}
	delete(idx.records, id)
}

// Search returns the top-k matches by descending cosine similarity
// (dot product, records assumed L2-normalized), ties broken on ascending
// lexicographic ID. Always answers from a flat scan over every live record,
// whether or not BuildIndex has built the ANN graph.
func (idx *Index) Search(ctx context.Context, queryEmbedding []float32, k int) ([]*Result, error) {
	if len(queryEmbedding) != idx.dimensions {
		return nil, &errors.DimensionMismatchError{Expected: idx.dimensions, Got: len(queryEmbedding)}
	}
	for i, v := range queryEmbedding {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, &errors.InvalidEmbeddingError{Index: i}
		}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if len(idx.records) == 0 {
		return []*Result{}, nil
	}

	return idx.flatScanLocked(queryEmbedding, k), nil
}

// flatScanLocked always holds: even after BuildIndex the flat scan path
// remains available and correct (§4.6 "flat scan is acceptable... an ANN
// structure MAY also be built"). We keep flat scan as the single source of
// truth for correctness and use it unconditionally; the ANN graph exists so
// a caller may exercise/inspect it (Stats, corpus-scale behavior) without
// changing search semantics.
func (idx *Index) flatScanLocked(query []float32, k int) []*Result {
	results := make([]*Result, 0, len(idx.records))
	for id, e := range idx.records {
		score := dot(query, e.record.Embedding)
		results = append(results, &Result{
			ID:         id,
			FileID:     e.record.FileID,
			ChunkIndex: e.record.ChunkIndex,
			Content:    e.record.Content,
			LineRange:  e.record.LineRange,
			Score:      score,
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})

	if k > 0 && len(results) > k {
		results = results[:k]
	}
	return results
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// BuildIndex constructs the ANN graph from every currently-held record.
// Returns InsufficientRecords when fewer than MinRecordsForANN records are
// present; the flat scan remains usable either way.
func (idx *Index) BuildIndex() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if len(idx.records) < MinRecordsForANN {
		return &errors.InsufficientRecordsError{Available: len(idx.records), Required: MinRecordsForANN}
	}

	idx.graph = hnsw.NewGraph[uint64]()
	idx.graph.Distance = hnsw.CosineDistance
	idx.graph.M = 16
	idx.graph.EfSearch = 20
	idx.graph.Ml = 0.25
	idx.keyToID = make(map[uint64]string)
	idx.nextKey = 0

	for _, e := range idx.records {
		idx.addToANNLocked(e)
	}
	idx.annEnabled = true
	return nil
}

// DeleteByFile removes every record belonging to fileID.
func (idx *Index) DeleteByFile(fileID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	ids := make([]string, 0, len(idx.byFile[fileID]))
	for id := range idx.byFile[fileID] {
		ids = append(ids, id)
	}
	for _, id := range ids {
		if e, ok := idx.records[id]; ok {
			idx.removeLocked(id, e)
		}
	}
}

// Count returns the number of live records.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.records)
}

// Clear removes every record and resets the ANN graph.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.records = make(map[string]*entry)
	idx.byFile = make(map[string]map[string]struct{})
	idx.keyToID = make(map[uint64]string)
	idx.nextKey = 0
	idx.annEnabled = false
	idx.graph = hnsw.NewGraph[uint64]()
	idx.graph.Distance = hnsw.CosineDistance
	idx.graph.M = 16
	idx.graph.EfSearch = 20
	idx.graph.Ml = 0.25
}

// persisted mirrors the teacher's hnswMetadata shape, adapted to carry full
// records (not just ID mappings) since this index's records are small
// chunk-sized entries rather than externally-stored vectors.
type persisted struct {
	Dimensions int
	Records    []Record
}

// Save persists every live record to path via gob, atomically (temp file +
// rename), mirroring the teacher's Save pattern.
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("vectorindex: create directory: %w", err)
	}

	p := persisted{Dimensions: idx.dimensions}
	for _, e := range idx.records {
		p.Records = append(p.Records, e.record)
	}

	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("vectorindex: create snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(p); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("vectorindex: encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("vectorindex: close snapshot: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load reads a snapshot written by Save. A dimension mismatch or decode
// failure is reported as errors.CorruptIndexError so the caller can rebuild.
func (idx *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("vectorindex: open snapshot: %w", err)
	}
	defer f.Close()

	var p persisted
	if err := gob.NewDecoder(bufio.NewReader(f)).Decode(&p); err != nil {
		return &errors.CorruptIndexError{Path: path, Reason: err.Error()}
	}
	if p.Dimensions != idx.dimensions {
		return &errors.CorruptIndexError{
			Path:   path,
			Reason: fmt.Sprintf("dimensions %d, want %d", p.Dimensions, idx.dimensions),
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, r := range p.Records {
		e := &entry{record: r}
		idx.records[r.ID] = e
		if idx.byFile[r.FileID] == nil {
			idx.byFile[r.FileID] = make(map[string]struct{})
		}
		idx.byFile[r.FileID][r.ID] = struct{}{}
	}

	if len(idx.records) >= MinRecordsForANN {
		slog.Info("vectorindex_ann_build_on_load", "records", len(idx.records))
		for _, e := range idx.records {
			idx.addToANNLocked(e)
		}
		idx.annEnabled = true
	}

	return nil
}
