// Package bm25index implements the BM25Index (C5): a hand-rolled inverted
// index with the exact IDF/TF formula from spec.md §4.4. Scoring is written
// by hand rather than delegated to bleve's internal scorer (used instead for
// internal/textindex) so the math stays closed-form and directly testable
// (properties P3/P4). Grounded on teacher internal/store/types.go's
// BM25Config/BM25Result/BM25Index interface shape and internal/store/bm25.go's
// add/remove/search contract.
package bm25index

import (
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/latchkey-dev/hybridsearch/internal/chunk"
	"github.com/latchkey-dev/hybridsearch/internal/errors"
)

// WeightedTerm is one tokenized occurrence within a document, carrying the
// importance weight the tokenizer assigned it (§4.2). The caller (the
// indexing pipeline) is responsible for tokenizing; this package only
// aggregates and scores.
type WeightedTerm struct {
	Text   string
	Line   int
	Weight float64
}

// Document is a chunk's tokenized form, ready to be added to the index.
type Document struct {
	DocID     chunk.DocID
	FileID    string
	LineRange [2]int
	Language  string
	Snippet   string
	Terms     []WeightedTerm
}

// Match is one scored hit (§4.4's BM25Match).
type Match struct {
	DocID     chunk.DocID
	Score     float64
	Snippet   string
	LineRange [2]int
}

// Config holds the two BM25 tuning parameters.
type Config struct {
	K1 float64
	B  float64
}

// DefaultConfig mirrors internal/config.DefaultConfig's bm25_k1/bm25_b.
func DefaultConfig() Config {
	return Config{K1: 1.2, B: 0.75}
}

type posting struct {
	weightedTF float64
	positions  []int
}

type docMeta struct {
	fileID        string
	lineRange     [2]int
	language      string
	snippet       string
	weightedLen   float64
	terms         map[string]float64 // term -> weighted tf, kept for removal bookkeeping
}

func docKey(id chunk.DocID) string {
	return id.FileID + "#" + strconv.Itoa(id.Index)
}

// Index is the BM25Index (C5) implementation. Safe for concurrent use.
type Index struct {
	mu     sync.RWMutex
	cfg    Config
	docs   map[string]*docMeta             // docKey -> metadata
	byFile map[string]map[string]struct{}  // fileID -> set of docKeys, for remove_by_file
	terms  map[string]map[string]*posting  // term -> docKey -> posting

	totalWeightedLen float64
	docCount         int
}

// New creates an empty Index.
func New(cfg Config) *Index {
	return &Index{
		cfg:    cfg,
		docs:   make(map[string]*docMeta),
		byFile: make(map[string]map[string]struct{}),
		terms:  make(map[string]map[string]*posting),
	}
}

// AddDocument indexes doc, replacing any prior document under the same
// DocID (reindex semantics: remove-then-insert, never a partial mix per
// spec.md §3 ownership rules).
func (idx *Index) AddDocument(doc *Document) error {
	if doc == nil {
		return fmt.Errorf("bm25index: nil document")
	}

	key := docKey(doc.DocID)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[key]; exists {
		idx.removeLocked(key)
	}

	termFreq := make(map[string]float64)
	termPositions := make(map[string][]int)
	var weightedLen float64
	for _, t := range doc.Terms {
		termFreq[t.Text] += t.Weight
		termPositions[t.Text] = append(termPositions[t.Text], t.Line)
		weightedLen += t.Weight
	}

	meta := &docMeta{
		fileID:      doc.FileID,
		lineRange:   doc.LineRange,
		language:    doc.Language,
		snippet:     doc.Snippet,
		weightedLen: weightedLen,
		terms:       termFreq,
	}
	idx.docs[key] = meta
	idx.docCount++
	idx.totalWeightedLen += weightedLen

	if idx.byFile[doc.FileID] == nil {
		idx.byFile[doc.FileID] = make(map[string]struct{})
	}
	idx.byFile[doc.FileID][key] = struct{}{}

	for term, tf := range termFreq {
		bucket, ok := idx.terms[term]
		if !ok {
			bucket = make(map[string]*posting)
			idx.terms[term] = bucket
		}
		bucket[key] = &posting{weightedTF: tf, positions: termPositions[term]}
	}

	return nil
}

// removeLocked removes the document under key. Caller holds idx.mu.
func (idx *Index) removeLocked(key string) {
	meta, ok := idx.docs[key]
	if !ok {
		return
	}

	for term := range meta.terms {
		if bucket, ok := idx.terms[term]; ok {
			delete(bucket, key)
			if len(bucket) == 0 {
				delete(idx.terms, term)
			}
		}
	}

	if fileBucket, ok := idx.byFile[meta.fileID]; ok {
		delete(fileBucket, key)
		if len(fileBucket) == 0 {
			delete(idx.byFile, meta.fileID)
		}
	}

	idx.totalWeightedLen -= meta.weightedLen
	idx.docCount--
	delete(idx.docs, key)
}

// RemoveByFile deletes every document belonging to fileID.
func (idx *Index) RemoveByFile(fileID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	keys := make([]string, 0, len(idx.byFile[fileID]))
	for k := range idx.byFile[fileID] {
		keys = append(keys, k)
	}
	for _, k := range keys {
		idx.removeLocked(k)
	}
}

// avgLength returns the average weighted document length, L̄. Returns 1 when
// there are no documents to avoid a division by zero (an empty index always
// returns zero matches from Search anyway).
func (idx *Index) avgLength() float64 {
	if idx.docCount == 0 {
		return 1
	}
	return idx.totalWeightedLen / float64(idx.docCount)
}

// idf computes IDF(t) = ln((N - df + 0.5) / (df + 0.5)). May be negative for
// very frequent terms; this is retained, not floored, per spec.md §4.4.
func (idx *Index) idf(term string) float64 {
	n := float64(idx.docCount)
	df := float64(len(idx.terms[term]))
	return math.Log((n - df + 0.5) / (df + 0.5))
}

// Search scores every document containing at least one query term and
// returns the top-k by descending score, tie-broken on (file path
// lexicographic, then chunk_index ascending) per §4.4.
func (idx *Index) Search(queryTerms []string, k int) []*Match {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.docCount == 0 || len(queryTerms) == 0 {
		return []*Match{}
	}

	avgLen := idx.avgLength()
	scores := make(map[string]float64)

	for _, term := range queryTerms {
		bucket, ok := idx.terms[term]
		if !ok {
			continue
		}
		idfVal := idx.idf(term)
		for key, p := range bucket {
			meta := idx.docs[key]
			denom := p.weightedTF + idx.cfg.K1*(1-idx.cfg.B+idx.cfg.B*meta.weightedLen/avgLen)
			scores[key] += idfVal * (p.weightedTF * (idx.cfg.K1 + 1)) / denom
		}
	}

	matches := make([]*Match, 0, len(scores))
	for key, score := range scores {
		meta := idx.docs[key]
		matches = append(matches, &Match{
			DocID:     docIDFromKey(key),
			Score:     score,
			Snippet:   meta.snippet,
			LineRange: meta.lineRange,
		})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		if matches[i].DocID.FileID != matches[j].DocID.FileID {
			return matches[i].DocID.FileID < matches[j].DocID.FileID
		}
		return matches[i].DocID.Index < matches[j].DocID.Index
	})

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func docIDFromKey(key string) chunk.DocID {
	sep := strings.LastIndexByte(key, '#')
	if sep < 0 {
		return chunk.DocID{FileID: key}
	}
	idx, _ := strconv.Atoi(key[sep+1:])
	return chunk.DocID{FileID: key[:sep], Index: idx}
}

// Count returns the number of indexed documents.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docCount
}

// Clear removes every document.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.docs = make(map[string]*docMeta)
	idx.byFile = make(map[string]map[string]struct{})
	idx.terms = make(map[string]map[string]*posting)
	idx.totalWeightedLen = 0
	idx.docCount = 0
}

// snapshotSchemaVersion tags the on-disk format so a future incompatible
// change can trigger a rebuild instead of a silent misread, per the
// BM25 disk snapshot with schema/version tag supplemented feature
// (SPEC_FULL.md §4, grounded on original_source's simple_vectordb.rs
// header pattern).
const snapshotSchemaVersion = 1

type snapshotDoc struct {
	FileID      string
	Index       int
	LineRange   [2]int
	Language    string
	Snippet     string
	WeightedLen float64
	Terms       map[string]float64
}

type snapshot struct {
	SchemaVersion int
	Docs          []snapshotDoc
}

// Save writes a gob-encoded snapshot of every document to path. On load, a
// schema-version mismatch or decode failure is reported as
// errors.CorruptIndexError so the caller can trigger a rebuild (§4.4
// "any unreadable entry is skipped and logged").
func (idx *Index) Save(path string) error {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	snap := snapshot{SchemaVersion: snapshotSchemaVersion}
	for key, meta := range idx.docs {
		id := docIDFromKey(key)
		snap.Docs = append(snap.Docs, snapshotDoc{
			FileID:      id.FileID,
			Index:       id.Index,
			LineRange:   meta.lineRange,
			Language:    meta.language,
			Snippet:     meta.snippet,
			WeightedLen: meta.weightedLen,
			Terms:       meta.terms,
		})
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bm25index: create snapshot: %w", err)
	}
	defer f.Close()
	return gobEncode(f, snap)
}

// Load reads a snapshot written by Save and repopulates the index, which
// must be empty beforehand (callers construct a fresh Index and call Load,
// mirroring the teacher's Save/Load lifecycle).
func (idx *Index) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("bm25index: open snapshot: %w", err)
	}
	defer f.Close()

	var snap snapshot
	if err := gobDecode(f, &snap); err != nil {
		return &errors.CorruptIndexError{Path: path, Reason: err.Error()}
	}
	if snap.SchemaVersion != snapshotSchemaVersion {
		return &errors.CorruptIndexError{
			Path:   path,
			Reason: fmt.Sprintf("schema version %d, want %d", snap.SchemaVersion, snapshotSchemaVersion),
		}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, d := range snap.Docs {
		id := chunk.DocID{FileID: d.FileID, Index: d.Index}
		key := docKey(id)
		meta := &docMeta{
			fileID:      d.FileID,
			lineRange:   d.LineRange,
			language:    d.Language,
			snippet:     d.Snippet,
			weightedLen: d.WeightedLen,
			terms:       d.Terms,
		}
		idx.docs[key] = meta
		idx.docCount++
		idx.totalWeightedLen += d.WeightedLen

		if idx.byFile[d.FileID] == nil {
			idx.byFile[d.FileID] = make(map[string]struct{})
		}
		idx.byFile[d.FileID][key] = struct{}{}

		for term, tf := range d.Terms {
			bucket, ok := idx.terms[term]
			if !ok {
				bucket = make(map[string]*posting)
				idx.terms[term] = bucket
			}
			bucket[key] = &posting{weightedTF: tf}
		}
	}

	return nil
}
