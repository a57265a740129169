// Package textindex implements the TextIndex (C6): a bleve-backed,
// line-addressable index supporting phrase, fuzzy and bare-token search.
// Grounded on the teacher's internal/store/bm25.go (custom code-aware
// analyzer registration, corrupted-index detection and auto-rebuild on
// open); BM25 scoring itself is NOT reused here — that is hand-rolled in
// internal/bm25index (C5) for closed-form testability, and this index
// exists purely for exact/phrase/fuzzy positional search.
package textindex

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/registry"
	"github.com/blevesearch/bleve/v2/search/query"

	hsherrors "github.com/latchkey-dev/hybridsearch/internal/errors"
	"github.com/latchkey-dev/hybridsearch/internal/tokenize"
)

const (
	codeTokenizerName = "hybridsearch_code_tokenizer"
	codeAnalyzerName  = "hybridsearch_code_analyzer"

	fieldContent = "content"
	fieldFileID  = "file_id"
	fieldLine    = "line"
)

func init() {
	_ = registry.RegisterTokenizer(codeTokenizerName, codeTokenizerConstructor)
}

// ExactMatch is one line-level hit (§4.5).
type ExactMatch struct {
	FileID      string
	LineNumber  int
	Content     string // the whole line
	LineContent string // same as Content; kept as a distinct field to match the §4.5 shape
}

// lineDoc is the document bleve stores per indexed line.
type lineDoc struct {
	FileID  string `json:"file_id"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// TextIndex is the C6 implementation.
type TextIndex struct {
	mu   sync.RWMutex
	idx  bleve.Index
	path string
}

// New opens (or creates) a TextIndex at path. An empty path creates an
// in-memory index. A corrupted or schema-mismatched on-disk segment is
// detected and the index is rebuilt from scratch; the rebuild is silent to
// the caller except through one structured log line (§4.5).
func New(path string) (*TextIndex, error) {
	indexMapping, err := buildMapping()
	if err != nil {
		return nil, fmt.Errorf("textindex: build mapping: %w", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
		if err != nil {
			return nil, fmt.Errorf("textindex: create in-memory index: %w", err)
		}
		return &TextIndex{idx: idx, path: path}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("textindex: create directory: %w", err)
	}

	if corruptErr := validateIntegrity(path); corruptErr != nil {
		slog.Warn("textindex_corrupted", "path", path, "error", corruptErr.Error())
		if err := os.RemoveAll(path); err != nil {
			return nil, &hsherrors.CorruptIndexError{Path: path, Reason: corruptErr.Error()}
		}
		slog.Info("textindex_rebuilt", "path", path, "reason", "corruption detected on open")
	}

	idx, err = bleve.Open(path)
	switch {
	case err == bleve.ErrorIndexPathDoesNotExist:
		idx, err = bleve.New(path, indexMapping)
	case err != nil && isCorruptionError(err):
		slog.Warn("textindex_open_failed", "path", path, "error", err.Error())
		if removeErr := os.RemoveAll(path); removeErr != nil {
			return nil, fmt.Errorf("textindex: cannot clear corrupted index: %w", removeErr)
		}
		slog.Info("textindex_rebuilt", "path", path, "reason", "open failed with corruption")
		idx, err = bleve.New(path, indexMapping)
	}
	if err != nil {
		return nil, fmt.Errorf("textindex: open/create index: %w", err)
	}

	return &TextIndex{idx: idx, path: path}, nil
}

func buildMapping() (*mapping.IndexMappingImpl, error) {
	im := bleve.NewIndexMapping()
	if err := im.AddCustomAnalyzer(codeAnalyzerName, map[string]interface{}{
		"type":          custom.Name,
		"tokenizer":     codeTokenizerName,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("add custom analyzer: %w", err)
	}
	im.DefaultAnalyzer = codeAnalyzerName
	return im, nil
}

func docID(fileID string, line int) string {
	return fileID + "\x00" + strconv.Itoa(line)
}

// IndexLine indexes one source line. Empty or whitespace-only lines are
// never indexed (§4.5).
func (t *TextIndex) IndexLine(fileID string, lineNumber int, lineBytes []byte) error {
	if strings.TrimSpace(string(lineBytes)) == "" {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	doc := lineDoc{FileID: fileID, Line: lineNumber, Content: string(lineBytes)}
	return t.idx.Index(docID(fileID, lineNumber), doc)
}

// DeleteByFile removes every indexed line belonging to fileID, so a
// reindex never leaves stale lines behind.
func (t *TextIndex) DeleteByFile(ctx context.Context, fileID string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	// file_id is analyzed like content, so a term query for the raw fileID
	// would not match; select this file's lines by document ID prefix.
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = 1_000_000
	req.Fields = []string{}

	result, err := t.idx.SearchInContext(ctx, req)
	if err != nil {
		return fmt.Errorf("textindex: search for delete: %w", err)
	}

	prefix := fileID + "\x00"
	batch := t.idx.NewBatch()
	for _, hit := range result.Hits {
		if strings.HasPrefix(hit.ID, prefix) {
			batch.Delete(hit.ID)
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	return t.idx.Batch(batch)
}

// Search runs a bare-token or quoted-phrase query. A quoted phrase
// (`"exact phrase"`) is matched as a literal substring via a phrase query;
// a malformed phrase (unterminated quote) degrades to a bare-token search
// over its content rather than erroring (§4 SUPPLEMENTED FEATURES,
// QueryParseError row of spec.md §7). An empty query returns an empty
// sequence, never an error.
func (t *TextIndex) Search(ctx context.Context, query string) ([]*ExactMatch, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []*ExactMatch{}, nil
	}

	bleveQuery := t.buildQuery(trimmed)
	return t.runQuery(ctx, bleveQuery)
}

// SearchFuzzy runs a fuzzy (edit-distance) query. maxEdits above 2 is
// clamped to 2, per §4.5.
func (t *TextIndex) SearchFuzzy(ctx context.Context, query string, maxEdits int) ([]*ExactMatch, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return []*ExactMatch{}, nil
	}
	if maxEdits > 2 {
		maxEdits = 2
	}
	if maxEdits < 0 {
		maxEdits = 0
	}

	fq := bleve.NewFuzzyQuery(strings.ToLower(trimmed))
	fq.SetField(fieldContent)
	fq.Fuzziness = maxEdits

	return t.runQuery(ctx, fq)
}

// buildQuery returns a phrase query for a (possibly malformed) quoted
// input, or a match query over bare tokens otherwise.
func (t *TextIndex) buildQuery(trimmed string) query.Query {
	if strings.HasPrefix(trimmed, `"`) {
		unquoted := strings.TrimPrefix(trimmed, `"`)
		unquoted = strings.TrimSuffix(unquoted, `"`)
		if strings.HasSuffix(trimmed, `"`) && len(trimmed) > 1 {
			mq := bleve.NewMatchPhraseQuery(unquoted)
			mq.SetField(fieldContent)
			return mq
		}
		// Unterminated quote: degrade to bare-token search over the
		// remaining content instead of failing the query.
		slog.Warn("textindex_malformed_phrase", "query", trimmed)
		trimmed = unquoted
	}

	mq := bleve.NewMatchQuery(trimmed)
	mq.SetField(fieldContent)
	return mq
}

func (t *TextIndex) runQuery(ctx context.Context, q query.Query) ([]*ExactMatch, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	req := bleve.NewSearchRequest(q)
	req.Size = 1000
	req.Fields = []string{fieldFileID, fieldLine, fieldContent}

	result, err := t.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("textindex: search: %w", err)
	}

	matches := make([]*ExactMatch, 0, len(result.Hits))
	for _, hit := range result.Hits {
		fileID, _ := hit.Fields[fieldFileID].(string)
		content, _ := hit.Fields[fieldContent].(string)
		line := 0
		switch v := hit.Fields[fieldLine].(type) {
		case float64:
			line = int(v)
		case int:
			line = v
		}
		matches = append(matches, &ExactMatch{
			FileID:      fileID,
			LineNumber:  line,
			Content:     content,
			LineContent: content,
		})
	}
	return matches, nil
}

// Close releases the underlying bleve index.
func (t *TextIndex) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.idx.Close()
}

// Clear removes every indexed line, used by clear_index() to reset the text
// index alongside the other three search indexes.
func (t *TextIndex) Clear() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = 1_000_000
	req.Fields = []string{}

	result, err := t.idx.Search(req)
	if err != nil {
		return fmt.Errorf("textindex: search for clear: %w", err)
	}
	if len(result.Hits) == 0 {
		return nil
	}

	batch := t.idx.NewBatch()
	for _, hit := range result.Hits {
		batch.Delete(hit.ID)
	}
	return t.idx.Batch(batch)
}

// validateIntegrity checks that a persisted bleve index's metadata file
// exists and parses, before attempting to open it.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "unexpected end of JSON") ||
		strings.Contains(s, "error parsing mapping JSON") ||
		strings.Contains(s, "failed to load segment") ||
		strings.Contains(s, "error opening bolt") ||
		strings.Contains(s, "no such file or directory") ||
		err == bleve.ErrorIndexMetaCorrupt
}

// codeTokenizerConstructor wires our tokenizer into bleve's registry.
func codeTokenizerConstructor(_ map[string]interface{}, _ *registry.Cache) (analysis.Tokenizer, error) {
	return &codeTokenizer{}, nil
}

// codeTokenizer adapts internal/tokenize's splitting rules (camelCase/
// snake_case aware, original-token-retaining) to bleve's analysis.Tokenizer
// interface, so C2's splitting rules govern both C5 (hand-rolled BM25) and
// C6 (this bleve index) identically.
type codeTokenizer struct{}

func (c *codeTokenizer) Tokenize(input []byte) analysis.TokenStream {
	text := string(input)
	opts := tokenize.DefaultOptions()
	opts.EnableStemming = false
	opts.MinTermLength = 1
	tok := tokenize.New(opts)
	tokens := tok.Tokenize(text, "")

	stream := make(analysis.TokenStream, 0, len(tokens))
	offset := 0
	for i, token := range tokens {
		lowered := strings.ToLower(text)
		start := strings.Index(lowered[offset:], token.Text)
		if start == -1 {
			start = offset
		} else {
			start += offset
		}
		end := start + len(token.Text)

		stream = append(stream, &analysis.Token{
			Term:     []byte(token.Text),
			Start:    start,
			End:      end,
			Position: i + 1,
			Type:     analysis.AlphaNumeric,
		})
		if end <= len(text) {
			offset = end
		}
	}
	return stream
}
