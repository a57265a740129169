package searcher

import (
	"context"
	stderrors "errors"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/latchkey-dev/hybridsearch/internal/bm25index"
	"github.com/latchkey-dev/hybridsearch/internal/chunk"
	"github.com/latchkey-dev/hybridsearch/internal/errors"
	"github.com/latchkey-dev/hybridsearch/internal/logging"
	"github.com/latchkey-dev/hybridsearch/internal/metastore"
	"github.com/latchkey-dev/hybridsearch/internal/vectorindex"
)

// IndexFile reads path from disk and indexes it under fileID == path.
// Grounded on the teacher's internal/index/runner.go pipeline
// (scan -> chunk -> embed -> build indices), collapsed here into one
// synchronous per-file call since the per-directory fan-out belongs to
// IndexDirectory, not to a single file's own indexing.
func (u *UnifiedSearcher) IndexFile(ctx context.Context, path string) error {
	return u.indexFileAt(ctx, path, path)
}

// MarkFileChanged re-indexes path, for an external watcher to call on a
// create/modify event (SPEC_FULL.md §4 supplemented watcher seam).
func (u *UnifiedSearcher) MarkFileChanged(ctx context.Context, path string) error {
	return u.IndexFile(ctx, path)
}

// MarkFileRemoved removes fileID from every index, for an external watcher
// to call on a delete event.
func (u *UnifiedSearcher) MarkFileRemoved(ctx context.Context, fileID string) error {
	u.removeFileLocked(ctx, fileID)
	return u.meta.DeleteFile(ctx, fileID)
}

// RemoveFile is an alias for MarkFileRemoved kept for callers that prefer
// index-lifecycle naming over watcher-event naming.
func (u *UnifiedSearcher) RemoveFile(ctx context.Context, fileID string) error {
	return u.MarkFileRemoved(ctx, fileID)
}

func (u *UnifiedSearcher) indexFileAt(ctx context.Context, diskPath, fileID string) error {
	if err := ctx.Err(); err != nil {
		return &errors.CancelledError{Op: "index_file"}
	}

	content, err := os.ReadFile(diskPath)
	if err != nil {
		u.meta.UpsertFile(ctx, metastore.FileRecord{FileID: fileID, Path: fileID, State: "Absent", IndexedAt: time.Now()})
		return &errors.UnreadableFileError{Path: fileID, Err: err}
	}
	if !isValidUTF8(content) {
		u.meta.UpsertFile(ctx, metastore.FileRecord{FileID: fileID, Path: fileID, State: "Absent", IndexedAt: time.Now()})
		return &errors.UnreadableFileError{Path: fileID, Err: stderrors.New("not valid UTF-8")}
	}

	return u.indexContent(ctx, fileID, content)
}

func (u *UnifiedSearcher) indexContent(ctx context.Context, fileID string, content []byte) error {
	lang := u.detectLanguage(fileID)

	u.removeFileLocked(ctx, fileID)
	u.meta.UpsertFile(ctx, metastore.FileRecord{
		FileID: fileID, Path: fileID, Size: int64(len(content)),
		Language: lang, State: "Indexing", IndexedAt: time.Now(),
	})

	chunks, err := u.chunker.Chunk(ctx, &chunk.FileInput{Path: fileID, Content: content, Language: lang})
	if err != nil {
		u.meta.SetFileState(ctx, fileID, "Absent")
		return err
	}

	var errs []error
	chunkLengths := make(map[int]float64, len(chunks))

	for _, c := range chunks {
		tokens := u.tokenizer.Tokenize(c.Content, lang)
		terms := make([]bm25index.WeightedTerm, len(tokens))
		var weightedLen float64
		for i, tk := range tokens {
			terms[i] = bm25index.WeightedTerm{Text: tk.Text, Line: tk.Line, Weight: tk.Weight}
			weightedLen += tk.Weight
		}
		chunkLengths[c.Index] = weightedLen

		doc := &bm25index.Document{
			DocID:     chunk.DocID{FileID: fileID, Index: c.Index},
			FileID:    fileID,
			LineRange: [2]int{c.StartLine, c.EndLine},
			Language:  lang,
			Snippet:   snippetOf(c.Content),
			Terms:     terms,
		}
		if err := u.bm25.AddDocument(doc); err != nil {
			errs = append(errs, err)
		}

		for i, line := range strings.Split(c.Content, "\n") {
			if err := u.text.IndexLine(fileID, c.StartLine+i, []byte(line)); err != nil {
				errs = append(errs, err)
			}
		}
	}

	if err := u.embedAndIndexChunks(ctx, fileID, chunks); err != nil {
		errs = append(errs, err)
	}

	symbolCount := 0
	if lang != "" {
		if tree, perr := u.parser.Parse(ctx, content, lang); perr == nil {
			if errNode := tree.FirstError(); errNode != nil {
				slog.Warn("symbol_extraction_degraded", "file_id", fileID, "at_line", errNode.StartPoint.Row+1)
			}
			symbols := u.extractor.Extract(tree, content)
			for _, s := range symbols {
				s.FileID = fileID
			}
			u.symbols.AddSymbols(symbols)
			symbolCount = len(symbols)
		}
	}

	u.chunksMu.Lock()
	u.chunksByFile[fileID] = chunks
	u.chunksMu.Unlock()

	u.meta.SaveChunkLengths(ctx, fileID, chunkLengths)
	u.meta.SaveSymbolCount(ctx, fileID, symbolCount)

	state := "Indexed"
	if len(errs) > 0 {
		state = "Indexing" // partial: at least one sub-index write failed
	}
	u.meta.SetFileState(ctx, fileID, state)

	if len(errs) > 0 {
		joined := stderrors.Join(errs...)
		logging.LogFailure(nil, logging.ComponentIndexer, fileID, joined)
		return joined
	}
	return nil
}

func (u *UnifiedSearcher) removeFileLocked(ctx context.Context, fileID string) {
	u.bm25.RemoveByFile(fileID)
	_ = u.text.DeleteByFile(ctx, fileID)
	u.vector.DeleteByFile(fileID)
	u.symbols.ClearFile(fileID)

	u.chunksMu.Lock()
	delete(u.chunksByFile, fileID)
	u.chunksMu.Unlock()
}

// embedAndIndexChunks embeds every chunk's content (cache-aware, batched for
// the cache misses) and inserts the resulting vectors into the VectorIndex.
// Concurrent embedding calls across files are bounded by embedSem so a large
// index_directory run cannot open unbounded concurrent requests against the
// embedder (§4 ResourceExhausted guard).
func (u *UnifiedSearcher) embedAndIndexChunks(ctx context.Context, fileID string, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	found, missing := u.embedCache.GetBatch(texts)

	if len(missing) > 0 {
		uniqueMissing := dedupeStrings(missing)

		select {
		case u.embedSem <- struct{}{}:
		case <-ctx.Done():
			return &errors.CancelledError{Op: "embed"}
		}
		vectors, err := errors.RetryWithResult(ctx, errors.DefaultRetryConfig(), func() ([][]float32, error) {
			return u.embedder.EmbedBatch(ctx, uniqueMissing)
		})
		<-u.embedSem
		if err != nil {
			logging.LogFailure(nil, logging.ComponentSearcher, fileID, err)
			return err
		}
		if len(vectors) != len(uniqueMissing) {
			return &errors.DimensionMismatchError{Expected: len(uniqueMissing), Got: len(vectors)}
		}

		toCache := make(map[string][]float32, len(uniqueMissing))
		for i, text := range uniqueMissing {
			toCache[text] = vectors[i]
			found[text] = vectors[i]
		}
		u.embedCache.PutBatch(toCache)
	}

	var errs []error
	for _, c := range chunks {
		vec, ok := found[c.Content]
		if !ok {
			continue
		}
		rec := vectorindex.Record{
			ID:         fileID + "#" + strconv.Itoa(c.Index),
			FileID:     fileID,
			ChunkIndex: c.Index,
			Content:    c.Content,
			Embedding:  vec,
			LineRange:  [2]int{c.StartLine, c.EndLine},
		}
		if err := u.vector.Insert(rec); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return stderrors.Join(errs...)
	}
	return nil
}

func (u *UnifiedSearcher) detectLanguage(fileID string) string {
	ext := strings.ToLower(filepath.Ext(fileID))
	cfg, ok := u.languages.GetByExtension(ext)
	if !ok {
		return ""
	}
	return cfg.Name
}

func dedupeStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
