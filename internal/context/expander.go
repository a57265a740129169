// Package context implements the ContextExpander (C11): mapping a hit to
// its three-chunk (prev, target, next) window, per spec.md §4.10. Not
// grounded on the teacher's internal/search/expander.go (a query-synonym
// expander, an unrelated component by name only); grounded instead on the
// chunk_index contiguity invariant internal/chunk/types.go documents for
// Chunk, which this component walks to find neighbors.
package context

import (
	"sort"

	"github.com/latchkey-dev/hybridsearch/internal/chunk"
)

// Window is the three-chunk context returned to the caller (§3's
// three_chunk_context).
type Window struct {
	Prev   *chunk.Chunk
	Target *chunk.Chunk
	Next   *chunk.Chunk
}

// ChunkStore is the read-only subset of the chunk inventory the expander
// needs: every chunk belonging to one file, in chunk_index order.
type ChunkStore interface {
	ChunksForFile(fileID string) []*chunk.Chunk
}

// Expander implements C11 over a ChunkStore.
type Expander struct {
	store ChunkStore
}

// New creates an Expander backed by store.
func New(store ChunkStore) *Expander {
	return &Expander{store: store}
}

// ExpandChunk returns the window around target directly.
func (e *Expander) ExpandChunk(target *chunk.Chunk) Window {
	siblings := e.store.ChunksForFile(target.FileID)
	return windowAround(siblings, target.Index)
}

// ExpandLine maps a (file, line) reference — as produced by exact or
// symbol-source hits — to the chunk window containing that line. If the
// line falls in the overlap of two adjacent chunks, the earlier chunk
// wins (§4.10).
func (e *Expander) ExpandLine(fileID string, line int) (Window, bool) {
	siblings := e.store.ChunksForFile(fileID)
	if len(siblings) == 0 {
		return Window{}, false
	}

	sorted := sortedByIndex(siblings)

	targetIdx := -1
	for _, c := range sorted {
		if line >= c.StartLine && line <= c.EndLine {
			targetIdx = c.Index
			break // first match wins: earlier chunk owns overlap lines
		}
	}
	if targetIdx == -1 {
		return Window{}, false
	}

	return windowAround(sorted, targetIdx), true
}

func sortedByIndex(chunks []*chunk.Chunk) []*chunk.Chunk {
	out := append([]*chunk.Chunk(nil), chunks...)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}

// windowAround builds the (prev, target, next) window for chunk_index
// targetIdx within sorted (already ordered by Index ascending). prev/next
// are nil at the first/last chunk of the file (§4.10).
func windowAround(sorted []*chunk.Chunk, targetIdx int) Window {
	var w Window
	for i, c := range sorted {
		if c.Index != targetIdx {
			continue
		}
		w.Target = c
		if i > 0 {
			w.Prev = sorted[i-1]
		}
		if i+1 < len(sorted) {
			w.Next = sorted[i+1]
		}
		return w
	}
	return w
}
