// Package symbolindex implements the SymbolIndex (C8): an in-memory
// identifier index over symbols produced by internal/chunk's tree-sitter
// extraction. Grounded on the name/kind/file inventory shape already
// defined in internal/chunk/types.go (Symbol, SymbolType) and on the
// teacher's general map-of-slices indexing style used throughout
// internal/store for similar lookup tables.
package symbolindex

import (
	"sort"
	"sync"

	"github.com/latchkey-dev/hybridsearch/internal/chunk"
)

// Index is the SymbolIndex (C8) implementation. Safe for concurrent use.
type Index struct {
	mu sync.RWMutex

	byName map[string][]*chunk.Symbol
	byFile map[string][]*chunk.Symbol
	byKind map[chunk.SymbolType][]*chunk.Symbol
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		byName: make(map[string][]*chunk.Symbol),
		byFile: make(map[string][]*chunk.Symbol),
		byKind: make(map[chunk.SymbolType][]*chunk.Symbol),
	}
}

// AddSymbols adds symbols to the index. Callers re-indexing a file should
// call ClearFile first so stale declarations are not left behind.
func (idx *Index) AddSymbols(symbols []*chunk.Symbol) {
	if len(symbols) == 0 {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for _, s := range symbols {
		idx.byName[s.Name] = append(idx.byName[s.Name], s)
		idx.byFile[s.FileID] = append(idx.byFile[s.FileID], s)
		idx.byKind[s.Type] = append(idx.byKind[s.Type], s)
	}
}

// FindDefinition returns the unique declaration for name if exactly one
// exists, otherwise the first by (file_id, start_line) ascending. Returns
// nil if name is unknown (§4.7's Option<Symbol>).
func (idx *Index) FindDefinition(name string) *chunk.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	candidates := idx.byName[name]
	if len(candidates) == 0 {
		return nil
	}
	if len(candidates) == 1 {
		return candidates[0]
	}

	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.FileID < best.FileID || (c.FileID == best.FileID && c.StartLine < best.StartLine) {
			best = c
		}
	}
	return best
}

// FindAllReferences returns every symbol named name, ordered by
// (file_id, start_line) ascending. "References" here means every
// declaration-site occurrence the extractor recorded under that name; the
// core has no separate call-site reference tracking (§4.7 treats the
// extractor as a flat symbol producer, not a full reference resolver).
func (idx *Index) FindAllReferences(name string) []*chunk.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := append([]*chunk.Symbol(nil), idx.byName[name]...)
	sortByFileThenLine(matches)
	return matches
}

// SymbolsInFile returns every symbol declared in fileID, ordered by
// start_line ascending.
func (idx *Index) SymbolsInFile(fileID string) []*chunk.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := append([]*chunk.Symbol(nil), idx.byFile[fileID]...)
	sort.Slice(matches, func(i, j int) bool { return matches[i].StartLine < matches[j].StartLine })
	return matches
}

// FindByKind returns every symbol of the given kind, ordered by
// (file_id, start_line) ascending.
func (idx *Index) FindByKind(kind chunk.SymbolType) []*chunk.Symbol {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	matches := append([]*chunk.Symbol(nil), idx.byKind[kind]...)
	sortByFileThenLine(matches)
	return matches
}

// ClearFile removes every symbol previously added for fileID, so a reindex
// never leaves stale declarations behind.
func (idx *Index) ClearFile(fileID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	stale, ok := idx.byFile[fileID]
	if !ok {
		return
	}
	delete(idx.byFile, fileID)

	staleSet := make(map[*chunk.Symbol]struct{}, len(stale))
	for _, s := range stale {
		staleSet[s] = struct{}{}
	}

	for name, symbols := range idx.byName {
		idx.byName[name] = filterOut(symbols, staleSet)
		if len(idx.byName[name]) == 0 {
			delete(idx.byName, name)
		}
	}
	for kind, symbols := range idx.byKind {
		idx.byKind[kind] = filterOut(symbols, staleSet)
		if len(idx.byKind[kind]) == 0 {
			delete(idx.byKind, kind)
		}
	}
}

// Clear removes every symbol from the index.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byName = make(map[string][]*chunk.Symbol)
	idx.byFile = make(map[string][]*chunk.Symbol)
	idx.byKind = make(map[chunk.SymbolType][]*chunk.Symbol)
}

// Count returns the total number of indexed symbols.
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	total := 0
	for _, symbols := range idx.byFile {
		total += len(symbols)
	}
	return total
}

func filterOut(symbols []*chunk.Symbol, stale map[*chunk.Symbol]struct{}) []*chunk.Symbol {
	kept := symbols[:0:0]
	for _, s := range symbols {
		if _, isStale := stale[s]; !isStale {
			kept = append(kept, s)
		}
	}
	return kept
}

func sortByFileThenLine(symbols []*chunk.Symbol) {
	sort.Slice(symbols, func(i, j int) bool {
		if symbols[i].FileID != symbols[j].FileID {
			return symbols[i].FileID < symbols[j].FileID
		}
		return symbols[i].StartLine < symbols[j].StartLine
	})
}
