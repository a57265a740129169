package searcher

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/latchkey-dev/hybridsearch/internal/config"
)

var skipDirNames = map[string]struct{}{
	"target": {}, "node_modules": {}, ".git": {}, "dist": {}, "build": {},
}

var testDirNames = map[string]struct{}{
	"tests": {}, "test": {}, "spec": {}, "__tests__": {},
}

// IndexDirectory walks root, indexing every file whose extension is in
// cfg.IndexableExtensions, skipping VCS/build/dependency directories
// unconditionally and test directories unless cfg.IncludeTestFiles is set
// (§4.12). Grounded on the teacher's internal/index/runner.go scanFiles walk
// shape, generalized from its channel-based pipeline to a direct
// filepath.WalkDir since this orchestrator indexes synchronously per file.
func (u *UnifiedSearcher) IndexDirectory(ctx context.Context, root string) (*IndexStats, error) {
	stats := &IndexStats{}
	extSet := indexableExtSet(config.IndexableExtensions)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			stats.Errors++
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			name := d.Name()
			if _, skip := skipDirNames[name]; skip && path != root {
				return filepath.SkipDir
			}
			if !u.cfg.IncludeTestFiles {
				if _, isTest := testDirNames[strings.ToLower(name)]; isTest {
					return filepath.SkipDir
				}
			}
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := extSet[ext]; !ok {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		before := len(u.chunksForFile(rel))
		if err := u.indexFileAt(ctx, path, rel); err != nil {
			stats.Errors++
			slog.Warn("index_directory_file_failed", "path", rel, "error", err.Error())
			return nil
		}
		stats.FilesIndexed++
		stats.ChunksCreated += len(u.chunksForFile(rel)) - before
		return nil
	})
	if err != nil {
		return stats, err
	}
	return stats, nil
}

func indexableExtSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		set[strings.ToLower(e)] = struct{}{}
	}
	return set
}
