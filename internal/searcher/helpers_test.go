package searcher_test

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempGoFile(t *testing.T, content string) string {
	t.Helper()
	return writeTempFileNamed(t, "sample.go", content)
}

func writeTempFileNamed(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	overwriteTempFile(t, path, content)
	return path
}

func overwriteTempFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
