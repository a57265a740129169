// Package metastore persists the file/chunk/symbol inventory that ties a
// UnifiedSearcher's four indexes together: which files are known, which
// chunks and symbols belong to them, and the BM25 doc-length side table
// §4.4 describes. Grounded on the teacher's internal/store MetadataStore
// interface shape and internal/store/sqlite_bm25.go's pure-Go sqlite wiring
// (ported from mattn/go-sqlite3 to modernc.org/sqlite, cgo-free, matching
// the rest of the pack's preference — see DESIGN.md).
package metastore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/latchkey-dev/hybridsearch/internal/errors"
)

// schemaVersion tags the on-disk layout so a stale or corrupt database is
// rebuilt rather than silently misread (§6 "opening a persisted index MUST
// verify a schema/version tag").
const schemaVersion = 1

// FileRecord is one tracked file's inventory row.
type FileRecord struct {
	FileID    string
	Path      string
	Size      int64
	Language  string
	State     string // Absent | Indexing | Indexed, per §4.12's state machine
	IndexedAt time.Time
}

// Store is the metadata persistence layer (file/chunk-count/symbol-count
// inventory and BM25 doc-length side table). Safe for concurrent use; all
// access goes through database/sql's own connection pool.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) a Store at path. An empty path opens an
// in-memory database. A schema-version mismatch or integrity-check failure
// on an existing on-disk database triggers an automatic rebuild (the file
// is removed and a fresh schema created), logged via the returned rebuilt
// flag so the caller can emit one structured log line per §6/§7's
// CorruptIndex handling.
func Open(ctx context.Context, path string) (store *Store, rebuilt bool, err error) {
	dsn := path
	if path == "" {
		dsn = ":memory:"
	} else if corrupt := checkIntegrity(path); corrupt != nil {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			return nil, false, &errors.CorruptIndexError{Path: path, Reason: corrupt.Error()}
		}
		rebuilt = true
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, false, fmt.Errorf("metastore: open: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time, like the teacher's WAL-guarded pool

	s := &Store{db: db, path: path}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, false, err
	}
	return s, rebuilt, nil
}

func checkIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var version int
	err = db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&version)
	if err != nil {
		return fmt.Errorf("cannot read schema_version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("schema version %d, want %d", version, schemaVersion)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`,
		`CREATE TABLE IF NOT EXISTS files (
			file_id TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			size INTEGER NOT NULL,
			language TEXT NOT NULL,
			state TEXT NOT NULL,
			indexed_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS chunk_lengths (
			file_id TEXT NOT NULL,
			chunk_index INTEGER NOT NULL,
			weighted_length REAL NOT NULL,
			PRIMARY KEY (file_id, chunk_index)
		)`,
		`CREATE TABLE IF NOT EXISTS symbol_counts (
			file_id TEXT PRIMARY KEY,
			symbol_count INTEGER NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("metastore: migrate: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('schema_version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", schemaVersion))
	if err != nil {
		return fmt.Errorf("metastore: write schema_version: %w", err)
	}
	return nil
}

// UpsertFile records (or updates) a file's inventory row.
func (s *Store) UpsertFile(ctx context.Context, f FileRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO files (file_id, path, size, language, state, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			path = excluded.path, size = excluded.size, language = excluded.language,
			state = excluded.state, indexed_at = excluded.indexed_at`,
		f.FileID, f.Path, f.Size, f.Language, f.State, f.IndexedAt)
	return err
}

// SetFileState updates only the state column for a file (§4.12's
// Absent/Indexing/Indexed transitions).
func (s *Store) SetFileState(ctx context.Context, fileID, state string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE files SET state = ? WHERE file_id = ?`, state, fileID)
	return err
}

// GetFile returns the inventory row for fileID, or nil if unknown.
func (s *Store) GetFile(ctx context.Context, fileID string) (*FileRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT file_id, path, size, language, state, indexed_at FROM files WHERE file_id = ?`, fileID)
	var f FileRecord
	if err := row.Scan(&f.FileID, &f.Path, &f.Size, &f.Language, &f.State, &f.IndexedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

// DeleteFile removes a file's inventory, chunk-length and symbol-count
// rows, mirroring the remove-then-insert reindex discipline of §3.
func (s *Store) DeleteFile(ctx context.Context, fileID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, stmt := range []string{
		`DELETE FROM files WHERE file_id = ?`,
		`DELETE FROM chunk_lengths WHERE file_id = ?`,
		`DELETE FROM symbol_counts WHERE file_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, stmt, fileID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveChunkLengths records the weighted BM25 document length of every
// chunk in fileID, replacing any prior rows for that file.
func (s *Store) SaveChunkLengths(ctx context.Context, fileID string, lengths map[int]float64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunk_lengths WHERE file_id = ?`, fileID); err != nil {
		return err
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO chunk_lengths (file_id, chunk_index, weighted_length) VALUES (?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for idx, length := range lengths {
		if _, err := stmt.ExecContext(ctx, fileID, idx, length); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SaveSymbolCount records how many symbols fileID contributed, used for
// aggregate stats().
func (s *Store) SaveSymbolCount(ctx context.Context, fileID string, count int) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO symbol_counts (file_id, symbol_count) VALUES (?, ?)
		ON CONFLICT(file_id) DO UPDATE SET symbol_count = excluded.symbol_count`,
		fileID, count)
	return err
}

// Counts aggregates the file/chunk/symbol inventory for stats().
type Counts struct {
	Files   int
	Chunks  int
	Symbols int
}

// Counts returns the current aggregate inventory counts.
func (s *Store) Counts(ctx context.Context) (Counts, error) {
	var c Counts
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM files`).Scan(&c.Files); err != nil {
		return Counts{}, err
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunk_lengths`).Scan(&c.Chunks); err != nil {
		return Counts{}, err
	}
	var symTotal sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT SUM(symbol_count) FROM symbol_counts`).Scan(&symTotal); err != nil {
		return Counts{}, err
	}
	c.Symbols = int(symTotal.Int64)
	return c, nil
}

// Clear truncates every table, used by clear_index() to reset the
// metastore alongside the four search indexes.
func (s *Store) Clear(ctx context.Context) error {
	for _, stmt := range []string{
		`DELETE FROM files`,
		`DELETE FROM chunk_lengths`,
		`DELETE FROM symbol_counts`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
