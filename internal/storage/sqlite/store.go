// Package sqlite provides SQLite-backed storage for indexd.
//
// One Store owns the database connection and serves the read-only business
// row extraction (source.Reader), the chunk record persistence
// (chunk.Store) and the per-tenant index status tracking (status.Tracker)
// through typed accessors.
package sqlite

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/sellerdesk/indexd/internal/chunk"
	"github.com/sellerdesk/indexd/internal/source"
	"github.com/sellerdesk/indexd/internal/status"
	"github.com/sellerdesk/indexd/internal/storage/sqlite/migrations"
)

// Store is a unified SQLite-backed storage for indexd.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the SQLite database at dbPath and applies
// pending migrations. A leading ~ in the path is expanded.
func NewStore(dbPath string) (*Store, error) {
	expanded, err := expandPath(dbPath)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(expanded), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	// WAL mode keeps extraction reads from blocking the ingestion writers.
	db, err := sql.Open("sqlite", expanded+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{db: db, path: expanded}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SourceReader returns a read-only source.Reader backed by this store.
func (s *Store) SourceReader() source.Reader {
	return &sourceReader{store: s}
}

// ChunkStore returns a chunk.Store backed by this store.
func (s *Store) ChunkStore() chunk.Store {
	return &chunkStore{store: s}
}

// StatusTracker returns a status.Tracker backed by this store.
func (s *Store) StatusTracker() status.Tracker {
	return &statusTracker{store: s}
}

func expandPath(path string) (string, error) {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

func (s *Store) migrate(fsys embed.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}
