// Package store persists class summaries in a SQLite database so a
// directory of class files can be indexed once and queried cheaply.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/chazu/cafebabe/export"
)

// ErrClassNotFound indicates the requested class is not indexed.
var ErrClassNotFound = errors.New("class not found")

// Store is a SQLite-backed index of class summaries. The full summary
// is kept as a CBOR blob; the columns exist for querying.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

// Open opens (creating if needed) the index database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Create tables if needed
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS classes (
		name TEXT PRIMARY KEY,
		super TEXT,
		major INTEGER NOT NULL,
		source TEXT,
		method_count INTEGER NOT NULL,
		field_count INTEGER NOT NULL,
		summary BLOB NOT NULL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating classes table: %w", err)
	}

	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// IndexClass inserts or replaces the summary for a class, keyed by
// its fully qualified name.
func (s *Store) IndexClass(summary *export.ClassSummary) error {
	blob, err := export.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encoding summary for %s: %w", summary.Name, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO classes (name, super, major, source, method_count, field_count, summary)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.Name, summary.SuperName, summary.MajorVersion, summary.SourceFile,
		len(summary.Methods), len(summary.Fields), blob,
	)
	if err != nil {
		return fmt.Errorf("indexing %s: %w", summary.Name, err)
	}
	return nil
}

// LookupClass returns the indexed summary for the given class name.
func (s *Store) LookupClass(name string) (*export.ClassSummary, error) {
	var blob []byte
	err := s.db.QueryRow(`SELECT summary FROM classes WHERE name = ?`, name).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %s: %w", name, err)
	}
	return export.Unmarshal(blob)
}

// ListClasses returns the names of all indexed classes in sorted
// order.
func (s *Store) ListClasses() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM classes ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing classes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Subclasses returns the names of indexed classes whose direct
// superclass is the given class.
func (s *Store) Subclasses(name string) ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM classes WHERE super = ? ORDER BY name`, name)
	if err != nil {
		return nil, fmt.Errorf("listing subclasses of %s: %w", name, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var sub string
		if err := rows.Scan(&sub); err != nil {
			return nil, err
		}
		names = append(names, sub)
	}
	return names, rows.Err()
}
