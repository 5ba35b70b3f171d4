// Package db manages the on-disk database pair backing one cache
// directory: a metadata database and a tag-cache database, co-located so
// a ctk-based viewer can open the same directory.
package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

const (
	// MetadataFileName is the metadata database file inside a cache directory.
	MetadataFileName = "ctkDICOM.sql"
	// TagCacheFileName is the tag-cache database file inside a cache directory.
	TagCacheFileName = "ctkDICOMTagCache.sql"
)

// ErrSchemaVersionMismatch is returned when the metadata database exists
// but was created with a different schema version. The store refuses to
// write; there is no migration path here.
var ErrSchemaVersionMismatch = errors.New("database schema version mismatch")

// Pair holds the two open databases for one cache directory.
type Pair struct {
	Metadata *sql.DB
	TagCache *sql.DB
	dir      string
}

// Open opens (creating if needed) the database pair under dir.
func Open(dir string) (*Pair, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	metadata, err := sql.Open("sqlite3", filepath.Join(dir, MetadataFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}

	tagCache, err := sql.Open("sqlite3", filepath.Join(dir, TagCacheFileName))
	if err != nil {
		metadata.Close()
		return nil, fmt.Errorf("failed to open tag cache database: %w", err)
	}

	return &Pair{Metadata: metadata, TagCache: tagCache, dir: dir}, nil
}

// OpenInMemory returns a pair backed by in-memory databases, for tests.
// Each database is pinned to one connection: a pooled second connection
// to ":memory:" would see a different empty database. Callers must
// initialize the schema before opening a batch, since an open
// transaction owns the only connection.
func OpenInMemory() (*Pair, error) {
	metadata, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata database: %w", err)
	}
	metadata.SetMaxOpenConns(1)
	tagCache, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		metadata.Close()
		return nil, fmt.Errorf("failed to open tag cache database: %w", err)
	}
	tagCache.SetMaxOpenConns(1)
	return &Pair{Metadata: metadata, TagCache: tagCache}, nil
}

// Close closes both databases.
func (p *Pair) Close() error {
	var firstErr error
	if err := p.Metadata.Close(); err != nil {
		firstErr = err
	}
	if err := p.TagCache.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Dir returns the cache directory this pair was opened from. Empty for
// in-memory pairs.
func (p *Pair) Dir() string {
	return p.dir
}

// InitializeSchema applies the metadata schema if the database is fresh,
// or verifies the recorded version if not. Idempotent; returns
// ErrSchemaVersionMismatch (wrapped) when an existing database was
// created with a different schema version.
func (p *Pair) InitializeSchema() error {
	var version string
	err := p.Metadata.QueryRow("SELECT Version FROM SchemaInfo LIMIT 1").Scan(&version)
	switch {
	case err == nil:
		if version != SchemaVersion {
			return fmt.Errorf("%w: expected %s, found %s",
				ErrSchemaVersionMismatch, SchemaVersion, version)
		}
		return nil
	case errors.Is(err, sql.ErrNoRows):
		// SchemaInfo exists but is empty: a partially initialized
		// database from an interrupted run. Treat as a mismatch.
		return fmt.Errorf("%w: no version recorded", ErrSchemaVersionMismatch)
	default:
		// no SchemaInfo table: fresh database
		if _, err := p.Metadata.Exec(SchemaSQL); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
		return nil
	}
}
