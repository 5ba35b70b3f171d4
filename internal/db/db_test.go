package db_test

import (
	"errors"
	"testing"

	"github.com/example/dicomcache/internal/db"
)

func TestInitializeSchemaFreshDatabase(t *testing.T) {
	pair, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open pair: %v", err)
	}
	t.Cleanup(func() { pair.Close() })

	if err := pair.InitializeSchema(); err != nil {
		t.Fatalf("InitializeSchema on fresh database: %v", err)
	}

	var version string
	err = pair.Metadata.QueryRow("SELECT Version FROM SchemaInfo LIMIT 1").Scan(&version)
	if err != nil {
		t.Fatalf("failed to read schema version: %v", err)
	}
	if version != db.SchemaVersion {
		t.Errorf("recorded version = %s, want %s", version, db.SchemaVersion)
	}

	// all core tables exist
	for _, table := range []string{"Patients", "Studies", "Series", "Images"} {
		var count int
		if err := pair.Metadata.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&count); err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitializeSchemaIdempotent(t *testing.T) {
	pair, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open pair: %v", err)
	}
	t.Cleanup(func() { pair.Close() })

	if err := pair.InitializeSchema(); err != nil {
		t.Fatalf("first InitializeSchema: %v", err)
	}
	if err := pair.InitializeSchema(); err != nil {
		t.Fatalf("second InitializeSchema: %v", err)
	}
}

func TestInitializeSchemaVersionMismatch(t *testing.T) {
	pair, err := db.OpenInMemory()
	if err != nil {
		t.Fatalf("failed to open pair: %v", err)
	}
	t.Cleanup(func() { pair.Close() })

	_, err = pair.Metadata.Exec("CREATE TABLE SchemaInfo (Version VARCHAR(16) PRIMARY KEY); INSERT INTO SchemaInfo VALUES('0.0.1')")
	if err != nil {
		t.Fatalf("failed to seed old schema: %v", err)
	}

	err = pair.InitializeSchema()
	if !errors.Is(err, db.ErrSchemaVersionMismatch) {
		t.Errorf("expected ErrSchemaVersionMismatch, got %v", err)
	}
}
