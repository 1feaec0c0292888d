package sqlite

import (
	"path/filepath"
	"testing"
)

// openTestDB opens a migrated database in a temp dir.
func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestOpen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer db.Close()

	// Verify WAL mode
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("journal_mode = %q; want wal", journalMode)
	}

	// Verify foreign keys
	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("query foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d; want 1", fk)
	}
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	version, err := db.Version()
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if version < 1 {
		t.Errorf("Version() = %d; want >= 1", version)
	}

	// Idempotent: re-running applies nothing and keeps the version.
	if err := db.Migrate(); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
	again, _ := db.Version()
	if again != version {
		t.Errorf("Version() after re-migrate = %d; want %d", again, version)
	}

	for _, table := range []string{"concept_mastery", "learning_cards", "student_progress", "quiz_attempts", "chat_messages", "materials"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion("001_initial.sql")
	if err != nil {
		t.Fatalf("parseVersion() error = %v", err)
	}
	if v != 1 {
		t.Errorf("parseVersion(001_initial.sql) = %d; want 1", v)
	}

	if _, err := parseVersion("notamigration.sql"); err == nil {
		t.Error("parseVersion(notamigration.sql) error = nil; want error")
	}
}
