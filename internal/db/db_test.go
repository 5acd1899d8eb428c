package db

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpenMigratesSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.db")

	conn, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	for _, table := range []string{"sessions", "documents"} {
		var name string
		err := conn.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}

	// Reopening an up to date file applies nothing.
	conn.Close()
	again, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer again.Close()

	version, err := SchemaVersion(context.Background(), again)
	if err != nil {
		t.Fatalf("schema version: %v", err)
	}
	if version != len(migrations) {
		t.Fatalf("expected schema version %d, got %d", len(migrations), version)
	}
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quiz.db")
	conn, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := conn.Exec(`PRAGMA user_version = 99;`); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	conn.Close()

	if _, err := Open(path); err == nil {
		t.Fatal("expected an error for a schema newer than the binary")
	}
}
