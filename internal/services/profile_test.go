package services

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestProfileStore(t *testing.T) {
	t.Run("MissingFileIsEmpty", func(t *testing.T) {
		store := NewProfileStore(filepath.Join(t.TempDir(), "user_data.json"))
		profile, err := store.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if len(profile) != 0 {
			t.Fatalf("expected empty profile, got %v", profile)
		}
	})

	t.Run("UpdateThenRead", func(t *testing.T) {
		store := NewProfileStore(filepath.Join(t.TempDir(), "user_data.json"))
		if err := store.Update("a", "1"); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := store.Update("level", "beginner"); err != nil {
			t.Fatalf("update: %v", err)
		}
		if err := store.Update("a", "2"); err != nil {
			t.Fatalf("update: %v", err)
		}

		profile, err := store.Read()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		if profile["a"] != "2" || profile["level"] != "beginner" {
			t.Fatalf("unexpected profile %v", profile)
		}
	})

	t.Run("WritesIndentedJSON", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "user_data.json")
		store := NewProfileStore(path)
		if err := store.Update("a", "1"); err != nil {
			t.Fatalf("update: %v", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read file: %v", err)
		}
		if string(data) != "{\n    \"a\": \"1\"\n}" {
			t.Fatalf("unexpected file contents %q", data)
		}
	})

	t.Run("CorruptFile", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "user_data.json")
		if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
		store := NewProfileStore(path)

		profile, err := store.Read()
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			t.Fatalf("expected PersistenceError, got %v", err)
		}
		if len(profile) != 0 {
			t.Fatalf("expected empty profile on error, got %v", profile)
		}

		// A write replaces the unreadable document.
		if err := store.Update("a", "1"); err != nil {
			t.Fatalf("update: %v", err)
		}
		data, _ := os.ReadFile(path)
		var decoded map[string]string
		if err := json.Unmarshal(data, &decoded); err != nil || decoded["a"] != "1" {
			t.Fatalf("expected repaired document, got %q (%v)", data, err)
		}
	})

	t.Run("UnwritablePath", func(t *testing.T) {
		store := NewProfileStore(filepath.Join(t.TempDir(), "missing-dir", "user_data.json"))
		err := store.Update("a", "1")
		var perr *PersistenceError
		if !errors.As(err, &perr) || perr.Op != "write" {
			t.Fatalf("expected write PersistenceError, got %v", err)
		}
	})
}
