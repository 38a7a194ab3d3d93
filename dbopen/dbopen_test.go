package dbopen

import (
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func TestOpenMemory(t *testing.T) {
	db := OpenMemory(t)

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys: got %d, want 1", fk)
	}
}

func TestWithSchema(t *testing.T) {
	db := OpenMemory(t, WithSchema(`CREATE TABLE notes (id TEXT PRIMARY KEY, body TEXT)`))

	if _, err := db.Exec(`INSERT INTO notes (id, body) VALUES ('a', 'hello')`); err != nil {
		t.Fatal(err)
	}
	var body string
	if err := db.QueryRow(`SELECT body FROM notes WHERE id = 'a'`).Scan(&body); err != nil {
		t.Fatal(err)
	}
	if body != "hello" {
		t.Fatalf("body: got %q", body)
	}
}

func TestWithMkdirAll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "app.db")

	db, err := Open(path, WithMkdirAll())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(`CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatal(err)
	}
}

func TestOpenBadPath(t *testing.T) {
	// Parent directory does not exist and WithMkdirAll is not set.
	_, err := Open(filepath.Join(t.TempDir(), "missing", "app.db"))
	if err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}
