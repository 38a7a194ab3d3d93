// Package archive persists completed documents: each generated package is
// written to the uploads directory under a timestamped filename and recorded
// in a SQLite table, giving the side-effect write an audit trail and a
// read path.
package archive

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quillard/formulaire/idgen"
)

const schema = `
CREATE TABLE IF NOT EXISTS generated_documents (
    id                TEXT PRIMARY KEY,
    session_id        TEXT NOT NULL,
    filename          TEXT NOT NULL,
    placeholder_count INTEGER NOT NULL DEFAULT 0,
    size_bytes        INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_generated_created ON generated_documents (created_at DESC);
`

// Record is one archived generation.
type Record struct {
	ID               string    `json:"id"`
	SessionID        string    `json:"session_id"`
	Filename         string    `json:"filename"`
	PlaceholderCount int       `json:"placeholder_count"`
	SizeBytes        int64     `json:"size_bytes"`
	CreatedAt        time.Time `json:"created_at"`
}

// Archive stores completed documents on disk and their records in SQLite.
type Archive struct {
	db      *sql.DB
	dir     string
	newID   idgen.Generator
	newName idgen.Generator
}

// New creates an Archive writing files under dir and rows into db.
// Call Init before first use.
func New(db *sql.DB, dir string) *Archive {
	return &Archive{
		db:      db,
		dir:     dir,
		newID:   idgen.Default,
		newName: idgen.Timestamped(idgen.NanoID(6)),
	}
}

// Init creates the uploads directory and the archive table.
func (a *Archive) Init() error {
	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return fmt.Errorf("archive: mkdir %s: %w", a.dir, err)
	}
	if _, err := a.db.Exec(schema); err != nil {
		return fmt.Errorf("archive: init schema: %w", err)
	}
	return nil
}

// Save writes data to a timestamped .docx file under the uploads directory
// and inserts the matching record. The chosen filename is returned on the
// record.
func (a *Archive) Save(ctx context.Context, rec *Record, data []byte) error {
	if rec.ID == "" {
		rec.ID = a.newID()
	}
	if rec.Filename == "" {
		rec.Filename = "generated_" + a.newName() + ".docx"
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	rec.SizeBytes = int64(len(data))

	path := filepath.Join(a.dir, rec.Filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("archive: write %s: %w", path, err)
	}

	_, err := a.db.ExecContext(ctx,
		`INSERT INTO generated_documents (id, session_id, filename, placeholder_count, size_bytes, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.SessionID, rec.Filename, rec.PlaceholderCount, rec.SizeBytes, rec.CreatedAt.UnixMilli())
	if err != nil {
		// No record, no file: a document on disk without a row would be
		// invisible to List.
		os.Remove(path)
		return fmt.Errorf("archive: insert record: %w", err)
	}
	return nil
}

// List returns the newest records first, capped at limit.
func (a *Archive) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := a.db.QueryContext(ctx,
		`SELECT id, session_id, filename, placeholder_count, size_bytes, created_at
		FROM generated_documents ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: list: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var r Record
		var createdAt int64
		if err := rows.Scan(&r.ID, &r.SessionID, &r.Filename, &r.PlaceholderCount, &r.SizeBytes, &createdAt); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		r.CreatedAt = time.UnixMilli(createdAt)
		recs = append(recs, r)
	}
	if recs == nil {
		recs = []Record{}
	}
	return recs, rows.Err()
}

// Path returns the on-disk location of an archived filename.
func (a *Archive) Path(filename string) string {
	return filepath.Join(a.dir, filename)
}
