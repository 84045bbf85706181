// Package store is the persistence collaborator: audio blobs in a
// content-addressed directory and transcription records in a sqlite document
// table, keyed by a generated document id.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/shabdalabs/shabda/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcriptions (
	id               TEXT PRIMARY KEY,
	file_id          INTEGER NOT NULL,
	filename         TEXT NOT NULL,
	blob_key         TEXT NOT NULL,
	record_json      TEXT NOT NULL,
	status           TEXT NOT NULL DEFAULT 'pending',
	assigned_user_id TEXT,
	flagged          INTEGER NOT NULL DEFAULT 0,
	created_at       TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transcriptions_created_at ON transcriptions(created_at);
CREATE INDEX IF NOT EXISTS idx_transcriptions_assigned ON transcriptions(assigned_user_id, created_at);
`

type Store struct {
	db      *sql.DB
	blobDir string
}

// Summary is the listing row exposed to review tooling.
type Summary struct {
	DocID     string
	FileID    int
	Filename  string
	Status    string
	Assignee  string
	Flagged   bool
	CreatedAt time.Time
}

// Open connects to the sqlite database at dbPath, creating it and the schema
// as needed, and prepares blobDir for audio payloads.
func Open(dbPath, blobDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, blobDir: blobDir}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save copies the audio into the blob directory under its content hash and
// inserts the record as one document row. Returns the generated document id.
func (s *Store) Save(ctx context.Context, audioPath string, rec types.TranscriptionRecord) (string, error) {
	blobKey, err := s.putBlob(audioPath)
	if err != nil {
		return "", err
	}
	recJSON, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	docID := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO transcriptions (id, file_id, filename, blob_key, record_json, status, created_at)
		 VALUES (?, ?, ?, ?, ?, 'pending', ?)`,
		docID, rec.ID, rec.Filename, blobKey, string(recJSON), time.Now().UTC(),
	)
	if err != nil {
		return "", fmt.Errorf("insert record: %w", err)
	}
	return docID, nil
}

// Get returns the stored record and the path of its audio blob.
func (s *Store) Get(ctx context.Context, docID string) (types.TranscriptionRecord, string, error) {
	var recJSON, blobKey string
	err := s.db.QueryRowContext(ctx,
		`SELECT record_json, blob_key FROM transcriptions WHERE id = ?`, docID,
	).Scan(&recJSON, &blobKey)
	if err != nil {
		return types.TranscriptionRecord{}, "", fmt.Errorf("get %s: %w", docID, err)
	}
	var rec types.TranscriptionRecord
	if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
		return types.TranscriptionRecord{}, "", fmt.Errorf("unmarshal record %s: %w", docID, err)
	}
	return rec, filepath.Join(s.blobDir, blobKey), nil
}

// List returns summaries of all stored documents, newest first.
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, file_id, filename, status, COALESCE(assigned_user_id, ''), flagged, created_at
		 FROM transcriptions ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		var flagged int
		if err := rows.Scan(&sum.DocID, &sum.FileID, &sum.Filename, &sum.Status, &sum.Assignee, &flagged, &sum.CreatedAt); err != nil {
			return nil, err
		}
		sum.Flagged = flagged != 0
		out = append(out, sum)
	}
	return out, rows.Err()
}

// UpdateStatus sets the review status of a document.
func (s *Store) UpdateStatus(ctx context.Context, docID, status string) error {
	return s.exec(ctx, docID, `UPDATE transcriptions SET status = ? WHERE id = ?`, status, docID)
}

// Assign hands a document to a reviewer.
func (s *Store) Assign(ctx context.Context, docID, userID string) error {
	return s.exec(ctx, docID, `UPDATE transcriptions SET assigned_user_id = ? WHERE id = ?`, userID, docID)
}

// SetFlagged marks or clears a document's flag.
func (s *Store) SetFlagged(ctx context.Context, docID string, flagged bool) error {
	v := 0
	if flagged {
		v = 1
	}
	return s.exec(ctx, docID, `UPDATE transcriptions SET flagged = ? WHERE id = ?`, v, docID)
}

func (s *Store) exec(ctx context.Context, docID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("document %s not found", docID)
	}
	return nil
}

// putBlob stores the audio under sha256(content)+ext, deduplicating repeat
// uploads of the same file.
func (s *Store) putBlob(audioPath string) (string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash audio: %w", err)
	}
	key := hex.EncodeToString(h.Sum(nil)) + filepath.Ext(audioPath)
	dst := filepath.Join(s.blobDir, key)
	if _, err := os.Stat(dst); err == nil {
		return key, nil
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", err
	}
	out, err := os.CreateTemp(s.blobDir, ".upload-*")
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(out, f); err != nil {
		out.Close()
		os.Remove(out.Name())
		return "", fmt.Errorf("copy audio blob: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	if err := os.Rename(out.Name(), dst); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return key, nil
}
