package engine

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// History is a local log of completed analyses. Pipeline state itself is
// never persisted; rows are written only after a run reaches its
// terminal result.
type History struct {
	db *sql.DB
}

// HistoryEntry is one completed analysis.
type HistoryEntry struct {
	ID               int64   `json:"id"`
	ResourceID       string  `json:"resource_id"`
	Kind             string  `json:"kind"`
	Title            string  `json:"title"`
	Summary          string  `json:"summary"`
	Score            float64 `json:"score"`
	TranscriptSource string  `json:"transcript_source"`
	Degraded         bool    `json:"degraded"`
	CreatedAt        string  `json:"created_at"`
}

// OpenHistory opens (or creates) the SQLite history database under dir.
func OpenHistory(dir string) (*History, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("history: mkdir %s: %w", dir, err)
	}
	db, err := sql.Open("sqlite", filepath.Join(dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("history: open db: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite: single writer

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS analyses (
		id                INTEGER PRIMARY KEY AUTOINCREMENT,
		resource_id       TEXT NOT NULL,
		kind              TEXT NOT NULL,
		title             TEXT NOT NULL,
		summary           TEXT,
		score             REAL,
		transcript_source TEXT,
		degraded          INTEGER NOT NULL DEFAULT 0,
		created_at        TEXT NOT NULL
	)`)
	if err != nil {
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &History{db: db}, nil
}

// Record appends one completed analysis.
func (h *History) Record(ctx context.Context, out *InsightOutput) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO analyses (resource_id, kind, title, summary, score, transcript_source, degraded, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		out.Metadata.ResourceID,
		string(out.Metadata.Kind),
		out.Metadata.Title,
		out.Analysis.Summary,
		out.Analysis.Score,
		string(out.Transcript.Source),
		boolToInt(out.Analysis.Degraded),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// Recent returns the latest entries, newest first.
func (h *History) Recent(ctx context.Context, limit int) ([]HistoryEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := h.db.QueryContext(ctx,
		`SELECT id, resource_id, kind, title, summary, score, transcript_source, degraded, created_at
		 FROM analyses ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var degraded int
		if err := rows.Scan(&e.ID, &e.ResourceID, &e.Kind, &e.Title, &e.Summary, &e.Score, &e.TranscriptSource, &degraded, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Degraded = degraded != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the underlying database handle.
func (h *History) Close() error { return h.db.Close() }

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
