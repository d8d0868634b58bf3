// Package history records finished sessions in a SQLite database.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/daviddao/sportvision_viewer/internal/panel"
	"github.com/daviddao/sportvision_viewer/internal/snapshot"
)

const timeLayout = "2006-01-02T15:04:05Z07:00"

// Record is one finished session.
type Record struct {
	SessionID      string          `json:"session_id"`
	Source         string          `json:"source"`
	SourceRef      string          `json:"source_ref"`
	Sport          string          `json:"sport"`
	State          string          `json:"state"`
	Status         string          `json:"status"`
	FramesReceived uint64          `json:"frames_received"`
	FramesDropped  uint64          `json:"frames_dropped"`
	Counts         map[string]uint `json:"counts"`
	Timeline       []panel.Entry   `json:"timeline"`
	FinishedAt     time.Time       `json:"finished_at"`
}

// Recorder writes and lists session records.
type Recorder struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at dbPath.
func Open(dbPath string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	r := &Recorder{db: db}
	if err := r.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return r, nil
}

// Close closes the database.
func (r *Recorder) Close() error {
	return r.db.Close()
}

func (r *Recorder) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  source_ref TEXT NOT NULL,
  sport TEXT NOT NULL,
  state TEXT NOT NULL,
  status TEXT NOT NULL,
  frames_received INTEGER NOT NULL,
  frames_dropped INTEGER NOT NULL,
  counts TEXT NOT NULL,
  timeline TEXT NOT NULL,
  finished_at TEXT NOT NULL
);
`
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create sessions table: %w", err)
	}
	return nil
}

// Record stores snap. Recording the same session again replaces it.
func (r *Recorder) Record(ctx context.Context, snap *snapshot.DashboardSnapshot) error {
	counts, err := json.Marshal(snap.Counts)
	if err != nil {
		return fmt.Errorf("encode counts: %w", err)
	}
	timeline, err := json.Marshal(snap.Timeline)
	if err != nil {
		return fmt.Errorf("encode timeline: %w", err)
	}
	const stmt = `
INSERT INTO sessions (id, source, source_ref, sport, state, status, frames_received, frames_dropped, counts, timeline, finished_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  state=excluded.state,
  status=excluded.status,
  frames_received=excluded.frames_received,
  frames_dropped=excluded.frames_dropped,
  counts=excluded.counts,
  timeline=excluded.timeline,
  finished_at=excluded.finished_at;
`
	_, err = r.db.ExecContext(ctx, stmt,
		snap.SessionID,
		snap.Source,
		snap.SourceRef,
		snap.Sport,
		snap.State.String(),
		snap.Status,
		int64(snap.FramesReceived),
		int64(snap.FramesDropped),
		string(counts),
		string(timeline),
		snap.BuiltAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// List returns up to limit records, newest first.
func (r *Recorder) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, source, source_ref, sport, state, status, frames_received, frames_dropped, counts, timeline, finished_at
FROM sessions ORDER BY finished_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                Record
			received, dropped  int64
			counts, tl, finish string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Source, &rec.SourceRef, &rec.Sport, &rec.State,
			&rec.Status, &received, &dropped, &counts, &tl, &finish); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.FramesReceived = uint64(received)
		rec.FramesDropped = uint64(dropped)
		if err := json.Unmarshal([]byte(counts), &rec.Counts); err != nil {
			return nil, fmt.Errorf("decode counts of %s: %w", rec.SessionID, err)
		}
		if err := json.Unmarshal([]byte(tl), &rec.Timeline); err != nil {
			return nil, fmt.Errorf("decode timeline of %s: %w", rec.SessionID, err)
		}
		rec.FinishedAt, err = time.Parse(timeLayout, finish)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at of %s: %w", rec.SessionID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
