// Package history archives finished sessions to a local SQLite
// database so past transcripts can be recovered after the clipboard
// moves on.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bitgineer/Speakeasy-sub001/session"
)

// Entry is one archived session row.
type Entry struct {
	SessionID string
	Mode      string
	Outcome   string
	Text      string
	Reason    string
	AudioMs   int64
	TotalMs   int64
	StartedAt time.Time
}

// Store persists session records. Safe for concurrent use; the
// coordinator writes from its loop and the TUI reads on demand.
type Store struct {
	db *sql.DB
}

// DefaultPath returns the history database location next to the logs.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "speakeasy_history.sqlite"
	}
	return filepath.Join(home, ".local", "share", "speakeasy", "history.sqlite")
}

// Open opens or creates the database at path with WAL journaling.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	// modernc's driver takes pragmas as _pragma=name(value); the
	// mattn-style _journal_mode key is silently ignored.
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS sessions (
			id         TEXT PRIMARY KEY,
			mode       TEXT NOT NULL,
			outcome    TEXT NOT NULL,
			text       TEXT NOT NULL DEFAULT '',
			reason     TEXT NOT NULL DEFAULT '',
			audio_ms   INTEGER NOT NULL DEFAULT 0,
			total_ms   INTEGER NOT NULL DEFAULT 0,
			started_at REAL NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_sessions_started ON sessions(started_at DESC);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record satisfies the coordinator's archiver interface.
func (s *Store) Record(rec session.Record) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, mode, outcome, text, reason, audio_ms, total_ms, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.SessionID, rec.Mode, string(rec.Outcome), rec.Text, rec.Reason,
		rec.AudioMs, rec.TotalMs, unixFloat(rec.StartedAt))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// Recent returns the newest n archived sessions, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT id, mode, outcome, text, reason, audio_ms, total_ms, started_at
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?
	`, n)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var startedAt float64
		if err := rows.Scan(&e.SessionID, &e.Mode, &e.Outcome, &e.Text,
			&e.Reason, &e.AudioMs, &e.TotalMs, &startedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		e.StartedAt = timeFromUnix(startedAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastTranscript returns the text of the most recent completed
// session, or empty when nothing completed yet.
func (s *Store) LastTranscript() (string, error) {
	row := s.db.QueryRow(`
		SELECT text FROM sessions
		WHERE outcome = 'completed'
		ORDER BY started_at DESC
		LIMIT 1
	`)
	var text string
	if err := row.Scan(&text); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("scan transcript: %w", err)
	}
	return text, nil
}

func unixFloat(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
