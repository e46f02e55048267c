package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/vidgrab/vidgrab/internal/domain"
)

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the history database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS history (
			id TEXT PRIMARY KEY,
			platform TEXT NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			media_url TEXT,
			saved_at DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_history_saved_at ON history(saved_at);
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create table: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Append records an entry and trims the table back to the cap.
func (s *SQLiteStore) Append(ctx context.Context, entry domain.HistoryEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (id, platform, url, title, media_url, saved_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Platform.String(), entry.URL, entry.Title,
		entry.MediaURL, entry.SavedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (
			SELECT id FROM history ORDER BY saved_at DESC, rowid DESC LIMIT ?
		)`, domain.HistoryCap,
	)
	if err != nil {
		return fmt.Errorf("trim history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns entries most-recent-first.
func (s *SQLiteStore) List(ctx context.Context) ([]domain.HistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform, url, title, media_url, saved_at
		 FROM history ORDER BY saved_at DESC, rowid DESC LIMIT ?`,
		domain.HistoryCap,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var entries []domain.HistoryEntry
	for rows.Next() {
		var e domain.HistoryEntry
		var platform, savedAt string
		var mediaURL sql.NullString
		if err := rows.Scan(&e.ID, &platform, &e.URL, &e.Title, &mediaURL, &savedAt); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Platform = domain.Platform(platform)
		e.MediaURL = mediaURL.String
		if t, err := time.Parse(time.RFC3339Nano, savedAt); err == nil {
			e.SavedAt = t
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history: %w", err)
	}
	return entries, nil
}

// Clear removes all entries.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
