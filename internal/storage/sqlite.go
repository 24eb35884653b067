package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"tyres_bot/internal/model"
	"tyres_bot/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Storage backed by a SQLite database.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrations.Run(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Get returns the value stored under key, or nil if there is none.
func (s *SQLite) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *SQLite) Set(ctx context.Context, key string, value []byte) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now,
	)
	if err != nil {
		return fmt.Errorf("set %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *SQLite) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	return nil
}

// SaveWatch creates or replaces the chat's watch. A replaced watch starts
// over: its check time and seen listings are cleared.
func (s *SQLite) SaveWatch(ctx context.Context, w *model.Watch) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().Format(timeLayout)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO watches (chat_id, query, last_check_at, created_at) VALUES (?, ?, NULL, ?)
		 ON CONFLICT (chat_id) DO UPDATE SET query = excluded.query, last_check_at = NULL, created_at = excluded.created_at`,
		w.ChatID, w.Query, now,
	); err != nil {
		return fmt.Errorf("upsert watch: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_items WHERE chat_id = ?`, w.ChatID); err != nil {
		return fmt.Errorf("delete seen_items: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	w.LastCheckAt = nil
	w.CreatedAt, _ = time.Parse(timeLayout, now)
	return nil
}

// GetWatch returns the chat's watch or ErrNotFound.
func (s *SQLite) GetWatch(ctx context.Context, chatID int64) (*model.Watch, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT chat_id, query, last_check_at, created_at FROM watches WHERE chat_id = ?`, chatID,
	)
	w, err := scanWatch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return w, err
}

// ListDueWatches returns watches never checked or last checked at least interval ago.
func (s *SQLite) ListDueWatches(ctx context.Context, interval time.Duration) ([]model.Watch, error) {
	cutoff := time.Now().UTC().Add(-interval).Format(timeLayout)
	rows, err := s.db.QueryContext(ctx,
		`SELECT chat_id, query, last_check_at, created_at
		 FROM watches
		 WHERE last_check_at IS NULL
		    OR datetime(last_check_at) <= datetime(?)
		 ORDER BY chat_id`,
		cutoff,
	)
	if err != nil {
		return nil, fmt.Errorf("query due watches: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var watches []model.Watch
	for rows.Next() {
		w, err := scanWatch(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, *w)
	}
	return watches, rows.Err()
}

// UpdateWatch persists the watch's query and last check time.
func (s *SQLite) UpdateWatch(ctx context.Context, w *model.Watch) error {
	var lastCheck *string
	if w.LastCheckAt != nil {
		v := w.LastCheckAt.UTC().Format(timeLayout)
		lastCheck = &v
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE watches SET query = ?, last_check_at = ? WHERE chat_id = ?`,
		w.Query, lastCheck, w.ChatID,
	)
	if err != nil {
		return fmt.Errorf("update watch: %w", err)
	}
	return nil
}

// DeleteWatch removes the chat's watch and its seen listings.
func (s *SQLite) DeleteWatch(ctx context.Context, chatID int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_items WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete seen_items: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM watches WHERE chat_id = ?`, chatID); err != nil {
		return fmt.Errorf("delete watch: %w", err)
	}
	return tx.Commit()
}

// MarkSeen records that a listing has been announced to the chat.
func (s *SQLite) MarkSeen(ctx context.Context, chatID int64, itemID string) error {
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO seen_items (chat_id, item_id, seen_at) VALUES (?, ?, ?)`,
		chatID, itemID, now,
	)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	return nil
}

// IsSeen checks whether a listing has already been announced to the chat.
func (s *SQLite) IsSeen(ctx context.Context, chatID int64, itemID string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM seen_items WHERE chat_id = ? AND item_id = ?`,
		chatID, itemID,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check seen: %w", err)
	}
	return count > 0, nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanWatch(row scannable) (*model.Watch, error) {
	var w model.Watch
	var lastCheck, created sql.NullString
	if err := row.Scan(&w.ChatID, &w.Query, &lastCheck, &created); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan watch: %w", err)
	}
	if lastCheck.Valid {
		t, _ := time.Parse(timeLayout, lastCheck.String)
		w.LastCheckAt = &t
	}
	if created.Valid {
		w.CreatedAt, _ = time.Parse(timeLayout, created.String)
	}
	return &w, nil
}
