package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fetchbot/internal/domain"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements domain.IdentityStore using SQLite. The videos table
// primary key is the only concurrency guard: a duplicate insert surfaces as
// domain.ErrDuplicateIdentity, the expected signal of a lost race.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection for SQLite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db, logger: logger}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS videos (
		video_id    TEXT PRIMARY KEY,
		platform    TEXT NOT NULL,
		title       TEXT,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_videos_platform ON videos(platform);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Exists reports whether a record with the given identity is persisted.
func (s *SQLiteStore) Exists(ctx context.Context, identity string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM videos WHERE video_id = ?`, identity,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Record inserts a new video record. Append-only: an existing identity is
// never overwritten, the insert fails with domain.ErrDuplicateIdentity.
func (s *SQLiteStore) Record(ctx context.Context, rec domain.VideoRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO videos (video_id, platform, title, created_at) VALUES (?, ?, ?, ?)`,
		rec.Identity, rec.Platform, rec.Title, rec.CreatedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.ErrDuplicateIdentity
		}
		return err
	}
	return nil
}

// Count returns the total number of recorded videos.
func (s *SQLiteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM videos`).Scan(&n)
	return n, err
}

// Recent returns the most recently recorded videos, newest first.
func (s *SQLiteStore) Recent(ctx context.Context, limit int) ([]domain.VideoRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, platform, title, created_at
		 FROM videos ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.VideoRecord
	for rows.Next() {
		var r domain.VideoRecord
		var title sql.NullString
		if err := rows.Scan(&r.Identity, &r.Platform, &title, &r.CreatedAt); err != nil {
			return nil, err
		}
		r.Title = title.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
