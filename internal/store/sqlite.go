package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/TobiSchelling/newsfuse/internal/news"
)

// SQLiteSink is the local driver, used for development runs and tests.
// SQLite has no array columns, so content and tags are stored as JSON
// text; the row shape otherwise mirrors the postgres table.
type SQLiteSink struct {
	db     *sql.DB
	policy Policy
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS news (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT NOT NULL,
	summary TEXT NOT NULL,
	content TEXT NOT NULL DEFAULT '[]',
	tags TEXT NOT NULL DEFAULT '[]',
	url_cnn TEXT NOT NULL,
	url_rt TEXT NOT NULL,
	created_at TEXT NOT NULL DEFAULT (datetime('now'))
);
`

const sqliteDedupIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS news_url_pair_idx ON news (url_cnn, url_rt);
`

// OpenSQLite creates or opens a SQLite-backed sink at the given path.
func OpenSQLite(dbPath string, policy Policy) (*SQLiteSink, error) {
	if policy == "" {
		policy = PolicyInsert
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if policy != PolicyInsert {
		if _, err := db.Exec(sqliteDedupIndex); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating dedup index: %w", err)
		}
	}

	return &SQLiteSink{db: db, policy: policy}, nil
}

// Store inserts one fused report according to the dedup policy.
func (s *SQLiteSink) Store(ctx context.Context, report *news.FusedReport) error {
	content, err := json.Marshal(report.Content)
	if err != nil {
		return &StorageError{Err: err}
	}
	tags, err := json.Marshal(report.Tags)
	if err != nil {
		return &StorageError{Err: err}
	}

	query := `INSERT INTO news (title, summary, content, tags, url_cnn, url_rt)
		VALUES (?, ?, ?, ?, ?, ?)`
	switch s.policy {
	case PolicyIgnore:
		query += ` ON CONFLICT (url_cnn, url_rt) DO NOTHING`
	case PolicyUpsert:
		query += ` ON CONFLICT (url_cnn, url_rt) DO UPDATE
			SET title = excluded.title, summary = excluded.summary,
			    content = excluded.content, tags = excluded.tags`
	}

	_, err = s.db.ExecContext(ctx, query,
		report.Title, report.Summary, string(content), string(tags),
		report.URLPrimary, report.URLSecondary,
	)
	if err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

// Recent returns the newest reports in the consumer read shape.
func (s *SQLiteSink) Recent(ctx context.Context, limit int) ([]StoredReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, url_cnn, url_rt, created_at
		FROM news ORDER BY created_at DESC, id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStoredReports(rows)
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
