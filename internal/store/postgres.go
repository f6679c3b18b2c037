package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/TobiSchelling/newsfuse/internal/news"
)

// PostgresSink writes fused reports to a PostgreSQL news table with
// native text[] columns for content and tags.
type PostgresSink struct {
	db     *sql.DB
	policy Policy
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS news (
	id SERIAL PRIMARY KEY,
	title TEXT NOT NULL,
	summary TEXT NOT NULL,
	content TEXT[] NOT NULL DEFAULT '{}',
	tags TEXT[] NOT NULL DEFAULT '{}',
	url_cnn TEXT NOT NULL,
	url_rt TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// The unique index backs the ignore/upsert policies. It is created only
// when one of them is active, so the default insert policy keeps the
// table free of constraints and duplicates survive exactly as before.
const postgresDedupIndex = `
CREATE UNIQUE INDEX IF NOT EXISTS news_url_pair_idx ON news (url_cnn, url_rt);
`

// OpenPostgres connects, verifies connectivity, and initializes the
// schema.
func OpenPostgres(dsn string, policy Policy) (*PostgresSink, error) {
	if policy == "" {
		policy = PolicyInsert
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}

	if _, err := db.Exec(postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	if policy != PolicyInsert {
		if _, err := db.Exec(postgresDedupIndex); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating dedup index: %w", err)
		}
	}

	return &PostgresSink{db: db, policy: policy}, nil
}

// Store inserts one fused report according to the dedup policy.
func (s *PostgresSink) Store(ctx context.Context, report *news.FusedReport) error {
	query := `INSERT INTO news (title, summary, content, tags, url_cnn, url_rt)
		VALUES ($1, $2, $3, $4, $5, $6)`
	switch s.policy {
	case PolicyIgnore:
		query += ` ON CONFLICT (url_cnn, url_rt) DO NOTHING`
	case PolicyUpsert:
		query += ` ON CONFLICT (url_cnn, url_rt) DO UPDATE
			SET title = EXCLUDED.title, summary = EXCLUDED.summary,
			    content = EXCLUDED.content, tags = EXCLUDED.tags`
	}

	_, err := s.db.ExecContext(ctx, query,
		report.Title, report.Summary,
		pq.Array(report.Content), pq.Array(report.Tags),
		report.URLPrimary, report.URLSecondary,
	)
	if err != nil {
		return &StorageError{Err: err}
	}
	return nil
}

// Recent returns the newest reports in the consumer read shape.
func (s *PostgresSink) Recent(ctx context.Context, limit int) ([]StoredReport, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, summary, url_cnn, url_rt, created_at::text
		FROM news ORDER BY created_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanStoredReports(rows)
}

// Close closes the connection pool.
func (s *PostgresSink) Close() error {
	return s.db.Close()
}

func scanStoredReports(rows *sql.Rows) ([]StoredReport, error) {
	var reports []StoredReport
	for rows.Next() {
		var r StoredReport
		if err := rows.Scan(&r.ID, &r.Title, &r.Summary, &r.URLCNN, &r.URLRT, &r.CreatedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
