// Package store persists fused reports into the news table. Writes are
// append-only by default; the dedup policy exists because duplicate rows
// across re-runs may or may not be what a deployment wants, and the
// original behavior (keep duplicates) should not be silently changed.
package store

import (
	"context"
	"fmt"

	"github.com/TobiSchelling/newsfuse/internal/news"
)

// Policy controls what an insert does when a report for the same
// (url_cnn, url_rt) pair already exists.
type Policy string

const (
	// PolicyInsert always appends, duplicates included (reference behavior).
	PolicyInsert Policy = "insert"
	// PolicyIgnore keeps the first row and drops later duplicates.
	PolicyIgnore Policy = "ignore"
	// PolicyUpsert replaces the stored report for the pair.
	PolicyUpsert Policy = "upsert"
)

// StorageError wraps a rejected write. It is scoped to one report and
// never aborts sibling writes.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage failed: %v", e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

// StoredReport is the consumer-facing row shape.
type StoredReport struct {
	ID        int64
	Title     string
	Summary   string
	URLCNN    string
	URLRT     string
	CreatedAt string
}

// Sink is the persistence boundary of the pipeline.
type Sink interface {
	Store(ctx context.Context, report *news.FusedReport) error
	Recent(ctx context.Context, limit int) ([]StoredReport, error)
	Close() error
}
