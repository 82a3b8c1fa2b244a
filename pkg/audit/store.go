package audit

import (
	"context"
	"time"
)

// Store persists audit entries. Implementations must be safe for
// concurrent use; the trail writes from a single goroutine but queries
// arrive from anywhere.
type Store interface {
	// Append persists one entry.
	Append(ctx context.Context, e *Entry) error

	// Search returns entries matching the query, newest first.
	Search(ctx context.Context, q Query) ([]*Entry, error)

	// PruneBefore deletes entries older than the cutoff, returning the
	// number removed.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Len returns the number of stored entries.
	Len(ctx context.Context) (int64, error)

	// Close releases backend resources.
	Close() error
}
