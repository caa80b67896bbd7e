package summary

import (
	"context"
	"time"
)

// Repository is the persistence port for summaries.
type Repository interface {
	// Insert stores a new summary and returns it with the generated ID.
	Insert(ctx context.Context, s *Summary) (*Summary, error)
	// ListSince returns the user's summaries generated at or after the
	// given instant, oldest first.
	ListSince(ctx context.Context, userID string, since time.Time) ([]Summary, error)
	// MarkProcessed flips processed to true for the given summary IDs.
	MarkProcessed(ctx context.Context, ids []string) error
}
