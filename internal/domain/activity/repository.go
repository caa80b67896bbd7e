package activity

import "context"

// Repository is the persistence port for activities.
type Repository interface {
	// ListUnprocessed returns the user's activities with processed=false,
	// oldest first.
	ListUnprocessed(ctx context.Context, userID string) ([]Activity, error)
	// MarkProcessed flips processed to true for the given activity IDs.
	MarkProcessed(ctx context.Context, ids []string) error
}
