package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/xubill/twin/internal/domain/activity"
)

// ActivityRepository reads browsing activity rows from the
// activities table.
type ActivityRepository struct {
	client *Client
}

func NewActivityRepository(client *Client) *ActivityRepository {
	return &ActivityRepository{client: client}
}

// ListUnprocessed returns the user's unprocessed activities, oldest
// first.
func (r *ActivityRepository) ListUnprocessed(ctx context.Context, userID string) ([]activity.Activity, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("processed", "is.false")
	q.Set("order", "timestamp.asc")

	var rows []activity.Activity
	if err := r.client.do(ctx, http.MethodGet, "activities", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list unprocessed activities: %w", err)
	}
	return rows, nil
}

// MarkProcessed flips processed to true for the given activity IDs.
func (r *ActivityRepository) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("id", inList(ids))

	patch := map[string]bool{"processed": true}
	if err := r.client.do(ctx, http.MethodPatch, "activities", q, patch, nil); err != nil {
		return fmt.Errorf("mark activities processed: %w", err)
	}
	return nil
}
