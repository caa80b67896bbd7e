package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/xubill/twin/internal/domain/summary"
)

// SummaryRepository persists generated summaries in the summaries
// table.
type SummaryRepository struct {
	client *Client
}

func NewSummaryRepository(client *Client) *SummaryRepository {
	return &SummaryRepository{client: client}
}

// Insert stores a new summary and returns the stored row.
func (r *SummaryRepository) Insert(ctx context.Context, s *summary.Summary) (*summary.Summary, error) {
	var rows []summary.Summary
	if err := r.client.do(ctx, http.MethodPost, "summaries", nil, s, &rows); err != nil {
		return nil, fmt.Errorf("insert summary: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert summary: empty representation")
	}
	return &rows[0], nil
}

// ListSince returns the user's summaries generated at or after the
// given instant, oldest first.
func (r *SummaryRepository) ListSince(ctx context.Context, userID string, since time.Time) ([]summary.Summary, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("user_id", "eq."+userID)
	q.Set("prompt_generated_at", "gte."+since.UTC().Format(time.RFC3339))
	q.Set("order", "prompt_generated_at.asc")

	var rows []summary.Summary
	if err := r.client.do(ctx, http.MethodGet, "summaries", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	return rows, nil
}

// MarkProcessed flips processed to true for the given summary IDs.
func (r *SummaryRepository) MarkProcessed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	q := url.Values{}
	q.Set("id", inList(ids))

	patch := map[string]bool{"processed": true}
	if err := r.client.do(ctx, http.MethodPatch, "summaries", q, patch, nil); err != nil {
		return fmt.Errorf("mark summaries processed: %w", err)
	}
	return nil
}
