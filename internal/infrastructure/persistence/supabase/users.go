package supabase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/xubill/twin/internal/domain/user"
)

// UserRepository persists users in the Supabase users table.
type UserRepository struct {
	client *Client
}

func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

// GetByPhone looks a user up by phone number. Returns
// user.ErrNotFound when no row matches.
func (r *UserRepository) GetByPhone(ctx context.Context, phone string) (*user.User, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("phone_number", "eq."+phone)

	var rows []user.User
	if err := r.client.do(ctx, http.MethodGet, "users", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	if len(rows) == 0 {
		return nil, user.ErrNotFound
	}
	return &rows[0], nil
}

// List returns all users.
func (r *UserRepository) List(ctx context.Context) ([]user.User, error) {
	q := url.Values{}
	q.Set("select", "*")

	var rows []user.User
	if err := r.client.do(ctx, http.MethodGet, "users", q, nil, &rows); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return rows, nil
}

// Create inserts a new user and returns the stored row.
func (r *UserRepository) Create(ctx context.Context, u *user.User) (*user.User, error) {
	var rows []user.User
	if err := r.client.do(ctx, http.MethodPost, "users", nil, u, &rows); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("create user: empty representation")
	}
	return &rows[0], nil
}

// Update applies a partial update to the user with the given ID.
func (r *UserRepository) Update(ctx context.Context, id string, patch user.Patch) error {
	q := url.Values{}
	q.Set("id", "eq."+id)

	var rows []user.User
	if err := r.client.do(ctx, http.MethodPatch, "users", q, patch, &rows); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}
