package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned when no user matches the lookup.
var ErrNotFound = errors.New("user not found")

// Patch carries a partial update. Nil fields are left untouched.
type Patch struct {
	Email           *string          `json:"email,omitempty"`
	Name            *string          `json:"name,omitempty"`
	OnboardingState *OnboardingState `json:"onboarding_state,omitempty"`
}

// Repository is the persistence port for users.
type Repository interface {
	GetByPhone(ctx context.Context, phone string) (*User, error)
	List(ctx context.Context) ([]User, error)
	Create(ctx context.Context, u *User) (*User, error)
	Update(ctx context.Context, id string, patch Patch) error
}
