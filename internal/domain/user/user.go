package user

import (
	"strings"
	"time"
)

// OnboardingState is the persisted onboarding progress for a user.
// The empty state means the column is null in the datastore.
type OnboardingState string

const (
	StateNone          OnboardingState = ""
	StateAwaitingEmail OnboardingState = "awaiting_email"
	StateAwaitingName  OnboardingState = "awaiting_name"
	StateComplete      OnboardingState = "complete"
)

// Gate is the next input required from a user before normal
// interaction is allowed.
type Gate string

const (
	GateRegistration Gate = "registration"
	GateEmail        Gate = "email"
	GateName         Gate = "name"
	GateComplete     Gate = "complete"
)

// User is one row in the users table. Email and Name stay empty until
// the onboarding flow collects them.
type User struct {
	ID              string          `json:"id,omitempty"`
	PhoneNumber     string          `json:"phone_number"`
	Email           string          `json:"email,omitempty"`
	Name            string          `json:"name,omitempty"`
	OnboardingState OnboardingState `json:"onboarding_state,omitempty"`
	CreatedAt       time.Time       `json:"created_at,omitzero"`
}

// NextGate derives the gate a user must pass next.
//
// A recognized stored state is trusted directly. A null or unknown
// stored value falls back to deriving the gate from which of the
// email/name fields are still blank, so a row with a damaged state
// column still resolves to something sensible.
func (u *User) NextGate() Gate {
	switch u.OnboardingState {
	case StateAwaitingEmail:
		return GateEmail
	case StateAwaitingName:
		return GateName
	case StateComplete:
		return GateComplete
	}
	return u.deriveGate()
}

func (u *User) deriveGate() Gate {
	if strings.TrimSpace(u.Email) == "" {
		return GateEmail
	}
	if strings.TrimSpace(u.Name) == "" {
		return GateName
	}
	return GateComplete
}
