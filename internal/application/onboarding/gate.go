package onboarding

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xubill/twin/internal/domain/sms"
	"github.com/xubill/twin/internal/domain/user"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// Status is the onboarding position of a phone number.
type Status struct {
	UserExists         bool
	User               *user.User
	OnboardingComplete bool
	NextGate           user.Gate
	CurrentState       user.OnboardingState
}

// Gatekeeper decides whether an inbound message reaches the agent or
// is consumed by the onboarding conversation.
type Gatekeeper struct {
	users  user.Repository
	sender sms.Sender
}

func NewGatekeeper(users user.Repository, sender sms.Sender) *Gatekeeper {
	return &Gatekeeper{users: users, sender: sender}
}

// Evaluate looks up the phone number and reports where it stands in
// onboarding without sending anything.
func (g *Gatekeeper) Evaluate(ctx context.Context, phone string) (Status, error) {
	u, err := g.users.GetByPhone(ctx, phone)
	if err == user.ErrNotFound {
		return Status{NextGate: user.GateRegistration}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("evaluate onboarding: %w", err)
	}

	gate := u.NextGate()
	return Status{
		UserExists:         true,
		User:               u,
		OnboardingComplete: gate == user.GateComplete,
		NextGate:           gate,
		CurrentState:       u.OnboardingState,
	}, nil
}

// HandleMessage advances the onboarding conversation by one inbound
// message. It sends exactly one reply SMS and reports whether the
// message was consumed by a gate. Complete users pass through
// untouched.
func (g *Gatekeeper) HandleMessage(ctx context.Context, phone, body string) (consumed bool, err error) {
	status, err := g.Evaluate(ctx, phone)
	if err != nil {
		g.sendRetry(ctx, phone)
		return true, err
	}

	switch status.NextGate {
	case user.GateComplete:
		return false, nil

	case user.GateRegistration:
		state := user.StateAwaitingEmail
		created := &user.User{
			PhoneNumber:     phone,
			OnboardingState: state,
		}
		if _, err := g.users.Create(ctx, created); err != nil {
			g.sendRetry(ctx, phone)
			return true, fmt.Errorf("register user: %w", err)
		}
		slog.Info("New user registered", "phone", phone)
		g.sender.Send(ctx, "Welcome! I'm your learning companion. To get started, what's your email address?", phone)
		return true, nil

	case user.GateEmail:
		email := strings.TrimSpace(body)
		if !emailPattern.MatchString(email) {
			g.sender.Send(ctx, "That doesn't look like an email address. Please send a valid email, like you@example.com.", phone)
			return true, nil
		}
		next := user.StateAwaitingName
		patch := user.Patch{Email: &email, OnboardingState: &next}
		if err := g.users.Update(ctx, status.User.ID, patch); err != nil {
			g.sendRetry(ctx, phone)
			return true, fmt.Errorf("save email: %w", err)
		}
		g.sender.Send(ctx, "Thanks! And what should I call you?", phone)
		return true, nil

	case user.GateName:
		name := strings.TrimSpace(body)
		if name == "" {
			g.sender.Send(ctx, "I didn't catch that. What name should I use for you?", phone)
			return true, nil
		}
		done := user.StateComplete
		patch := user.Patch{Name: &name, OnboardingState: &done}
		if err := g.users.Update(ctx, status.User.ID, patch); err != nil {
			g.sendRetry(ctx, phone)
			return true, fmt.Errorf("save name: %w", err)
		}
		slog.Info("Onboarding complete", "phone", phone, "name", name)
		g.sender.Send(ctx, fmt.Sprintf("Great to meet you, %s! You're all set. I'll text you summaries of what you've been learning, and you can ask me anything here.", name), phone)
		return true, nil
	}

	return false, nil
}

func (g *Gatekeeper) sendRetry(ctx context.Context, phone string) {
	g.sender.Send(ctx, "Something went wrong on our side. Please try again in a moment.", phone)
}
