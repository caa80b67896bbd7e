package sms

import (
	"context"
	"time"
)

// SendResult is the structured outcome of one SMS delivery attempt.
// Send never raises past its boundary; failures come back here.
type SendResult struct {
	Success    bool   `json:"success"`
	MessageSID string `json:"message_sid,omitempty"`
	Status     string `json:"status"`
	To         string `json:"to"`
	From       string `json:"from"`
	Error      string `json:"error,omitempty"`
}

// Message is one entry in the telephony provider's message log.
// Conversation history is ephemeral on our side; it is reconstructed
// from the provider per agent invocation.
type Message struct {
	Direction string // "inbound" (from the user) or "outbound"
	Body      string
	SentAt    time.Time
}

// Sender delivers a text message to a phone number.
type Sender interface {
	Send(ctx context.Context, body, to string) SendResult
}

// ConversationReader exposes the recent message history with one
// phone number, oldest first.
type ConversationReader interface {
	RecentConversation(ctx context.Context, phone string, limit int) ([]Message, error)
}
