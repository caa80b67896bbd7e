package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xubill/twin/internal/application/agent"
	"github.com/xubill/twin/internal/application/onboarding"
	"github.com/xubill/twin/internal/domain/llm"
	"github.com/xubill/twin/internal/domain/sms"
)

// InboundSMS is one message received on the SMS webhook.
type InboundSMS struct {
	From       string
	To         string
	Body       string
	MessageSID string
}

// agentRunner is the slice of the agent the orchestrator needs.
type agentRunner interface {
	Run(ctx context.Context, messages []llm.Message, phone string) agent.Result
}

// Orchestrator routes inbound SMS: onboarding gates first, then the
// agent for users who are fully set up.
type Orchestrator struct {
	gate         *onboarding.Gatekeeper
	agent        agentRunner
	conversation sms.ConversationReader
	sender       sms.Sender
	historyLimit int
}

func New(gate *onboarding.Gatekeeper, runner agentRunner, conversation sms.ConversationReader, sender sms.Sender, historyLimit int) *Orchestrator {
	if historyLimit <= 0 {
		historyLimit = 10
	}
	return &Orchestrator{
		gate:         gate,
		agent:        runner,
		conversation: conversation,
		sender:       sender,
		historyLimit: historyLimit,
	}
}

// ProcessInbound handles one webhook message end to end. The reply
// goes out over SMS; the returned error is for logging and the 500
// path only.
func (o *Orchestrator) ProcessInbound(ctx context.Context, msg InboundSMS) error {
	slog.Info("Inbound SMS", "from", msg.From, "sid", msg.MessageSID)

	consumed, err := o.gate.HandleMessage(ctx, msg.From, msg.Body)
	if err != nil {
		return fmt.Errorf("onboarding gate: %w", err)
	}
	if consumed {
		return nil
	}

	messages := o.buildConversation(ctx, msg)
	result := o.agent.Run(ctx, messages, msg.From)
	if !result.Success {
		slog.Error("Agent run failed", "from", msg.From, "error", result.Error)
		o.sender.Send(ctx, "Sorry, I hit a snag answering that. Please try again in a moment.", msg.From)
		return fmt.Errorf("agent run: %s", result.Error)
	}

	// a final text with no send_sms call still has to reach the user
	if result.SMSSent == 0 && strings.TrimSpace(result.FinalText) != "" {
		o.sender.Send(ctx, result.FinalText, msg.From)
	}
	return nil
}

func (o *Orchestrator) buildConversation(ctx context.Context, msg InboundSMS) []llm.Message {
	system := "You are a friendly learning companion that chats with users over SMS. " +
		"Answer their questions about what they have been learning, fetch transcripts or " +
		"web pages when they share links, and use the send_sms tool to reply. Keep replies " +
		"concise enough for a text message."

	messages := []llm.Message{{Role: "system", Content: system}}

	history, err := o.conversation.RecentConversation(ctx, msg.From, o.historyLimit)
	if err != nil {
		slog.Warn("Conversation history unavailable", "from", msg.From, "error", err)
	}
	for _, m := range history {
		role := "user"
		if m.Direction == "outbound" {
			role = "assistant"
		}
		messages = append(messages, llm.Message{Role: role, Content: m.Body})
	}

	return append(messages, llm.Message{Role: "user", Content: msg.Body})
}
