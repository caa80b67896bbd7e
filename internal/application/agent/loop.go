package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xubill/twin/internal/domain/llm"
	"github.com/xubill/twin/internal/domain/sms"
	"github.com/xubill/twin/internal/infrastructure/scrape"
	"github.com/xubill/twin/internal/infrastructure/transcript"
)

const defaultMaxIterations = 5

// toolset is the per-run tool catalog the loop drives.
type toolset interface {
	Definitions() []llm.ToolDefinition
	Execute(ctx context.Context, name string, args map[string]any) string
	SMSSent() int
}

// Result is the outcome of one agent run.
type Result struct {
	Success    bool
	FinalText  string
	ToolsUsed  []string
	SMSSent    int
	Usage      llm.Usage
	Iterations int
	Error      string
}

// Runner drives the bounded tool-calling loop: ask the model, run
// the tools it requests, feed results back, stop when it answers in
// plain text or the iteration budget runs out.
type Runner struct {
	provider      llm.Provider
	maxIterations int
	newToolbox    func(phone string) toolset
}

func NewRunner(provider llm.Provider, sender sms.Sender, transcripts *transcript.Fetcher, scraper *scrape.Scraper, maxIterations int) *Runner {
	if maxIterations <= 0 {
		maxIterations = defaultMaxIterations
	}
	return &Runner{
		provider:      provider,
		maxIterations: maxIterations,
		newToolbox: func(phone string) toolset {
			return NewToolbox(sender, transcripts, scraper, phone)
		},
	}
}

// Run executes one agent conversation for the given phone number.
// The returned Result carries failure detail in Error rather than an
// error return; provider failures and budget exhaustion both land
// there.
func (r *Runner) Run(ctx context.Context, messages []llm.Message, phone string) Result {
	toolbox := r.newToolbox(phone)
	result := Result{}

	for i := 0; i < r.maxIterations; i++ {
		result.Iterations = i + 1

		resp, err := r.provider.Chat(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    toolbox.Definitions(),
		})
		if err != nil {
			slog.Error("Agent chat call failed", "phone", phone, "iteration", result.Iterations, "error", err)
			result.Error = err.Error()
			result.SMSSent = toolbox.SMSSent()
			return result
		}
		result.Usage.Add(resp.Usage)

		if len(resp.ToolCalls) == 0 {
			result.Success = true
			result.FinalText = resp.Content
			result.SMSSent = toolbox.SMSSent()
			return result
		}

		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			slog.Debug("Agent tool call", "phone", phone, "tool", call.Name)
			result.ToolsUsed = append(result.ToolsUsed, call.Name)
			output := toolbox.Execute(ctx, call.Name, call.Arguments)
			messages = append(messages, llm.Message{
				Role:       "tool",
				Content:    output,
				ToolCallID: call.ID,
			})
		}
	}

	result.Error = fmt.Sprintf("max iterations reached (%d)", r.maxIterations)
	result.SMSSent = toolbox.SMSSent()
	slog.Warn("Agent run exhausted iteration budget", "phone", phone, "iterations", result.Iterations)
	return result
}
