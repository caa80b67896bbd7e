package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xubill/twin/internal/domain/llm"
	"github.com/xubill/twin/internal/domain/sms"
	"github.com/xubill/twin/internal/infrastructure/scrape"
	"github.com/xubill/twin/internal/infrastructure/transcript"
)

// Tool is one callable entry in the agent's catalog.
type Tool struct {
	Definition llm.ToolDefinition
	Execute    func(ctx context.Context, args map[string]any) (string, error)
}

// Toolbox is the fixed tool catalog for one agent run, bound to the
// phone number the run serves.
type Toolbox struct {
	tools   []Tool
	smsSent int
}

// NewToolbox builds the catalog for one run. defaultPhone is used
// when the model omits the to_number argument.
func NewToolbox(sender sms.Sender, transcripts *transcript.Fetcher, scraper *scrape.Scraper, defaultPhone string) *Toolbox {
	tb := &Toolbox{}

	tb.tools = append(tb.tools, Tool{
		Definition: llm.ToolDefinition{
			Name:        "send_sms",
			Description: "Send an SMS text message to the user. Use this to deliver your reply.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"message": map[string]any{
						"type":        "string",
						"description": "The text message to send",
					},
					"to_number": map[string]any{
						"type":        "string",
						"description": "Destination phone number in E.164 format. Defaults to the current user.",
					},
				},
				"required": []string{"message"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			message, _ := args["message"].(string)
			if message == "" {
				return "", fmt.Errorf("missing message argument")
			}
			to, _ := args["to_number"].(string)
			if to == "" {
				to = defaultPhone
			}
			result := sender.Send(ctx, message, to)
			if result.Success {
				tb.smsSent++
			}
			payload, err := json.Marshal(result)
			if err != nil {
				return "", fmt.Errorf("marshal result: %w", err)
			}
			return string(payload), nil
		},
	})

	tb.tools = append(tb.tools, Tool{
		Definition: llm.ToolDefinition{
			Name:        "get_youtube_transcript",
			Description: "Fetch the transcript of a YouTube video given its URL or video ID.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"video_url": map[string]any{
						"type":        "string",
						"description": "YouTube video URL or 11-character video ID",
					},
				},
				"required": []string{"video_url"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			videoURL, _ := args["video_url"].(string)
			if videoURL == "" {
				return "", fmt.Errorf("missing video_url argument")
			}
			return transcripts.Transcript(ctx, videoURL)
		},
	})

	tb.tools = append(tb.tools, Tool{
		Definition: llm.ToolDefinition{
			Name:        "scrape_website_info",
			Description: "Fetch a web page and return its title and readable text content.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"url": map[string]any{
						"type":        "string",
						"description": "The page URL to fetch",
					},
				},
				"required": []string{"url"},
			},
		},
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			pageURL, _ := args["url"].(string)
			if pageURL == "" {
				return "", fmt.Errorf("missing url argument")
			}
			result, err := scraper.Fetch(ctx, pageURL)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("Title: %s\n\n%s", result.Title, result.Text), nil
		},
	})

	return tb
}

// Definitions returns the catalog in request form.
func (tb *Toolbox) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(tb.tools))
	for _, t := range tb.tools {
		defs = append(defs, t.Definition)
	}
	return defs
}

// Execute runs the named tool. Unknown tools and tool failures come
// back as text so the model can recover.
func (tb *Toolbox) Execute(ctx context.Context, name string, args map[string]any) string {
	for _, t := range tb.tools {
		if t.Definition.Name != name {
			continue
		}
		out, err := t.Execute(ctx, args)
		if err != nil {
			return fmt.Sprintf("Error: %v", err)
		}
		return out
	}
	return fmt.Sprintf("Unknown tool: %s", name)
}

// SMSSent reports how many messages this run delivered.
func (tb *Toolbox) SMSSent() int {
	return tb.smsSent
}
