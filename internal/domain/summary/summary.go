package summary

import (
	"strings"
	"time"
)

// ContentBlock is one block of generated text. The summaries table
// stores the model's content as a JSON array of these blocks.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage is the token accounting reported by the model for one
// generation.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Summary is one row in the summaries table: a model-generated
// synthesis of a batch of activities, with provenance back to the
// source activity IDs. Column names match the datastore schema.
type Summary struct {
	ID                string         `json:"id,omitempty"`
	UserID            string         `json:"user_id"`
	Content           []ContentBlock `json:"summary"`
	FinishReason      string         `json:"cohere_finish_reason,omitempty"`
	Usage             *Usage         `json:"cohere_usage,omitempty"`
	Prompt            string         `json:"cohere_prompt,omitempty"`
	SourceActivityIDs []string       `json:"source_activity_ids,omitempty"`
	GeneratedAt       time.Time      `json:"prompt_generated_at"`
	Processed         bool           `json:"processed,omitempty"`
}

// Text concatenates the summary's content blocks into plain text.
func (s *Summary) Text() string {
	var b strings.Builder
	for _, block := range s.Content {
		b.WriteString(block.Text)
	}
	return b.String()
}

// IDs collects the identifiers of the given summaries.
func IDs(summaries []Summary) []string {
	ids := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	return ids
}
