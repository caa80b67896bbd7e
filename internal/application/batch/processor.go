package batch

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/xubill/twin/internal/application/agent"
	"github.com/xubill/twin/internal/domain/activity"
	"github.com/xubill/twin/internal/domain/llm"
	"github.com/xubill/twin/internal/domain/sms"
	"github.com/xubill/twin/internal/domain/summary"
	"github.com/xubill/twin/internal/domain/user"
)

var keyURLPattern = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// Options tunes the batch processor. Zero values fall back to
// defaults.
type Options struct {
	AnalysisWorkers  int
	DispatchWorkers  int
	LaunchStagger    time.Duration
	SettleWindow     time.Duration
	TrailingWindow   time.Duration
	HistoryLimit     int
	SummaryMaxTokens int
}

func (o *Options) applyDefaults() {
	if o.AnalysisWorkers <= 0 {
		o.AnalysisWorkers = 5
	}
	if o.DispatchWorkers <= 0 {
		o.DispatchWorkers = 3
	}
	if o.LaunchStagger <= 0 {
		o.LaunchStagger = 500 * time.Millisecond
	}
	if o.SettleWindow <= 0 {
		o.SettleWindow = 60 * time.Second
	}
	if o.TrailingWindow <= 0 {
		o.TrailingWindow = 24 * time.Hour
	}
	if o.HistoryLimit <= 0 {
		o.HistoryLimit = 10
	}
}

// UserOutcome is the per-user result of one batch pass.
type UserOutcome struct {
	UserID    string   `json:"user_id"`
	Phone     string   `json:"phone,omitempty"`
	Processed bool     `json:"processed"`
	Skipped   bool     `json:"skipped"`
	Reason    string   `json:"reason,omitempty"`
	SummaryID string   `json:"summary_id,omitempty"`
	Items     int      `json:"items"`
	KeyURLs   []string `json:"key_urls,omitempty"`
	SMSSent   int      `json:"sms_sent,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Report is the outcome of one batch job across all users.
type Report struct {
	JobID     string        `json:"job_id"`
	Users     int           `json:"users"`
	Outcomes  []UserOutcome `json:"outcomes"`
	StartedAt time.Time     `json:"started_at"`
	Duration  string        `json:"duration"`
}

// agentRunner is the slice of the agent the dispatcher needs.
type agentRunner interface {
	Run(ctx context.Context, messages []llm.Message, phone string) agent.Result
}

// Processor runs the two scheduled batch passes: activity analysis
// and summary dispatch.
type Processor struct {
	users        user.Repository
	activities   activity.Repository
	summaries    summary.Repository
	provider     llm.Provider
	conversation sms.ConversationReader
	agent        agentRunner
	opts         Options
	now          func() time.Time
}

func NewProcessor(
	users user.Repository,
	activities activity.Repository,
	summaries summary.Repository,
	provider llm.Provider,
	conversation sms.ConversationReader,
	runner agentRunner,
	opts Options,
) *Processor {
	opts.applyDefaults()
	return &Processor{
		users:        users,
		activities:   activities,
		summaries:    summaries,
		provider:     provider,
		conversation: conversation,
		agent:        runner,
		opts:         opts,
		now:          time.Now,
	}
}

func newJobID(now time.Time) string {
	return fmt.Sprintf("%s-%s", now.Format("20060102-150405"), uuid.NewString()[:8])
}

// RunAnalysis summarizes each user's unprocessed activity. Users
// whose newest activity is younger than the settle window are left
// for the next pass so that in-flight browsing sessions land whole.
func (p *Processor) RunAnalysis(ctx context.Context) (*Report, error) {
	started := p.now()
	jobID := newJobID(started)

	users, err := p.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	slog.Info("Analysis job started", "job_id", jobID, "users", len(users))

	outcomes := make([]UserOutcome, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.AnalysisWorkers)

	for i, u := range users {
		if i > 0 {
			time.Sleep(p.opts.LaunchStagger)
		}
		i, u := i, u
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = UserOutcome{UserID: u.ID, Error: fmt.Sprintf("panic: %v", r)}
					slog.Error("Analysis worker panicked", "job_id", jobID, "user_id", u.ID, "panic", r)
				}
			}()
			outcomes[i] = p.analyzeUser(gctx, u)
			return nil
		})
	}
	g.Wait()

	report := &Report{
		JobID:     jobID,
		Users:     len(users),
		Outcomes:  outcomes,
		StartedAt: started,
		Duration:  p.now().Sub(started).String(),
	}
	slog.Info("Analysis job finished", "job_id", jobID, "duration", report.Duration)
	return report, nil
}

func (p *Processor) analyzeUser(ctx context.Context, u user.User) UserOutcome {
	out := UserOutcome{UserID: u.ID, Phone: u.PhoneNumber}

	items, err := p.activities.ListUnprocessed(ctx, u.ID)
	if err != nil {
		out.Error = err.Error()
		return out
	}
	if len(items) == 0 {
		out.Skipped = true
		out.Reason = "no unprocessed activity"
		return out
	}

	// exactly settle-window-old activity is eligible
	age := p.now().Sub(activity.Newest(items))
	if age < p.opts.SettleWindow {
		out.Skipped = true
		out.Reason = "recent activity still settling"
		return out
	}

	prompt := buildAnalysisPrompt(items)
	generatedAt := p.now().UTC()

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens: p.opts.SummaryMaxTokens,
	})
	if err != nil {
		out.Error = fmt.Sprintf("summarize: %v", err)
		return out
	}

	s := &summary.Summary{
		UserID:            u.ID,
		Content:           []summary.ContentBlock{{Type: "text", Text: resp.Content}},
		FinishReason:      resp.FinishReason,
		Prompt:            prompt,
		SourceActivityIDs: activity.IDs(items),
		GeneratedAt:       generatedAt,
	}
	if resp.Usage != nil {
		s.Usage = &summary.Usage{
			InputTokens:  resp.Usage.InputTokens,
			OutputTokens: resp.Usage.OutputTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		}
	}

	stored, err := p.summaries.Insert(ctx, s)
	if err != nil {
		out.Error = fmt.Sprintf("store summary: %v", err)
		return out
	}

	if err := p.activities.MarkProcessed(ctx, activity.IDs(items)); err != nil {
		// summary exists; the rows will be re-summarized next pass
		out.Error = fmt.Sprintf("mark processed: %v", err)
		out.SummaryID = stored.ID
		return out
	}

	out.Processed = true
	out.SummaryID = stored.ID
	out.Items = len(items)
	out.KeyURLs = harvestKeyURLs(resp.Content)
	slog.Info("User activity summarized", "user_id", u.ID, "items", len(items), "summary_id", stored.ID)
	return out
}

func buildAnalysisPrompt(items []activity.Activity) string {
	var b strings.Builder
	b.WriteString("You are analyzing a user's recent browsing activity to understand what they have been learning.\n\n")
	b.WriteString("Browsing activity:\n")
	for _, a := range items {
		fmt.Fprintf(&b, "Time: %s\nDomain: %s\nTitle: %s\nURL: %s\n\n",
			a.Timestamp.Format(time.RFC3339), a.Domain, a.Title, a.URL)
	}
	b.WriteString("Summarize this activity with two sections:\n")
	b.WriteString("MAIN LEARNING TOPICS: the subjects the user spent real time on, with a short note on what they covered.\n")
	b.WriteString("KEY URLs: the most important links worth revisiting, one per line.\n")
	b.WriteString("Ignore idle browsing and focus on what the user was trying to learn.")
	return b.String()
}

func harvestKeyURLs(text string) []string {
	matches := keyURLPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var urls []string
	for _, m := range matches {
		m = strings.TrimRight(m, ".,;")
		if !seen[m] {
			seen[m] = true
			urls = append(urls, m)
		}
	}
	return urls
}

// RunSummaryDispatch texts each user about their unprocessed
// summaries from the trailing window, driven through the agent so
// the model chooses how to phrase and deliver the message.
func (p *Processor) RunSummaryDispatch(ctx context.Context) (*Report, error) {
	started := p.now()
	jobID := newJobID(started)

	users, err := p.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	slog.Info("Dispatch job started", "job_id", jobID, "users", len(users))

	outcomes := make([]UserOutcome, len(users))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.DispatchWorkers)

	for i, u := range users {
		if i > 0 {
			time.Sleep(p.opts.LaunchStagger)
		}
		i, u := i, u
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					outcomes[i] = UserOutcome{UserID: u.ID, Error: fmt.Sprintf("panic: %v", r)}
					slog.Error("Dispatch worker panicked", "job_id", jobID, "user_id", u.ID, "panic", r)
				}
			}()
			outcomes[i] = p.dispatchUser(gctx, u)
			return nil
		})
	}
	g.Wait()

	report := &Report{
		JobID:     jobID,
		Users:     len(users),
		Outcomes:  outcomes,
		StartedAt: started,
		Duration:  p.now().Sub(started).String(),
	}
	slog.Info("Dispatch job finished", "job_id", jobID, "duration", report.Duration)
	return report, nil
}

func (p *Processor) dispatchUser(ctx context.Context, u user.User) UserOutcome {
	out := UserOutcome{UserID: u.ID, Phone: u.PhoneNumber}

	if u.NextGate() != user.GateComplete {
		out.Skipped = true
		out.Reason = "onboarding incomplete"
		return out
	}

	since := p.now().Add(-p.opts.TrailingWindow)
	window, err := p.summaries.ListSince(ctx, u.ID, since)
	if err != nil {
		out.Error = err.Error()
		return out
	}

	var fresh, discussed []summary.Summary
	for _, s := range window {
		if s.Processed {
			discussed = append(discussed, s)
		} else {
			fresh = append(fresh, s)
		}
	}
	if len(fresh) == 0 {
		out.Skipped = true
		out.Reason = "no new summaries"
		return out
	}

	history, err := p.conversation.RecentConversation(ctx, u.PhoneNumber, p.opts.HistoryLimit)
	if err != nil {
		slog.Warn("Conversation history unavailable", "user_id", u.ID, "error", err)
		history = nil
	}

	prompt := buildDispatchPrompt(u, fresh, discussed, history)
	result := p.agent.Run(ctx, []llm.Message{{Role: "user", Content: prompt}}, u.PhoneNumber)
	out.SMSSent = result.SMSSent
	if !result.Success {
		out.Error = result.Error
		return out
	}

	// the agent decided what to send; the summaries are spoken for
	// either way
	if err := p.summaries.MarkProcessed(ctx, summary.IDs(fresh)); err != nil {
		out.Error = fmt.Sprintf("mark processed: %v", err)
		return out
	}

	out.Processed = true
	out.Items = len(fresh)
	slog.Info("Summaries dispatched", "user_id", u.ID, "summaries", len(fresh), "sms_sent", result.SMSSent)
	return out
}

func buildDispatchPrompt(u user.User, fresh, discussed []summary.Summary, history []sms.Message) string {
	var b strings.Builder
	name := u.Name
	if name == "" {
		name = "the user"
	}
	fmt.Fprintf(&b, "You are a learning companion texting %s about what they have been studying.\n\n", name)

	b.WriteString("New learning summaries to share:\n")
	for _, s := range fresh {
		fmt.Fprintf(&b, "- %s\n", s.Text())
	}

	if len(discussed) > 0 {
		b.WriteString("\nSummaries you already discussed with them recently (do not repeat, but connect to them when relevant):\n")
		for _, s := range discussed {
			fmt.Fprintf(&b, "- %s\n", s.Text())
		}
	}

	if len(history) > 0 {
		b.WriteString("\nRecent conversation:\n")
		for _, m := range history {
			role := "Them"
			if m.Direction == "outbound" {
				role = "You"
			}
			fmt.Fprintf(&b, "%s: %s\n", role, m.Body)
		}
	}

	b.WriteString("\nIf the new material is substantial, use the send_sms tool to send one friendly, concise text about it (under 300 characters). ")
	b.WriteString("If it is thin or repeats what you already discussed, it is fine to send nothing.")
	return b.String()
}
