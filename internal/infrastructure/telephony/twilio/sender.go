package twilio

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/xubill/twin/internal/domain/sms"
)

const defaultBaseURL = "https://api.twilio.com"

// Sender sends SMS through the Twilio Messages API and reads back
// recent conversation history.
type Sender struct {
	accountSID string
	authToken  string
	fromNumber string
	baseURL    string
	client     *http.Client
}

// NewSender creates a Twilio sender for the given account.
func NewSender(accountSID, authToken, fromNumber string) *Sender {
	return &Sender{
		accountSID: accountSID,
		authToken:  authToken,
		fromNumber: fromNumber,
		baseURL:    defaultBaseURL,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetBaseURL overrides the API endpoint (for testing).
func (s *Sender) SetBaseURL(url string) {
	s.baseURL = strings.TrimRight(url, "/")
}

// FromNumber returns the configured sending number.
func (s *Sender) FromNumber() string {
	return s.fromNumber
}

type messageResource struct {
	SID      string `json:"sid"`
	Status   string `json:"status"`
	To       string `json:"to"`
	From     string `json:"from"`
	Body     string `json:"body"`
	DateSent string `json:"date_sent"`
	Message  string `json:"message"` // error detail on failure responses
}

type messageList struct {
	Messages []messageResource `json:"messages"`
}

// Send delivers one SMS. Failures are reported in the result rather
// than returned; callers branch on Success.
func (s *Sender) Send(ctx context.Context, body, to string) sms.SendResult {
	result := sms.SendResult{
		Status: "failed",
		To:     to,
		From:   s.fromNumber,
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.fromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		slog.Error("SMS send failed", "to", to, "error", err)
		result.Error = err.Error()
		return result
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	var msg messageResource
	if err := json.Unmarshal(data, &msg); err != nil {
		result.Error = fmt.Sprintf("decode response (status %d): %v", resp.StatusCode, err)
		return result
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := msg.Message
		if detail == "" {
			detail = string(data)
		}
		slog.Error("SMS send rejected", "to", to, "status", resp.StatusCode, "detail", detail)
		result.Error = fmt.Sprintf("API returned status %d: %s", resp.StatusCode, detail)
		return result
	}

	result.Success = true
	result.MessageSID = msg.SID
	result.Status = msg.Status
	slog.Info("SMS sent", "to", to, "sid", msg.SID, "status", msg.Status)
	return result
}

// RecentConversation merges messages sent to and received from the
// given phone number into one history, oldest first, capped at limit.
func (s *Sender) RecentConversation(ctx context.Context, phone string, limit int) ([]sms.Message, error) {
	outbound, err := s.listMessages(ctx, url.Values{"To": {phone}, "From": {s.fromNumber}})
	if err != nil {
		return nil, fmt.Errorf("list outbound messages: %w", err)
	}
	inbound, err := s.listMessages(ctx, url.Values{"To": {s.fromNumber}, "From": {phone}})
	if err != nil {
		return nil, fmt.Errorf("list inbound messages: %w", err)
	}

	merged := make([]sms.Message, 0, len(outbound)+len(inbound))
	for _, m := range outbound {
		merged = append(merged, toMessage(m, "outbound"))
	}
	for _, m := range inbound {
		merged = append(merged, toMessage(m, "inbound"))
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].SentAt.Before(merged[j].SentAt)
	})
	if limit > 0 && len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged, nil
}

func (s *Sender) listMessages(ctx context.Context, filter url.Values) ([]messageResource, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json?%s", s.baseURL, s.accountSID, filter.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(s.accountSID, s.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(data))
	}

	var list messageList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return list.Messages, nil
}

func toMessage(m messageResource, direction string) sms.Message {
	sentAt, err := time.Parse(time.RFC1123Z, m.DateSent)
	if err != nil {
		sentAt = time.Time{}
	}
	return sms.Message{
		Direction: direction,
		Body:      m.Body,
		SentAt:    sentAt,
	}
}
