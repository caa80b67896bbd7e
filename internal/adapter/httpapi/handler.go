package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/xubill/twin/internal/application/batch"
	"github.com/xubill/twin/internal/application/orchestrator"
	"github.com/xubill/twin/internal/domain/sms"
	"github.com/xubill/twin/pkg/health"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// batchRunner is the slice of the batch processor the API drives.
type batchRunner interface {
	RunAnalysis(ctx context.Context) (*batch.Report, error)
	RunSummaryDispatch(ctx context.Context) (*batch.Report, error)
}

// inboundProcessor handles one webhook message.
type inboundProcessor interface {
	ProcessInbound(ctx context.Context, msg orchestrator.InboundSMS) error
}

// Handler is the HTTP surface: the SMS webhook, the manual batch
// triggers, and health.
type Handler struct {
	inbound   inboundProcessor
	processor batchRunner
	sender    sms.Sender
	checks    *health.Registry
}

func NewHandler(inbound inboundProcessor, processor batchRunner, sender sms.Sender, checks *health.Registry) *Handler {
	return &Handler{
		inbound:   inbound,
		processor: processor,
		sender:    sender,
		checks:    checks,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		h.handleRoot(w, r)
	case "/health":
		h.handleHealth(w, r)
	case "/sms":
		h.handleSMSWebhook(w, r)
	case "/api/analyze-users":
		h.handleAnalyze(w, r)
	case "/api/process-summaries":
		h.handleDispatch(w, r)
	case "/api/send-sms":
		h.handleSendSMS(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	defer recoverToJSON(w, "root")
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "twin",
		"status":  "running",
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	results := h.checks.Run()
	status := http.StatusOK
	if !health.AllOK(results) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"healthy": status == http.StatusOK,
		"checks":  results,
	})
}

// handleSMSWebhook acknowledges the telephony provider with empty
// TwiML in every case; replies go out through the SMS API, not the
// webhook response. Processing failures still return 500 so the
// provider retries.
func (h *Handler) handleSMSWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		writeTwiML(w, http.StatusBadRequest)
		return
	}

	msg := orchestrator.InboundSMS{
		From:       r.PostForm.Get("From"),
		To:         r.PostForm.Get("To"),
		Body:       r.PostForm.Get("Body"),
		MessageSID: r.PostForm.Get("MessageSid"),
	}
	if msg.From == "" {
		writeTwiML(w, http.StatusBadRequest)
		return
	}

	if err := h.inbound.ProcessInbound(r.Context(), msg); err != nil {
		slog.Error("Webhook processing failed", "from", msg.From, "error", err)
		writeTwiML(w, http.StatusInternalServerError)
		return
	}
	writeTwiML(w, http.StatusOK)
}

func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report, err := h.processor.RunAnalysis(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleDispatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	report, err := h.processor.RunSummaryDispatch(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (h *Handler) handleSendSMS(w http.ResponseWriter, r *http.Request) {
	defer recoverToJSON(w, "send-sms")
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req struct {
		To      string `json:"to"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.To == "" || req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "to and message are required"})
		return
	}

	result := h.sender.Send(r.Context(), req.Message, req.To)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, result)
}

func writeTwiML(w http.ResponseWriter, status int) {
	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(status)
	w.Write([]byte(emptyTwiML))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func recoverToJSON(w http.ResponseWriter, route string) {
	if r := recover(); r != nil {
		slog.Error("Handler panicked", "route", route, "panic", r)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
