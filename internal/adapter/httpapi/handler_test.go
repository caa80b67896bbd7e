package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/xubill/twin/internal/application/batch"
	"github.com/xubill/twin/internal/application/orchestrator"
	"github.com/xubill/twin/internal/domain/sms"
	"github.com/xubill/twin/pkg/health"
)

type fakeInbound struct {
	received []orchestrator.InboundSMS
	err      error
}

func (f *fakeInbound) ProcessInbound(ctx context.Context, msg orchestrator.InboundSMS) error {
	f.received = append(f.received, msg)
	return f.err
}

type fakeBatch struct {
	analysisCalled bool
	dispatchCalled bool
	err            error
}

func (f *fakeBatch) RunAnalysis(ctx context.Context) (*batch.Report, error) {
	f.analysisCalled = true
	if f.err != nil {
		return nil, f.err
	}
	return &batch.Report{JobID: "20260828-120000-abcd1234", Users: 1}, nil
}

func (f *fakeBatch) RunSummaryDispatch(ctx context.Context) (*batch.Report, error) {
	f.dispatchCalled = true
	if f.err != nil {
		return nil, f.err
	}
	return &batch.Report{JobID: "20260828-120500-abcd1234", Users: 1}, nil
}

type fakeSender struct {
	sent []string
	fail bool
}

func (f *fakeSender) Send(ctx context.Context, body, to string) sms.SendResult {
	f.sent = append(f.sent, body)
	if f.fail {
		return sms.SendResult{Status: "failed", To: to, Error: "unreachable"}
	}
	return sms.SendResult{Success: true, MessageSID: "SM1", Status: "queued", To: to}
}

func newTestHandler(inbound *fakeInbound, processor *fakeBatch, sender *fakeSender) *Handler {
	checks := health.NewRegistry()
	checks.Register("always", func() (bool, string) { return true, "ok" })
	return NewHandler(inbound, processor, sender, checks)
}

func postForm(h http.Handler, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSMSWebhookAcksWithEmptyTwiML(t *testing.T) {
	inbound := &fakeInbound{}
	h := newTestHandler(inbound, &fakeBatch{}, &fakeSender{})

	w := postForm(h, "/sms", url.Values{
		"From":       {"+15550001111"},
		"To":         {"+15559990000"},
		"Body":       {"hello"},
		"MessageSid": {"SM123"},
	})

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "text/xml" {
		t.Errorf("Expected text/xml, got %s", got)
	}
	if !strings.Contains(w.Body.String(), "<Response></Response>") {
		t.Errorf("Expected empty TwiML ack, got %s", w.Body.String())
	}

	if len(inbound.received) != 1 {
		t.Fatalf("Expected 1 processed message, got %d", len(inbound.received))
	}
	msg := inbound.received[0]
	if msg.From != "+15550001111" || msg.Body != "hello" || msg.MessageSID != "SM123" {
		t.Errorf("Unexpected inbound message: %+v", msg)
	}
}

func TestSMSWebhookFailureReturns500WithTwiML(t *testing.T) {
	inbound := &fakeInbound{err: errors.New("boom")}
	h := newTestHandler(inbound, &fakeBatch{}, &fakeSender{})

	w := postForm(h, "/sms", url.Values{"From": {"+15550001111"}, "Body": {"hi"}})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Response></Response>") {
		t.Error("Expected TwiML body even on failure")
	}
}

func TestSMSWebhookMissingFrom(t *testing.T) {
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, &fakeSender{})
	w := postForm(h, "/sms", url.Values{"Body": {"hi"}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSMSWebhookRejectsGet(t *testing.T) {
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, &fakeSender{})
	req := httptest.NewRequest(http.MethodGet, "/sms", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", w.Code)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	processor := &fakeBatch{}
	h := newTestHandler(&fakeInbound{}, processor, &fakeSender{})

	req := httptest.NewRequest(http.MethodPost, "/api/analyze-users", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if !processor.analysisCalled {
		t.Error("Expected analysis to run")
	}
	var report batch.Report
	if err := json.NewDecoder(w.Body).Decode(&report); err != nil {
		t.Fatalf("Failed to decode report: %v", err)
	}
	if report.JobID == "" {
		t.Error("Expected job ID in report")
	}
}

func TestDispatchEndpoint(t *testing.T) {
	processor := &fakeBatch{}
	h := newTestHandler(&fakeInbound{}, processor, &fakeSender{})

	req := httptest.NewRequest(http.MethodPost, "/api/process-summaries", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if !processor.dispatchCalled {
		t.Error("Expected dispatch to run")
	}
}

func TestSendSMSEndpoint(t *testing.T) {
	sender := &fakeSender{}
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, sender)

	body := `{"to":"+15550001111","message":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/send-sms", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "hello" {
		t.Errorf("Expected one sent message, got %v", sender.sent)
	}

	var result sms.SendResult
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if !result.Success {
		t.Error("Expected success result")
	}
}

func TestSendSMSValidation(t *testing.T) {
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodPost, "/api/send-sms", strings.NewReader(`{"to":""}`))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestSendSMSDeliveryFailure(t *testing.T) {
	sender := &fakeSender{fail: true}
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, sender)

	body := `{"to":"+15550001111","message":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/send-sms", strings.NewReader(body))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("Expected 502, got %d", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"healthy":true`) {
		t.Errorf("Expected healthy response, got %s", w.Body.String())
	}
}

func TestHealthEndpointFailingCheck(t *testing.T) {
	checks := health.NewRegistry()
	checks.Register("down", func() (bool, string) { return false, "unreachable" })
	h := NewHandler(&fakeInbound{}, &fakeBatch{}, &fakeSender{}, checks)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", w.Code)
	}
}

func TestRootBanner(t *testing.T) {
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "twin") {
		t.Errorf("Expected service banner, got %s", w.Body.String())
	}
}

func TestUnknownPath(t *testing.T) {
	h := newTestHandler(&fakeInbound{}, &fakeBatch{}, &fakeSender{})

	req := httptest.NewRequest(http.MethodGet, "/nope", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}
