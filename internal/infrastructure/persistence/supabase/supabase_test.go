package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/xubill/twin/internal/domain/summary"
	"github.com/xubill/twin/internal/domain/user"
)

func TestGetByPhoneFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/users" {
			t.Errorf("Expected path /rest/v1/users, got %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("phone_number"); got != "eq.+15550001111" {
			t.Errorf("Expected phone filter eq.+15550001111, got '%s'", got)
		}
		if got := r.Header.Get("apikey"); got != "test-key" {
			t.Errorf("Expected apikey header, got '%s'", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Expected bearer auth, got '%s'", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":               "u1",
				"phone_number":     "+15550001111",
				"email":            "a@b.com",
				"name":             "Ada",
				"onboarding_state": "complete",
			},
		})
	}))
	defer server.Close()

	repo := NewUserRepository(NewClient(server.URL, "test-key"))
	u, err := repo.GetByPhone(context.Background(), "+15550001111")
	if err != nil {
		t.Fatalf("GetByPhone failed: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("Expected user u1, got %s", u.ID)
	}
	if u.OnboardingState != user.StateComplete {
		t.Errorf("Expected complete state, got %s", u.OnboardingState)
	}
}

func TestGetByPhoneNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	repo := NewUserRepository(NewClient(server.URL, "test-key"))
	_, err := repo.GetByPhone(context.Background(), "+15550009999")
	if err != user.ErrNotFound {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestCreateUserReturnsRepresentation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=representation" {
			t.Errorf("Expected Prefer return=representation, got '%s'", got)
		}

		var body user.User
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		body.ID = "u2"

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]user.User{body})
	}))
	defer server.Close()

	repo := NewUserRepository(NewClient(server.URL, "test-key"))
	created, err := repo.Create(context.Background(), &user.User{
		PhoneNumber:     "+15550002222",
		OnboardingState: user.StateAwaitingEmail,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if created.ID != "u2" {
		t.Errorf("Expected generated ID u2, got %s", created.ID)
	}
}

func TestListUnprocessedActivities(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/activities" {
			t.Errorf("Expected path /rest/v1/activities, got %s", r.URL.Path)
		}
		q := r.URL.Query()
		if got := q.Get("processed"); got != "is.false" {
			t.Errorf("Expected processed filter is.false, got '%s'", got)
		}
		if got := q.Get("user_id"); got != "eq.u1" {
			t.Errorf("Expected user filter eq.u1, got '%s'", got)
		}
		if got := q.Get("order"); got != "timestamp.asc" {
			t.Errorf("Expected order timestamp.asc, got '%s'", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":        "a1",
				"user_id":   "u1",
				"timestamp": "2026-08-28T10:00:00Z",
				"domain":    "example.com",
				"title":     "Example",
				"url":       "https://example.com/page",
				"processed": false,
			},
		})
	}))
	defer server.Close()

	repo := NewActivityRepository(NewClient(server.URL, "test-key"))
	rows, err := repo.ListUnprocessed(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListUnprocessed failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 activity, got %d", len(rows))
	}
	if rows[0].Domain != "example.com" {
		t.Errorf("Expected domain example.com, got %s", rows[0].Domain)
	}
}

func TestMarkProcessedUsesInFilter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch {
			t.Errorf("Expected PATCH, got %s", r.Method)
		}
		if got := r.URL.Query().Get("id"); got != "in.(a1,a2)" {
			t.Errorf("Expected id filter in.(a1,a2), got '%s'", got)
		}

		var body map[string]bool
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if !body["processed"] {
			t.Error("Expected processed=true in body")
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	repo := NewActivityRepository(NewClient(server.URL, "test-key"))
	if err := repo.MarkProcessed(context.Background(), []string{"a1", "a2"}); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
}

func TestMarkProcessedEmptyIsNoop(t *testing.T) {
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer server.Close()

	repo := NewActivityRepository(NewClient(server.URL, "test-key"))
	if err := repo.MarkProcessed(context.Background(), nil); err != nil {
		t.Fatalf("MarkProcessed failed: %v", err)
	}
	if called {
		t.Error("Expected no request for empty ID list")
	}
}

func TestListSummariesSince(t *testing.T) {
	since := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("prompt_generated_at"); got != "gte.2026-08-27T12:00:00Z" {
			t.Errorf("Expected window filter gte.2026-08-27T12:00:00Z, got '%s'", got)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]any{
			{
				"id":      "s1",
				"user_id": "u1",
				"summary": []map[string]any{
					{"type": "text", "text": "Studied Go concurrency."},
				},
				"prompt_generated_at": "2026-08-27T13:00:00Z",
			},
		})
	}))
	defer server.Close()

	repo := NewSummaryRepository(NewClient(server.URL, "test-key"))
	rows, err := repo.ListSince(context.Background(), "u1", since)
	if err != nil {
		t.Fatalf("ListSince failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("Expected 1 summary, got %d", len(rows))
	}
	if rows[0].Text() != "Studied Go concurrency." {
		t.Errorf("Unexpected summary text: %s", rows[0].Text())
	}
}

func TestInsertSummary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body summary.Summary
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if body.UserID != "u1" {
			t.Errorf("Expected user_id u1, got %s", body.UserID)
		}
		if len(body.SourceActivityIDs) != 2 {
			t.Errorf("Expected 2 source activities, got %d", len(body.SourceActivityIDs))
		}
		body.ID = "s9"

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]summary.Summary{body})
	}))
	defer server.Close()

	repo := NewSummaryRepository(NewClient(server.URL, "test-key"))
	stored, err := repo.Insert(context.Background(), &summary.Summary{
		UserID:            "u1",
		Content:           []summary.ContentBlock{{Type: "text", Text: "notes"}},
		SourceActivityIDs: []string{"a1", "a2"},
		GeneratedAt:       time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if stored.ID != "s9" {
		t.Errorf("Expected stored ID s9, got %s", stored.ID)
	}
}

func TestErrorStatusSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"permission denied"}`))
	}))
	defer server.Close()

	repo := NewUserRepository(NewClient(server.URL, "bad-key"))
	_, err := repo.List(context.Background())
	if err == nil {
		t.Fatal("Expected error for 403 response")
	}
}
