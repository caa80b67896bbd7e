package transcript

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		input string
		want  string
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ"},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ"},
	}
	for _, c := range cases {
		got, err := ExtractVideoID(c.input)
		if err != nil {
			t.Errorf("ExtractVideoID(%q) failed: %v", c.input, err)
			continue
		}
		if got != c.want {
			t.Errorf("ExtractVideoID(%q) = %q, want %q", c.input, got, c.want)
		}
	}
}

func TestExtractVideoIDInvalid(t *testing.T) {
	for _, input := range []string{"", "https://example.com/page", "too-short"} {
		if _, err := ExtractVideoID(input); err != ErrNoVideoID {
			t.Errorf("ExtractVideoID(%q): expected ErrNoVideoID, got %v", input, err)
		}
	}
}

func TestTranscriptJoinsCaptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if got := q.Get("v"); got != "dQw4w9WgXcQ" {
			t.Errorf("Expected video ID dQw4w9WgXcQ, got '%s'", got)
		}
		if got := q.Get("lang"); got != "en" {
			t.Errorf("Expected lang en, got '%s'", got)
		}
		w.Header().Set("Content-Type", "text/xml")
		w.Write([]byte(`<?xml version="1.0" encoding="utf-8"?>
<transcript>
  <text start="0" dur="2">Never gonna</text>
  <text start="2" dur="2">give you up</text>
  <text start="4" dur="2">&amp; let you down</text>
</transcript>`))
	}))
	defer server.Close()

	f := NewFetcher()
	f.SetBaseURL(server.URL)

	got, err := f.Transcript(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatalf("Transcript failed: %v", err)
	}
	want := "Never gonna give you up & let you down"
	if got != want {
		t.Errorf("Transcript = %q, want %q", got, want)
	}
}

func TestTranscriptEmptyCaptions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/xml")
	}))
	defer server.Close()

	f := NewFetcher()
	f.SetBaseURL(server.URL)

	if _, err := f.Transcript(context.Background(), "dQw4w9WgXcQ"); err == nil {
		t.Fatal("Expected error for empty caption response")
	}
}
