package transcript

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// ErrNoVideoID means the input contained no recognizable YouTube
// video reference.
var ErrNoVideoID = errors.New("no video ID found")

var videoIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})(?:[&?/]|$)`),
	regexp.MustCompile(`youtu\.be/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`embed/([0-9A-Za-z_-]{11})`),
	regexp.MustCompile(`^([0-9A-Za-z_-]{11})$`),
}

// ExtractVideoID pulls the 11-character video ID out of a YouTube URL
// or accepts a bare ID.
func ExtractVideoID(input string) (string, error) {
	input = strings.TrimSpace(input)
	for _, re := range videoIDPatterns {
		if m := re.FindStringSubmatch(input); m != nil {
			return m[1], nil
		}
	}
	return "", ErrNoVideoID
}

// Fetcher retrieves video captions from YouTube's timedtext endpoint.
type Fetcher struct {
	baseURL string
	client  *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		baseURL: "https://video.google.com/timedtext",
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// SetBaseURL overrides the caption endpoint (for testing).
func (f *Fetcher) SetBaseURL(url string) {
	f.baseURL = url
}

type timedText struct {
	Texts []struct {
		Content string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript fetches the English captions for the given URL or video
// ID and joins them into one plain-text string.
func (f *Fetcher) Transcript(ctx context.Context, videoRef string) (string, error) {
	videoID, err := ExtractVideoID(videoRef)
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("lang", "en")
	q.Set("v", videoID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch captions: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read captions: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("caption endpoint returned status %d", resp.StatusCode)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("no captions available for video %s", videoID)
	}

	var doc timedText
	if err := xml.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("parse captions: %w", err)
	}

	parts := make([]string, 0, len(doc.Texts))
	for _, t := range doc.Texts {
		text := strings.TrimSpace(html.UnescapeString(t.Content))
		if text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no captions available for video %s", videoID)
	}
	return strings.Join(parts, " "), nil
}
