package activity

import "time"

// Activity is one recorded browsing event for a user. Rows are created
// by an external ingestion path; this system only flips the processed
// flag after a successful summarization.
type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Domain    string    `json:"domain"`
	Title     string    `json:"title"`
	URL       string    `json:"url,omitempty"`
	Processed bool      `json:"processed,omitempty"`
}

// Newest returns the most recent timestamp in the slice, or the zero
// time for an empty slice.
func Newest(activities []Activity) time.Time {
	var newest time.Time
	for _, a := range activities {
		if a.Timestamp.After(newest) {
			newest = a.Timestamp
		}
	}
	return newest
}

// IDs collects the identifiers of the given activities.
func IDs(activities []Activity) []string {
	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}
	return ids
}
