package health

import (
	"fmt"
	"net/http"
	"time"
)

// ConfigPresent checks that a required configuration value is set.
func ConfigPresent(label, value string) CheckFunc {
	return func() (bool, string) {
		if value == "" {
			return false, fmt.Sprintf("%s is not configured", label)
		}
		return true, fmt.Sprintf("%s configured", label)
	}
}

// Reachable checks that an HTTP endpoint answers at all. Any
// response counts; this probes connectivity, not correctness.
func Reachable(url string) CheckFunc {
	client := &http.Client{Timeout: 5 * time.Second}
	return func() (bool, string) {
		resp, err := client.Get(url)
		if err != nil {
			return false, err.Error()
		}
		resp.Body.Close()
		return true, fmt.Sprintf("reachable (status %d)", resp.StatusCode)
	}
}
