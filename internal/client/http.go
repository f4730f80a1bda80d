package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// statusPath is the health/identity endpoint every Doorstep server exposes
const statusPath = "/api/v1/status"

// defaultHTTPTimeout bounds one status request end to end
const defaultHTTPTimeout = 5 * time.Second

// Status is a Doorstep server's self-reported identity and health.
type Status struct {
	Name    string `json:"name"`
	Version string `json:"version"`

	// Uptime is reported in whole seconds
	Uptime int64 `json:"uptime"`
}

// UptimeDuration returns the reported uptime as a duration for display
func (s *Status) UptimeDuration() time.Duration {
	return time.Duration(s.Uptime) * time.Second
}

// FetchStatus requests the status document from a server's advertised API
// base URL. It is the cheap reachability check the CLI runs before
// committing to a realtime connection: an advertised server that does not
// answer here is treated as unreachable.
func FetchStatus(ctx context.Context, apiURL string) (*Status, error) {
	url := strings.TrimSuffix(apiURL, "/") + statusPath

	ctx, cancel := context.WithTimeout(ctx, defaultHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build status request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status request returned %s", resp.Status)
	}

	var status Status
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode status response: %w", err)
	}

	return &status, nil
}
