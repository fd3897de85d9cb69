// Package pipeline is the job core's client for the research-pipeline
// service. The core treats the entire multi-stage pipeline (planning,
// search, code execution, report composition, speech synthesis) as one
// opaque operation: run a session for a topic and get back its state.
// This client speaks that contract over HTTP so the pipeline can be
// deployed and scaled independently of the workers.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/tmorehouse/researchd/internal/state"
)

// DefaultTimeout bounds a pipeline run. Research sessions are long;
// the bound exists to reclaim workers from a hung pipeline, not to
// police normal latency.
const DefaultTimeout = time.Hour

// runRequest is the wire request for one session execution.
type runRequest struct {
	Topic     string `json:"topic"`
	SessionID string `json:"session_id"`
}

// Client invokes the research-pipeline service.
type Client struct {
	url    string
	client *http.Client
	logger *slog.Logger
}

// NewClient creates a pipeline client for the given run endpoint. A
// non-positive timeout falls back to DefaultTimeout.
func NewClient(url string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Run executes the pipeline for one session and returns its resulting
// state. The response body is the session's state record; a non-2xx
// response or an undecodable body is an error, which the worker turns
// into a failed terminal state.
func (c *Client) Run(ctx context.Context, topic, sessionID string) (*state.SessionState, error) {
	body, err := json.Marshal(runRequest{Topic: topic, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to encode pipeline request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build pipeline request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pipeline request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("pipeline returned status %d: %s", resp.StatusCode, truncate(data, 256))
	}

	var st state.SessionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("failed to decode pipeline response: %w", err)
	}
	c.logger.Debug("pipeline run finished",
		"session_id", sessionID,
		"duration", time.Since(started))
	return &st, nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
