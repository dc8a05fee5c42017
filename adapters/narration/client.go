// Package narration calls the external phrasing service that turns a structured
// insight into athlete-facing text. The core never depends on it succeeding.
package narration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"n1core/domain/insight"
	"n1core/internal"
	"n1core/internal/config"
)

// Client implements ports.Narrator over HTTP behind a circuit breaker
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *internal.Logger
}

// NewClient creates a narration client. The breaker opens after three consecutive
// failures and probes again after a minute.
func NewClient(cfg config.NarratorConfig, logger *internal.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	logger = logger.Or()
	st := gobreaker.Settings{
		Name:     "narrator",
		Interval: 60 * time.Second,
		Timeout:  60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit %s: %s -> %s", name, from, to)
		},
	}
	return &Client{
		url:     strings.TrimRight(cfg.URL, "/") + "/narrate",
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(st),
		logger:  logger,
	}
}

type narrateRequest struct {
	RuleID        string         `json:"rule_id"`
	Mode          string         `json:"mode"`
	Action        string         `json:"action"`
	MessageKey    string         `json:"message_key"`
	Metric        string         `json:"metric,omitempty"`
	Direction     string         `json:"direction,omitempty"`
	CitedData     map[string]any `json:"cited_data"`
	Confidence    float64        `json:"confidence"`
	SustainedDays int            `json:"sustained_days,omitempty"`
}

type narrateResponse struct {
	Text string `json:"text"`
}

// Narrate returns the phrased text for one insight. An open breaker fails fast with
// gobreaker.ErrOpenState.
func (c *Client) Narrate(ctx context.Context, r *insight.Record) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.call(ctx, r)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) call(ctx context.Context, r *insight.Record) (string, error) {
	raw, err := json.Marshal(narrateRequest{
		RuleID:        r.RuleID.String(),
		Mode:          string(r.Mode),
		Action:        string(r.Action),
		MessageKey:    r.MessageKey,
		Metric:        string(r.Metric),
		Direction:     string(r.Direction),
		CitedData:     r.CitedData,
		Confidence:    r.Confidence,
		SustainedDays: r.SustainedDays,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("narrator request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("narrator http %d: %s", resp.StatusCode, string(body))
	}

	var decoded narrateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}
	return strings.TrimSpace(decoded.Text), nil
}
