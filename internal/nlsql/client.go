// Package nlsql is the client for the natural-language-to-SQL service.
// A transcript and the caller's role are posted as JSON; the service
// answers with an intent and, for SQL intents, a statement.
package nlsql

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// IntentSQL is the intent returned when the service produced a statement
const IntentSQL = "sql"

// Config contains NL->SQL client configuration
type Config struct {
	Endpoint string
	Role     string
	Timeout  time.Duration
}

// Request is the body posted to the service
type Request struct {
	Question string `json:"question"`
	Role     string `json:"role"`
}

// Response is the decoded service reply. Raw keeps every field so
// non-SQL answers can be shown verbatim.
type Response struct {
	Intent string         `json:"intent"`
	SQL    string         `json:"sql,omitempty"`
	Raw    map[string]any `json:"-"`
}

// IsSQL reports whether the service returned a statement to execute
func (r *Response) IsSQL() bool {
	return r.Intent == IntentSQL
}

// Client posts questions to the NL->SQL service. It never retries.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates a new NL->SQL client
func NewClient(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint cannot be empty")
	}

	if config.Role == "" {
		config.Role = "admin"
	}

	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Translate sends question to the service and decodes the reply
func (c *Client) Translate(ctx context.Context, question string) (*Response, error) {
	payload, err := json.Marshal(Request{Question: question, Role: c.config.Role})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("NL->SQL request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("NL->SQL service returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}

	out := &Response{Raw: raw}
	out.Intent, _ = raw["intent"].(string)
	if out.IsSQL() {
		stmt, ok := raw["sql"].(string)
		if !ok || strings.TrimSpace(stmt) == "" {
			return nil, fmt.Errorf("NL->SQL service returned intent %q without a statement", IntentSQL)
		}
		out.SQL = stmt
	}

	return out, nil
}

// Role returns the role sent with every question
func (c *Client) Role() string {
	return c.config.Role
}
