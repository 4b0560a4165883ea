package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultEndpoint = "http://127.0.0.1:8090"

// StatusError is returned for non-2xx responses that are not retried.
type StatusError struct {
	Code int
	Body string
	// RetryAfter is the server's Retry-After, zero when absent.
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d", e.Code)
}

// Client reads the pganomaly HTTP API. GET requests are retried on network
// errors and 5xx responses.
type Client struct {
	endpoint   string
	http       *http.Client
	backoff    BackoffStrategy
	maxRetries int
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithRetry sets the retry policy; maxRetries 0 disables retries.
func WithRetry(b BackoffStrategy, maxRetries int) Option {
	return func(c *Client) {
		c.backoff = b
		c.maxRetries = maxRetries
	}
}

// NewClient creates a new client. endpoint defaults to DefaultEndpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	c := &Client{
		endpoint:   endpoint,
		http:       &http.Client{Timeout: 10 * time.Second},
		backoff:    DefaultBackoff(),
		maxRetries: 2,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Endpoint() string { return c.endpoint }

// get performs a GET with retries and returns the body of a 200 response.
func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	u := c.endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(retryWait(c.backoff, attempt-1, lastErr)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		body, retry, err := c.do(ctx, u)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, u string) (body []byte, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, resp.StatusCode >= 500, &StatusError{
			Code:       resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header, time.Now()),
		}
	}
	return body, false, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v any) error {
	body, err := c.get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// Ping checks the health of the server.
func (c *Client) Ping(ctx context.Context) (Health, error) {
	var h Health
	err := c.getJSON(ctx, "/v1/health", nil, &h)
	return h, err
}

// GetEvents fetches recent history events, newest first.
func (c *Client) GetEvents(ctx context.Context, opts EventsOptions) ([]Event, error) {
	q := url.Values{}
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	q.Set("limit", strconv.Itoa(opts.Limit))
	if opts.RunID != "" {
		q.Set("run_id", opts.RunID)
	}
	if opts.Target != "" {
		q.Set("target", opts.Target)
	}
	if opts.Type != "" {
		q.Set("type", opts.Type)
	}

	var events []Event
	err := c.getJSON(ctx, "/v1/events", q, &events)
	return events, err
}

// GetStatus fetches live per-target progress. ok is false when the server
// has no status source.
func (c *Client) GetStatus(ctx context.Context) (statuses []TargetStatus, ok bool, err error) {
	var resp struct {
		Targets []TargetStatus `json:"targets"`
	}
	err = c.getJSON(ctx, "/v1/status", nil, &resp)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusServiceUnavailable {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return resp.Targets, true, nil
}

// GetRuns lists recorded runs, most recent first.
func (c *Client) GetRuns(ctx context.Context, limit int) ([]Run, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var runs []Run
	err := c.getJSON(ctx, "/v1/runs", q, &runs)
	return runs, err
}

// GetReport downloads a CSV report.
func (c *Client) GetReport(ctx context.Context, opts ReportOptions) ([]byte, error) {
	if opts.Type == "" {
		return nil, fmt.Errorf("report type is required")
	}
	q := url.Values{}
	q.Set("type", opts.Type)
	if opts.RunID != "" {
		q.Set("run_id", opts.RunID)
	}
	if opts.Target != "" {
		q.Set("target", opts.Target)
	}
	if !opts.From.IsZero() {
		q.Set("from", opts.From.Format(time.RFC3339))
	}
	if !opts.To.IsZero() {
		q.Set("to", opts.To.Format(time.RFC3339))
	}
	return c.get(ctx, "/v1/reports", q)
}
