package warden

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds the settings needed to construct a Client.
type Config struct {
	// BaseURL is the root URL of the Warden server (e.g. "http://localhost:8080").
	BaseURL string

	// AdminAPIKey is sent only on admin routes. Leave empty otherwise.
	AdminAPIKey string

	// HTTPClient is an optional custom HTTP client. If nil, a default client
	// with Timeout is used.
	HTTPClient *http.Client

	// Timeout applies to individual API requests. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client is an HTTP client for the Warden governance API.
// All methods are safe for concurrent use.
type Client struct {
	baseURL  string
	adminKey string
	client   *http.Client
}

// NewClient creates a Client from the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("warden: BaseURL is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		adminKey: cfg.AdminAPIKey,
		client:   httpClient,
	}, nil
}

// Evaluate submits a proposal and returns the verdict. A malformed proposal
// is not an error: it comes back as a REJECTED verdict.
func (c *Client) Evaluate(ctx context.Context, p Proposal) (*Verdict, error) {
	var v Verdict
	if err := c.post(ctx, "/v1/evaluate", p, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// RecordExecution reports what happened after acting on a verdict. It
// succeeds once per decision; a second report fails with IsConflict.
func (c *Client) RecordExecution(ctx context.Context, id uuid.UUID, status ExecutionStatus, detail string) (*Entry, error) {
	body := map[string]any{"status": status, "detail": detail}
	var e Entry
	if err := c.post(ctx, "/v1/decisions/"+id.String()+"/execution", body, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// GetDecision returns one ledger entry.
func (c *Client) GetDecision(ctx context.Context, id uuid.UUID) (*Entry, error) {
	var e Entry
	if err := c.get(ctx, "/v1/decisions/"+id.String(), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Explain returns the narrative for a recorded verdict.
func (c *Client) Explain(ctx context.Context, id uuid.UUID) (*Explanation, error) {
	var x Explanation
	if err := c.get(ctx, "/v1/decisions/"+id.String()+"/explanation", &x); err != nil {
		return nil, err
	}
	return &x, nil
}

// ListDecisions returns ledger entries matching filters, oldest first.
func (c *Client) ListDecisions(ctx context.Context, filters *ListFilters) ([]Entry, error) {
	params := url.Values{}
	if f := filters; f != nil {
		setIf := func(k, v string) {
			if v != "" {
				params.Set(k, v)
			}
		}
		setIf("actor", f.Actor)
		setIf("decision_type", f.DecisionType)
		setIf("level", f.Level)
		setIf("verdict", string(f.Verdict))
		if f.From != nil {
			params.Set("from", f.From.UTC().Format(time.RFC3339))
		}
		if f.To != nil {
			params.Set("to", f.To.UTC().Format(time.RFC3339))
		}
		if f.Limit > 0 {
			params.Set("limit", strconv.Itoa(f.Limit))
		}
	}
	path := "/v1/decisions"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	var entries []Entry
	if err := c.get(ctx, path, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// Aggressiveness returns the current fleet pacing score.
func (c *Client) Aggressiveness(ctx context.Context) (*Aggressiveness, error) {
	var a Aggressiveness
	if err := c.get(ctx, "/v1/aggressiveness", &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// RecordAction reports an executed action that did not go through Evaluate.
func (c *Client) RecordAction(ctx context.Context, a Action) error {
	return c.post(ctx, "/v1/actions", a, nil)
}

// DailyReport returns the summary for day (UTC). A zero day means today.
func (c *Client) DailyReport(ctx context.Context, day time.Time) (*DailyReport, error) {
	path := "/v1/reports/daily"
	if !day.IsZero() {
		path += "?day=" + day.UTC().Format(time.DateOnly)
	}
	var r DailyReport
	if err := c.get(ctx, path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Purge removes ledger entries older than the retention window (the
// server's default when req.RetentionDays is nil). Requires AdminAPIKey.
func (c *Client) Purge(ctx context.Context, req PurgeRequest) (*PurgeResult, error) {
	var r PurgeResult
	if err := c.post(ctx, "/v1/admin/retention/purge", req, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.get(ctx, "/health", &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// ---------------------------------------------------------------------------
// HTTP transport
// ---------------------------------------------------------------------------

// apiEnvelope is the server's standard response wrapper.
type apiEnvelope struct {
	Data json.RawMessage `json:"data"`
}

// apiErrorEnvelope is the server's standard error response wrapper.
type apiErrorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, body any, dest any) error {
	encoded, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("warden: marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("warden: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.doRequest(req, dest)
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("warden: create request: %w", err)
	}

	return c.doRequest(req, dest)
}

func (c *Client) doRequest(req *http.Request, dest any) error {
	if c.adminKey != "" && strings.HasPrefix(req.URL.Path, "/v1/admin/") {
		req.Header.Set("Authorization", "Bearer "+c.adminKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("warden: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return handleResponse(resp, dest)
}

func handleResponse(resp *http.Response, dest any) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("warden: read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseErrorResponse(resp.StatusCode, bodyBytes)
	}

	if resp.StatusCode == http.StatusNoContent || dest == nil {
		return nil
	}

	// Unwrap the server's { "data": ... } envelope.
	var envelope apiEnvelope
	if err := json.Unmarshal(bodyBytes, &envelope); err != nil {
		return fmt.Errorf("warden: decode response envelope: %w", err)
	}
	if envelope.Data == nil {
		return json.Unmarshal(bodyBytes, dest)
	}
	return json.Unmarshal(envelope.Data, dest)
}

func parseErrorResponse(statusCode int, body []byte) *Error {
	apiErr := &Error{StatusCode: statusCode}

	var envelope apiErrorEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr.Code = envelope.Error.Code
		apiErr.Message = envelope.Error.Message
	} else {
		apiErr.Code = http.StatusText(statusCode)
		apiErr.Message = string(body)
	}

	return apiErr
}
