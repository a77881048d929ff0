// Package sheetsapi is a client for the spreadsheet web-app endpoint that
// older deployments use as their claim store. Every call is an action name
// plus parameters, answered with a {success, message, ...} envelope.
package sheetsapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Actions understood by the endpoint.
const (
	ActionSubmitClaim           = "submitClaim"
	ActionGetClaims             = "getClaims"
	ActionGetAllClaims          = "getAllClaims"
	ActionUpdateClaim           = "updateClaim"
	ActionUpdateClaimInspection = "updateClaimInspection"
)

// ErrUnavailable means the endpoint could not be reached or answered 5xx.
var ErrUnavailable = errors.New("sheets endpoint unavailable")

// APIError is an envelope with success=false.
type APIError struct {
	Action  string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets %s: %s", e.Action, e.Message)
}

// Envelope is the common response shape.
type Envelope struct {
	Success bool              `json:"success"`
	Message string            `json:"message,omitempty"`
	Claims  []json.RawMessage `json:"claims,omitempty"`
}

// Client represents a spreadsheet endpoint client
type Client struct {
	BaseURL string
	client  *http.Client
}

// NewClient creates a new spreadsheet endpoint client
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// GetAllClaims returns every claim row.
func (c *Client) GetAllClaims(ctx context.Context) ([]json.RawMessage, error) {
	env, err := c.get(ctx, ActionGetAllClaims, nil)
	if err != nil {
		return nil, err
	}
	return env.Claims, nil
}

// GetClaims returns the rows submitted from a farmer's contact number.
func (c *Client) GetClaims(ctx context.Context, contact string) ([]json.RawMessage, error) {
	env, err := c.get(ctx, ActionGetClaims, url.Values{"contact": {contact}})
	if err != nil {
		return nil, err
	}
	return env.Claims, nil
}

// SubmitClaim appends a claim row. Fields of claim are flattened into the body.
func (c *Client) SubmitClaim(ctx context.Context, claim interface{}) error {
	fields, err := flatten(claim)
	if err != nil {
		return err
	}
	_, err = c.post(ctx, ActionSubmitClaim, fields)
	return err
}

// UpdateClaim merges fields into the row identified by fields["claimId"].
func (c *Client) UpdateClaim(ctx context.Context, fields map[string]interface{}) error {
	_, err := c.post(ctx, ActionUpdateClaim, fields)
	return err
}

// UpdateClaimInspection stores a field inspection report and the new status.
func (c *Client) UpdateClaimInspection(ctx context.Context, claimID string, report interface{}, newStatus string, extra map[string]interface{}) error {
	fields := map[string]interface{}{
		"claimId":          claimID,
		"inspectionReport": report,
		"newStatus":        newStatus,
	}
	for k, v := range extra {
		fields[k] = v
	}
	_, err := c.post(ctx, ActionUpdateClaimInspection, fields)
	return err
}

func (c *Client) get(ctx context.Context, action string, params url.Values) (*Envelope, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sheets url: %w", err)
	}
	q := u.Query()
	q.Set("action", action)
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.do(action, req)
}

func (c *Client) post(ctx context.Context, action string, fields map[string]interface{}) (*Envelope, error) {
	body := map[string]interface{}{"action": action}
	for k, v := range fields {
		body[k] = v
	}
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(action, req)
}

func (c *Client) do(action string, req *http.Request) (*Envelope, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", action, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: reading body: %v", action, ErrUnavailable, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%s: %w: status %d", action, ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: request failed with status %d: %s", action, resp.StatusCode, string(body))
	}

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%s: failed to parse response: %w", action, err)
	}
	if !env.Success {
		return nil, &APIError{Action: action, Message: env.Message}
	}
	return &env, nil
}

// flatten turns a struct into the top-level fields of a request body.
func flatten(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal fields: %w", err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("fields must be an object: %w", err)
	}
	return fields, nil
}
