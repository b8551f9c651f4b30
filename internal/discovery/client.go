package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	ErrStageFailed   = errors.New("stage call failed")
	ErrPDFGeneration = errors.New("failed to generate pdf")
)

// StatusError reports a non-200 response from a backend endpoint.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrStageFailed }

// Client posts JSON payloads to the discovery agent endpoints.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient returns a client for baseURL. A zero timeout means requests
// wait until the backend answers or ctx is done.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// PostJSON sends payload to endpoint and returns the response body, which
// must be valid JSON.
func (c *Client) PostJSON(ctx context.Context, endpoint string, payload any) (json.RawMessage, error) {
	resp, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", ErrStageFailed, endpoint, err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("%w: %s returned invalid json", ErrStageFailed, endpoint)
	}
	return json.RawMessage(body), nil
}

// PostBinary sends payload to endpoint and streams the whole response body
// into memory.
func (c *Client) PostBinary(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	resp, err := c.post(ctx, endpoint, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, resp.Body); err != nil {
		return nil, fmt.Errorf("%w: read %s response: %w", ErrStageFailed, endpoint, err)
	}
	return buf.Bytes(), nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", endpoint, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: post %s: %w", ErrStageFailed, endpoint, err)
	}
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		_ = resp.Body.Close()
		return nil, &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}
