package worker

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

// RemoteRequest is one idempotent POST to a downstream service.
// ExpectStatus of zero accepts any 2xx.
type RemoteRequest struct {
	Path           string
	IdempotencyKey string
	Body           any
	ExpectStatus   int
}

// RemoteClient is the fallible downstream service a handler calls.
type RemoteClient interface {
	Post(ctx context.Context, req RemoteRequest) error
}

// RemoteError describes a failed downstream call. StatusCode is zero when
// no response was received.
type RemoteError struct {
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *RemoteError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("POST %s: %v", e.Path, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("POST %s: unexpected status %d: %s", e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("POST %s: unexpected status %d", e.Path, e.StatusCode)
}

func (e *RemoteError) Unwrap() error { return e.Err }

// Retryable reports whether trying again later could succeed. Transport
// errors, 408, 429, 5xx and unexpected 2xx responses are transient; other
// 4xx responses mean the request itself is wrong.
func (e *RemoteError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	case e.StatusCode >= 200 && e.StatusCode < 300:
		return true
	}
	return false
}

const maxErrorBody = 512

type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

var _ RemoteClient = (*HTTPClient)(nil)

func (c *HTTPClient) Post(ctx context.Context, req RemoteRequest) error {
	body, err := json.Marshal(req.Body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+req.Path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return &RemoteError{Path: req.Path, Err: err}
	}
	defer resp.Body.Close()

	if accepted(resp.StatusCode, req.ExpectStatus) {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &RemoteError{
		Path:       req.Path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(snippet)),
	}
}

func accepted(status, expect int) bool {
	if expect != 0 {
		return status == expect
	}
	return status >= 200 && status < 300
}
