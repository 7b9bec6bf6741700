// Package queueclient talks to the queue server's HTTP API from the
// automation client side.
package queueclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"pin-relay/internal/models"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseBody = 1 << 20
)

// APIError is a non-2xx answer from the queue server
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("queue server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("queue server returned %d: %s", e.StatusCode, e.Message)
}

// IsStatus reports whether err is an APIError with the given status code
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func New(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	RequestID string             `json:"requestId"`
	Request   *models.PinRequest `json:"request"`
}

type pendingEnvelope struct {
	PendingRequests []*models.PinRequest `json:"pendingRequests"`
}

// Submit enqueues a PIN and returns the assigned request id
func (c *Client) Submit(ctx context.Context, pin, deviceName string) (string, error) {
	var out envelope
	body := map[string]string{"pin": pin, "deviceName": deviceName}
	if err := c.do(ctx, http.MethodPost, "/submit", body, &out); err != nil {
		return "", err
	}
	return out.RequestID, nil
}

// PendingRequests lists pending requests in submission order
func (c *Client) PendingRequests(ctx context.Context) ([]*models.PinRequest, error) {
	var out pendingEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/pending-requests", nil, &out); err != nil {
		return nil, err
	}
	return out.PendingRequests, nil
}

// MarkProcessed records the outcome of a request
func (c *Client) MarkProcessed(ctx context.Context, requestID string, success bool, message string) error {
	body := struct {
		RequestID string `json:"requestId"`
		Success   bool   `json:"success"`
		Message   string `json:"message"`
	}{requestID, success, message}
	return c.do(ctx, http.MethodPost, "/api/mark-processed", body, nil)
}

// RequestStatus fetches a single request
func (c *Client) RequestStatus(ctx context.Context, requestID string) (*models.PinRequest, error) {
	var out envelope
	if err := c.do(ctx, http.MethodGet, "/api/request-status/"+url.PathEscape(requestID), nil, &out); err != nil {
		return nil, err
	}
	if out.Request == nil {
		return nil, errors.New("queue server response carried no request")
	}
	return out.Request, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug("Queue server call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var e envelope
		if json.Unmarshal(raw, &e) == nil {
			apiErr.Message = e.Message
		}
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
