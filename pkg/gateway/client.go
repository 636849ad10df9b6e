// Package gateway is the HTTP client of the delta processing backend.
package gateway

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

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
)

// ErrMalformedResponse is returned when a successful response cannot be decoded.
var ErrMalformedResponse = errors.New("malformed response")

// APIError is a non-2xx backend response.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
}

// newAPIError extracts a readable message from an error body. The backend
// reports failures under detail, message or error depending on the router.
func newAPIError(status int, body []byte) *APIError {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, path := range []string{"detail", "message", "error"} {
			r := gjson.GetBytes(body, path)
			if !r.Exists() {
				continue
			}
			if r.Type == gjson.String {
				msg = r.String()
			} else {
				msg = r.Raw
			}
			break
		}
	}
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg, Body: body}
}

// StatusCode returns the HTTP status of err if it is an APIError, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client calls the backend API under a single base URL. It does not retry
// or cache.
type Client struct {
	baseURL string
	logger  *zap.Logger
	client  *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets a client-side request timeout. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client = &http.Client{Transport: c.client.Transport, Timeout: d}
		}
	}
}

// New creates a Client for baseURL. A nil http client uses http.DefaultClient.
func New(baseURL string, logger *zap.Logger, client *http.Client, opts ...Option) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger,
		client:  client,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the base URL requests are sent to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// send issues a request and returns the response of a 2xx status. Other
// statuses are converted to an APIError and the body is closed.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, in any) (*http.Response, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path, query), body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("Backend request", zap.String("method", method), zap.String("path", path))
	resp, err := c.client.Do(req)
	if err != nil {
		c.logger.Error("Backend request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer c.closeBody(resp)
		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("reading error response of %s %s (status %d): %w", method, path, resp.StatusCode, err)
		}
		apiErr := newAPIError(resp.StatusCode, raw)
		c.logger.Error("Backend returned an error",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message))
		return nil, apiErr
	}
	return resp, nil
}

func (c *Client) closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		c.logger.Error("failed to close the http response body", zap.Error(err))
	}
}

// call sends a JSON request and decodes the JSON response into out. With
// unwrap set, a top-level data envelope is decoded instead of the body.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any, unwrap bool) error {
	resp, err := c.send(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	defer c.closeBody(resp)

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response of %s %s: %w", method, path, err)
	}
	if out == nil {
		return nil
	}
	if unwrap {
		raw = unwrapData(raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedResponse, method, path, err)
	}
	return nil
}

func unwrapData(raw []byte) []byte {
	if !gjson.ValidBytes(raw) {
		return raw
	}
	data := gjson.GetBytes(raw, "data")
	if data.Exists() && (data.IsObject() || data.IsArray()) {
		return []byte(data.Raw)
	}
	return raw
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any, unwrap bool) error {
	return c.call(ctx, http.MethodGet, path, query, nil, out, unwrap)
}

func (c *Client) post(ctx context.Context, path string, in, out any, unwrap bool) error {
	return c.call(ctx, http.MethodPost, path, nil, in, out, unwrap)
}
