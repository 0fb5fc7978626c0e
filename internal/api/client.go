// Package api is the typed HTTP client for the catalog REST API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TokenSource yields the bearer token to attach to requests, or "" when the
// user is anonymous.
type TokenSource interface {
	Token(ctx context.Context) string
}

type Client struct {
	httpClient     *http.Client
	baseURL        string
	tokens         TokenSource
	onUnauthorized func(ctx context.Context)
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) { c.tokens = tokens }
}

// WithUnauthorizedHook registers fn to run whenever an authenticated request
// is answered with 401.
func WithUnauthorizedHook(fn func(ctx context.Context)) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 20 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Result is the uniform outcome of every API call. Transport failures are
// reported through Err with Status 0 instead of a Go error return, so callers
// have a single failure path.
type Result[T any] struct {
	Status  int
	Data    T
	Message string
	Err     error
}

func (r Result[T]) OK() bool {
	return r.Err == nil && r.Status >= 200 && r.Status < 300
}

// Failure describes why the call did not succeed, preferring the server's
// own message.
func (r Result[T]) Failure() string {
	switch {
	case r.Message != "":
		return r.Message
	case r.Err != nil:
		return r.Err.Error()
	case r.Status != 0:
		return http.StatusText(r.Status)
	default:
		return ""
	}
}

// Empty is the payload of calls whose response body is ignored.
type Empty struct{}

type requestBody struct {
	reader      io.Reader
	contentType string
}

func jsonBody(in any) (*requestBody, error) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(in); err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return &requestBody{reader: buf, contentType: "application/json"}, nil
}

type errorPayload struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func do[T any](ctx context.Context, c *Client, method, path string, body *requestBody) Result[T] {
	var result Result[T]

	var reader io.Reader
	if body != nil {
		reader = body.reader
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		result.Err = err
		return result
	}
	if body != nil {
		req.Header.Set("Content-Type", body.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	authenticated := false
	if c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
			authenticated = true
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("api: %s %s failed: %v", method, path, err)
		result.Err = err
		return result
	}
	defer func() { _ = resp.Body.Close() }()

	result.Status = resp.StatusCode
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		result.Err = fmt.Errorf("read response: %w", err)
		return result
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var failure errorPayload
		if json.Unmarshal(payload, &failure) == nil {
			result.Message = firstNonBlank(failure.Message, failure.Error)
		}
		if resp.StatusCode == http.StatusUnauthorized && authenticated && c.onUnauthorized != nil {
			c.onUnauthorized(ctx)
		}
		return result
	}

	if len(bytes.TrimSpace(payload)) == 0 {
		return result
	}
	if err := json.Unmarshal(payload, &result.Data); err != nil {
		result.Err = fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return result
}

func firstNonBlank(values ...string) string {
	for _, value := range values {
		if strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
