// Package api is the HTTP client for the Nolofication backend.
package api

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

	"github.com/byNolo/nolofication/internal/metrics"
)

// TokenSource supplies the bearer token for authenticated calls.
// *domain.Session implements it.
type TokenSource interface {
	Token() string
}

// NoAuth is used for public endpoints.
var NoAuth TokenSource = staticToken("")

type staticToken string

func (t staticToken) Token() string { return string(t) }

// StaticToken wraps a raw access token.
func StaticToken(tok string) TokenSource { return staticToken(tok) }

const maxBody = 4 << 20

// Client talks JSON to the backend. It never retries; callers decide.
type Client struct {
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New creates a client for baseURL (e.g. "https://nolofication.bynolo.ca/api").
func New(baseURL string, timeout time.Duration, log *zap.Logger) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// BaseURL returns the configured API root.
func (c *Client) BaseURL() string { return c.baseURL }

// do performs one request. op names the call for logs and metrics.
func (c *Client) do(ctx context.Context, op, method, path string, ts TokenSource, in, out any) error {
	started := time.Now()

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &Error{Message: "could not encode request", Err: err}
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &Error{Message: "could not build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if ts != nil {
		if tok := ts.Token(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveAPI(op, 0, started)
		c.log.Warn("api request failed", zap.String("op", op), zap.Error(err))
		msg := "network error: backend unreachable"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			msg = "request timed out"
		}
		return &Error{Message: msg, Err: err}
	}
	defer resp.Body.Close()
	metrics.ObserveAPI(op, resp.StatusCode, started)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return &Error{Message: "could not read response", Status: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := errorFromResponse(resp.StatusCode, raw)
		c.log.Debug("api error response",
			zap.String("op", op),
			zap.Int("status", resp.StatusCode),
			zap.String("message", apiErr.Message),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Message: "malformed response from backend", Status: resp.StatusCode, Data: raw, Err: err}
	}
	return nil
}

func pathEscape(s string) string { return url.PathEscape(s) }

func withQuery(path string, q url.Values) string {
	if enc := q.Encode(); enc != "" {
		return path + "?" + enc
	}
	return path
}

// invalid reports a request rejected before it was sent.
func invalid(err error) error {
	return &Error{Message: fmt.Sprintf("invalid input: %s", describeValidation(err)), Err: err}
}

// messageResponse is the common {"message": "..."} acknowledgement.
type messageResponse struct {
	Message string `json:"message"`
}
