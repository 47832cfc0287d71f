// Package judge fetches submission verdicts.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/verte-zerg/leetgulag/internal/model"
)

// CheckURLPattern is the host match pattern for per-submission check requests.
const CheckURLPattern = "*://leetcode.com/submissions/detail/*/check/"

// ErrTransport marks failures fetching or decoding a verdict.
var ErrTransport = errors.New("judge transport failure")

// IsCheckURL reports whether rawURL is a per-submission check resource.
func IsCheckURL(rawURL string) bool {
	return strings.Contains(rawURL, "/submissions/detail/") && strings.Contains(rawURL, "/check/")
}

// SessionCookie is the practice site's session cookie name.
const SessionCookie = "LEETCODE_SESSION"

// Client fetches verdicts over HTTP.
type Client struct {
	http    *http.Client
	session string
}

// Option customises a Client.
type Option func(*Client)

// WithSession sends the given session cookie with every check.
func WithSession(session string) Option {
	return func(c *Client) { c.session = session }
}

// New returns a Client. A nil httpClient gets a default with a timeout.
func New(httpClient *http.Client, opts ...Option) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	c := &Client{http: httpClient}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check fetches the verdict at checkURL.
func (c *Client) Check(ctx context.Context, checkURL string) (model.Verdict, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, checkURL, http.NoBody)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("failed to create request: %w", err)
	}
	if c.session != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookie, Value: c.session})
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%w: request failed: %v", ErrTransport, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return model.Verdict{}, fmt.Errorf("%w: unexpected judge status: %s", ErrTransport, resp.Status)
	}
	var v model.Verdict
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: failed to decode verdict: %v", ErrTransport, err)
	}
	return v, nil
}
