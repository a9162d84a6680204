// Package apiclient is the small JSON-over-HTTP client shared by the remote
// completion, history, feedback and document backends. It adds the bearer token
// to every request and turns non-2xx responses into *StatusError.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-go-golems/branchat/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const maxErrorBody = 4096

// StatusError is returned for responses outside the 2xx range.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type Client struct {
	baseURL    string
	token      string
	userAgent  string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

func WithToken(token string) Option {
	return func(client *Client) {
		client.token = token
	}
}

func NewClient(baseURL string, options ...Option) *Client {
	ret := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: settings.DefaultTimeout},
	}
	for _, o := range options {
		o(ret)
	}
	return ret
}

// NewClientFromSettings configures the base URL, token, user agent and
// transport timeout from cs.
func NewClientFromSettings(cs *settings.ClientSettings, options ...Option) *Client {
	timeout := settings.DefaultTimeout
	if cs.Timeout != nil {
		timeout = *cs.Timeout
	}
	ret := NewClient(cs.BaseURL, WithHTTPClient(&http.Client{Timeout: timeout}), WithToken(cs.Token))
	ret.userAgent = cs.UserAgent
	for _, o := range options {
		o(ret)
	}
	return ret
}

// DoJSON sends in (if non-nil) as a JSON body and decodes the response into out
// (if non-nil).
func (c *Client) DoJSON(ctx context.Context, method string, path string, in interface{}, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return errors.Wrap(err, "could not marshal request body")
		}
		body = bytes.NewReader(b)
	}
	return c.Do(ctx, method, path, "application/json", body, out)
}

// Do sends body with the given content type and decodes a JSON response into
// out (if non-nil).
func (c *Client) Do(ctx context.Context, method string, path string, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return errors.Wrapf(err, "could not create request %s %s", method, path)
	}
	if body != nil && contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	log.Trace().Str("method", method).Str("path", path).Msg("sending api request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(b)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrapf(err, "could not decode response of %s %s", method, path)
	}
	return nil
}
