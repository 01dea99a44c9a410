// Package api is the REST client of the event dashboard backend.
//
// Every call except the public ones carries the session token stored in the
// kv store under kv.KeyToken. Responses are JSON objects keyed by resource
// name; failures carry an optional "message" shown to the user.
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

	"github.com/unkn0wn-root/dashsync"
	"github.com/unkn0wn-root/dashsync/kv"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "dashsync/1.0"
	maxErrorBody   = 64 << 10
	defaultMaxBody = 8 << 20
)

var (
	ErrNoToken      = fmt.Errorf("api: no session token: %w", dashsync.ErrUnauthorized)
	ErrBodyTooLarge = errors.New("api: response body too large")
)

// Error is a non-2xx response. A 401 unwraps to dashsync.ErrUnauthorized.
type Error struct {
	Method  string
	Path    string
	Status  int
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, e.Message)
	}
	return fmt.Sprintf("api: %s %s: %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

func (e *Error) UserMessage() string { return e.Message }

func (e *Error) Unwrap() error {
	if e.Status == http.StatusUnauthorized {
		return dashsync.ErrUnauthorized
	}
	return nil
}

type Options struct {
	BaseURL    string
	Store      kv.Store // session token source
	HTTPClient *http.Client
	Timeout    time.Duration // ignored when HTTPClient is set
	MaxBody    int           // response size limit in bytes; 0 => 8 MiB
	Logger     dashsync.Logger
}

type Client struct {
	base    *url.URL
	store   kv.Store
	http    *http.Client
	maxBody int64
	log     dashsync.Logger
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("api: base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("api: base URL: %w", err)
	}
	if opts.Store == nil {
		opts.Store = kv.NewMemory()
	}
	if opts.HTTPClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		opts.HTTPClient = &http.Client{Timeout: timeout}
	}
	if opts.Logger == nil {
		opts.Logger = dashsync.NopLogger{}
	}
	maxBody := int64(opts.MaxBody)
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}
	return &Client{base: base, store: opts.Store, http: opts.HTTPClient, maxBody: maxBody, log: opts.Logger}, nil
}

// Token returns the stored session token or ErrNoToken.
func (c *Client) Token(ctx context.Context) (string, error) {
	tok, ok, err := c.store.Get(ctx, kv.KeyToken)
	if err != nil {
		return "", fmt.Errorf("api: read token: %w", err)
	}
	if !ok || tok == "" {
		return "", ErrNoToken
	}
	return tok, nil
}

// HasToken reports whether a session token is stored.
func (c *Client) HasToken(ctx context.Context) bool {
	_, err := c.Token(ctx)
	return err == nil
}

// do sends one request and returns the raw response body. auth=false skips
// the token for public endpoints.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any, auth bool) ([]byte, error) {
	var token string
	if auth {
		t, err := c.Token(ctx)
		if err != nil {
			return nil, err
		}
		token = t
	}

	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("api: encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("api: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("api request failed", dashsync.Fields{"method": method, "path": path, "err": err})
		return nil, fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	failed := resp.StatusCode < 200 || resp.StatusCode > 299
	limit := c.maxBody
	if failed {
		limit = maxErrorBody
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("api: read %s %s: %w", method, path, err)
	}
	c.log.Debug("api request", dashsync.Fields{
		"method": method, "path": path, "status": resp.StatusCode, "took": time.Since(start),
	})

	if failed {
		msg := ""
		if int64(len(raw)) <= limit {
			msg = errorMessage(raw)
		}
		return nil, &Error{Method: method, Path: path, Status: resp.StatusCode, Message: msg}
	}
	if int64(len(raw)) > limit {
		return nil, fmt.Errorf("%w: %s %s over %d bytes", ErrBodyTooLarge, method, path, limit)
	}
	return raw, nil
}

func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}

// call decodes the response body of an authenticated request into T.
func call[T any](ctx context.Context, c *Client, method, path string, query url.Values, in any) (T, error) {
	return decode[T](c.do(ctx, method, path, query, in, true))
}

func public[T any](ctx context.Context, c *Client, method, path string, in any) (T, error) {
	return decode[T](c.do(ctx, method, path, nil, in, false))
}

func decode[T any](raw []byte, err error) (T, error) {
	var out T
	if err != nil {
		return out, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("api: decode response: %w", err)
	}
	return out, nil
}

// none is the response shape of writes whose body is ignored.
type none struct{}
