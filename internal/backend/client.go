// Package backend talks to the storefront REST API.
package backend

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

	"github.com/nikolayk812/storefront-cart/internal/config"
)

const maxBodyBytes = 4 << 20

// TokenSource yields the bearer token of the current login, or "" when there is none.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Client struct {
	httpClient *http.Client
	baseURL    *url.URL
	tokens     TokenSource
	headers    map[string]string
}

func NewClient(cfg config.APIConfig, tokens TokenSource) (*Client, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return NewClientWithHTTP(cfg.BaseURL, &http.Client{Timeout: timeout}, tokens)
}

func NewClientWithHTTP(baseURL string, httpClient *http.Client, tokens TokenSource) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", baseURL)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		httpClient: httpClient,
		baseURL:    u,
		tokens:     tokens,
		headers: map[string]string{
			"Accept":     "application/json",
			"User-Agent": "storefront-cart/1.0",
		},
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Request is one call against the API; Path is relative to the base URL.
type Request struct {
	Method string
	Path   string
	Body   any
	// Anonymous skips the bearer token.
	Anonymous bool
}

type Response struct {
	StatusCode int
	Body       []byte
}

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
}

func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Do executes req once. Non-2xx statuses are errors carrying the response.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	u := c.resolve(req.Path)

	var bodyReader io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("json.Marshal: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("http.NewRequestWithContext: %w", err)
	}
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if !req.Anonymous && c.tokens != nil {
		token, err := c.tokens.Token(ctx)
		if err != nil {
			return nil, fmt.Errorf("tokens.Token: %w", err)
		}
		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("httpClient.Do: %w", err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Body: body}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, &StatusError{Method: req.Method, Path: req.Path, StatusCode: httpResp.StatusCode}
	}
	return resp, nil
}

// ResolveURL turns a path relative to the API into an absolute URL; absolute URLs pass through.
func (c *Client) ResolveURL(path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.resolve(path)
}

func (c *Client) resolve(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL.String() + path
}
