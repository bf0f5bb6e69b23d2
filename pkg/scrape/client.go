// Package scrape is the HTTP plumbing shared by the lyrics site adapters:
// bounded requests, a browser User-Agent, per-host pacing and HTML helpers.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

	maxBodySize = 8 << 20
)

// Options 抓取客户端配置
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// RequestsPerSecond limits requests per host. Zero disables pacing.
	RequestsPerSecond float64
}

// Client 带超时和限速的HTTP客户端
type Client struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	limit      rate.Limit

	limitersMu sync.Mutex
	limiters   map[string]*rate.Limiter
}

// NewClient 创建新的抓取客户端
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		httpClient: &http.Client{Timeout: opts.Timeout},
		userAgent:  opts.UserAgent,
		timeout:    opts.Timeout,
		limit:      limit,
		limiters:   make(map[string]*rate.Limiter),
	}
}

// Timeout returns the per-request bound.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) limiter(host string) *rate.Limiter {
	c.limitersMu.Lock()
	defer c.limitersMu.Unlock()
	l, ok := c.limiters[host]
	if !ok {
		l = rate.NewLimiter(c.limit, 1)
		c.limiters[host] = l
	}
	return l
}

// RequestOption adjusts an outgoing request.
type RequestOption func(*http.Request)

// WithHeader sets a header on the request; empty values are ignored.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		if value != "" {
			req.Header.Set(key, value)
		}
	}
}

// Get fetches rawURL and returns the body of a 200 response.
func (c *Client) Get(ctx context.Context, rawURL string, opts ...RequestOption) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid url %q: %w", rawURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter(u.Host).Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// GetString is Get returning the body as text.
func (c *Client) GetString(ctx context.Context, rawURL string, opts ...RequestOption) (string, error) {
	body, err := c.Get(ctx, rawURL, opts...)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON decodes a JSON response into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any, opts ...RequestOption) error {
	body, err := c.Get(ctx, rawURL, opts...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetDocument parses an HTML response for selector queries.
func (c *Client) GetDocument(ctx context.Context, rawURL string, opts ...RequestOption) (*goquery.Document, error) {
	body, err := c.GetString(ctx, rawURL, opts...)
	if err != nil {
		return nil, err
	}
	return ParseDocument(body)
}

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("request to %s failed with status %d", e.URL, e.StatusCode)
}

// Query builds the free-text search query most lyrics sites expect.
func Query(song, artist string) string {
	if artist != "" {
		return artist + " " + song
	}
	return song
}
