package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/openlegaldata/oldp-ingestor/internal/cache"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/util"
	"github.com/openlegaldata/oldp-ingestor/internal/worker"
	"golang.org/x/net/html/charset"
)

const (
	// DefaultDelay is the pause before every HTTP attempt
	DefaultDelay = 200 * time.Millisecond
	// DefaultTimeout bounds a single request
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRetries is the number of retries after the first attempt
	DefaultMaxRetries = 5

	initialBackoff = time.Second
	minRetryAfter  = time.Second
	maxBodyBytes   = 64 << 20
)

// SleepFunc pauses for d or until ctx is done. Tests replace it to record waits.
var SleepFunc = func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// ErrDisallowed is returned when robots.txt forbids the request
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-2xx response
type StatusError struct {
	StatusCode int
	Status     string
	URL        string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s (%s)", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// IsStatus reports whether err is a StatusError with the given code
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Config configures a Client
type Config struct {
	BaseURL    string
	Delay      time.Duration
	Timeout    time.Duration
	UserAgent  string
	MaxRetries int
	CookieJar  bool // keep session cookies across requests (form-stateful sources)
	Header     http.Header
	Cache      cache.Cache
	CacheTTL   time.Duration
	Limiter    *worker.Limiter
	Robots     *util.RobotsChecker
	Proxy      func(*http.Request) (*url.URL, error)
}

// DefaultConfig returns the transport defaults used by most sources
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:    baseURL,
		Delay:      DefaultDelay,
		Timeout:    DefaultTimeout,
		UserAgent:  model.DefaultUserAgent,
		MaxRetries: DefaultMaxRetries,
	}
}

// Request describes one HTTP call. Path is joined onto the base URL unless
// it already starts with "http".
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Form   url.Values
	Header http.Header
}

// Response is a fully read HTTP response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string // final URL after redirects
}

// Text decodes the body to UTF-8 using the declared or sniffed charset
func (r *Response) Text() string {
	reader, err := charset.NewReader(bytes.NewReader(r.Body), r.Header.Get("Content-Type"))
	if err != nil {
		return string(r.Body)
	}
	decoded, err := io.ReadAll(reader)
	if err != nil {
		return string(r.Body)
	}
	return string(decoded)
}

// Client is a paced, retrying HTTP client owned by exactly one provider
type Client struct {
	httpClient *http.Client
	cfg        Config
	robotsSeen map[string]bool
}

// NewClient creates a client from cfg, filling unset fields with defaults
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = model.DefaultUserAgent
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}

	proxy := cfg.Proxy
	if proxy == nil {
		proxy = http.ProxyFromEnvironment
	}

	httpClient := &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			Proxy:               proxy,
			MaxIdleConnsPerHost: 2,
			IdleConnTimeout:     90 * time.Second,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("stopped after 10 redirects")
			}
			return nil
		},
	}
	if cfg.CookieJar {
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}

	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
		robotsSeen: make(map[string]bool),
	}
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// ResolveURL joins path onto the base URL unless it is already absolute
func (c *Client) ResolveURL(path string) string {
	if strings.HasPrefix(path, "http") {
		return path
	}
	return c.cfg.BaseURL + path
}

// Get issues a GET request with optional query parameters
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// PostForm issues a form-encoded POST request
func (c *Client) PostForm(ctx context.Context, path string, form url.Values) (*Response, error) {
	return c.Do(ctx, Request{Method: http.MethodPost, Path: path, Form: form})
}

// GetJSON decodes a JSON response into v
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, v any) error {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return fmt.Errorf("decode json: %w", err)
	}
	return nil
}

// GetText returns the decoded response body
func (c *Client) GetText(ctx context.Context, path string, query url.Values) (string, error) {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// GetBytes returns the raw response body
func (c *Client) GetBytes(ctx context.Context, path string) ([]byte, error) {
	resp, err := c.Get(ctx, path, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// PostFormText posts form and returns the decoded response body
func (c *Client) PostFormText(ctx context.Context, path string, form url.Values) (string, error) {
	resp, err := c.PostForm(ctx, path, form)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

// Do executes r. Before every attempt it sleeps the configured delay.
// 429 and 503 responses and connection failures are retried with
// exponential backoff (1s, 2s, 4s, ...) or the server's Retry-After;
// any other non-2xx status fails immediately with a *StatusError.
func (c *Client) Do(ctx context.Context, r Request) (*Response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	target, err := c.buildURL(r.Path, r.Query)
	if err != nil {
		return nil, err
	}

	var body []byte
	if r.Form != nil {
		body = []byte(r.Form.Encode())
	}

	var cacheKey string
	if c.cfg.Cache != nil {
		cacheKey = cache.Key(method, target, body)
		if cached, ok := c.cfg.Cache.Get(cacheKey); ok {
			slog.DebugContext(ctx, "cache hit", "method", method, "url", target)
			return &Response{StatusCode: http.StatusOK, Header: http.Header{}, Body: cached, URL: target}, nil
		}
	}

	if err := c.checkRobots(ctx, target); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := SleepFunc(ctx, c.cfg.Delay); err != nil {
			return nil, err
		}
		if c.cfg.Limiter != nil {
			if err := c.cfg.Limiter.Wait(ctx, target); err != nil {
				return nil, err
			}
		}

		slog.DebugContext(ctx, "http request", "method", method, "url", target, "attempt", attempt+1)
		resp, err := c.send(ctx, method, target, body, r.Header)
		if err != nil {
			if !isConnectionError(err) {
				return nil, err
			}
			lastErr = err
			if attempt == c.cfg.MaxRetries {
				break
			}
			wait := backoff(attempt)
			slog.WarnContext(ctx, "connection error, retrying",
				"url", target, "err", err, "wait", wait, "attempt", attempt+1, "max_retries", c.cfg.MaxRetries)
			if err := SleepFunc(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if isRetryableStatus(resp.StatusCode) && attempt < c.cfg.MaxRetries {
			wait := retryDelay(resp.Header.Get("Retry-After"), attempt)
			slog.WarnContext(ctx, "retryable status, retrying",
				"status", resp.StatusCode, "url", target, "wait", wait, "attempt", attempt+1, "max_retries", c.cfg.MaxRetries)
			if err := SleepFunc(ctx, wait); err != nil {
				return nil, err
			}
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			slog.DebugContext(ctx, "http failure", "status", resp.StatusCode, "url", target)
			return nil, &StatusError{
				StatusCode: resp.StatusCode,
				Status:     http.StatusText(resp.StatusCode),
				URL:        target,
				Body:       resp.Body,
			}
		}

		if cacheKey != "" {
			if err := c.cfg.Cache.Set(cacheKey, resp.Body, c.cfg.CacheTTL); err != nil {
				slog.DebugContext(ctx, "cache store failed", "url", target, "err", err)
			}
		}

		return resp, nil
	}

	return nil, fmt.Errorf("fetch %s: giving up after %d attempts: %w", target, c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) buildURL(path string, query url.Values) (string, error) {
	target := c.ResolveURL(path)
	if len(query) == 0 {
		return target, nil
	}
	parsed, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	q := parsed.Query()
	for key, values := range query {
		for _, v := range values {
			q.Add(key, v)
		}
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

func (c *Client) send(ctx context.Context, method, target string, body []byte, header http.Header) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept-Language", "de-DE,de;q=0.9,en;q=0.5")
	for key, values := range c.cfg.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	for key, values := range header {
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		URL:        resp.Request.URL.String(),
	}, nil
}

func (c *Client) checkRobots(ctx context.Context, target string) error {
	if c.cfg.Robots == nil {
		return nil
	}
	verdict, err := c.cfg.Robots.Check(ctx, target)
	if err != nil {
		return err
	}
	if !verdict.Allowed {
		return fmt.Errorf("%s: %w", target, ErrDisallowed)
	}
	if c.cfg.Limiter != nil && verdict.CrawlDelay > 0 {
		if parsed, err := url.Parse(target); err == nil && !c.robotsSeen[parsed.Host] {
			c.robotsSeen[parsed.Host] = true
			c.cfg.Limiter.SetCrawlDelay(parsed.Host, verdict.CrawlDelay)
		}
	}
	return nil
}

func isRetryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code == http.StatusServiceUnavailable
}

// backoff returns 1s * 2^attempt
func backoff(attempt int) time.Duration {
	return initialBackoff << attempt
}

// retryDelay honours a numeric Retry-After header (seconds, at least 1s)
// and falls back to exponential backoff otherwise.
func retryDelay(retryAfter string, attempt int) time.Duration {
	retryAfter = strings.TrimSpace(retryAfter)
	if retryAfter != "" {
		if secs, err := strconv.ParseFloat(retryAfter, 64); err == nil {
			d := time.Duration(secs * float64(time.Second))
			if d < minRetryAfter {
				d = minRetryAfter
			}
			return d
		}
	}
	return backoff(attempt)
}

// isConnectionError reports transport-level failures worth retrying:
// refused or reset connections, DNS failures, dial timeouts and truncated
// responses. Other timeouts and context cancellation are not retried.
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return false
	}

	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr), errors.As(err, &opErr):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}
	return false
}
