package util

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// Verdict is the robots.txt decision for one URL
type Verdict struct {
	Allowed    bool
	CrawlDelay time.Duration
}

// RobotsChecker evaluates robots.txt rules per host. Rules are fetched once
// per host and kept for the lifetime of the checker.
type RobotsChecker struct {
	cache      map[string]*robotstxt.RobotsData
	mu         sync.RWMutex
	httpClient *http.Client
	userAgent  string
	agent      string
}

// NewRobotsChecker creates a checker that identifies itself with userAgent
func NewRobotsChecker(userAgent string, timeout time.Duration) *RobotsChecker {
	return &RobotsChecker{
		cache:      make(map[string]*robotstxt.RobotsData),
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		agent:      NormalizeUserAgent(userAgent),
	}
}

// Check returns whether rawURL may be fetched. If robots.txt cannot be
// retrieved the URL is allowed and no crawl delay applies.
func (r *RobotsChecker) Check(ctx context.Context, rawURL string) (Verdict, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Verdict{}, fmt.Errorf("parse URL: %w", err)
	}
	if parsed.Host == "" {
		return Verdict{}, fmt.Errorf("parse URL: missing host in %q", rawURL)
	}

	data, err := r.rules(ctx, parsed)
	if err != nil {
		slog.DebugContext(ctx, "robots.txt unavailable, allowing", "host", parsed.Host, "err", err)
		return Verdict{Allowed: true}, nil
	}

	path := parsed.EscapedPath()
	if path == "" {
		path = "/"
	}
	if parsed.RawQuery != "" {
		path += "?" + parsed.RawQuery
	}

	v := Verdict{Allowed: data.TestAgent(path, r.agent)}
	if group := data.FindGroup(r.agent); group != nil {
		v.CrawlDelay = group.CrawlDelay
	}
	return v, nil
}

func (r *RobotsChecker) rules(ctx context.Context, u *url.URL) (*robotstxt.RobotsData, error) {
	r.mu.RLock()
	data, ok := r.cache[u.Host]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}

	robotsURL := fmt.Sprintf("%s://%s/robots.txt", u.Scheme, u.Host)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", r.userAgent)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err = robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	r.mu.Lock()
	r.cache[u.Host] = data
	r.mu.Unlock()

	return data, nil
}

// NormalizeUserAgent reduces a User-Agent header to the product token used
// for robots.txt group matching, e.g. "oldp-ingestor/0.1.2 (...)" -> "oldp-ingestor".
func NormalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return ua
	}
	return strings.Split(parts[0], "/")[0]
}
