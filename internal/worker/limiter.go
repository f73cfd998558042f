package worker

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces requests per host. Hosts start at the default rate,
// unlimited unless configured, and are slowed down by SetCrawlDelay.
type Limiter struct {
	mu    sync.Mutex
	hosts map[string]*rate.Limiter
	rate  rate.Limit
	burst int
}

// NewLimiter creates a limiter; requestsPerSecond <= 0 means unlimited
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	l := &Limiter{
		hosts: make(map[string]*rate.Limiter),
		rate:  rate.Inf,
		burst: max(burst, 1),
	}
	if requestsPerSecond > 0 {
		l.rate = rate.Limit(requestsPerSecond)
	}
	return l
}

// Wait blocks until the host of rawURL may be contacted again
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}
	return l.forHost(host).Wait(ctx)
}

// SetCrawlDelay limits host to one request per delay, as announced by a
// robots.txt Crawl-delay directive. A zero delay is ignored.
func (l *Limiter) SetCrawlDelay(host string, delay time.Duration) {
	if delay <= 0 {
		return
	}
	l.mu.Lock()
	l.hosts[host] = rate.NewLimiter(rate.Every(delay), 1)
	l.mu.Unlock()
}

func (l *Limiter) forHost(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.hosts[host]
	if !ok {
		lim = rate.NewLimiter(l.rate, l.burst)
		l.hosts[host] = lim
	}
	return lim
}

func hostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}
	return u.Host, nil
}
