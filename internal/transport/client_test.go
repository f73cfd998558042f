package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/openlegaldata/oldp-ingestor/internal/cache"
)

// recordSleeps replaces SleepFunc for the duration of the test
func recordSleeps(t *testing.T) *[]time.Duration {
	t.Helper()
	var mu sync.Mutex
	var waits []time.Duration
	orig := SleepFunc
	SleepFunc = func(ctx context.Context, d time.Duration) error {
		mu.Lock()
		defer mu.Unlock()
		waits = append(waits, d)
		return ctx.Err()
	}
	t.Cleanup(func() { SleepFunc = orig })
	return &waits
}

func testClient(baseURL string) *Client {
	cfg := DefaultConfig(baseURL)
	cfg.Timeout = 5 * time.Second
	return NewClient(cfg)
}

func TestClient_GetSuccess(t *testing.T) {
	recordSleeps(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "oldp-ingestor/0.1.2 (+https://github.com/openlegaldata)" {
			t.Errorf("unexpected User-Agent: %s", got)
		}
		if r.URL.Path != "/v1/legislation" || r.URL.Query().Get("size") != "300" {
			t.Errorf("unexpected request: %s", r.URL.String())
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"member":[]}`)
	}))
	defer server.Close()

	c := testClient(server.URL)
	var out struct {
		Member []any `json:"member"`
	}
	if err := c.GetJSON(context.Background(), "/v1/legislation", url.Values{"size": {"300"}}, &out); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if out.Member == nil {
		t.Error("expected member to be decoded")
	}
}

func TestClient_RetryBackoffSequence(t *testing.T) {
	waits := recordSleeps(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	c := testClient(server.URL)
	body, err := c.GetText(context.Background(), "/doc", nil)
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if body != "<html><body>OK</body></html>" {
		t.Errorf("unexpected body: %s", body)
	}
	if attempts.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts.Load())
	}

	want := []time.Duration{DefaultDelay, time.Second, DefaultDelay, 2 * time.Second, DefaultDelay}
	if len(*waits) != len(want) {
		t.Fatalf("expected waits %v, got %v", want, *waits)
	}
	for i := range want {
		if (*waits)[i] != want[i] {
			t.Errorf("wait %d: expected %v, got %v", i, want[i], (*waits)[i])
		}
	}
}

func TestClient_RetryAfterHeader(t *testing.T) {
	tests := []struct {
		header string
		want   time.Duration
	}{
		{"3", 3 * time.Second},
		{"0", time.Second},
		{"0.5", time.Second},
		{"Wed, 21 Oct 2015 07:28:00 GMT", time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			waits := recordSleeps(t)

			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if attempts.Add(1) == 1 {
					w.Header().Set("Retry-After", tt.header)
					w.WriteHeader(http.StatusTooManyRequests)
					return
				}
				_, _ = fmt.Fprint(w, "ok")
			}))
			defer server.Close()

			c := testClient(server.URL)
			c.cfg.Delay = 0
			if _, err := c.Get(context.Background(), "/", nil); err != nil {
				t.Fatalf("expected success, got %v", err)
			}

			var retryWaits []time.Duration
			for _, w := range *waits {
				if w > 0 {
					retryWaits = append(retryWaits, w)
				}
			}
			if len(retryWaits) != 1 || retryWaits[0] != tt.want {
				t.Errorf("expected retry wait %v, got %v", tt.want, retryWaits)
			}
		})
	}
}

func TestClient_NonRetryableStatusFailsImmediately(t *testing.T) {
	recordSleeps(t)

	for _, code := range []int{http.StatusNotFound, http.StatusForbidden, http.StatusInternalServerError, http.StatusBadGateway} {
		t.Run(http.StatusText(code), func(t *testing.T) {
			var attempts atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				attempts.Add(1)
				w.WriteHeader(code)
			}))
			defer server.Close()

			_, err := testClient(server.URL).Get(context.Background(), "/x", nil)
			if !IsStatus(err, code) {
				t.Fatalf("expected status error %d, got %v", code, err)
			}
			if attempts.Load() != 1 {
				t.Errorf("expected 1 attempt, got %d", attempts.Load())
			}
		})
	}
}

func TestClient_RetriesExhausted(t *testing.T) {
	waits := recordSleeps(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	c := testClient(server.URL)
	c.cfg.Delay = 0
	_, err := c.Get(context.Background(), "/", nil)
	if !IsStatus(err, http.StatusServiceUnavailable) {
		t.Fatalf("expected 503 status error, got %v", err)
	}
	if attempts.Load() != DefaultMaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", DefaultMaxRetries+1, attempts.Load())
	}

	var backoffs []time.Duration
	for _, w := range *waits {
		if w > 0 {
			backoffs = append(backoffs, w)
		}
	}
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if fmt.Sprint(backoffs) != fmt.Sprint(want) {
		t.Errorf("expected backoffs %v, got %v", want, backoffs)
	}
}

func TestClient_ConnectionErrorRetried(t *testing.T) {
	waits := recordSleeps(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := server.URL
	server.Close()

	c := testClient(deadURL)
	c.cfg.Delay = 0
	c.cfg.MaxRetries = 2

	_, err := c.Get(context.Background(), "/", nil)
	if err == nil {
		t.Fatal("expected error for refused connection")
	}
	if !isConnectionError(err) {
		t.Errorf("expected connection error to surface, got %v", err)
	}

	var backoffs []time.Duration
	for _, w := range *waits {
		if w > 0 {
			backoffs = append(backoffs, w)
		}
	}
	if fmt.Sprint(backoffs) != fmt.Sprint([]time.Duration{time.Second, 2 * time.Second}) {
		t.Errorf("unexpected backoffs: %v", backoffs)
	}
}

func TestClient_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := testClient("http://127.0.0.1:1")
	if _, err := c.Get(ctx, "/", nil); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClient_ResolveURL(t *testing.T) {
	c := testClient("https://www.gesetze-bayern.de")
	tests := map[string]string{
		"/Search/Page/2":                       "https://www.gesetze-bayern.de/Search/Page/2",
		"https://eur-lex.europa.eu/legal-content": "https://eur-lex.europa.eu/legal-content",
		"http://example.com/a":                 "http://example.com/a",
	}
	for in, want := range tests {
		if got := c.ResolveURL(in); got != want {
			t.Errorf("ResolveURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestClient_PostFormAndCookies(t *testing.T) {
	recordSleeps(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/init":
			http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			_, _ = fmt.Fprint(w, "ok")
		case "/search":
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if c, err := r.Cookie("session"); err != nil || c.Value != "abc" {
				t.Errorf("expected session cookie to be sent")
			}
			if err := r.ParseForm(); err != nil {
				t.Fatal(err)
			}
			_, _ = fmt.Fprintf(w, "q=%s", r.PostForm.Get("q"))
		}
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.CookieJar = true
	c := NewClient(cfg)

	if _, err := c.Get(context.Background(), "/init", nil); err != nil {
		t.Fatalf("init: %v", err)
	}
	text, err := c.PostFormText(context.Background(), "/search", url.Values{"q": {"*"}})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	if text != "q=*" {
		t.Errorf("unexpected body: %s", text)
	}
}

func TestClient_CacheServesRepeatedGets(t *testing.T) {
	recordSleeps(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		_, _ = fmt.Fprint(w, "cached body")
	}))
	defer server.Close()

	cfg := DefaultConfig(server.URL)
	cfg.Cache = cache.NewMemoryCache(time.Hour, time.Hour)
	c := NewClient(cfg)

	for i := 0; i < 3; i++ {
		body, err := c.GetBytes(context.Background(), "/zip")
		if err != nil || string(body) != "cached body" {
			t.Fatalf("unexpected result %q, %v", body, err)
		}
	}
	if attempts.Load() != 1 {
		t.Errorf("expected 1 upstream request, got %d", attempts.Load())
	}
}

func TestResponse_TextDecodesCharset(t *testing.T) {
	resp := &Response{
		Header: http.Header{"Content-Type": {"text/html; charset=ISO-8859-1"}},
		Body:   []byte{'G', 'r', 0xFC, 'n', 'd', 'e'},
	}
	if got := resp.Text(); got != "Gründe" {
		t.Errorf("expected Gründe, got %q", got)
	}
}

func TestIsConnectionError(t *testing.T) {
	if isConnectionError(nil) {
		t.Error("nil must not be a connection error")
	}
	if isConnectionError(context.Canceled) {
		t.Error("cancellation must not be retried")
	}
	if isConnectionError(errors.New("create request: invalid URL")) {
		t.Error("plain errors must not be retried")
	}

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"dial timeout", &url.Error{Op: "Get", URL: "https://example.org", Err: &net.OpError{Op: "dial", Net: "tcp", Err: timeoutError{}}}, true},
		{"connection refused", &net.OpError{Op: "dial", Net: "tcp", Err: syscall.ECONNREFUSED}, true},
		{"read timeout", &net.OpError{Op: "read", Net: "tcp", Err: timeoutError{}}, false},
		{"deadline", fmt.Errorf("send: %w", context.DeadlineExceeded), false},
		{"truncated body", io.ErrUnexpectedEOF, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectionError(tt.err); got != tt.want {
				t.Errorf("isConnectionError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }
func (timeoutError) Temporary() bool { return true }
