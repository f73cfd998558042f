package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

const (
	// DefaultBrowserDelay is the pause before every page load
	DefaultBrowserDelay = 500 * time.Millisecond
	// DefaultPageTimeout bounds navigation and selector waits
	DefaultPageTimeout = 15 * time.Second
)

// Renderer returns the DOM of JavaScript-rendered pages
type Renderer interface {
	PageHTML(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error)
	Close() error
}

// PageTree renders url and parses the result
func PageTree(ctx context.Context, r Renderer, url, waitSelector string, timeout time.Duration) (*goquery.Document, error) {
	html, err := r.PageHTML(ctx, url, waitSelector, timeout)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// BrowserConfig configures the headless browser
type BrowserConfig struct {
	Delay     time.Duration
	ExecPath  string // Chrome executable; CHROME_PATH is used when empty
	UserAgent string
}

// DefaultBrowserConfig returns the browser defaults
func DefaultBrowserConfig() BrowserConfig {
	return BrowserConfig{
		Delay:     DefaultBrowserDelay,
		UserAgent: model.DefaultUserAgent,
	}
}

// Browser is a lazily started headless Chrome. The process is launched on
// the first page load and reused until Close.
type Browser struct {
	cfg BrowserConfig

	mu            sync.Mutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// NewBrowser creates a browser handle without starting Chrome
func NewBrowser(cfg BrowserConfig) *Browser {
	if cfg.UserAgent == "" {
		cfg.UserAgent = model.DefaultUserAgent
	}
	if cfg.ExecPath == "" {
		cfg.ExecPath = os.Getenv("CHROME_PATH")
	}
	return &Browser{cfg: cfg}
}

// Started reports whether the Chrome process is running
func (b *Browser) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.browserCtx != nil
}

func (b *Browser) ensure() (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx != nil {
		return b.browserCtx, nil
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.UserAgent(b.cfg.UserAgent),
	)
	if b.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.cfg.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	slog.Debug("browser started", "exec_path", b.cfg.ExecPath)
	b.allocCancel = allocCancel
	b.browserCtx = browserCtx
	b.browserCancel = browserCancel
	return browserCtx, nil
}

// newTab opens a tab that is closed when the returned cancel func runs or
// when ctx is done, whichever happens first.
func (b *Browser) newTab(ctx context.Context) (context.Context, context.CancelFunc, error) {
	browserCtx, err := b.ensure()
	if err != nil {
		return nil, nil, err
	}

	tabCtx, closeTab := chromedp.NewContext(browserCtx)
	if err := chromedp.Run(tabCtx); err != nil {
		closeTab()
		return nil, nil, fmt.Errorf("open tab: %w", err)
	}

	stop := context.AfterFunc(ctx, closeTab)
	return tabCtx, func() {
		stop()
		closeTab()
	}, nil
}

// PageHTML navigates to url in a fresh tab and returns the rendered HTML.
// When waitSelector is set it is awaited for up to timeout; a selector
// timeout is logged and the page content is returned anyway.
func (b *Browser) PageHTML(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}

	tabCtx, closeTab, err := b.newTab(ctx)
	if err != nil {
		return "", err
	}
	defer closeTab()

	if err := SleepFunc(ctx, b.cfg.Delay); err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "navigating", "url", url)
	navCtx, cancel := context.WithTimeout(tabCtx, timeout)
	err = chromedp.Run(navCtx, chromedp.Navigate(url))
	cancel()
	if err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}

	if waitSelector != "" {
		waitCtx, cancel := context.WithTimeout(tabCtx, timeout)
		err := chromedp.Run(waitCtx, chromedp.WaitReady(waitSelector, chromedp.ByQuery))
		cancel()
		if err != nil {
			slog.WarnContext(ctx, "timeout waiting for selector", "selector", waitSelector, "url", url, "err", err)
		}
	}

	var html string
	if err := chromedp.Run(tabCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page %s: %w", url, err)
	}
	return html, nil
}

// PageTree renders url and returns the parsed document
func (b *Browser) PageTree(ctx context.Context, url, waitSelector string, timeout time.Duration) (*goquery.Document, error) {
	return PageTree(ctx, b, url, waitSelector, timeout)
}

// Close shuts Chrome down. It is safe to call when the browser never started
// and safe to call more than once.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.browserCtx == nil {
		return nil
	}

	err := chromedp.Cancel(b.browserCtx)
	b.browserCancel()
	b.allocCancel()
	b.browserCtx = nil
	b.browserCancel = nil
	b.allocCancel = nil

	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}

// FormSession drives one stateful page through a multi-step form
type FormSession interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	SetValue(ctx context.Context, selector, value string) error
	SelectOption(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Exists(ctx context.Context, selector string) (bool, error)
	WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	Download(ctx context.Context, selector string, timeout time.Duration) ([]byte, error)
	Close()
}

var _ FormSession = (*Session)(nil)

// Session is one long-lived tab for multi-step form automation. Downloads
// triggered in the tab are captured into a private temp directory.
type Session struct {
	tab         context.Context
	closeTab    context.CancelFunc
	delay       time.Duration
	downloadDir string
	downloads   chan string
}

// NewSession opens a tab for form automation
func (b *Browser) NewSession(ctx context.Context) (*Session, error) {
	tabCtx, closeTab, err := b.newTab(ctx)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp("", "oldp-download-*")
	if err != nil {
		closeTab()
		return nil, fmt.Errorf("create download dir: %w", err)
	}

	s := &Session{
		tab:         tabCtx,
		closeTab:    closeTab,
		delay:       b.cfg.Delay,
		downloadDir: dir,
		downloads:   make(chan string, 1),
	}

	chromedp.ListenTarget(tabCtx, func(ev any) {
		e, ok := ev.(*browser.EventDownloadProgress)
		if !ok {
			return
		}
		switch e.State {
		case browser.DownloadProgressStateCompleted:
			s.signal(e.GUID)
		case browser.DownloadProgressStateCanceled:
			s.signal("")
		}
	})

	err = chromedp.Run(tabCtx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
		WithDownloadPath(dir).
		WithEventsEnabled(true))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("enable downloads: %w", err)
	}

	return s, nil
}

func (s *Session) signal(guid string) {
	select {
	case s.downloads <- guid:
	default:
	}
}

func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	runCtx, cancel := context.WithTimeout(s.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url after the configured delay
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	if err := SleepFunc(ctx, s.delay); err != nil {
		return err
	}
	slog.DebugContext(ctx, "navigating", "url", url)
	if err := s.run(ctx, timeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible waits until selector matches a visible element
func (s *Session) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	return s.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery))
}

// SetValue sets the value of an input field
func (s *Session) SetValue(ctx context.Context, selector, value string) error {
	return s.run(ctx, 0, chromedp.SetValue(selector, value, chromedp.ByQuery))
}

// SelectOption sets a select element's value and fires its change event,
// which triggers ASP.NET auto-postback.
func (s *Session) SelectOption(ctx context.Context, selector, value string) error {
	sel, _ := json.Marshal(selector)
	val, _ := json.Marshal(value)
	script := fmt.Sprintf(`(function(){
  var el = document.querySelector(%s);
  if (!el) { return false; }
  el.value = %s;
  el.dispatchEvent(new Event('change', {bubbles: true}));
  return true;
})()`, sel, val)

	var ok bool
	if err := s.run(ctx, 0, chromedp.Evaluate(script, &ok)); err != nil {
		return fmt.Errorf("select %s: %w", selector, err)
	}
	if !ok {
		return fmt.Errorf("select %s: element not found", selector)
	}
	return nil
}

// Click clicks the first element matching selector
func (s *Session) Click(ctx context.Context, selector string) error {
	if err := s.run(ctx, 0, chromedp.Click(selector, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// Exists reports whether selector currently matches an element
func (s *Session) Exists(ctx context.Context, selector string) (bool, error) {
	sel, _ := json.Marshal(selector)
	var ok bool
	err := s.run(ctx, 0, chromedp.Evaluate(fmt.Sprintf(`document.querySelector(%s) !== null`, sel), &ok))
	return ok, err
}

// WaitNetworkIdle polls until the document finished loading and then waits a
// quiet period, approximating network idle after a postback.
func (s *Session) WaitNetworkIdle(ctx context.Context, quiet, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}
	deadline := time.Now().Add(timeout)
	for {
		var state string
		if err := s.run(ctx, timeout, chromedp.Evaluate(`document.readyState`, &state)); err == nil && state == "complete" {
			break
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("wait network idle: timed out after %v", timeout)
		}
		if err := SleepFunc(ctx, 100*time.Millisecond); err != nil {
			return err
		}
	}
	return SleepFunc(ctx, quiet)
}

// HTML returns the current DOM
func (s *Session) HTML(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, 0, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read page: %w", err)
	}
	return html, nil
}

// Download clicks selector and waits for the resulting file download.
// Servers that stream the file in place do not navigate, so the download
// event is the only completion signal.
func (s *Session) Download(ctx context.Context, selector string, timeout time.Duration) ([]byte, error) {
	if timeout <= 0 {
		timeout = DefaultPageTimeout
	}

	// drop a stale signal from an earlier, abandoned download
	select {
	case <-s.downloads:
	default:
	}

	if err := s.Click(ctx, selector); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("download via %s: timed out after %v", selector, timeout)
	case guid := <-s.downloads:
		if guid == "" {
			return nil, fmt.Errorf("download via %s: canceled", selector)
		}
		path := filepath.Join(s.downloadDir, guid)
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read download: %w", err)
		}
		_ = os.Remove(path)
		return data, nil
	}
}

// Close closes the tab and removes captured downloads
func (s *Session) Close() {
	s.closeTab()
	_ = os.RemoveAll(s.downloadDir)
}
