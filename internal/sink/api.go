package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
)

// ErrNoAPIURL is returned when the API sink or client has no base URL
var ErrNoAPIURL = errors.New("OLDP_API_URL is not set")

const maxDetailLength = 200

// APIClient talks to an OLDP instance
type APIClient struct {
	client *resty.Client
	base   string
}

// NewAPIClient creates a client from the API settings. The token is sent
// as "Token <token>"; HTTPAuth "user:password" enables basic auth.
func NewAPIClient(cfg model.APIConfig) (*APIClient, error) {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		return nil, ErrNoAPIURL
	}

	client := resty.New()
	client.SetBaseURL(base)
	client.SetTimeout(60 * time.Second)
	client.SetHeader("Accept", "application/json")
	client.SetHeader("User-Agent", model.DefaultUserAgent)
	if cfg.Token != "" {
		client.SetHeader("Authorization", "Token "+cfg.Token)
	}
	if user, password, ok := strings.Cut(cfg.HTTPAuth, ":"); ok {
		client.SetBasicAuth(user, password)
	}

	slog.Debug("initialized OLDP client", "url", base)
	return &APIClient{client: client, base: base}, nil
}

// BaseURL returns the instance URL without trailing slash
func (c *APIClient) BaseURL() string { return c.base }

// Get fetches path and decodes the JSON response into v
func (c *APIClient) Get(ctx context.Context, path string, v any) error {
	slog.DebugContext(ctx, "GET", "path", path)
	resp, err := c.client.R().SetContext(ctx).Get(path)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	if resp.IsError() {
		return responseError(path, resp)
	}
	if err := json.Unmarshal(resp.Body(), v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Post sends body as JSON. A 409 yields a *ConflictError, any other
// non-2xx status a *WriteError.
func (c *APIClient) Post(ctx context.Context, path string, body any) error {
	slog.DebugContext(ctx, "POST", "path", path)
	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(path)
	if err != nil {
		return fmt.Errorf("post %s: %w", path, err)
	}
	if resp.IsError() {
		return responseError(path, resp)
	}
	return nil
}

// GetAll follows DRF pagination from path and collects every "results"
// entry. Absolute next links are reduced to path and query.
func (c *APIClient) GetAll(ctx context.Context, path string) ([]map[string]any, error) {
	var items []map[string]any
	for path != "" {
		var page struct {
			Next    *string          `json:"next"`
			Results []map[string]any `json:"results"`
		}
		if err := c.Get(ctx, path, &page); err != nil {
			return items, err
		}
		items = append(items, page.Results...)

		path = ""
		if page.Next != nil && *page.Next != "" {
			path = relativeRef(*page.Next)
		}
	}
	return items, nil
}

func relativeRef(next string) string {
	if !strings.HasPrefix(next, "http://") && !strings.HasPrefix(next, "https://") {
		return next
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

func responseError(path string, resp *resty.Response) error {
	if resp.StatusCode() == http.StatusConflict {
		return &ConflictError{Path: path}
	}
	return &WriteError{Path: path, StatusCode: resp.StatusCode(), Detail: responseDetail(resp.Body())}
}

// responseDetail renders a JSON body compactly, anything else as
// truncated text.
func responseDetail(body []byte) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, body); err == nil {
		return buf.String()
	}
	return extract.Truncate(strings.TrimSpace(string(body)), maxDetailLength)
}

// APISink posts records to the OLDP REST API
type APISink struct {
	client *APIClient
}

// NewAPISink creates an API sink from the API settings
func NewAPISink(cfg model.APIConfig) (*APISink, error) {
	client, err := NewAPIClient(cfg)
	if err != nil {
		return nil, err
	}
	return &APISink{client: client}, nil
}

func (s *APISink) WriteLawBook(ctx context.Context, book model.LawBook) error {
	return s.client.Post(ctx, "/api/law_books/", book)
}

func (s *APISink) WriteLaw(ctx context.Context, law model.Law) error {
	return s.client.Post(ctx, "/api/laws/", law)
}

func (s *APISink) WriteCase(ctx context.Context, c model.Case) error {
	return s.client.Post(ctx, "/api/cases/", c)
}
