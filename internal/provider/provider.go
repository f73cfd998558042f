// Package provider defines the law and case listing contracts and the
// source-specific adapters implementing them.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

var (
	// ErrNotImplemented is returned by the base types for every listing method
	ErrNotImplemented = errors.New("not implemented")
	// ErrUnknownProvider is returned for a name missing from the registry
	ErrUnknownProvider = errors.New("unknown provider")
	// ErrInvalidDate is returned for a date filter not in YYYY-MM-DD form
	ErrInvalidDate = errors.New("invalid date")
	// ErrMissingOption is returned when a required option is unset
	ErrMissingOption = errors.New("missing option")
)

// LawProvider lists law books and the laws of one book
type LawProvider interface {
	Source() model.Source
	GetLawBooks(ctx context.Context) ([]model.LawBook, error)
	GetLaws(ctx context.Context, bookCode, revisionDate string) ([]model.Law, error)
}

// CaseProvider lists court decisions
type CaseProvider interface {
	Source() model.Source
	GetCases(ctx context.Context) ([]model.Case, error)
}

// BaseLawProvider answers every call with ErrNotImplemented
type BaseLawProvider struct{}

func (BaseLawProvider) Source() model.Source { return model.Source{} }

func (BaseLawProvider) GetLawBooks(ctx context.Context) ([]model.LawBook, error) {
	return nil, ErrNotImplemented
}

func (BaseLawProvider) GetLaws(ctx context.Context, bookCode, revisionDate string) ([]model.Law, error) {
	return nil, ErrNotImplemented
}

// BaseCaseProvider answers every call with ErrNotImplemented
type BaseCaseProvider struct{}

func (BaseCaseProvider) Source() model.Source { return model.Source{} }

func (BaseCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	return nil, ErrNotImplemented
}

// Options is the construction surface shared by all adapters. Dates are
// YYYY-MM-DD; adapters convert them to whatever the source expects.
type Options struct {
	SearchTerm string
	Court      string
	DateFrom   string
	DateTo     string
	Limit      int // 0 means no limit
	Delay      time.Duration
	Path       string // fixture file for the dummy providers
	Username   string
	Password   string

	// Transport is the template for every HTTP client an adapter creates.
	// BaseURL and Delay are set by the adapter.
	Transport transport.Config
	Browser   transport.BrowserConfig
	// Renderer replaces the headless browser of SPA adapters
	Renderer transport.Renderer
}

// Validate checks the date filters
func (o Options) Validate() error {
	if o.DateFrom != "" && !extract.ValidISODate(o.DateFrom) {
		return fmt.Errorf("%w: --date-from %q, expected YYYY-MM-DD", ErrInvalidDate, o.DateFrom)
	}
	if o.DateTo != "" && !extract.ValidISODate(o.DateTo) {
		return fmt.Errorf("%w: --date-to %q, expected YYYY-MM-DD", ErrInvalidDate, o.DateTo)
	}
	return nil
}

func (o Options) client(baseURL string, cookies bool) *transport.Client {
	cfg := o.Transport
	cfg.BaseURL = baseURL
	cfg.Delay = o.Delay
	cfg.CookieJar = cookies
	return transport.NewClient(cfg)
}

func (o Options) browser() *transport.Browser {
	cfg := o.Browser
	if cfg.UserAgent == "" {
		cfg.UserAgent = o.Transport.UserAgent
	}
	cfg.Delay = o.Delay
	return transport.NewBrowser(cfg)
}

func (o Options) renderer() transport.Renderer {
	if o.Renderer != nil {
		return o.Renderer
	}
	return o.browser()
}

// Close releases provider resources such as a running browser
func Close(p any) error {
	if c, ok := p.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func logger(name string) *slog.Logger {
	return slog.Default().With("provider", name)
}

// collector accumulates cases up to an optional limit
type collector struct {
	cases []model.Case
	limit int
}

// add appends c and reports whether the limit is reached
func (c *collector) add(cs model.Case) bool {
	c.cases = append(c.cases, cs)
	return c.full()
}

func (c *collector) full() bool {
	return c.limit > 0 && len(c.cases) >= c.limit
}

// paginate walks listing pages from first until two consecutive pages are
// empty, a listing fetch fails, page exceeds last (when last > 0), or visit
// reports that the limit is reached. It returns true in the last case.
func paginate(ctx context.Context, log *slog.Logger, first, last int,
	list func(ctx context.Context, page int) ([]string, error),
	visit func(ctx context.Context, id string) bool,
) bool {
	empty := 0
	for page := first; last <= 0 || page <= last; page++ {
		if ctx.Err() != nil {
			return false
		}

		ids, err := list(ctx, page)
		if err != nil {
			log.WarnContext(ctx, "failed to fetch listing page", "page", page, "err", err)
			return false
		}

		if len(ids) == 0 {
			empty++
			if empty >= 2 {
				return false
			}
			continue
		}

		empty = 0
		log.InfoContext(ctx, "listing page", "page", page, "documents", len(ids))

		for _, id := range ids {
			if visit(ctx, id) {
				return true
			}
		}
	}
	return false
}

// Kind tells which contract a registered provider implements
type Kind string

const (
	KindLaws  Kind = "laws"
	KindCases Kind = "cases"
)

// LawFactory builds a law provider from options
type LawFactory func(Options) (LawProvider, error)

// CaseFactory builds a case provider from options
type CaseFactory func(Options) (CaseProvider, error)

// Info describes a registered provider
type Info struct {
	Name   string
	Kind   Kind
	Source model.Source
}

type lawEntry struct {
	source  model.Source
	factory LawFactory
}

type caseEntry struct {
	source  model.Source
	factory CaseFactory
}

// Registry maps provider names to factories
type Registry struct {
	laws  map[string]lawEntry
	cases map[string]caseEntry
}

// NewRegistry returns a registry with every built-in source
func NewRegistry() *Registry {
	r := &Registry{
		laws:  make(map[string]lawEntry),
		cases: make(map[string]caseEntry),
	}
	registerBuiltins(r)
	return r
}

// RegisterLaws adds a law provider factory
func (r *Registry) RegisterLaws(name string, source model.Source, f LawFactory) {
	r.laws[name] = lawEntry{source: source, factory: f}
}

// RegisterCases adds a case provider factory
func (r *Registry) RegisterCases(name string, source model.Source, f CaseFactory) {
	r.cases[name] = caseEntry{source: source, factory: f}
}

// LawProvider validates opts and builds the named law provider
func (r *Registry) LawProvider(name string, opts Options) (LawProvider, error) {
	e, ok := r.laws[name]
	if !ok {
		return nil, fmt.Errorf("%w %q for laws (available: %v)", ErrUnknownProvider, name, r.Names(KindLaws))
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return e.factory(opts)
}

// CaseProvider validates opts and builds the named case provider
func (r *Registry) CaseProvider(name string, opts Options) (CaseProvider, error) {
	e, ok := r.cases[name]
	if !ok {
		return nil, fmt.Errorf("%w %q for cases (available: %v)", ErrUnknownProvider, name, r.Names(KindCases))
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return e.factory(opts)
}

// Names lists the registered providers of one kind in sorted order
func (r *Registry) Names(kind Kind) []string {
	var names []string
	switch kind {
	case KindLaws:
		for name := range r.laws {
			names = append(names, name)
		}
	case KindCases:
		for name := range r.cases {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// List describes every registered provider, laws first
func (r *Registry) List() []Info {
	var infos []Info
	for _, name := range r.Names(KindLaws) {
		infos = append(infos, Info{Name: name, Kind: KindLaws, Source: r.laws[name].source})
	}
	for _, name := range r.Names(KindCases) {
		infos = append(infos, Info{Name: name, Kind: KindCases, Source: r.cases[name].source})
	}
	return infos
}
