// Package pipeline normalizes provider output and delivers it to a sink.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/provider"
	"github.com/openlegaldata/oldp-ingestor/internal/sink"
)

// Options controls one delivery pass
type Options struct {
	Limit  int // maximum books or cases to deliver, 0 means all
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Totals counts delivered records of one run
type Totals struct {
	Created int
	Skipped int
	Errors  int
}

// Status derives the run status from the delivery counts
func (t Totals) Status() model.Status {
	if t.Errors > 0 {
		return model.StatusPartial
	}
	return model.StatusOK
}

// Result builds the run result for command and provider
func (t Totals) Result(command, providerName string, started, finished time.Time) model.RunResult {
	return model.NewRunResult(command, providerName, started, finished, t.Created, t.Skipped, t.Errors, t.Status())
}

// outcome records one sink call; it reports whether the record was created
func (t *Totals) outcome(ctx context.Context, log *slog.Logger, kind, label string, err error) bool {
	switch {
	case err == nil:
		t.Created++
		log.DebugContext(ctx, "created "+kind, kind, label)
		return true
	case sink.IsConflict(err):
		t.Skipped++
		log.DebugContext(ctx, "skipped "+kind+" (already exists)", kind, label)
	default:
		t.Errors++
		log.ErrorContext(ctx, "failed to create "+kind, kind, label, "err", err)
	}
	return false
}

// attach returns a copy of the provider source unless it is unnamed
func attach(src model.Source) *model.Source {
	if src.IsZero() {
		return nil
	}
	s := src
	return &s
}

// RunLaws delivers every law book of p and, for each created book, its
// laws. A book the sink already holds is skipped along with its laws.
// An error is returned only when the book listing fails.
func RunLaws(ctx context.Context, p provider.LawProvider, s sink.Sink, opts Options) (Totals, error) {
	log := opts.logger()
	var books, laws Totals

	// 1. List books
	log.InfoContext(ctx, "fetching law books")
	list, err := p.GetLawBooks(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("list law books: %w", err)
	}
	log.InfoContext(ctx, "found law books", "count", len(list))
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
		log.InfoContext(ctx, "limiting law books", "limit", opts.Limit)
	}

	source := attach(p.Source())
	for _, book := range list {
		if err := ctx.Err(); err != nil {
			return sum(books, laws), err
		}

		// 2. Write the book; its laws follow only when it was created
		book.Source = source
		if !books.outcome(ctx, log, "book", book.Label(), s.WriteLawBook(ctx, book)) {
			continue
		}

		// 3. Fetch and normalize the laws of the book
		items, err := p.GetLaws(ctx, book.Code, book.RevisionDate)
		if err != nil {
			laws.Errors++
			log.ErrorContext(ctx, "failed to fetch laws", "book", book.Label(), "err", err)
			continue
		}
		log.InfoContext(ctx, "ingesting laws", "book", book.Label(), "count", len(items))

		for _, law := range items {
			law = NormalizeLaw(law)
			law.Source = source
			laws.outcome(ctx, log, "law", law.Label(), s.WriteLaw(ctx, law))
		}
	}

	log.InfoContext(ctx, "summary",
		"books_created", books.Created, "books_skipped", books.Skipped, "books_errors", books.Errors,
		"laws_created", laws.Created, "laws_skipped", laws.Skipped, "laws_errors", laws.Errors)
	return sum(books, laws), nil
}

// RunCases delivers every case of p. An error is returned only when the
// provider fails to list cases.
func RunCases(ctx context.Context, p provider.CaseProvider, s sink.Sink, opts Options) (Totals, error) {
	log := opts.logger()
	var totals Totals

	log.InfoContext(ctx, "fetching cases")
	list, err := p.GetCases(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("list cases: %w", err)
	}
	log.InfoContext(ctx, "found cases", "count", len(list))
	if opts.Limit > 0 && len(list) > opts.Limit {
		list = list[:opts.Limit]
		log.InfoContext(ctx, "limiting cases", "limit", opts.Limit)
	}

	source := attach(p.Source())
	for _, c := range list {
		if err := ctx.Err(); err != nil {
			return totals, err
		}
		c = NormalizeCase(c)
		c.Source = source
		totals.outcome(ctx, log, "case", c.Label(), s.WriteCase(ctx, c))
	}

	log.InfoContext(ctx, "summary", "created", totals.Created, "skipped", totals.Skipped, "errors", totals.Errors)
	return totals, nil
}

// NormalizeLaw fills a blank title from the section and truncates the
// section and title to the API limits.
func NormalizeLaw(law model.Law) model.Law {
	if law.Title == "" {
		law.Title = law.Section
		if law.Title == "" {
			law.Title = model.DefaultLawTitle
		}
	}
	law.Section = extract.Truncate(law.Section, model.MaxLawSectionLength)
	law.Title = extract.Truncate(law.Title, model.MaxLawTitleLength)
	return law
}

// NormalizeCase truncates file number, title and court name to the API limits
func NormalizeCase(c model.Case) model.Case {
	c.FileNumber = extract.Truncate(c.FileNumber, model.MaxFileNumberLength)
	c.Title = extract.Truncate(c.Title, model.MaxCaseTitleLength)
	c.CourtName = extract.Truncate(c.CourtName, model.MaxCourtNameLength)
	return c
}

func sum(a, b Totals) Totals {
	return Totals{Created: a.Created + b.Created, Skipped: a.Skipped + b.Skipped, Errors: a.Errors + b.Errors}
}
