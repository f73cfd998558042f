package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const snOVGBaseURL = "https://www.justiz.sachsen.de/ovgentschweb"

var snOVGSource = model.Source{
	Name:     "Sächsisches Oberverwaltungsgericht",
	Homepage: "https://www.justiz.sachsen.de/ovgentschweb/",
}

var popupDocumentPattern = regexp.MustCompile(`popupDocument\('(\d+)'\)`)

// SNOVGCaseProvider searches the OVG Bautzen database. One wildcard
// search returns every matching document id; content is the PDF.
type SNOVGCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
}

// NewSNOVGCaseProvider creates the OVG Bautzen provider
func NewSNOVGCaseProvider(opts Options) *SNOVGCaseProvider {
	return &SNOVGCaseProvider{
		client: opts.client(snOVGBaseURL, false),
		opts:   opts,
		log:    logger("sn-ovg"),
	}
}

func (p *SNOVGCaseProvider) Source() model.Source { return snOVGSource }

// datumParam renders the date filter as a D.M.YYYY range; open ends are
// closed with fixed bounds.
func (p *SNOVGCaseProvider) datumParam() string {
	from, to := p.opts.DateFrom, p.opts.DateTo
	switch {
	case from != "" && to != "":
		return extract.ISOToGermanShort(from) + "-" + extract.ISOToGermanShort(to)
	case from != "":
		return extract.ISOToGermanShort(from) + "-31.12.2099"
	case to != "":
		return "1.1.1990-" + extract.ISOToGermanShort(to)
	}
	return ""
}

func (p *SNOVGCaseProvider) search(ctx context.Context) ([]string, error) {
	form := url.Values{"aktenzeichen": {"*"}}
	if datum := p.datumParam(); datum != "" {
		form.Set("datum", datum)
	}
	text, err := p.client.PostFormText(ctx, "/searchlist.phtml", form)
	if err != nil {
		return nil, err
	}
	return extract.Submatches(popupDocumentPattern, text, 1), nil
}

func (p *SNOVGCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	p.log.InfoContext(ctx, "searching")
	ids, err := p.search(ctx)
	if err != nil {
		p.log.ErrorContext(ctx, "search failed", "err", err)
		return nil, nil
	}
	p.log.InfoContext(ctx, "found documents", "count", len(ids))
	if p.opts.Limit > 0 && len(ids) > p.opts.Limit {
		ids = ids[:p.opts.Limit]
	}

	out := &collector{limit: p.opts.Limit}
	for _, id := range ids {
		if ctx.Err() != nil {
			return out.cases, ctx.Err()
		}
		c, ok := p.fetchDocument(ctx, id)
		if ok && out.add(c) {
			break
		}
	}
	return out.cases, nil
}

func (p *SNOVGCaseProvider) inRange(date string) bool {
	if date == "" {
		return true
	}
	if p.opts.DateFrom != "" && date < p.opts.DateFrom {
		return false
	}
	return p.opts.DateTo == "" || date <= p.opts.DateTo
}

func (p *SNOVGCaseProvider) fetchDocument(ctx context.Context, id string) (model.Case, bool) {
	log := p.log.With("doc_id", id)

	text, err := p.client.GetText(ctx, "/document.phtml", url.Values{"id": {id}})
	if err != nil {
		log.WarnContext(ctx, "failed to fetch document", "err", err)
		return model.Case{}, false
	}
	c, pdfLink, err := parseSNOVGDocument(text)
	if err != nil {
		log.WarnContext(ctx, "failed to parse document", "err", err)
		return model.Case{}, false
	}
	if !p.inRange(c.Date) {
		return model.Case{}, false
	}

	if pdfLink != "" {
		content, err := extract.FetchPDF(ctx, p.client, "/"+pdfLink)
		if err != nil {
			log.WarnContext(ctx, "failed to extract pdf", "file_number", c.FileNumber, "err", err)
		}
		c.Content = content
	}
	if !extract.HasContent(c.Content) {
		log.DebugContext(ctx, "no content, skipping")
		return model.Case{}, false
	}
	return c, true
}

// parseSNOVGDocument reads court, type and file number from the
// <br>-separated header, the date from the right-aligned cell and the
// Leitsatz row. It also returns the relative PDF link.
func parseSNOVGDocument(page string) (model.Case, string, error) {
	doc, err := extract.ParseHTML(page)
	if err != nil {
		return model.Case{}, "", err
	}

	header := htmlquery.FindOne(doc, `//td[@class="schattiert gross"]//div[@style]`)
	if header == nil {
		return model.Case{}, "", fmt.Errorf("no header")
	}
	lines := extract.SplitBreaks(extract.OuterHTML(header))
	if len(lines) < 3 {
		return model.Case{}, "", fmt.Errorf("incomplete header: %q", lines)
	}

	c := model.Case{CourtName: lines[0], Type: lines[1], FileNumber: lines[2]}
	if d := htmlquery.FindOne(doc, `//td[@class="schattiert gross"]//td[@align="right"]/text()`); d != nil {
		if raw := strings.TrimSpace(d.Data); raw != "" {
			c.Date = extract.ParseGermanDate(raw)
		}
	}
	c.Abstract = snOVGLeitsatz(doc)

	pdf := ""
	for _, a := range htmlquery.Find(doc, `//a[contains(@href, "documents/")]`) {
		if href := extract.Attr(a, "href"); strings.HasSuffix(href, ".pdf") {
			pdf = href
			break
		}
	}
	return c, pdf, nil
}

// snOVGLeitsatz returns the text of the last cell starting with
// "Leitsatz:", without the label.
func snOVGLeitsatz(doc *html.Node) string {
	abstract := ""
	for _, td := range htmlquery.Find(doc, "//td") {
		text := extract.Text(td)
		if rest, ok := strings.CutPrefix(text, "Leitsatz:"); ok {
			if rest = strings.TrimSpace(rest); rest != "" {
				abstract = rest
			}
		}
	}
	return abstract
}
