package provider

import (
	"context"
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

const (
	snVerfGHBaseURL = "https://www.justiz.sachsen.de/esaver"
	snVerfGHCourt   = "Verfassungsgerichtshof des Freistaates Sachsen"
)

var snVerfGHSource = model.Source{
	Name:     "Verfassungsgerichtshof Sachsen",
	Homepage: "https://www.justiz.sachsen.de/esaver/",
}

// verfGHHeadings match the decision headings in their historical forms,
// e.g. "SächsVerfGH, Beschluss vom 15. Januar 2026 - Vf. 18-IV-25" or
// "Beschluss des SächsVerfGH vom 25. Oktober 2007 - Vf. 90-IV-06".
// Groups are type, day, month name, year and file number.
var verfGHHeadings = []*regexp.Regexp{
	regexp.MustCompile(`^S.chsVerfGH[,\s-]+\s*(Beschluss|Urteil)\s+vom\s+(\d{1,2})\.\s*(\p{L}+)\s+(\d{4})\s*-\s*(.+)`),
	regexp.MustCompile(`^(Beschluss|Urteil)\s+des\s+S.chsVerfGH\s+vom\s+(\d{1,2})\.\s*(\p{L}+)\s+(\d{4})\s*-\s*(.+)`),
	regexp.MustCompile(`^(Beschluss|Urteil)\s+vom\s+(\d{1,2})\.\s*(\p{L}+)\s+(\d{4})\s*-\s*(.+)`),
}

// SNVerfGHCaseProvider queries the VerfGH Sachsen decision list. A single
// AJAX POST returns every decision in range; content is the PDF.
type SNVerfGHCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
}

// NewSNVerfGHCaseProvider creates the VerfGH Sachsen provider
func NewSNVerfGHCaseProvider(opts Options) *SNVerfGHCaseProvider {
	return &SNVerfGHCaseProvider{
		client: opts.client(snVerfGHBaseURL, false),
		opts:   opts,
		log:    logger("sn-verfgh"),
	}
}

func (p *SNVerfGHCaseProvider) Source() model.Source { return snVerfGHSource }

func (p *SNVerfGHCaseProvider) search(ctx context.Context) (string, error) {
	from, to := p.opts.DateFrom, p.opts.DateTo
	if from == "" {
		from = "1990-01-01"
	}
	if to == "" {
		to = "2099-12-31"
	}
	form := url.Values{"funkt": {"search"}, "datumvon": {from}, "datumbis": {to}}
	for _, key := range []string{"verfart", "feldnorm", "feldgrund", "akz", "stichwort", "entschart", "ecli"} {
		form.Set(key, "")
	}
	return p.client.PostFormText(ctx, "/answers.php", form)
}

func (p *SNVerfGHCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	p.log.InfoContext(ctx, "searching")
	page, err := p.search(ctx)
	if err != nil {
		p.log.ErrorContext(ctx, "search failed", "err", err)
		return nil, nil
	}
	entries, err := parseVerfGHResults(page)
	if err != nil {
		return nil, err
	}
	p.log.InfoContext(ctx, "found decisions", "count", len(entries))
	if p.opts.Limit > 0 && len(entries) > p.opts.Limit {
		entries = entries[:p.opts.Limit]
	}

	out := &collector{limit: p.opts.Limit}
	for _, e := range entries {
		if ctx.Err() != nil {
			return out.cases, ctx.Err()
		}
		if e.pdf == "" {
			p.log.DebugContext(ctx, "no pdf link, skipping", "file_number", e.Case.FileNumber)
			continue
		}
		content, err := extract.FetchPDF(ctx, p.client, "/"+e.pdf)
		if err != nil {
			p.log.WarnContext(ctx, "failed to extract pdf", "file_number", e.Case.FileNumber, "err", err)
			continue
		}
		if !extract.HasContent(content) {
			p.log.DebugContext(ctx, "no content, skipping", "file_number", e.Case.FileNumber)
			continue
		}
		e.Case.Content = content
		if out.add(e.Case) {
			break
		}
	}
	return out.cases, nil
}

type verfGHEntry struct {
	Case model.Case
	pdf  string
}

// parseVerfGHResults reads one entry per row with a parseable <h4>
func parseVerfGHResults(page string) ([]verfGHEntry, error) {
	doc, err := extract.ParseHTML(page)
	if err != nil {
		return nil, err
	}
	rows := htmlquery.Find(doc, `//table[@id='tEntschList']//tr`)
	if len(rows) == 0 {
		rows = htmlquery.Find(doc, "//tr")
	}

	var entries []verfGHEntry
	for _, row := range rows {
		h4 := htmlquery.FindOne(row, ".//h4")
		if h4 == nil {
			continue
		}
		m := matchVerfGHHeading(extract.Text(h4))
		if m == nil {
			continue
		}

		e := verfGHEntry{Case: model.Case{
			CourtName:  snVerfGHCourt,
			Type:       m[1],
			Date:       extract.GermanMonthDate(m[2], m[3], m[4]),
			FileNumber: strings.TrimSpace(m[5]),
			Abstract:   verfGHAbstract(row),
		}}
		for _, a := range htmlquery.Find(row, `.//a[contains(@href, ".pdf")]`) {
			if href := extract.Attr(a, "href"); href != "" {
				e.pdf = strings.TrimPrefix(href, "./")
				break
			}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func matchVerfGHHeading(s string) []string {
	for _, re := range verfGHHeadings {
		if m := re.FindStringSubmatch(s); m != nil {
			return m
		}
	}
	return nil
}

// verfGHAbstract prefers the Leitsatz paragraph (id lst_N) over the first
// plain description paragraph.
func verfGHAbstract(row *html.Node) string {
	desc := ""
	for _, p := range htmlquery.Find(row, ".//td/p") {
		id := extract.Attr(p, "id")
		text := extract.Text(p)
		if strings.HasPrefix(id, "lst_") && text != "" {
			return text
		}
		if desc == "" && text != "" && !strings.HasPrefix(id, "ls_") && !hasChildElement(p, "a", "b") {
			desc = text
		}
	}
	return desc
}

func hasChildElement(n *html.Node, tags ...string) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		for _, t := range tags {
			if c.Data == t {
				return true
			}
		}
	}
	return false
}
