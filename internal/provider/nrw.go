package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const (
	nrwBaseURL = "https://nrwesuche.justiz.nrw.de"
	nrwPerPage = 100
	nrwMaxPage = 1600
)

var nrwSource = model.Source{Name: "NRWE Rechtsprechungsdatenbank", Homepage: nrwBaseURL}

var nrwHeadlinePattern = regexp.MustCompile(`class="absatzLinks">(\s?[A-Z](\s[a-z]){4,})`)

// NRWCaseProvider lists decisions from the North Rhine-Westphalia
// database through its POST search form. Options.Court filters by court
// type.
type NRWCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
}

// NewNRWCaseProvider creates the NRW provider
func NewNRWCaseProvider(opts Options) *NRWCaseProvider {
	return &NRWCaseProvider{
		client: opts.client(nrwBaseURL, true),
		opts:   opts,
		log:    logger("nrw"),
	}
}

func (p *NRWCaseProvider) Source() model.Source { return nrwSource }

func (p *NRWCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	out := &collector{limit: p.opts.Limit}
	paginate(ctx, p.log, 1, nrwMaxPage, p.searchPage, func(ctx context.Context, link string) bool {
		c, ok := p.fetchCase(ctx, link)
		return ok && out.add(c)
	})
	return out.cases, nil
}

func (p *NRWCaseProvider) searchForm(page int) url.Values {
	pageStr := strconv.Itoa(page)
	fields := [][2]string{
		{"gerichtstyp", p.opts.Court},
		{"von2", ""},
		{"q", "*"},
		{"absenden", "Suchen"},
		{"schlagwoerter", ""},
		{"method", "stem"},
		{"von", extract.ISOToGerman(p.opts.DateFrom)},
		{"aktenzeichen", ""},
		{"bis", extract.ISOToGerman(p.opts.DateTo)},
		{"bis2", ""},
		{"advanced_search", "false"},
		{"sortieren_nach", "datum_absteigend"},
		{"date", ""},
		{"qSize", strconv.Itoa(nrwPerPage)},
		{"entscheidungsart", ""},
		{"gerichtsort", ""},
		{"validFrom", ""},
		{"gerichtsbarkeit", ""},
		{"page" + pageStr, pageStr},
	}
	form := url.Values{}
	for _, f := range fields {
		form.Set(f[0], f[1])
	}
	return form
}

func (p *NRWCaseProvider) searchPage(ctx context.Context, page int) ([]string, error) {
	text, err := p.client.PostFormText(ctx, "/index.php#solrNrwe", p.searchForm(page))
	if err != nil {
		return nil, err
	}
	return parseNRWLinks(text)
}

func parseNRWLinks(page string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}
	var links []string
	doc.Find(".einErgebnis a").Each(func(_ int, a *goquery.Selection) {
		if href, _ := a.Attr("href"); href != "" {
			links = append(links, href)
		}
	})
	return links, nil
}

func (p *NRWCaseProvider) fetchCase(ctx context.Context, link string) (model.Case, bool) {
	text, err := p.client.GetText(ctx, link, nil)
	if err != nil {
		p.log.WarnContext(ctx, "failed to fetch case", "url", link, "err", err)
		return model.Case{}, false
	}
	c, err := parseNRWCase(text)
	if err != nil {
		p.log.WarnContext(ctx, "skipping case", "url", link, "err", err)
		return model.Case{}, false
	}
	return c, true
}

func nrwField(doc *html.Node, name string) string {
	expr := fmt.Sprintf(`//div[contains(@class, "feldbezeichnung") and text()="%s:"]/following-sibling::div[1]`, name)
	return strings.TrimSpace(extract.XPathText(doc, expr, ""))
}

// parseNRWCase maps a decision page to a case. The tenor is placed in
// front of the decision text and paragraphs that look like letter-spaced
// headings are marked with the h2 class.
func parseNRWCase(page string) (model.Case, error) {
	doc, err := extract.ParseHTML(page)
	if err != nil {
		return model.Case{}, err
	}

	para := htmlquery.FindOne(doc, `//p[contains(@class, "absatzLinks")]`)
	if para == nil || para.Parent == nil {
		return model.Case{}, fmt.Errorf("no content")
	}
	content := extract.InnerHTML(para.Parent)

	for _, tenor := range htmlquery.Find(doc, `//div[contains(@class, "feldbezeichnung") and text()="Tenor:"]/following-sibling::div[1]`) {
		content = "<h2>Tenor</h2>\n\n" + strings.TrimSpace(extract.InnerHTML(tenor)) + "<br style=\"clear:both\">\n\n" + content
	}
	content = nrwHeadlinePattern.ReplaceAllString(content, `class="h2 absatzLinks">$1`)

	c := model.Case{
		CourtName:  nrwField(doc, "Gericht"),
		FileNumber: nrwField(doc, "Aktenzeichen"),
		Content:    content,
		ECLI:       nrwField(doc, "ECLI"),
		Type:       nrwField(doc, "Entscheidungsart"),
	}
	if d := nrwField(doc, "Datum"); d != "" {
		c.Date = extract.ParseGermanDate(d)
	}
	if c.CourtName == "" || c.FileNumber == "" {
		return model.Case{}, fmt.Errorf("missing court or file number")
	}
	return c, nil
}
