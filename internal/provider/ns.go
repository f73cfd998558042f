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

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const (
	nsBaseURL = "https://voris.wolterskluwer-online.de"
	nsMaxPage = 5000
)

var nsSource = model.Source{Name: "NI-VORIS Niedersachsen", Homepage: nsBaseURL}

var nsDocPattern = regexp.MustCompile(`/browse/document/[a-f0-9-]{36}`)

// NSCaseProvider lists Lower Saxony decisions from the VORIS portal.
// Listing pages are 0-indexed with twelve hits each.
type NSCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
}

// NewNSCaseProvider creates the Lower Saxony provider
func NewNSCaseProvider(opts Options) *NSCaseProvider {
	return &NSCaseProvider{
		client: opts.client(nsBaseURL, false),
		opts:   opts,
		log:    logger("ns"),
	}
}

func (p *NSCaseProvider) Source() model.Source { return nsSource }

func (p *NSCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	out := &collector{limit: p.opts.Limit}
	paginate(ctx, p.log, 0, nsMaxPage, p.searchPage, func(ctx context.Context, path string) bool {
		c, ok := p.fetchCase(ctx, path)
		return ok && out.add(c)
	})
	return out.cases, nil
}

func (p *NSCaseProvider) searchPage(ctx context.Context, page int) ([]string, error) {
	q := url.Values{}
	q.Set("query", "*")
	q.Set("publicationtype", "publicationform-ats-filter!ATS_Rechtsprechung")
	q.Set("page", strconv.Itoa(page))

	text, err := p.client.GetText(ctx, "/search", q)
	if err != nil {
		return nil, err
	}
	return extract.Dedupe(nsDocPattern.FindAllString(text, -1)), nil
}

func (p *NSCaseProvider) fetchCase(ctx context.Context, path string) (model.Case, bool) {
	text, err := p.client.GetText(ctx, path, nil)
	if err != nil {
		p.log.WarnContext(ctx, "failed to fetch case", "url", nsBaseURL+path, "err", err)
		return model.Case{}, false
	}
	c, err := parseNSCase(text)
	if err != nil {
		p.log.WarnContext(ctx, "skipping case", "url", nsBaseURL+path, "err", err)
		return model.Case{}, false
	}
	return c, true
}

// nsField returns the <dd> paired with the <dt> labelled name. The
// "[keine Angabe]" placeholder reads as empty.
func nsField(dl *goquery.Selection, name string) string {
	dds := dl.ChildrenFiltered("dd")
	value := ""
	dl.ChildrenFiltered("dt").EachWithBreak(func(i int, dt *goquery.Selection) bool {
		if strings.TrimSpace(dt.Text()) != name {
			return true
		}
		if i < dds.Length() {
			dd := dds.Eq(i)
			if dd.Find("span.wkde-empty").Length() == 0 {
				value = strings.TrimSpace(dd.Text())
			}
		}
		return false
	})
	return value
}

func parseNSCase(page string) (model.Case, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return model.Case{}, err
	}

	body := doc.Find(".wkde-document-body").First()
	if body.Length() == 0 {
		return model.Case{}, fmt.Errorf("no document body")
	}
	content, err := body.Html()
	if err != nil || strings.TrimSpace(content) == "" {
		return model.Case{}, fmt.Errorf("empty document body")
	}

	dl := doc.Find(".wkde-bibliography dl").First()
	if dl.Length() == 0 {
		return model.Case{}, fmt.Errorf("no bibliography")
	}

	c := model.Case{
		CourtName:  strings.ReplaceAll(nsField(dl, "Gericht"), "\u00a0", " "),
		FileNumber: nsField(dl, "Aktenzeichen"),
		Content:    content,
		ECLI:       nsField(dl, "ECLI"),
		Type:       nsField(dl, "Entscheidungsform"),
	}
	if d := nsField(dl, "Datum"); d != "" {
		c.Date = extract.ParseGermanDate(d)
	}
	if c.CourtName == "" || c.FileNumber == "" {
		return model.Case{}, fmt.Errorf("missing court or file number")
	}
	return c, nil
}
