package provider

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const hbPageSize = 100

var hbSource = model.Source{Name: "Justiz Bremen", Homepage: "https://www.justiz.bremen.de"}

// HBCourt is one Bremen court portal
type HBCourt struct {
	Key       string
	BaseURL   string
	Path      string
	CourtName string
}

// HBCourts are the Bremen portals; they share one CMS layout
var HBCourts = []HBCourt{
	{"olg", "https://oberlandesgericht.bremen.de", "/entscheidungen/entscheidungsuebersicht-2335", "Hanseatisches Oberlandesgericht in Bremen"},
	{"ovg", "https://oberverwaltungsgericht.bremen.de", "/entscheidungen/entscheidungsuebersicht-11265", "Oberverwaltungsgericht der Freien Hansestadt Bremen"},
	{"vg", "https://verwaltungsgericht.bremen.de", "/entscheidungen/entscheidungsuebersicht-13039", "Verwaltungsgericht der Freien Hansestadt Bremen"},
	{"lag", "https://landesarbeitsgericht.bremen.de", "/entscheidungen/entscheidungsuebersicht-11508", "Landesarbeitsgericht Bremen"},
	{"stgh", "https://staatsgerichtshof.bremen.de", "/entscheidungen/entscheidungsuebersicht-11569", "Staatsgerichtshof der Freien Hansestadt Bremen"},
}

var (
	hbPDFSuffix = regexp.MustCompile(`\s*\(pdf,\s*[\d.,]+\s*[KMG]?B\)\s*$`)
	hbTypes     = map[string]bool{"Urteil": true, "Beschluss": true, "Sonstiges": true}
)

// HBCaseProvider lists Bremen decisions. Content comes from the decision
// PDF; dates are filtered client side.
type HBCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
}

// NewHBCaseProvider creates the Bremen provider. Options.Court selects one
// court key (olg, ovg, vg, lag, stgh).
func NewHBCaseProvider(opts Options) *HBCaseProvider {
	return &HBCaseProvider{
		client: opts.client("", false),
		opts:   opts,
		log:    logger("hb"),
	}
}

func (p *HBCaseProvider) Source() model.Source { return hbSource }

func (p *HBCaseProvider) courts() []HBCourt {
	if p.opts.Court == "" {
		return HBCourts
	}
	key := strings.ToLower(p.opts.Court)
	for _, c := range HBCourts {
		if c.Key == key {
			return []HBCourt{c}
		}
	}
	keys := make([]string, len(HBCourts))
	for i, c := range HBCourts {
		keys[i] = c.Key
	}
	sort.Strings(keys)
	p.log.Error("unknown court", "court", key, "valid", keys)
	return nil
}

func (p *HBCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	out := &collector{limit: p.opts.Limit}

	for _, court := range p.courts() {
		log := p.log.With("court", court.Key)
		log.InfoContext(ctx, "scraping court", "name", court.CourtName)

		for skip := 0; ; skip += hbPageSize {
			doc, err := p.listing(ctx, court, skip)
			if err != nil {
				log.WarnContext(ctx, "failed to fetch listing", "skip", skip, "err", err)
				break
			}

			rows := doc.Find("tr.search-result")
			var page []model.Case
			rows.Each(func(_ int, row *goquery.Selection) {
				if c, ok := p.parseRow(ctx, row, court); ok {
					page = append(page, c)
				}
			})
			if len(page) == 0 && skip > 0 {
				break
			}
			for _, c := range page {
				if out.add(c) {
					return out.cases, nil
				}
			}
			if rows.Length() < hbPageSize {
				break
			}
		}
	}
	return out.cases, nil
}

func (p *HBCaseProvider) listing(ctx context.Context, court HBCourt, skip int) (*goquery.Document, error) {
	text, err := p.client.GetText(ctx, fmt.Sprintf("%s%s?max=%d&skip=%d", court.BaseURL, court.Path, hbPageSize, skip), nil)
	if err != nil {
		return nil, err
	}
	return goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(text, "\r\n", "\n")))
}

// hbRow is the listing data of one decision
type hbRow struct {
	Case      model.Case
	PDFLink   string
	DetailRef string
}

// parseHBRow reads the date attribute, the <br>-separated left cell
// (date, file number, norms, area, type) and the links of the right cell.
func parseHBRow(row *goquery.Selection, court HBCourt) (hbRow, bool) {
	date, _ := row.Attr("data-date")
	tds := row.ChildrenFiltered("td")
	if tds.Length() < 2 {
		return hbRow{}, false
	}

	left, _ := goquery.OuterHtml(tds.Eq(0))
	lines := extract.SplitBreaks(left)
	var r hbRow
	r.Case = model.Case{CourtName: court.CourtName, Date: date}
	if len(lines) > 1 {
		r.Case.FileNumber = lines[1]
	}
	if len(lines) > 2 && hbTypes[lines[len(lines)-1]] {
		r.Case.Type = lines[len(lines)-1]
	}

	tds.Eq(1).Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		switch {
		case strings.Contains(href, "/sixcms/media.php/") && strings.HasSuffix(href, ".pdf"):
			r.PDFLink = href
			r.Case.Title = hbPDFSuffix.ReplaceAllString(strings.TrimSpace(a.Text()), "")
		case strings.Contains(href, "detail.php?gsid="):
			r.DetailRef = href
		}
	})

	if r.Case.FileNumber == "" {
		return hbRow{}, false
	}
	return r, true
}

func (p *HBCaseProvider) inRange(date string) bool {
	if p.opts.DateFrom != "" && date < p.opts.DateFrom {
		return false
	}
	if p.opts.DateTo != "" && date > p.opts.DateTo {
		return false
	}
	return true
}

func (p *HBCaseProvider) parseRow(ctx context.Context, row *goquery.Selection, court HBCourt) (model.Case, bool) {
	date, _ := row.Attr("data-date")
	if !p.inRange(date) {
		return model.Case{}, false
	}

	r, ok := parseHBRow(row, court)
	if !ok {
		return model.Case{}, false
	}
	c := r.Case

	if r.PDFLink != "" {
		content, err := extract.FetchPDF(ctx, p.client, court.BaseURL+r.PDFLink)
		if err != nil {
			p.log.WarnContext(ctx, "failed to extract pdf", "file_number", c.FileNumber, "err", err)
		} else if extract.HasContent(content) {
			c.Content = content
		}
	}
	if c.Content == "" {
		p.log.DebugContext(ctx, "no content, skipping", "file_number", c.FileNumber)
		return model.Case{}, false
	}

	if r.DetailRef != "" {
		abstract, err := p.fetchAbstract(ctx, court, r.DetailRef)
		if err != nil {
			p.log.DebugContext(ctx, "failed to fetch detail", "file_number", c.FileNumber, "err", err)
		}
		c.Abstract = abstract
	}
	return c, true
}

func (p *HBCaseProvider) fetchAbstract(ctx context.Context, court HBCourt, ref string) (string, error) {
	text, err := p.client.GetText(ctx, court.BaseURL+"/entscheidungen/"+ref, nil)
	if err != nil {
		return "", err
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(strings.ReplaceAll(text, "\r\n", "\n")))
	if err != nil {
		return "", err
	}
	return parseHBAbstract(doc), nil
}

// parseHBAbstract returns the Leitsatz of a detail page
func parseHBAbstract(doc *goquery.Document) string {
	abstract := ""
	doc.Find("div.project_info").EachWithBreak(func(_ int, info *goquery.Selection) bool {
		left := info.Find(`div[class="project_info_left"]`).First()
		right := info.Find(`div[class="project_info_right"]`).First()
		if left.Length() == 0 || right.Length() == 0 {
			return true
		}
		if strings.TrimSpace(left.Text()) == "Leitsatz" {
			abstract = strings.TrimSpace(right.Text())
			return false
		}
		return true
	})
	return abstract
}
