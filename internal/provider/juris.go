package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const (
	jurisWaitSelector = ".result-list-entry, .docLayoutText, .jportal-content"
	jurisTimeout      = 15 * time.Second
	jurisPageStep     = 25
)

// JurisPortal is one state portal of the juris eJustiz platform
type JurisPortal struct {
	Key     string
	BaseURL string
	Name    string
}

// Source returns the portal source; the homepage is the portal host
func (j JurisPortal) Source() model.Source {
	home := j.BaseURL
	if u, err := url.Parse(j.BaseURL); err == nil {
		home = u.Scheme + "://" + u.Host
	}
	return model.Source{Name: j.Name, Homepage: home}
}

// JurisPortals lists the state portals sharing the juris SPA
var JurisPortals = []JurisPortal{
	{"juris-bb", "https://gesetze.berlin.de/bsbe", "Landesrecht Berlin-Brandenburg"},
	{"juris-hh", "https://www.landesrecht-hamburg.de/bsha", "Landesrecht Hamburg"},
	{"juris-mv", "https://www.landesrecht-mv.de/bsmv", "Landesrecht Mecklenburg-Vorpommern"},
	{"juris-rlp", "https://www.landesrecht.rlp.de/bsrp", "Landesrecht Rheinland-Pfalz"},
	{"juris-sa", "https://www.landesrecht.sachsen-anhalt.de/bsst", "Landesrecht Sachsen-Anhalt"},
	{"juris-sh", "https://www.gesetze-rechtsprechung.sh.juris.de/bssh", "Landesrecht Schleswig-Holstein"},
	{"juris-bw", "https://www.landesrecht-bw.de/bsbw", "Landesrecht Baden-Württemberg"},
	{"juris-sl", "https://recht.saarland.de/bssl", "Landesrecht Saarland"},
	{"juris-he", "https://www.lareda.hessenrecht.hessen.de/bshe", "Landesrecht Hessen"},
	{"juris-th", "https://landesrecht.thueringen.de/bsth", "Landesrecht Thüringen"},
}

var jurisDocPattern = regexp.MustCompile(`/document/([A-Z0-9]+)/`)

// jurisLabels maps info table labels to case fields, in lookup order
var jurisLabels = []struct {
	label string
	set   func(*model.Case, string)
}{
	{"Gericht", func(c *model.Case, v string) { c.CourtName = v }},
	{"Entscheidungsdatum", func(c *model.Case, v string) { c.Date = v }},
	{"Aktenzeichen", func(c *model.Case, v string) { c.FileNumber = v }},
	{"Dokumenttyp", func(c *model.Case, v string) { c.Type = v }},
	{"ECLI", func(c *model.Case, v string) { c.ECLI = v }},
}

// JurisCaseProvider renders a juris state portal in a headless browser.
// The legacy portlet search URL still triggers a full search in the SPA.
type JurisCaseProvider struct {
	portal   JurisPortal
	renderer transport.Renderer
	opts     Options
	log      *slog.Logger
}

// NewJurisCaseProvider creates a provider for one portal. The browser is
// started on the first page load.
func NewJurisCaseProvider(portal JurisPortal, opts Options) *JurisCaseProvider {
	return &JurisCaseProvider{
		portal:   portal,
		renderer: opts.renderer(),
		opts:     opts,
		log:      logger(portal.Key),
	}
}

func (p *JurisCaseProvider) Source() model.Source { return p.portal.Source() }

// Close stops the browser
func (p *JurisCaseProvider) Close() error { return p.renderer.Close() }

func (p *JurisCaseProvider) searchURL(page int) string {
	u := p.portal.BaseURL + "/js_peid/Suchportlet1/media-type/html" +
		"?formhaschangedvalue=yes&eventSubmit_doSearch=suchen" +
		"&action=portlets.jw.MainAction&deletemask=no&wt_form=1" +
		"&form=bsstdFastSearch&desc=all&query=*"
	if page > 1 {
		u += fmt.Sprintf("&currentNavigationPosition=%d&numberofresults=15000&sortmethod=standard",
			1+(page-2)*jurisPageStep)
	}
	return u + "&standardsuche=suchen"
}

func (p *JurisCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	defer func() {
		if err := p.Close(); err != nil {
			p.log.WarnContext(ctx, "failed to close browser", "err", err)
		}
	}()

	out := &collector{limit: p.opts.Limit}
	list := func(ctx context.Context, page int) ([]string, error) {
		rendered, err := p.renderer.PageHTML(ctx, p.searchURL(page), jurisWaitSelector, jurisTimeout)
		if err != nil {
			return nil, err
		}
		return extract.Dedupe(extract.Submatches(jurisDocPattern, rendered, 1)), nil
	}
	visit := func(ctx context.Context, id string) bool {
		c, err := p.fetchCase(ctx, p.portal.BaseURL+"/document/"+id)
		if err != nil {
			p.log.WarnContext(ctx, "failed to parse case", "doc_id", id, "err", err)
			return false
		}
		if c == nil {
			return false
		}
		return out.add(*c)
	}

	paginate(ctx, p.log, 1, 0, list, visit)
	return out.cases, nil
}

func (p *JurisCaseProvider) fetchCase(ctx context.Context, detailURL string) (*model.Case, error) {
	doc, err := transport.PageTree(ctx, p.renderer, detailURL, jurisWaitSelector, jurisTimeout)
	if err != nil {
		return nil, err
	}
	return parseJurisCase(doc), nil
}

// parseJurisCase returns nil when the page has no court or no content
func parseJurisCase(doc *goquery.Document) *model.Case {
	c := jurisInfo(doc.Nodes[0])
	content := jurisContent(doc)
	if c.CourtName == "" || !extract.HasContent(content) {
		return nil
	}
	c.Content = content
	return &c
}

// jurisInfo reads the metadata table. Old portals use td.TD30/TD70 cells,
// newer ones th cells or fieldLabel divs.
func jurisInfo(root *html.Node) model.Case {
	var c model.Case
	for _, l := range jurisLabels {
		for _, strong := range htmlquery.Find(root, fmt.Sprintf(`//*[contains(@class, "TD30")]/strong[text()="%s:"]`, l.label)) {
			if strong.Parent == nil || strong.Parent.Parent == nil {
				continue
			}
			for _, t := range htmlquery.Find(strong.Parent.Parent, `.//*[contains(@class, "TD70")]//text()`) {
				if v := strings.TrimSpace(t.Data); v != "" {
					l.set(&c, v)
					break
				}
			}
		}
	}

	if c.CourtName == "" {
		for _, l := range jurisLabels {
			for _, label := range htmlquery.Find(root, fmt.Sprintf(`//div[contains(@class, "fieldLabel") and contains(text(), "%s")]`, l.label)) {
				next := nextElement(label)
				if next == nil {
					continue
				}
				if v := extract.Text(next); v != "" {
					l.set(&c, v)
				}
			}
		}
	}

	if c.Date != "" {
		c.Date = extract.ParseGermanDate(c.Date)
	}
	return c
}

func nextElement(n *html.Node) *html.Node {
	for s := n.NextSibling; s != nil; s = s.NextSibling {
		if s.Type == html.ElementNode {
			return s
		}
	}
	return nil
}

// jurisContent returns the sanitized decision text element, falling back
// to the page body.
func jurisContent(doc *goquery.Document) string {
	for _, sel := range []string{".docLayoutText", ".documentText", ".content", "body"} {
		if m := doc.Find(sel).First(); m.Length() > 0 {
			extract.SanitizeSPA(m.Nodes[0])
			return extract.Sanitize(extract.OuterHTML(m.Nodes[0]))
		}
	}
	return ""
}
