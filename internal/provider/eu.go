package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xmlquery"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const (
	eurlexBaseURL   = "https://eur-lex.europa.eu"
	cellarSPARQLURL = "https://publications.europa.eu/webapi/rdf/sparql"
	eurlexPageSize  = 100
	// eurlexMaxResults caps unlimited searches
	eurlexMaxResults = 10000
	eurlexCourt      = "Europäischer Gerichtshof"
)

var eurlexSource = model.Source{Name: "EUR-Lex", Homepage: "https://eur-lex.europa.eu/"}

// celexTypes maps the CELEX sector 6 document code to a German type name
var celexTypes = map[string]string{
	"CJ": "Urteil", "TJ": "Urteil", "FJ": "Urteil",
	"CO": "Beschluss", "CX": "Beschluss", "TO": "Beschluss", "FO": "Beschluss",
	"CC": "Schlussantrag des Generalanwalts", "TC": "Schlussantrag des Generalanwalts",
	"CS": "Pfändung",
	"CT": "Drittwiderspruch", "TT": "Drittwiderspruch", "FT": "Drittwiderspruch",
	"CV": "Gutachten",
	"CD": "Entscheidung",
	"CP": "Stellungnahme",
	"CN": "Mitteilung neue Rechtssache", "TN": "Mitteilung neue Rechtssache", "FN": "Mitteilung neue Rechtssache",
	"CA": "Mitteilung Urteil", "TA": "Mitteilung Urteil", "FA": "Mitteilung Urteil",
	"CB": "Mitteilung Beschluss", "TB": "Mitteilung Beschluss", "FB": "Mitteilung Beschluss",
	"CU": "Mitteilung Gutachtenantrag",
	"CG": "Mitteilung: Gutachten",
}

var (
	celexPattern      = regexp.MustCompile(`^([0-9])([0-9]{4})([A-Z]{1,2})`)
	euFileNumberRegex = regexp.MustCompile(`[A-Z](\x{2011}|-)([0-9]{1,5})/([0-9]{2})`)
)

// CelexType returns the German case type for a CELEX number, or "" for
// other sectors and unknown codes.
func CelexType(celex string) string {
	m := celexPattern.FindStringSubmatch(celex)
	if m == nil || m[1] != "6" {
		return ""
	}
	return celexTypes[m[3]]
}

// EUCaseProvider fetches Court of Justice decisions: ECLIs from the CELLAR
// SPARQL endpoint, metadata from the EUR-Lex XML notice and content from
// the HTML text.
type EUCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
	// sparqlURL is the CELLAR endpoint
	sparqlURL string
}

// NewEUCaseProvider creates the EUR-Lex provider. Username and Password
// are accepted for compatibility with the legacy web service and are not
// sent anywhere.
func NewEUCaseProvider(opts Options) *EUCaseProvider {
	return &EUCaseProvider{
		client:    opts.client(eurlexBaseURL, false),
		opts:      opts,
		log:       logger("eu"),
		sparqlURL: cellarSPARQLURL,
	}
}

func (p *EUCaseProvider) Source() model.Source { return eurlexSource }

// sparqlQuery selects ECLIs and document dates, newest first
func (p *EUCaseProvider) sparqlQuery(limit, offset int) string {
	var filters []string
	if p.opts.DateFrom != "" {
		filters = append(filters, fmt.Sprintf(`FILTER(?date >= "%s"^^xsd:date)`, p.opts.DateFrom))
	}
	if p.opts.DateTo != "" {
		filters = append(filters, fmt.Sprintf(`FILTER(?date <= "%s"^^xsd:date)`, p.opts.DateTo))
	}

	return fmt.Sprintf(`PREFIX cdm: <http://publications.europa.eu/ontology/cdm#>
PREFIX xsd: <http://www.w3.org/2001/XMLSchema#>
SELECT DISTINCT ?ecli ?date
WHERE {
  ?work cdm:case-law_ecli ?ecli .
  ?work cdm:work_date_document ?date .
  %s
}
ORDER BY DESC(?date)
LIMIT %d
OFFSET %d`, strings.Join(filters, "\n  "), limit, offset)
}

type sparqlResult struct {
	Results struct {
		Bindings []map[string]struct {
			Value string `json:"value"`
		} `json:"bindings"`
	} `json:"results"`
}

func (p *EUCaseProvider) searchECLIs(ctx context.Context) ([]string, error) {
	limit := p.opts.Limit
	if limit <= 0 {
		limit = eurlexMaxResults
	}

	var eclis []string
	for offset := 0; len(eclis) < limit; {
		size := min(eurlexPageSize, limit-len(eclis))
		var res sparqlResult
		err := p.client.GetJSON(ctx, p.sparqlURL, url.Values{
			"query":  {p.sparqlQuery(size, offset)},
			"format": {"application/json"},
		}, &res)
		if err != nil {
			return eclis, fmt.Errorf("sparql search at offset %d: %w", offset, err)
		}

		bindings := res.Results.Bindings
		if len(bindings) == 0 {
			break
		}
		var page []string
		for _, b := range bindings {
			if v, ok := b["ecli"]; ok {
				page = append(page, v.Value)
			}
		}
		eclis = append(eclis, page...)
		p.log.InfoContext(ctx, "sparql page", "offset", offset, "eclis", len(page), "total", len(eclis))

		if len(page) < size {
			break
		}
		offset += size
	}

	if len(eclis) > limit {
		eclis = eclis[:limit]
	}
	return eclis, nil
}

func (p *EUCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	eclis, err := p.searchECLIs(ctx)
	if err != nil {
		if len(eclis) == 0 {
			return nil, err
		}
		p.log.WarnContext(ctx, "search stopped early", "err", err)
	}
	p.log.InfoContext(ctx, "found eclis", "count", len(eclis))

	out := &collector{limit: p.opts.Limit}
	for _, ecli := range eclis {
		if ctx.Err() != nil {
			return out.cases, ctx.Err()
		}
		c, ok := p.fetchCase(ctx, ecli)
		if !ok {
			continue
		}
		if out.add(c) {
			break
		}
	}
	return out.cases, nil
}

func (p *EUCaseProvider) fetchCase(ctx context.Context, ecli string) (model.Case, bool) {
	log := p.log.With("ecli", ecli)

	notice, err := p.client.GetText(ctx, "/legal-content/DE/TXT/XML/?uri=ECLI:"+ecli, nil)
	if err != nil {
		log.WarnContext(ctx, "failed to fetch xml", "err", err)
		return model.Case{}, false
	}
	c, err := parseEUNotice(notice)
	if err != nil {
		log.WarnContext(ctx, "failed to parse xml", "err", err)
		return model.Case{}, false
	}

	htmlURL := p.client.ResolveURL("/legal-content/DE/TXT/HTML/?uri=ECLI:" + ecli)
	page, err := p.client.GetText(ctx, htmlURL, nil)
	if err != nil {
		log.WarnContext(ctx, "failed to fetch html", "err", err)
		return model.Case{}, false
	}
	content, err := euContent(page, htmlURL)
	if err != nil {
		log.WarnContext(ctx, "failed to parse html", "err", err)
		return model.Case{}, false
	}
	if !extract.HasContent(content) {
		log.WarnContext(ctx, "content too short, skipping", "length", len([]rune(content)))
		return model.Case{}, false
	}

	c.CourtName = eurlexCourt
	c.Content = content
	c.ECLI = ecli
	return c, true
}

// parseEUNotice reads date, German title, file number and type from an
// EUR-Lex XML notice.
func parseEUNotice(s string) (model.Case, error) {
	doc, err := extract.ParseXML(s)
	if err != nil {
		return model.Case{}, err
	}

	title := euTitle(doc)
	c := model.Case{
		Date:       firstXMLText(doc, "//WORK_DATE_DOCUMENT/VALUE"),
		Title:      title,
		FileNumber: euFileNumber(doc, title),
	}
	if celex := firstXMLText(doc, "//RESOURCE_LEGAL_ID_CELEX/VALUE"); celex != "" {
		c.Type = CelexType(celex)
	}
	return c, nil
}

func firstXMLText(doc *xmlquery.Node, expr string) string {
	n := xmlquery.FindOne(doc, expr)
	if n == nil {
		return ""
	}
	return n.InnerText()
}

func euTitle(doc *xmlquery.Node) string {
	for _, t := range xmlquery.Find(doc, "//EXPRESSION_TITLE") {
		values := xmlquery.Find(t, "./VALUE")
		if t.Parent == nil {
			continue
		}
		langs := xmlquery.Find(t.Parent, "./EXPRESSION_USES_LANGUAGE/IDENTIFIER")
		if len(values) == 1 && len(langs) == 1 && langs[0].InnerText() == "DEU" {
			title, _, _ := strings.Cut(values[0].InnerText(), "#")
			return strings.TrimSpace(title)
		}
	}
	return ""
}

func euFileNumber(doc *xmlquery.Node, title string) string {
	number := strings.Join(euFileNumberRegex.FindAllString(title, -1), ",")
	if number == "" {
		for _, t := range xmlquery.Find(doc, `//SAMEAS/URI/TYPE[text()="case"]`) {
			if id := xmlquery.FindOne(t.Parent, "./IDENTIFIER"); id != nil && id.InnerText() != "" {
				number = id.InnerText()
				break
			}
		}
	}
	return strings.ReplaceAll(number, "\u2011", "-")
}

// euContent returns the body markup with relative links resolved against
// pageURL and other non-anchor links unlinked.
func euContent(page, pageURL string) (string, error) {
	doc, err := extract.ParseHTML(xmlDeclRegex.ReplaceAllString(page, ""))
	if err != nil {
		return "", err
	}
	body := htmlquery.FindOne(doc, "//body")
	if body == nil {
		return "", fmt.Errorf("no body")
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	for _, a := range htmlquery.Find(body, ".//a[@href]") {
		for i := 0; i < len(a.Attr); i++ {
			if a.Attr[i].Key != "href" {
				continue
			}
			href := a.Attr[i].Val
			switch {
			case strings.HasPrefix(href, "#"), strings.HasPrefix(href, "http"):
			case strings.HasPrefix(href, "."):
				if ref, err := url.Parse(href); err == nil {
					a.Attr[i].Val = base.ResolveReference(ref).String()
				}
			default:
				a.Attr = append(a.Attr[:i], a.Attr[i+1:]...)
				i--
			}
		}
	}
	return extract.InnerHTML(body), nil
}

var xmlDeclRegex = regexp.MustCompile(`<\?xml[^?]*\?>`)
