package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

// RISBaseURL is the Rechtsinformationsportal des Bundes API
const RISBaseURL = "https://testphase.rechtsinformationen.bund.de"

const (
	risPageSize       = 300
	risAbstractLength = 50000
)

var risSource = model.Source{
	Name:     "Rechtsinformationssystem des Bundes (RIS)",
	Homepage: RISBaseURL,
}

var (
	articleNamePattern = regexp.MustCompile(`^((?:§|Artikel|Art\.)\s*\S+)\s*(.*)`)
	htmlSuffixPattern  = regexp.MustCompile(`\.html$`)
)

// risCollection is a hydra:Collection page
type risCollection struct {
	TotalItems any               `json:"totalItems"`
	Member     []json.RawMessage `json:"member"`
	View       struct {
		Next string `json:"next"`
	} `json:"view"`
}

// item returns the wrapped item of member i, or the member itself
func (c risCollection) item(i int, v any) error {
	var wrapper struct {
		Item json.RawMessage `json:"item"`
	}
	raw := c.Member[i]
	if err := json.Unmarshal(raw, &wrapper); err == nil && len(wrapper.Item) > 0 {
		raw = wrapper.Item
	}
	return json.Unmarshal(raw, v)
}

func totalLabel(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.Itoa(int(t))
	case string:
		return t
	default:
		return "?"
	}
}

type risLegislation struct {
	Abbreviation    string `json:"abbreviation"`
	LegislationDate string `json:"legislationDate"`
	Name            string `json:"name"`
	WorkExample     struct {
		ID string `json:"@id"`
	} `json:"workExample"`
}

type risExpression struct {
	HasPart []struct {
		EID  string `json:"eId"`
		Name string `json:"name"`
	} `json:"hasPart"`
	Encoding []struct {
		EncodingFormat string `json:"encodingFormat"`
		ContentURL     string `json:"contentUrl"`
	} `json:"encoding"`
}

func (e risExpression) htmlURL() string {
	for _, enc := range e.Encoding {
		if enc.EncodingFormat == "text/html" {
			return enc.ContentURL
		}
	}
	return ""
}

type bookKey struct {
	code     string
	revision string
}

// RISLawProvider lists federal legislation. Expression details fetched
// while listing books are kept per (code, revision date) so GetLaws needs
// no further detail requests.
type RISLawProvider struct {
	client      *transport.Client
	opts        Options
	log         *slog.Logger
	expressions map[bookKey]risExpression
}

// NewRISLawProvider creates the RIS legislation provider
func NewRISLawProvider(opts Options) *RISLawProvider {
	return &RISLawProvider{
		client:      opts.client(RISBaseURL, false),
		opts:        opts,
		log:         logger("ris"),
		expressions: make(map[bookKey]risExpression),
	}
}

func (p *RISLawProvider) Source() model.Source { return risSource }

func (p *RISLawProvider) GetLawBooks(ctx context.Context) ([]model.LawBook, error) {
	var books []model.LawBook
	total := ""

	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("size", strconv.Itoa(risPageSize))
		q.Set("pageIndex", strconv.Itoa(page))
		if p.opts.SearchTerm != "" {
			q.Set("searchTerm", p.opts.SearchTerm)
		}
		if p.opts.DateFrom != "" {
			q.Set("dateFrom", p.opts.DateFrom)
		}
		if p.opts.DateTo != "" {
			q.Set("dateTo", p.opts.DateTo)
		}
		if p.opts.DateFrom != "" || p.opts.DateTo != "" {
			q.Set("sort", "-date")
		}

		var data risCollection
		if err := p.client.GetJSON(ctx, "/v1/legislation", q, &data); err != nil {
			return nil, fmt.Errorf("list legislation page %d: %w", page, err)
		}
		if len(data.Member) == 0 {
			break
		}
		if total == "" {
			total = totalLabel(data.TotalItems)
			p.log.InfoContext(ctx, "fetching law books", "total", total)
		}
		p.log.InfoContext(ctx, "processing page", "page", page, "items", len(data.Member), "seen", len(books)+len(data.Member), "total", total)

		for i := range data.Member {
			var item risLegislation
			if err := data.item(i, &item); err != nil {
				p.log.WarnContext(ctx, "skipping malformed legislation item", "err", err)
				continue
			}
			if item.Abbreviation == "" || item.LegislationDate == "" {
				p.log.DebugContext(ctx, "skipping member with missing abbreviation or date")
				continue
			}
			if item.WorkExample.ID == "" {
				p.log.DebugContext(ctx, "skipping member without expression", "code", item.Abbreviation)
				continue
			}

			var detail struct {
				WorkExample risExpression `json:"workExample"`
			}
			if err := p.client.GetJSON(ctx, item.WorkExample.ID, nil, &detail); err != nil {
				p.log.WarnContext(ctx, "failed to fetch expression", "code", item.Abbreviation, "err", err)
				continue
			}
			p.expressions[bookKey{item.Abbreviation, item.LegislationDate}] = detail.WorkExample

			books = append(books, model.LawBook{
				Code:         item.Abbreviation,
				Title:        item.Name,
				RevisionDate: item.LegislationDate,
			})
			if p.opts.Limit > 0 && len(books) >= p.opts.Limit {
				return books, nil
			}
		}

		if data.View.Next == "" {
			break
		}
	}
	return books, nil
}

// GetLaws returns the articles of a book listed earlier by GetLawBooks.
// An unknown book yields no laws.
func (p *RISLawProvider) GetLaws(ctx context.Context, bookCode, revisionDate string) ([]model.Law, error) {
	expr, ok := p.expressions[bookKey{bookCode, revisionDate}]
	if !ok {
		p.log.DebugContext(ctx, "no cached expression", "code", bookCode, "revision", revisionDate)
		return nil, nil
	}

	base := expr.htmlURL()
	laws := make([]model.Law, 0, len(expr.HasPart))
	for i, part := range expr.HasPart {
		section, title := parseArticleName(part.Name)

		content := ""
		if base != "" && part.EID != "" {
			articleURL := htmlSuffixPattern.ReplaceAllLiteralString(base, "/"+part.EID+".html")
			text, err := p.client.GetText(ctx, articleURL, nil)
			if err != nil {
				p.log.WarnContext(ctx, "failed to fetch article", "eid", part.EID, "err", err)
			} else {
				content = extract.Body(text)
			}
		}

		slug := extract.Slugify(section)
		if slug == "" {
			slug = extract.Slugify(part.EID)
		}

		laws = append(laws, model.Law{
			BookCode:     bookCode,
			RevisionDate: revisionDate,
			Section:      section,
			Title:        title,
			Content:      content,
			Slug:         slug,
			Order:        i + 1,
		})
	}
	return laws, nil
}

// parseArticleName splits "§ 1 Anwendungsbereich" into section and title
func parseArticleName(name string) (string, string) {
	m := articleNamePattern.FindStringSubmatch(name)
	if m == nil {
		return name, ""
	}
	return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
}

type risCase struct {
	DocumentNumber string   `json:"documentNumber"`
	CourtName      string   `json:"courtName"`
	FileNumbers    []string `json:"fileNumbers"`
	DecisionDate   string   `json:"decisionDate"`
	DocumentType   string   `json:"documentType"`
	ECLI           string   `json:"ecli"`
	Headline       string   `json:"headline"`
}

type risCaseDetail struct {
	GuidingPrinciple string `json:"guidingPrinciple"`
	Headnote         string `json:"headnote"`
	OtherHeadnote    string `json:"otherHeadnote"`
	Tenor            string `json:"tenor"`
}

// abstract picks the first non-empty headnote-like field
func (d risCaseDetail) abstract() string {
	for _, v := range []string{d.GuidingPrinciple, d.Headnote, d.OtherHeadnote, d.Tenor} {
		if s := strings.TrimSpace(v); s != "" {
			return extract.Truncate(s, risAbstractLength)
		}
	}
	return ""
}

// RISCaseProvider lists federal case law. Court codes are resolved to
// labels through a table fetched on first use; when that fails the raw
// code is used for the rest of the run.
type RISCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
	courts map[string]string
}

// NewRISCaseProvider creates the RIS case-law provider
func NewRISCaseProvider(opts Options) *RISCaseProvider {
	return &RISCaseProvider{
		client: opts.client(RISBaseURL, false),
		opts:   opts,
		log:    logger("ris"),
	}
}

func (p *RISCaseProvider) Source() model.Source { return risSource }

func (p *RISCaseProvider) courtName(ctx context.Context, code string) string {
	if p.courts == nil {
		labels, err := p.fetchCourtLabels(ctx)
		if err != nil {
			p.log.WarnContext(ctx, "failed to fetch court labels", "err", err)
			labels = map[string]string{}
		}
		p.courts = labels
	}
	if label, ok := p.courts[code]; ok {
		return label
	}
	return code
}

func (p *RISCaseProvider) fetchCourtLabels(ctx context.Context) (map[string]string, error) {
	var raw json.RawMessage
	if err := p.client.GetJSON(ctx, "/v1/case-law/courts", nil, &raw); err != nil {
		return nil, err
	}

	type court struct {
		ID    string `json:"id"`
		Label string `json:"label"`
	}
	var courts []court
	if err := json.Unmarshal(raw, &courts); err != nil {
		var wrapped struct {
			Member []court `json:"member"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			return nil, fmt.Errorf("decode court labels: %w", err)
		}
		courts = wrapped.Member
	}

	labels := make(map[string]string, len(courts))
	for _, c := range courts {
		if c.ID != "" && c.Label != "" {
			labels[c.ID] = c.Label
		}
	}
	return labels, nil
}

func (p *RISCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	out := &collector{limit: p.opts.Limit}
	total := ""

	for page := 0; ; page++ {
		q := url.Values{}
		q.Set("size", strconv.Itoa(risPageSize))
		q.Set("pageIndex", strconv.Itoa(page))
		if p.opts.Court != "" {
			q.Set("courtType", p.opts.Court)
		}
		if p.opts.DateFrom != "" {
			q.Set("decisionDateFrom", p.opts.DateFrom)
		}
		if p.opts.DateTo != "" {
			q.Set("decisionDateTo", p.opts.DateTo)
		}

		var data risCollection
		if err := p.client.GetJSON(ctx, "/v1/case-law", q, &data); err != nil {
			if page == 0 {
				return nil, fmt.Errorf("list case law: %w", err)
			}
			p.log.WarnContext(ctx, "failed to fetch listing page", "page", page, "err", err)
			break
		}
		if len(data.Member) == 0 {
			break
		}
		if total == "" {
			total = totalLabel(data.TotalItems)
			p.log.InfoContext(ctx, "fetching cases", "total", total)
		}
		p.log.InfoContext(ctx, "processing page", "page", page, "items", len(data.Member), "seen", len(out.cases)+len(data.Member), "total", total)

		for i := range data.Member {
			var item risCase
			if err := data.item(i, &item); err != nil {
				p.log.WarnContext(ctx, "skipping malformed case item", "err", err)
				continue
			}
			c, ok := p.fetchCase(ctx, item)
			if !ok {
				continue
			}
			if out.add(c) {
				return out.cases, nil
			}
		}

		if data.View.Next == "" {
			break
		}
	}
	return out.cases, nil
}

func (p *RISCaseProvider) fetchCase(ctx context.Context, item risCase) (model.Case, bool) {
	if item.DocumentNumber == "" {
		p.log.DebugContext(ctx, "skipping case with missing documentNumber")
		return model.Case{}, false
	}

	text, err := p.client.GetText(ctx, "/v1/case-law/"+item.DocumentNumber+".html", nil)
	if err != nil {
		p.log.WarnContext(ctx, "failed to fetch case html", "document", item.DocumentNumber, "err", err)
		return model.Case{}, false
	}
	content := extract.Body(text)
	if !extract.HasContent(content) {
		p.log.DebugContext(ctx, "skipping short content", "document", item.DocumentNumber, "length", len(content))
		return model.Case{}, false
	}

	var abstract string
	var detail risCaseDetail
	if err := p.client.GetJSON(ctx, "/v1/case-law/"+item.DocumentNumber, nil, &detail); err != nil {
		p.log.DebugContext(ctx, "failed to fetch case detail", "document", item.DocumentNumber, "err", err)
	} else {
		abstract = detail.abstract()
	}

	court := item.CourtName
	if court != "" {
		court = p.courtName(ctx, court)
	}
	return mapRISCase(item, court, content, abstract), true
}

func mapRISCase(item risCase, courtName, content, abstract string) model.Case {
	c := model.Case{
		CourtName: courtName,
		Date:      item.DecisionDate,
		Content:   content,
		Type:      item.DocumentType,
		ECLI:      item.ECLI,
		Title:     item.Headline,
		Abstract:  abstract,
	}
	if len(item.FileNumbers) > 0 {
		c.FileNumber = item.FileNumbers[0]
	}
	return c
}
