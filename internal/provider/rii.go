package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const (
	riiBaseURL = "https://www.rechtsprechung-im-internet.de/jportal"
	riiPerPage = 26
)

var riiSource = model.Source{
	Name:     "Rechtsprechung im Internet (RII)",
	Homepage: "https://www.rechtsprechung-im-internet.de",
}

// RIICourts are the federal courts published on rechtsprechung-im-internet.de
var RIICourts = []string{"bverfg", "bgh", "bverwg", "bfh", "bag", "bsg", "bpatg"}

var riiSections = []extract.Section{
	{Tag: "tenor", Headline: "Tenor"},
	{Tag: "tatbestand", Headline: "Tatbestand"},
	{Tag: "entscheidungsgruende", Headline: "Entscheidungsgründe"},
	{Tag: "gruende", Headline: "Gründe"},
	{Tag: "abwmeinung", Headline: "Abw. Meinung"},
	{Tag: "sonstlt", Headline: "Sonstige Literatur"},
}

var riiDocIDPattern = regexp.MustCompile(`doc\.id=([a-zA-Z0-9-]+?)&`)

// RIICaseProvider lists federal court decisions delivered as ZIP/XML
type RIICaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
}

// NewRIICaseProvider creates the federal courts provider. Options.Court
// restricts it to one court code.
func NewRIICaseProvider(opts Options) *RIICaseProvider {
	return &RIICaseProvider{
		client: opts.client(riiBaseURL, false),
		opts:   opts,
		log:    logger("rii"),
	}
}

func (p *RIICaseProvider) Source() model.Source { return riiSource }

// riiPagePath is the listing address of one court, relative to the portal
func riiPagePath(page int, court string) string {
	offset := (page - 1) * riiPerPage
	return fmt.Sprintf("/portal/t/xs6/page/bsjrsprod.psml/js_peid/Suchportlet1"+
		"?action=portlets.jw.MainAction&eventSubmit_doNavigate=searchInSubtree&p1=%s"+
		"&currentNavigationPosition=%d", court, offset)
}

func (p *RIICaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	courts := RIICourts
	if p.opts.Court != "" {
		courts = []string{p.opts.Court}
	}

	out := &collector{limit: p.opts.Limit}
	for _, court := range courts {
		log := p.log.With("court", court)
		list := func(ctx context.Context, page int) ([]string, error) {
			text, err := p.client.GetText(ctx, riiPagePath(page, court), nil)
			if err != nil {
				return nil, err
			}
			return extract.Dedupe(extract.Submatches(riiDocIDPattern, text, 1)), nil
		}
		visit := func(ctx context.Context, id string) bool {
			c, ok := p.fetchCase(ctx, id)
			return ok && out.add(c)
		}
		if paginate(ctx, log, 1, 0, list, visit) {
			return out.cases, nil
		}
	}
	return out.cases, nil
}

func (p *RIICaseProvider) fetchCase(ctx context.Context, id string) (model.Case, bool) {
	xml, err := extract.ZipXML(ctx, p.client, "/docs/bsjrs/"+id+".zip", "utf-8")
	if err != nil {
		if !errors.Is(err, extract.ErrNoXML) {
			p.log.WarnContext(ctx, "failed to download archive", "document", id, "err", err)
		}
		return model.Case{}, false
	}

	c, ok, err := parseRIICase(xml)
	if err != nil {
		p.log.WarnContext(ctx, "failed to parse xml", "document", id, "err", err)
		return model.Case{}, false
	}
	if !ok {
		p.log.DebugContext(ctx, "skipping document", "document", id)
	}
	return c, ok
}

func docText(doc *xmlquery.Node, tag, def string) string {
	return extract.XMLText(doc, "//dokument/"+tag, def)
}

// parseRIICase maps decision XML to a case. It reports false for
// documents that are not public or carry no content.
func parseRIICase(xml string) (model.Case, bool, error) {
	doc, err := extract.ParseXML(xml)
	if err != nil {
		return model.Case{}, false, err
	}

	if docText(doc, "accessRights", "") != "public" {
		return model.Case{}, false, nil
	}

	courtName := docText(doc, "gertyp", "")
	if loc := docText(doc, "gerort", ""); loc != "" {
		courtName = strings.TrimSpace(courtName + " " + loc)
	}

	content := extract.BuildContentHTML(doc, riiSections, extract.DocumentSectionPath, true)
	if strings.TrimSpace(content) == "" {
		return model.Case{}, false, nil
	}
	abstract := extract.BuildContentHTML(doc, []extract.Section{{Tag: "leitsatz", Headline: "Leitsatz"}}, extract.DocumentSectionPath, false)
	if strings.TrimSpace(abstract) == "" {
		abstract = ""
	}

	return model.Case{
		CourtName:  courtName,
		FileNumber: docText(doc, "aktenzeichen", ""),
		Date:       extract.CompactDate(docText(doc, "entsch-datum", "")),
		Content:    content,
		Type:       docText(doc, "doktyp", ""),
		ECLI:       docText(doc, "ecli", ""),
		Abstract:   abstract,
	}, true, nil
}
