package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const byBaseURL = "https://www.gesetze-bayern.de"

const byTextPath = "//textdaten/{tag}/body"

var bySource = model.Source{Name: "Gesetze Bayern", Homepage: byBaseURL}

var bySections = []extract.Section{
	{Tag: "tenor", Headline: "Tenor"},
	{Tag: "tatbestand", Headline: "Tatbestand"},
	{Tag: "entschgruende", Headline: "Entscheidungsgründe"},
	{Tag: "gruende", Headline: "Gründe"},
	{Tag: "abwmeinung", Headline: "Abw. Meinung"},
	{Tag: "sonstlt", Headline: "Sonstige Literatur"},
}

var (
	byDocIDPattern = regexp.MustCompile(`/Content/Document/(.*?)\?hl=true`)
	byTypeNames    = strings.NewReplacer("Bes", "Beschluss", "Urt", "Urteil", "Ent", "Entscheidung")
)

// BYCaseProvider lists Bavarian decisions. The search is session based:
// a filter request sets cookie state that the hit list pages depend on.
type BYCaseProvider struct {
	client *transport.Client
	opts   Options
	log    *slog.Logger
}

// NewBYCaseProvider creates the Bavaria provider
func NewBYCaseProvider(opts Options) *BYCaseProvider {
	return &BYCaseProvider{
		client: opts.client(byBaseURL, true),
		opts:   opts,
		log:    logger("by"),
	}
}

func (p *BYCaseProvider) Source() model.Source { return bySource }

func (p *BYCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	if _, err := p.client.Get(ctx, "/Search/Filter/DOKTYP/rspr", nil); err != nil {
		return nil, fmt.Errorf("init search session: %w", err)
	}

	out := &collector{limit: p.opts.Limit}
	paginate(ctx, p.log, 1, 0, p.listPage, func(ctx context.Context, id string) bool {
		c, ok := p.fetchCase(ctx, id)
		return ok && out.add(c)
	})
	return out.cases, nil
}

func (p *BYCaseProvider) listPage(ctx context.Context, page int) ([]string, error) {
	resp, err := p.client.Get(ctx, fmt.Sprintf("/Search/Page/%d", page), nil)
	if err != nil {
		return nil, err
	}
	if !strings.Contains(resp.URL, "/Search/Hitlist") {
		p.log.WarnContext(ctx, "unexpected redirect", "url", resp.URL)
		return nil, nil
	}
	return extract.Submatches(byDocIDPattern, resp.Text(), 1), nil
}

func (p *BYCaseProvider) fetchCase(ctx context.Context, id string) (model.Case, bool) {
	xml, err := extract.ZipXML(ctx, p.client, "/Content/Zip/"+id, "iso-8859-1")
	if err != nil {
		if !errors.Is(err, extract.ErrNoXML) {
			p.log.WarnContext(ctx, "failed to download archive", "document", id, "err", err)
		}
		return model.Case{}, false
	}

	c, ok, err := parseBYCase(xml)
	if err != nil {
		p.log.WarnContext(ctx, "failed to parse xml", "document", id, "err", err)
		return model.Case{}, false
	}
	return c, ok
}

// parseBYCase maps Bavarian decision XML to a case. Dates are already
// YYYY-MM-DD. It reports false when the decision has no content.
func parseBYCase(xml string) (model.Case, bool, error) {
	doc, err := extract.ParseXML(xml)
	if err != nil {
		return model.Case{}, false, err
	}

	courtName := strings.TrimSpace(extract.XMLText(doc, "//metadaten/gericht/gertyp", "") + " " +
		extract.XMLText(doc, "//metadaten/gericht/gerort", ""))

	content := extract.BuildContentHTML(doc, bySections, byTextPath, true)
	if strings.TrimSpace(content) == "" {
		return model.Case{}, false, nil
	}

	abstract := extract.BuildContentHTML(doc, []extract.Section{{Tag: "leitsatz", Headline: "Leitsatz"}}, byTextPath, false)
	if strings.TrimSpace(abstract) == "" {
		abstract = ""
	}
	title := ""
	if t := extract.BuildContentHTML(doc, []extract.Section{{Tag: "titelzeile"}}, byTextPath, false); t != "" {
		title = strings.TrimSpace(extract.StripTags(t))
	}

	return model.Case{
		CourtName:  courtName,
		FileNumber: extract.XMLText(doc, "//metadaten/aktenzeichen", ""),
		Date:       extract.XMLText(doc, "//metadaten/entsch-datum", ""),
		Content:    content,
		Type:       byTypeNames.Replace(extract.XMLText(doc, "//metadaten/doktyp", "")),
		Abstract:   abstract,
		Title:      title,
	}, true, nil
}
