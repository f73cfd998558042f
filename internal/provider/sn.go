package provider

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"

	"github.com/openlegaldata/oldp-ingestor/internal/extract"
	"github.com/openlegaldata/oldp-ingestor/internal/model"
	"github.com/openlegaldata/oldp-ingestor/internal/transport"
)

const (
	esamosSearchURL   = "https://www.justiz.sachsen.de/esamosplus/pages/suchen.aspx"
	esamosLoadTimeout = 30 * time.Second
	esamosIdleQuiet   = 500 * time.Millisecond
)

var esamosSource = model.Source{
	Name:     "ESAMOSplus Sachsen",
	Homepage: "https://www.justiz.sachsen.de/esamosplus/",
}

// ESAMOSCourts maps court names to the values of the court filter
var ESAMOSCourts = map[string]string{
	"Oberlandesgericht Dresden":  "1012",
	"Amtsgericht Stollberg":      "1015",
	"Amtsgericht Döbeln":         "1017",
	"Amtsgericht Bautzen":        "1018",
	"Amtsgericht Dresden":        "1019",
	"Landgericht Dresden":        "1020",
	"Amtsgericht Dippoldiswalde": "1021",
	"Amtsgericht Meißen":         "1022",
	"Amtsgericht Pirna":          "1023",
	"Amtsgericht Riesa":          "1024",
	"Amtsgericht Leipzig":        "1025",
	"Landgericht Leipzig":        "1026",
	"Amtsgericht Eilenburg":      "1027",
	"Amtsgericht Torgau":         "1028",
	"Landgericht Zwickau":        "1029",
}

// form controls of the search page
const (
	esamosSubmit   = "#DV1_C24"
	esamosCourt    = "#DV1_C39"
	esamosDateFrom = "#DV1_C34"
	esamosDateTo   = "#DV1_C35"
	esamosNext     = `input[type="submit"][value="Vorwärts"]:not([disabled])`
)

var (
	esamosDatePattern     = regexp.MustCompile(`\d{2}\.\d{2}\.\d{4}`)
	esamosLeitsatzPattern = regexp.MustCompile(`^Leitsatz:\s*`)
)

// ESAMOSCaseProvider drives the ASP.NET WebForms search of the Saxon
// courts. Every document is a PDF streamed by a postback button, so the
// whole run happens in one browser tab.
type ESAMOSCaseProvider struct {
	opts       Options
	log        *slog.Logger
	browser    *transport.Browser
	newSession func(ctx context.Context) (transport.FormSession, error)
	pdfToHTML  func([]byte) (string, error)
}

// NewESAMOSCaseProvider creates the ESAMOSplus provider. Options.Court is
// a court name from ESAMOSCourts.
func NewESAMOSCaseProvider(opts Options) *ESAMOSCaseProvider {
	b := opts.browser()
	return &ESAMOSCaseProvider{
		opts:    opts,
		log:     logger("sn"),
		browser: b,
		newSession: func(ctx context.Context) (transport.FormSession, error) {
			return b.NewSession(ctx)
		},
		pdfToHTML: extract.PDFToHTML,
	}
}

func (p *ESAMOSCaseProvider) Source() model.Source { return esamosSource }

// Close stops the browser
func (p *ESAMOSCaseProvider) Close() error {
	if p.browser == nil {
		return nil
	}
	return p.browser.Close()
}

func (p *ESAMOSCaseProvider) GetCases(ctx context.Context) ([]model.Case, error) {
	defer func() {
		if err := p.Close(); err != nil {
			p.log.WarnContext(ctx, "failed to close browser", "err", err)
		}
	}()

	s, err := p.newSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open browser: %w", err)
	}
	defer s.Close()

	out := &collector{limit: p.opts.Limit}
	if err := p.run(ctx, s, out); err != nil {
		p.log.ErrorContext(ctx, "scraping failed", "err", err)
	}
	return out.cases, nil
}

func (p *ESAMOSCaseProvider) search(ctx context.Context, s transport.FormSession) error {
	p.log.InfoContext(ctx, "loading search page")
	if err := s.Navigate(ctx, esamosSearchURL, esamosLoadTimeout); err != nil {
		return err
	}
	if err := s.WaitVisible(ctx, esamosSubmit, transport.DefaultPageTimeout); err != nil {
		return err
	}

	if value, ok := ESAMOSCourts[p.opts.Court]; ok {
		if err := s.SelectOption(ctx, esamosCourt, value); err != nil {
			return err
		}
		// the court list posts back on change
		if err := transport.SleepFunc(ctx, time.Second); err != nil {
			return err
		}
	}
	if p.opts.DateFrom != "" {
		if err := s.SetValue(ctx, esamosDateFrom, extract.ISOToGerman(p.opts.DateFrom)); err != nil {
			return err
		}
	}
	if p.opts.DateTo != "" {
		if err := s.SetValue(ctx, esamosDateTo, extract.ISOToGerman(p.opts.DateTo)); err != nil {
			return err
		}
	}

	p.log.InfoContext(ctx, "submitting search")
	if err := s.Click(ctx, esamosSubmit); err != nil {
		return err
	}
	return s.WaitNetworkIdle(ctx, esamosIdleQuiet, esamosLoadTimeout)
}

func (p *ESAMOSCaseProvider) run(ctx context.Context, s transport.FormSession, out *collector) error {
	if err := p.search(ctx, s); err != nil {
		return err
	}

	// search results replace the latest-decisions table when present
	table := "DV16_Table"
	if ok, err := s.Exists(ctx, "#DV13_Table"); err == nil && ok {
		table = "DV13_Table"
	}

	for {
		if err := transport.SleepFunc(ctx, p.opts.Delay); err != nil {
			return err
		}
		page, err := s.HTML(ctx)
		if err != nil {
			return err
		}
		entries, err := parseESAMOSTable(page, table)
		if err != nil {
			return err
		}
		p.log.InfoContext(ctx, "parsed result table", "table", table, "entries", len(entries))
		if len(entries) == 0 {
			return nil
		}

		for _, e := range entries {
			if e.button == "" {
				continue
			}
			data, err := s.Download(ctx, fmt.Sprintf(`input[name="%s"]`, e.button), esamosLoadTimeout)
			if err != nil {
				p.log.WarnContext(ctx, "failed to download pdf", "file_number", e.Case.FileNumber, "err", err)
				continue
			}
			content, err := p.pdfToHTML(data)
			if err != nil || !extract.HasContent(content) {
				continue
			}
			e.Case.Content = content
			if out.add(e.Case) {
				return nil
			}
		}

		more, err := s.Exists(ctx, esamosNext)
		if err != nil || !more {
			return err
		}
		if err := s.Click(ctx, esamosNext); err != nil {
			return err
		}
		if err := s.WaitNetworkIdle(ctx, esamosIdleQuiet, esamosLoadTimeout); err != nil {
			return err
		}
	}
}

// esamosEntry is one result row and the name of its document button
type esamosEntry struct {
	Case   model.Case
	button string
}

// parseESAMOSTable reads the rows of a result table. Columns are selector,
// date, file number, court and document; values sit in spans or submit
// inputs whose ids contain the column marker.
func parseESAMOSTable(page, tableID string) ([]esamosEntry, error) {
	doc, err := extract.ParseHTML(page)
	if err != nil {
		return nil, err
	}
	table := htmlquery.FindOne(doc, fmt.Sprintf(`//*[@id="%s"]`, tableID))
	if table == nil {
		return nil, nil
	}

	var entries []esamosEntry
	for _, tr := range htmlquery.Find(table, ".//tr") {
		cells := htmlquery.Find(tr, "td")
		if len(cells) < 5 {
			continue
		}

		dateEl := esamosCell(cells[1], "_Col0_")
		if dateEl == nil {
			continue
		}
		date := esamosValue(dateEl)
		if !esamosDatePattern.MatchString(date) {
			continue
		}

		var e esamosEntry
		e.Case.Date = extract.ParseGermanDate(date)
		if az := esamosCell(cells[2], "_Col1_"); az != nil {
			e.Case.FileNumber = esamosValue(az)
			if title := strings.TrimSpace(extract.Attr(az, "title")); title != "" {
				e.Case.Abstract = esamosLeitsatzPattern.ReplaceAllString(title, "")
			}
		}
		if court := esamosCell(cells[3], "_Col2_"); court != nil {
			e.Case.CourtName = esamosValue(court)
		}
		if btn := htmlquery.FindOne(cells[4], `.//input[@type='submit'][contains(@id,'_Col3_')]`); btn != nil {
			e.button = extract.Attr(btn, "name")
		}

		if e.Case.FileNumber == "" || e.Case.CourtName == "" {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func esamosCell(td *html.Node, col string) *html.Node {
	return htmlquery.FindOne(td, fmt.Sprintf(
		`.//span[contains(@id,'%[1]s')] | .//input[@type='submit'][contains(@id,'%[1]s')]`, col))
}

// esamosValue prefers the value attribute of submit inputs
func esamosValue(n *html.Node) string {
	if v := extract.Attr(n, "value"); v != "" {
		return strings.TrimSpace(v)
	}
	return extract.Text(n)
}
