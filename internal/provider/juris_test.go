package provider

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRenderer serves canned DOMs keyed by URL
type fakeRenderer struct {
	mu     sync.Mutex
	pages  map[string]string
	loaded []string
	closed int
}

func (f *fakeRenderer) PageHTML(ctx context.Context, url, waitSelector string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = append(f.loaded, url)
	page, ok := f.pages[url]
	if !ok {
		return "<html><body></body></html>", nil
	}
	return page, nil
}

func (f *fakeRenderer) Close() error {
	f.closed++
	return nil
}

const jurisDetail = `<html><body>
<table>
  <tr><td class="TD30"><strong>Gericht:</strong></td><td class="TD70"><span> </span><span>OVG Berlin-Brandenburg</span></td></tr>
  <tr><th class="TD30"><strong>Entscheidungsdatum:</strong></th><td class="TD70">5.3.2024</td></tr>
  <tr><td class="TD30"><strong>Aktenzeichen:</strong></td><td class="TD70">OVG 3 S 1/24</td></tr>
  <tr><td class="TD30"><strong>Dokumenttyp:</strong></td><td class="TD70">Beschluss</td></tr>
</table>
<div class="docLayoutText">
  <h3 class="unsichtbar">Permalink</h3>
  <div id="permalink">https://gesetze.berlin.de/perma?d=X</div>
  <p data-juris-id="1">Die Beschwerde nach <a class="doclink" href="/bsbe/document/Y">§ 146 VwGO</a> ist unbegründet.<span class="unsichtbar">Randnummer 1</span><!--hlIgnoreOn--></p>
  <p><a href="https://example.org/x">extern</a><img src="/jportal/icon.gif"></p>
  <script>alert(1)</script>
</div>
</body></html>`

func jurisDoc(t *testing.T, page string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)
	return doc
}

func TestParseJurisCase(t *testing.T) {
	c := parseJurisCase(jurisDoc(t, jurisDetail))
	require.NotNil(t, c)

	assert.Equal(t, "OVG Berlin-Brandenburg", c.CourtName)
	assert.Equal(t, "2024-03-05", c.Date)
	assert.Equal(t, "OVG 3 S 1/24", c.FileNumber)
	assert.Equal(t, "Beschluss", c.Type)

	assert.Contains(t, c.Content, `class="docLayoutText"`)
	assert.Contains(t, c.Content, "§ 146 VwGO")
	assert.Contains(t, c.Content, "ist unbegründet.")
	for _, gone := range []string{"Permalink", "perma?d=X", "Randnummer", "data-juris", "hlIgnoreOn", "href", "<img", "<script", "alert"} {
		assert.NotContains(t, c.Content, gone)
	}
}

func TestParseJurisCase_FieldLabelLayout(t *testing.T) {
	c := parseJurisCase(jurisDoc(t, `<html><body>
<div class="fieldLabel">Gericht</div><div class="fieldValue">LG Hamburg</div>
<div class="fieldLabel">Aktenzeichen</div><div class="fieldValue">301 O 1/24</div>
<div class="documentText"><p>Die Klage wird abgewiesen.</p></div>
</body></html>`))
	require.NotNil(t, c)
	assert.Equal(t, "LG Hamburg", c.CourtName)
	assert.Equal(t, "301 O 1/24", c.FileNumber)
	assert.Contains(t, c.Content, "Die Klage wird abgewiesen.")
}

func TestParseJurisCase_NoCourt(t *testing.T) {
	assert.Nil(t, parseJurisCase(jurisDoc(t, `<html><body><div class="docLayoutText"><p>Ein langer Entscheidungstext.</p></div></body></html>`)))
}

func TestJurisSearchURL(t *testing.T) {
	p := NewJurisCaseProvider(JurisPortals[0], Options{Renderer: &fakeRenderer{}})

	first := p.searchURL(1)
	assert.True(t, strings.HasPrefix(first, "https://gesetze.berlin.de/bsbe/js_peid/Suchportlet1/media-type/html?"))
	assert.True(t, strings.HasSuffix(first, "&query=*&standardsuche=suchen"))
	assert.NotContains(t, first, "currentNavigationPosition")

	third := p.searchURL(3)
	assert.Contains(t, third, "&query=*&currentNavigationPosition=26&numberofresults=15000&sortmethod=standard&standardsuche=suchen")
}

func TestJurisCaseProvider_GetCases(t *testing.T) {
	portal := JurisPortals[1]
	r := &fakeRenderer{pages: map[string]string{}}
	p := NewJurisCaseProvider(portal, Options{Renderer: r, Limit: 5})
	r.pages[p.searchURL(1)] = `<a href="/bsha/document/NJRE001/">1</a><a href="/bsha/document/NJRE001/part">1</a><a href="/bsha/document/NJRE002/">2</a>`
	r.pages[portal.BaseURL+"/document/NJRE001"] = jurisDetail

	cases, err := p.GetCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, "OVG 3 S 1/24", cases[0].FileNumber)

	assert.Equal(t, 1, r.closed)
	// search page 1, two details, then two empty search pages
	assert.Equal(t, []string{
		p.searchURL(1),
		portal.BaseURL + "/document/NJRE001",
		portal.BaseURL + "/document/NJRE002",
		p.searchURL(2),
		p.searchURL(3),
	}, r.loaded)
	assert.Equal(t, "https://www.landesrecht-hamburg.de", portal.Source().Homepage)
}
