package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const nrwPage = `<html><body>
<div class="feldbezeichnung">Gericht:</div><div class="feldinhalt">OLG Köln</div>
<div class="feldbezeichnung">Datum:</div><div class="feldinhalt">3.2.2024</div>
<div class="feldbezeichnung">Aktenzeichen:</div><div class="feldinhalt">19 U 1/23</div>
<div class="feldbezeichnung">ECLI:</div><div class="feldinhalt">ECLI:DE:OLGK:2024:0203.19U1.23.00</div>
<div class="feldbezeichnung">Entscheidungsart:</div><div class="feldinhalt">Urteil</div>
<div class="feldbezeichnung">Tenor:</div><div class="feldinhalt"><p>Die Berufung wird zurückgewiesen.</p></div>
<div class="maindiv"><p class="absatzLinks">G r ü n d e</p><p class="absatzLinks">T a t b e s t a n d</p><p class="absatzLinks">Der Kläger verlangt Schadensersatz.</p></div>
</body></html>`

func TestParseNRWCase(t *testing.T) {
	c, err := parseNRWCase(nrwPage)
	require.NoError(t, err)

	assert.Equal(t, "OLG Köln", c.CourtName)
	assert.Equal(t, "2024-02-03", c.Date)
	assert.Equal(t, "19 U 1/23", c.FileNumber)
	assert.Equal(t, "ECLI:DE:OLGK:2024:0203.19U1.23.00", c.ECLI)
	assert.Equal(t, "Urteil", c.Type)
	assert.True(t, len(c.Content) > 0)
	assert.Regexp(t, `^<h2>Tenor</h2>\n\n<p>Die Berufung wird zurückgewiesen.</p><br style="clear:both">\n\n`, c.Content)
	assert.Contains(t, c.Content, `class="h2 absatzLinks">T a t b e s t a n d`)
	assert.Contains(t, c.Content, `<p class="absatzLinks">Der Kläger verlangt Schadensersatz.</p>`)
}

func TestParseNRWCase_MissingFields(t *testing.T) {
	_, err := parseNRWCase(`<html><body><div><p class="absatzLinks">Text</p></div></body></html>`)
	assert.Error(t, err)

	_, err = parseNRWCase(`<html><body><p>no content</p></body></html>`)
	assert.Error(t, err)
}

func TestParseNRWLinks(t *testing.T) {
	links, err := parseNRWLinks(`<div class="einErgebnis"><a href="https://nrwesuche.justiz.nrw.de/a.html">A</a></div>
<div class="einErgebnis"><a href="https://nrwesuche.justiz.nrw.de/b.html">B</a></div><a href="/other">x</a>`)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://nrwesuche.justiz.nrw.de/a.html", "https://nrwesuche.justiz.nrw.de/b.html"}, links)
}

func TestNRWSearchForm(t *testing.T) {
	opts := testOptions()
	opts.Court = "ag"
	opts.DateFrom = "2024-01-05"
	p := NewNRWCaseProvider(opts)

	form := p.searchForm(3)
	assert.Equal(t, "ag", form.Get("gerichtstyp"))
	assert.Equal(t, "05.01.2024", form.Get("von"))
	assert.Empty(t, form.Get("bis"))
}

const nsPage = `<html><body>
<div class="wkde-bibliography"><dl>
<dt>Gericht</dt><dd>OVG&nbsp;Lüneburg</dd>
<dt>Datum</dt><dd>12.03.2024</dd>
<dt>Aktenzeichen</dt><dd>1 LA 2/24</dd>
<dt>ECLI</dt><dd><span class="wkde-empty">[keine Angabe]</span></dd>
<dt>Entscheidungsform</dt><dd>Beschluss</dd>
</dl></div>
<div class="wkde-document-body"><p>Der Antrag wird abgelehnt.</p></div>
</body></html>`

func TestParseNSCase(t *testing.T) {
	c, err := parseNSCase(nsPage)
	require.NoError(t, err)

	assert.Equal(t, "OVG Lüneburg", c.CourtName)
	assert.Equal(t, "2024-03-12", c.Date)
	assert.Equal(t, "1 LA 2/24", c.FileNumber)
	assert.Empty(t, c.ECLI)
	assert.Equal(t, "Beschluss", c.Type)
	assert.Equal(t, "<p>Der Antrag wird abgelehnt.</p>", c.Content)
}

func TestParseNSCase_NoBody(t *testing.T) {
	_, err := parseNSCase(`<html><body><div class="wkde-bibliography"><dl></dl></div></body></html>`)
	assert.Error(t, err)
}
