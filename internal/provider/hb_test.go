package provider

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const hbListing = `<html><body><table>
<tr class="search-result" data-date="2024-01-29">
  <td>29.01.2024<br>2 U 106/22<br>§ 823 BGB<br>Zivilrecht<br>Urteil</td>
  <td><a href="/sixcms/media.php/13/2U106-22.pdf">Schadensersatz nach Verkehrsunfall (pdf, 123,4 KB)</a>
      <a href="detail.php?gsid=bremen100.c.1">Details</a></td>
</tr>
<tr class="search-result" data-date="2023-05-02">
  <td>02.05.2023<br>1 B 2/23</td>
  <td><a href="/sixcms/media.php/13/1B2-23.pdf">Beschluss (pdf, 1 MB)</a></td>
</tr>
<tr class="search-result" data-date="2023-01-01"><td>nur ein Feld</td></tr>
</table></body></html>`

func hbRows(t *testing.T) *goquery.Selection {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(hbListing))
	require.NoError(t, err)
	return doc.Find("tr.search-result")
}

func TestParseHBRow(t *testing.T) {
	rows := hbRows(t)
	require.Equal(t, 3, rows.Length())

	r, ok := parseHBRow(rows.Eq(0), HBCourts[0])
	require.True(t, ok)
	assert.Equal(t, "Hanseatisches Oberlandesgericht in Bremen", r.Case.CourtName)
	assert.Equal(t, "2024-01-29", r.Case.Date)
	assert.Equal(t, "2 U 106/22", r.Case.FileNumber)
	assert.Equal(t, "Urteil", r.Case.Type)
	assert.Equal(t, "Schadensersatz nach Verkehrsunfall", r.Case.Title)
	assert.Equal(t, "/sixcms/media.php/13/2U106-22.pdf", r.PDFLink)
	assert.Equal(t, "detail.php?gsid=bremen100.c.1", r.DetailRef)

	// two lines carry no type
	r, ok = parseHBRow(rows.Eq(1), HBCourts[0])
	require.True(t, ok)
	assert.Equal(t, "1 B 2/23", r.Case.FileNumber)
	assert.Empty(t, r.Case.Type)
	assert.Equal(t, "Beschluss", r.Case.Title)

	_, ok = parseHBRow(rows.Eq(2), HBCourts[0])
	assert.False(t, ok)
}

func TestHBCaseProvider_DateFilter(t *testing.T) {
	opts := testOptions()
	opts.DateFrom = "2024-01-01"
	opts.DateTo = "2024-01-31"
	p := NewHBCaseProvider(opts)

	assert.True(t, p.inRange("2024-01-29"))
	assert.False(t, p.inRange("2023-12-31"))
	assert.False(t, p.inRange("2024-02-01"))
}

func TestHBCaseProvider_Courts(t *testing.T) {
	assert.Len(t, NewHBCaseProvider(testOptions()).courts(), 5)

	opts := testOptions()
	opts.Court = "OVG"
	courts := NewHBCaseProvider(opts).courts()
	require.Len(t, courts, 1)
	assert.Equal(t, "https://oberverwaltungsgericht.bremen.de", courts[0].BaseURL)

	opts.Court = "bgh"
	assert.Empty(t, NewHBCaseProvider(opts).courts())
}

func TestParseHBAbstract(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body>
<div class="project_info"><div class="project_info_left">Aktenzeichen</div><div class="project_info_right">2 U 106/22</div></div>
<div class="project_info"><div class="project_info_left"> Leitsatz </div><div class="project_info_right">
  Zur Haftung des Halters.
</div></div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Zur Haftung des Halters.", parseHBAbstract(doc))
}
