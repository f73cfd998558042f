package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCelexType(t *testing.T) {
	tests := map[string]string{
		"62024CJ0001":  "Urteil",
		"62019TO0123":  "Beschluss",
		"62020CC0042":  "Schlussantrag des Generalanwalts",
		"62021CG0001":  "Mitteilung: Gutachten",
		"61999ZZ0001":  "",
		"32016R0679":   "",
		"not-a-celex":  "",
		"62024FB00001": "Mitteilung Beschluss",
	}
	for celex, want := range tests {
		assert.Equal(t, want, CelexType(celex), celex)
	}
}

const euNotice = `<?xml version="1.0" encoding="UTF-8"?>
<NOTICE>
  <WORK>
    <WORK_DATE_DOCUMENT><VALUE>2024-03-21</VALUE></WORK_DATE_DOCUMENT>
    <RESOURCE_LEGAL_ID_CELEX><VALUE>62022CJ0123</VALUE></RESOURCE_LEGAL_ID_CELEX>
    <SAMEAS><URI><VALUE>x</VALUE><IDENTIFIER>C-999/22</IDENTIFIER><TYPE>case</TYPE></URI></SAMEAS>
  </WORK>
  <EXPRESSION>
    <EXPRESSION_TITLE><VALUE>Judgment of the Court#Case C‑123/22</VALUE></EXPRESSION_TITLE>
    <EXPRESSION_USES_LANGUAGE><IDENTIFIER>ENG</IDENTIFIER></EXPRESSION_USES_LANGUAGE>
  </EXPRESSION>
  <EXPRESSION>
    <EXPRESSION_TITLE><VALUE>Urteil des Gerichtshofs (Zweite Kammer) vom 21. März 2024. Rechtssache C‑123/22 und C-124/22.#Vorabentscheidungsersuchen</VALUE></EXPRESSION_TITLE>
    <EXPRESSION_USES_LANGUAGE><IDENTIFIER>DEU</IDENTIFIER></EXPRESSION_USES_LANGUAGE>
  </EXPRESSION>
</NOTICE>`

func TestParseEUNotice(t *testing.T) {
	c, err := parseEUNotice(euNotice)
	require.NoError(t, err)

	assert.Equal(t, "2024-03-21", c.Date)
	assert.Equal(t, "Urteil des Gerichtshofs (Zweite Kammer) vom 21. März 2024. Rechtssache C‑123/22 und C-124/22.", c.Title)
	assert.Equal(t, "C-123/22,C-124/22", c.FileNumber)
	assert.Equal(t, "Urteil", c.Type)
}

func TestParseEUNotice_SameAsFallback(t *testing.T) {
	notice := strings.Replace(euNotice, "Rechtssache C‑123/22 und C-124/22.", "ohne Aktenzeichen", 1)
	c, err := parseEUNotice(notice)
	require.NoError(t, err)
	assert.Equal(t, "C-999/22", c.FileNumber)
}

func TestEUContent_Links(t *testing.T) {
	page := `<?xml version="1.0" encoding="UTF-8"?><html><head><title>x</title></head><body>
<p><a href="#point1">1</a> <a href="https://curia.europa.eu/">curia</a> <a href="./../AUTO/?uri=CELEX:62020CJ0001">ref</a> <a href="javascript:void(0)">js</a></p></body></html>`

	content, err := euContent(page, "https://eur-lex.europa.eu/legal-content/DE/TXT/HTML/?uri=ECLI:EU:C:2024:1")
	require.NoError(t, err)
	assert.Contains(t, content, `<a href="#point1">1</a>`)
	assert.Contains(t, content, `<a href="https://curia.europa.eu/">curia</a>`)
	assert.Contains(t, content, `<a href="https://eur-lex.europa.eu/legal-content/DE/TXT/AUTO/?uri=CELEX:62020CJ0001">ref</a>`)
	assert.Contains(t, content, `<a>js</a>`)
	assert.NotContains(t, content, "<body")
}

func TestEUSparqlQuery(t *testing.T) {
	opts := testOptions()
	opts.DateFrom = "2024-01-01"
	p := NewEUCaseProvider(opts)

	q := p.sparqlQuery(100, 200)
	assert.Contains(t, q, `FILTER(?date >= "2024-01-01"^^xsd:date)`)
	assert.NotContains(t, q, "?date <=")
	assert.Contains(t, q, "ORDER BY DESC(?date)\nLIMIT 100\nOFFSET 200")
}

func TestEUCaseProvider_GetCases(t *testing.T) {
	var offsets []string
	_, client := testServer(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/sparql":
			q := r.URL.Query().Get("query")
			assert.Equal(t, "application/json", r.URL.Query().Get("format"))
			offset := q[strings.LastIndex(q, "OFFSET ")+len("OFFSET "):]
			offsets = append(offsets, offset)
			var bindings []map[string]map[string]string
			if offset == "0" {
				for _, e := range []string{"ECLI:EU:C:2024:1", "ECLI:EU:C:2024:2", "ECLI:EU:C:2024:3"} {
					bindings = append(bindings, map[string]map[string]string{"ecli": {"value": e}})
				}
			}
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{"results": map[string]any{"bindings": bindings}})
		case strings.HasSuffix(r.URL.Path, "/TXT/XML/"):
			if r.URL.Query().Get("uri") == "ECLI:ECLI:EU:C:2024:2" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			fmt.Fprint(w, euNotice)
		case strings.HasSuffix(r.URL.Path, "/TXT/HTML/"):
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, "<html><body><p>Das Vorabentscheidungsersuchen betrifft die Auslegung.</p></body></html>")
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	opts := testOptions()
	opts.Limit = 2
	p := NewEUCaseProvider(opts)
	p.client = client
	p.sparqlURL = client.ResolveURL("/sparql")

	cases, err := p.GetCases(context.Background())
	require.NoError(t, err)
	require.Len(t, cases, 1)
	assert.Equal(t, []string{"0"}, offsets)

	c := cases[0]
	assert.Equal(t, "Europäischer Gerichtshof", c.CourtName)
	assert.Equal(t, "ECLI:EU:C:2024:1", c.ECLI)
	assert.Equal(t, "<p>Das Vorabentscheidungsersuchen betrifft die Auslegung.</p>", c.Content)
	assert.Equal(t, "C-123/22,C-124/22", c.FileNumber)
}
