package extract

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// DocumentSectionPath selects top-level sections of decision XML
const DocumentSectionPath = "//dokument/{tag}"

// Section names one tagged part of a decision and the heading shown for it
type Section struct {
	Tag      string
	Headline string
}

// BuildContentHTML concatenates the inner markup of every node matched by
// path (with {tag} replaced per section), in section order. The first
// match of a section gets an <h2> heading when withHeadline is set and the
// section has one. Empty matches are skipped.
func BuildContentHTML(doc *xmlquery.Node, sections []Section, path string, withHeadline bool) string {
	var buf strings.Builder
	for _, s := range sections {
		expr := strings.ReplaceAll(path, "{tag}", s.Tag)
		for i, m := range xmlquery.Find(doc, expr) {
			inner := InnerXML(m)
			if strings.TrimSpace(inner) == "" {
				continue
			}
			if buf.Len() > 0 {
				buf.WriteString("\n")
			}
			if withHeadline && i == 0 && s.Headline != "" {
				buf.WriteString("<h2>" + s.Headline + "</h2>")
			}
			buf.WriteString("\n\n")
			buf.WriteString(inner)
		}
	}
	return buf.String()
}
