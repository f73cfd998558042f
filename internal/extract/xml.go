package extract

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/xmlquery"
)

var xmlDeclPattern = regexp.MustCompile(`<\?xml[^?]*\?>`)

// ParseXML parses an already decoded XML document. The declaration is
// dropped so a stale encoding attribute cannot trigger a second decode,
// and HTML entities found in court XML are accepted.
func ParseXML(s string) (*xmlquery.Node, error) {
	s = xmlDeclPattern.ReplaceAllString(s, "")
	doc, err := xmlquery.ParseWithOptions(strings.NewReader(s), xmlquery.ParserOptions{
		Decoder: &xmlquery.DecoderOptions{
			Strict:    false,
			AutoClose: xml.HTMLAutoClose,
			Entity:    xml.HTMLEntity,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}
	return doc, nil
}

// InnerXML serializes the children of n
func InnerXML(n *xmlquery.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		buf.WriteString(c.OutputXML(true))
	}
	return buf.String()
}

// XMLText returns the text nodes selected by expr joined by newlines,
// or def when nothing matches.
func XMLText(doc *xmlquery.Node, expr, def string) string {
	nodes := xmlquery.Find(doc, expr+"/text()")
	if len(nodes) == 0 {
		return def
	}
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Data
	}
	return strings.Join(texts, "\n")
}
