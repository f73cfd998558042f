package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

var (
	bodyPattern  = regexp.MustCompile(`(?s)<body[^>]*>(.*)</body>`)
	breakPattern = regexp.MustCompile(`(?i)<br\s*/?>`)
)

// ParseHTML parses an HTML string into a node tree
func ParseHTML(s string) (*html.Node, error) {
	return htmlquery.Parse(strings.NewReader(strings.ReplaceAll(s, "\r\n", "\n")))
}

// Body returns the inner markup of the <body> element, or s unchanged
// when there is none. It works on text so malformed pages still yield
// their content.
func Body(s string) string {
	m := bodyPattern.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return strings.TrimSpace(m[1])
}

// StripTags removes all markup and returns the text content with
// character references decoded.
func StripTags(s string) string {
	var buf strings.Builder
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return buf.String()
		case html.TextToken:
			buf.Write(z.Text())
		}
	}
}

// SplitBreaks splits a fragment on <br> tags and returns the non-empty
// plain-text lines.
func SplitBreaks(fragment string) []string {
	var lines []string
	for _, part := range breakPattern.Split(fragment, -1) {
		if line := strings.TrimSpace(StripTags(part)); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// InnerHTML serializes the children of n
func InnerHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		_ = html.Render(&buf, c)
	}
	return buf.String()
}

// OuterHTML serializes n including its own tag
func OuterHTML(n *html.Node) string {
	if n == nil {
		return ""
	}
	var buf strings.Builder
	_ = html.Render(&buf, n)
	return buf.String()
}

// Text returns the text content of n with surrounding space trimmed
func Text(n *html.Node) string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(n))
}

// XPathText returns the text nodes selected by expr joined by newlines,
// or def when nothing matches.
func XPathText(doc *html.Node, expr, def string) string {
	nodes := htmlquery.Find(doc, expr+"/text()")
	if len(nodes) == 0 {
		return def
	}
	texts := make([]string, len(nodes))
	for i, n := range nodes {
		texts[i] = n.Data
	}
	return strings.Join(texts, "\n")
}

// CSSText returns the trimmed text of the first match of selector
func CSSText(s *goquery.Selection, selector, def string) string {
	m := s.Find(selector).First()
	if m.Length() == 0 {
		return def
	}
	return strings.TrimSpace(m.Text())
}

// Attr returns the value of attribute key on n
func Attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// HasClass checks if a node has a specific CSS class
func HasClass(n *html.Node, className string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, class := range strings.Fields(Attr(n, "class")) {
		if class == className {
			return true
		}
	}
	return false
}

// FindAll finds all nodes matching a predicate in document order
func FindAll(n *html.Node, predicate func(*html.Node) bool) []*html.Node {
	var results []*html.Node

	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if predicate(node) {
			results = append(results, node)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return results
}

// Remove detaches n from its parent
func Remove(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}
