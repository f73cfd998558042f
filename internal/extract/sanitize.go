package extract

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// SanitizeSPA removes portal UI artifacts from a rendered decision in
// place: permalink blocks, portal icons, data-juris-* attributes,
// comments, hidden labels and links that only work inside the app.
func SanitizeSPA(root *html.Node) {
	for _, n := range htmlquery.Find(root, `//h3[contains(@class, "unsichtbar")]`) {
		if strings.Contains(htmlquery.InnerText(n), "Permalink") {
			Remove(n)
		}
	}
	for _, n := range htmlquery.Find(root, `//*[@id="permalink"]`) {
		Remove(n)
	}

	for _, n := range htmlquery.Find(root, `//img[contains(@src, "/jportal/")]`) {
		Remove(n)
	}

	comments := FindAll(root, func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			n.Attr = dropDataJuris(n.Attr)
		}
		return n.Type == html.CommentNode
	})
	for _, n := range comments {
		Remove(n)
	}

	for _, n := range htmlquery.Find(root, `//span[contains(@class, "unsichtbar")]`) {
		Remove(n)
	}

	for _, n := range htmlquery.Find(root, `//a[contains(@class, "doclink")]`) {
		n.Data = "span"
		n.DataAtom = atom.Span
		n.Attr = nil
	}

	for _, n := range htmlquery.Find(root, `//a`) {
		attrs := n.Attr[:0]
		for _, a := range n.Attr {
			if a.Key != "href" {
				attrs = append(attrs, a)
			}
		}
		n.Attr = attrs
	}
}

func dropDataJuris(attrs []html.Attribute) []html.Attribute {
	kept := attrs[:0]
	for _, a := range attrs {
		if !strings.HasPrefix(a.Key, "data-juris-") {
			kept = append(kept, a)
		}
	}
	return kept
}

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "id").Globally()
	// keep anchors whose href was dropped, they carry margin numbers
	p.AllowNoAttrs().OnElements("a")
	return p
}

// Sanitize drops scripts, styles and event handlers while keeping the
// document structure.
func Sanitize(s string) string {
	return policy.Sanitize(s)
}
