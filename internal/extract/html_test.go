package extract

import (
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

func TestBody(t *testing.T) {
	page := "<html><head><title>x</title></head><body class=\"doc\">\n<p>Inhalt</p>\n</body></html>"
	if got := Body(page); got != "<p>Inhalt</p>" {
		t.Errorf("Expected body content, got %q", got)
	}

	fragment := "<p>kein body</p>"
	if got := Body(fragment); got != fragment {
		t.Errorf("Expected input unchanged, got %q", got)
	}
}

func TestStripTags(t *testing.T) {
	if got := StripTags("<p>a &amp; <b>b</b></p>"); got != "a & b" {
		t.Errorf("Expected 'a & b', got %q", got)
	}
}

func TestSplitBreaks(t *testing.T) {
	got := SplitBreaks("<td>29.01.2026<br>2 U 106/22<br/>  <BR>Urteil</td>")
	want := []string{"29.01.2026", "2 U 106/22", "Urteil"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestInnerHTML(t *testing.T) {
	doc, err := ParseHTML(`<div id="c"><p>x</p><br></div>`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	div := htmlquery.FindOne(doc, `//div[@id="c"]`)
	if got := InnerHTML(div); got != "<p>x</p><br/>" {
		t.Errorf("Expected children markup, got %q", got)
	}
	if got := OuterHTML(div); got != `<div id="c"><p>x</p><br/></div>` {
		t.Errorf("Expected element markup, got %q", got)
	}
}

func TestXPathText(t *testing.T) {
	doc, err := ParseHTML(`<div><span class="v">a</span><span class="v">b</span></div>`)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if got := XPathText(doc, `//span[@class="v"]`, ""); got != "a\nb" {
		t.Errorf("Expected joined text, got %q", got)
	}
	if got := XPathText(doc, `//span[@class="missing"]`, "def"); got != "def" {
		t.Errorf("Expected default, got %q", got)
	}
}

func TestCSSText(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<ul><li class="x"> eins </li><li class="x">zwei</li></ul>`))
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if got := CSSText(doc.Selection, "li.x", ""); got != "eins" {
		t.Errorf("Expected first match, got %q", got)
	}
	if got := CSSText(doc.Selection, "li.y", "-"); got != "-" {
		t.Errorf("Expected default, got %q", got)
	}
}

func TestHasClass(t *testing.T) {
	doc, _ := ParseHTML(`<p class="absatzLinks h2">x</p>`)
	p := htmlquery.FindOne(doc, "//p")
	if !HasClass(p, "absatzLinks") {
		t.Error("Expected class absatzLinks")
	}
	if HasClass(p, "absatz") {
		t.Error("Expected no partial class match")
	}
}
