package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// fieldStrategy is one entry in an extraction cascade: a way of locating a
// single field's value in a document. Strategies are tried in order; the
// first one yielding a non-empty value wins.
type fieldStrategy struct {
	kind     string // "css", "css-attr", "xpath", "meta"
	selector string
	attr     string // for css-attr; also tried in priority order when comma-separated
}

// css matches element text, cssAttr an attribute value, xpath the inner
// text of the first matching node, and meta the content attribute of a
// <meta> tag selected by property name.
func css(selector string) fieldStrategy { return fieldStrategy{kind: "css", selector: selector} }

func cssAttr(selector, attr string) fieldStrategy {
	return fieldStrategy{kind: "css-attr", selector: selector, attr: attr}
}

func xpath(expr string) fieldStrategy { return fieldStrategy{kind: "xpath", selector: expr} }

func meta(property string) fieldStrategy { return fieldStrategy{kind: "meta", selector: property} }

// firstMatch runs an extraction cascade against a parsed document and
// returns the first non-empty, trimmed value.
func firstMatch(doc *goquery.Document, strategies []fieldStrategy) string {
	for _, st := range strategies {
		if v := applyStrategy(doc, st); v != "" {
			return v
		}
	}
	return ""
}

func applyStrategy(doc *goquery.Document, st fieldStrategy) string {
	switch st.kind {
	case "css":
		return strings.TrimSpace(doc.Find(st.selector).First().Text())
	case "css-attr":
		sel := doc.Find(st.selector).First()
		for _, attr := range strings.Split(st.attr, ",") {
			if v := strings.TrimSpace(sel.AttrOr(strings.TrimSpace(attr), "")); v != "" {
				return v
			}
		}
	case "xpath":
		return xpathText(rootNode(doc), st.selector)
	case "meta":
		return strings.TrimSpace(doc.Find("meta[property='" + st.selector + "']").AttrOr("content", ""))
	}
	return ""
}

// rootNode exposes the underlying html.Node so XPath strategies can share
// the tree goquery already parsed.
func rootNode(doc *goquery.Document) *html.Node {
	if len(doc.Nodes) == 0 {
		return nil
	}
	return doc.Nodes[0]
}

// xpathText evaluates an XPath expression and returns the first match's
// inner text.
func xpathText(root *html.Node, expr string) string {
	if root == nil {
		return ""
	}
	node, err := htmlquery.Query(root, expr)
	if err != nil || node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.InnerText(node))
}
