package extraction

import (
	"strings"

	"github.com/antchfx/htmlquery"
	"golang.org/x/net/html"
)

// Document wraps a parsed markup tree and answers first-match / all-matches
// queries by XPath selector and optional attribute.
type Document struct {
	root *html.Node
}

// LoadHTML parses markup into a queryable document. The parser is lenient;
// real retailer pages are rarely well-formed.
func LoadHTML(content string) (*Document, error) {
	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	return &Document{root: root}, nil
}

// First returns the value of the first node matching the selector, or ""
// when nothing matches. An invalid selector yields "" rather than an error;
// selectors are operator configuration and a bad one must not kill a scrape.
func (d *Document) First(selector, attribute string) string {
	node, err := htmlquery.Query(d.root, selector)
	if err != nil || node == nil {
		return ""
	}
	return nodeValue(node, attribute)
}

// All returns the values of every node matching the selector.
func (d *Document) All(selector, attribute string) []string {
	nodes, err := htmlquery.QueryAll(d.root, selector)
	if err != nil {
		return nil
	}
	var values []string
	for _, node := range nodes {
		if v := nodeValue(node, attribute); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// ScriptTexts returns the raw text content of every script element, in
// document order. Used by the JSON block locator.
func (d *Document) ScriptTexts() []string {
	nodes, err := htmlquery.QueryAll(d.root, "//script")
	if err != nil {
		return nil
	}
	var texts []string
	for _, node := range nodes {
		if t := htmlquery.InnerText(node); strings.TrimSpace(t) != "" {
			texts = append(texts, t)
		}
	}
	return texts
}

// nodeValue extracts a node's value: the named attribute when one is given,
// else trimmed text content, falling back to concatenating only direct
// text-node children when the full text content is empty.
func nodeValue(node *html.Node, attribute string) string {
	if attribute != "" {
		return strings.TrimSpace(htmlquery.SelectAttr(node, attribute))
	}

	full := strings.TrimSpace(htmlquery.InnerText(node))
	if full != "" {
		return full
	}

	var parts []string
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.TextNode {
			if t := strings.TrimSpace(child.Data); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, " ")
}
