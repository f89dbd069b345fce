package source

import (
	stdhtml "html"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

var strictPolicy = bluemonday.StrictPolicy()

// cleanText strips markup, unescapes entities and collapses whitespace
func cleanText(s string) string {
	s = strictPolicy.Sanitize(s)
	s = stdhtml.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// selectionText returns cleaned text of the selection with blocks separated by space
func selectionText(sel *goquery.Selection) string {
	parts := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		if txt := cleanText(s.Text()); txt != "" {
			parts = append(parts, txt)
		}
	})
	return strings.Join(parts, " ")
}

// resolveURL makes href absolute against base
func resolveURL(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}

// spacedText returns cleaned text of all text nodes under the selection joined by space,
// so adjacent blocks like <p>a</p><p>b</p> don't glue together
func spacedText(sel *goquery.Selection) string {
	var parts []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			parts = append(parts, n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return cleanText(strings.Join(parts, " "))
}
