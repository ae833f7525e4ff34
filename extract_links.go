package main

import (
	"strings"

	"github.com/samber/lo"
	"golang.org/x/net/html"
)

// linkAttributes maps the elements scanned for references to the attribute holding them.
var linkAttributes = map[string]string{
	"a":      "href",
	"link":   "href",
	"script": "src",
	"img":    "src",
}

// ExtractLinks parses htmlContent and returns the normalized references of its
// anchor, stylesheet link, script and image elements, resolved against pageURL.
// Document order is kept and duplicates are not removed.
func ExtractLinks(htmlContent, pageURL string) ([]string, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	var links []string
	var f func(*html.Node)
	f = func(n *html.Node) {
		if n.Type == html.ElementNode {
			if want, ok := linkAttributes[n.Data]; ok {
				for _, attr := range n.Attr {
					if attr.Key != want {
						continue
					}
					if link, ok := NormalizeURL(pageURL, attr.Val); ok {
						links = append(links, link)
					}
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			f(c)
		}
	}
	f(doc)

	return links, nil
}

// FrontierLinks drops non-HTML references unless assets are included.
func FrontierLinks(links []string, includeAssets bool) []string {
	if includeAssets {
		return links
	}
	return lo.Filter(links, func(link string, _ int) bool {
		return IsProbablyHTML(link)
	})
}
