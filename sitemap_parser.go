package main

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

type UrlSet struct {
	XMLName xml.Name   `xml:"urlset"`
	Xmlns   string     `xml:"xmlns,attr,omitempty"`
	URLs    []UrlEntry `xml:"url"`
}

type UrlEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type SitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Xmlns    string         `xml:"xmlns,attr,omitempty"`
	Sitemaps []SitemapEntry `xml:"sitemap"`
}

type SitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// sitemapDocument decodes either root element.
type sitemapDocument struct {
	XMLName  xml.Name
	URLs     []UrlEntry     `xml:"url"`
	Sitemaps []SitemapEntry `xml:"sitemap"`
}

// ParseSitemap accepts a urlset or a sitemapindex document. It returns the page
// locations of a urlset, or the child sitemap locations of an index.
func ParseSitemap(sitemap string) (pages []string, children []string, err error) {
	var doc sitemapDocument
	if err := xml.Unmarshal([]byte(sitemap), &doc); err != nil {
		return nil, nil, err
	}

	nonEmpty := func(loc string, _ int) (string, bool) {
		loc = strings.TrimSpace(loc)
		return loc, loc != ""
	}
	switch doc.XMLName.Local {
	case "urlset":
		locs := lo.Map(doc.URLs, func(e UrlEntry, _ int) string { return e.Loc })
		return lo.FilterMap(locs, nonEmpty), nil, nil
	case "sitemapindex":
		locs := lo.Map(doc.Sitemaps, func(e SitemapEntry, _ int) string { return e.Loc })
		return nil, lo.FilterMap(locs, nonEmpty), nil
	default:
		return nil, nil, fmt.Errorf("unexpected sitemap root element %q", doc.XMLName.Local)
	}
}
