package main

import (
	"html"
	"net/url"
	"path"
	"strings"
)

// htmlExtensions are the path extensions kept in the frontier when assets are excluded.
var htmlExtensions = map[string]bool{
	"":       true,
	".html":  true,
	".htm":   true,
	".xhtml": true,
}

// NormalizeURL resolves href against base and sanitizes it:
// - Unescapes HTML entities
// - Makes it absolute
// - Strips fragments (#...)
// It reports false for empty references and anything that is not http or https.
func NormalizeURL(base, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	href = html.UnescapeString(href)

	baseURL, err := url.Parse(base)
	if err != nil {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	// "http:page.html" is relative to a base of the same scheme.
	if ref.Opaque != "" && strings.EqualFold(ref.Scheme, baseURL.Scheme) {
		refPath, err := url.PathUnescape(ref.Opaque)
		if err != nil {
			return "", false
		}
		ref = &url.URL{Path: refPath, RawQuery: ref.RawQuery, Fragment: ref.Fragment}
	}

	resolved := baseURL.ResolveReference(ref)
	resolved.Fragment = ""
	resolved.RawFragment = ""

	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	if resolved.Host == "" {
		return "", false
	}
	return resolved.String(), true
}

// HostAllowed reports whether host equals, or is a subdomain of, an allow-list entry.
// An empty allow-list allows every host.
func HostAllowed(host string, allowHosts []string) bool {
	if len(allowHosts) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, allowed := range allowHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}

// URLHostAllowed applies HostAllowed to the hostname (port excluded) of rawURL.
func URLHostAllowed(rawURL string, allowHosts []string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return HostAllowed(u.Hostname(), allowHosts)
}

// IsProbablyHTML keeps URLs whose path has no extension or an HTML one.
func IsProbablyHTML(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return htmlExtensions[strings.ToLower(path.Ext(u.Path))]
}

// hostKey is the authority (host plus optional port) used to key per-host state.
func hostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// cacheFileName flattens a page URL into a single file name for the HTML cache.
func cacheFileName(pageURL string) string {
	name := strings.ReplaceAll(pageURL, "https://", "")
	name = strings.ReplaceAll(name, "http://", "")
	name = strings.ReplaceAll(name, "/", "__")
	return name + ".html"
}
