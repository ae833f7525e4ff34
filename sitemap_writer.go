package main

import (
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/lo"
)

const (
	maxSitemapURLs    = 50000
	sitemapDateLayout = "2006-01-02"
)

// SitemapOptions controls WriteSitemapAuto.
type SitemapOptions struct {
	// MaxURLs per file; zero means the protocol limit.
	MaxURLs int
	// Gzip compresses the urlset files. The index is always plain XML.
	Gzip bool
	// LocForPart maps a written part path to the <loc> used in the index.
	// The part path itself is used when nil.
	LocForPart func(partPath string) string
	// Now supplies the lastmod date, time.Now when nil.
	Now func() time.Time
}

// BaseURLLocator maps part paths to baseURL/<file name>.
func BaseURLLocator(baseURL string) func(string) string {
	baseURL = strings.TrimRight(baseURL, "/")
	return func(partPath string) string {
		return baseURL + "/" + filepath.Base(partPath)
	}
}

// MarshalURLSet renders a pretty-printed urlset document.
func MarshalURLSet(urls []string, lastMod string) ([]byte, error) {
	set := UrlSet{
		Xmlns: sitemapNamespace,
		URLs: lo.Map(urls, func(u string, _ int) UrlEntry {
			return UrlEntry{Loc: u, LastMod: lastMod}
		}),
	}
	return marshalSitemapXML(set)
}

// MarshalSitemapIndex renders a pretty-printed sitemapindex document.
func MarshalSitemapIndex(entries []SitemapEntry) ([]byte, error) {
	return marshalSitemapXML(SitemapIndex{Xmlns: sitemapNamespace, Sitemaps: entries})
}

func marshalSitemapXML(v any) ([]byte, error) {
	body, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(body)
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// WriteSitemapAuto writes urls as one sitemap at path, or, when they exceed the
// per-file limit, as numbered parts {base}_{n}{ext} plus an index at path.
// It returns every path written, the index first.
func WriteSitemapAuto(urls []string, path string, opts SitemapOptions) ([]string, error) {
	maxURLs := opts.MaxURLs
	if maxURLs <= 0 {
		maxURLs = maxSitemapURLs
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	today := now().UTC().Format(sitemapDateLayout)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sitemap directory: %w", err)
	}

	if len(urls) <= maxURLs {
		data, err := MarshalURLSet(urls, today)
		if err != nil {
			return nil, err
		}
		written, err := writeSitemapFile(path, data, opts.Gzip)
		if err != nil {
			return nil, err
		}
		return []string{written}, nil
	}

	locForPart := opts.LocForPart
	if locForPart == nil {
		locForPart = func(partPath string) string { return partPath }
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	var parts []string
	var entries []SitemapEntry
	for i, chunk := range lo.Chunk(urls, maxURLs) {
		data, err := MarshalURLSet(chunk, today)
		if err != nil {
			return nil, err
		}
		written, err := writeSitemapFile(fmt.Sprintf("%s_%d%s", base, i+1, ext), data, opts.Gzip)
		if err != nil {
			return nil, err
		}
		parts = append(parts, written)
		entries = append(entries, SitemapEntry{Loc: locForPart(written), LastMod: today})
	}

	data, err := MarshalSitemapIndex(entries)
	if err != nil {
		return nil, err
	}
	index, err := writeSitemapFile(path, data, false)
	if err != nil {
		return nil, err
	}
	return append([]string{index}, parts...), nil
}

// writeSitemapFile writes data to path, gzip-compressed under a .gz name when
// requested, and returns the path actually written.
func writeSitemapFile(path string, data []byte, gzipOutput bool) (string, error) {
	if !gzipOutput {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return "", fmt.Errorf("write sitemap %s: %w", path, err)
		}
		return path, nil
	}

	if !strings.HasSuffix(path, ".gz") {
		path += ".gz"
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return "", err
	}
	if err := zw.Close(); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return "", fmt.Errorf("write sitemap %s: %w", path, err)
	}
	return path, nil
}
