package main

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/samber/lo"
	"golang.org/x/net/html/charset"
)

// urlPattern matches bare http(s) URLs in free text.
var urlPattern = regexp.MustCompile(`(?i)https?://[^\s<>'"\\)\]]+`)

var (
	textFileExtensions = []string{".md", ".txt", ".json", ".csv", ".html", ".htm"}
	htmlFileExtensions = []string{".html", ".htm"}
)

// ExtractFromFiles collects http(s) URLs from the given files and, recursively,
// directories. Only text-like files are read; unreadable ones are skipped. The
// result is sorted and free of duplicates.
func ExtractFromFiles(paths []string) ([]string, error) {
	var urls []string
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == root {
					return err
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			urls = append(urls, extractFromFile(path)...)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	urls = lo.Uniq(urls)
	sort.Strings(urls)
	return urls, nil
}

func extractFromFile(path string) []string {
	ext := strings.ToLower(filepath.Ext(path))
	if !lo.Contains(textFileExtensions, ext) {
		return nil
	}
	text, err := readTextGuess(path)
	if err != nil {
		return nil
	}

	urls := urlPattern.FindAllString(text, -1)
	if lo.Contains(htmlFileExtensions, ext) {
		urls = append(urls, absoluteHTMLLinks(text)...)
	}
	return urls
}

// readTextGuess reads path and decodes it with the encoding sniffed from its content.
func readTextGuess(path string) (string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths are chosen by the user
	if err != nil {
		return "", err
	}
	enc, _, _ := charset.DetermineEncoding(data, "")
	decoded, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, nil)), nil
	}
	return string(decoded), nil
}

func absoluteHTMLLinks(text string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return nil
	}
	var links []string
	doc.Find("a[href], link[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			links = append(links, href)
		}
	})
	return links
}
