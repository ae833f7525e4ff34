package main

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
)

const (
	defaultMaxBodySize = 10 * 1024 * 1024
	acceptHeader       = "text/html,application/xhtml+xml;q=0.9,*/*;q=0.1"
	acceptEncoding     = "gzip, deflate, br"
)

// htmlContentTypes gates which responses get their body decoded.
var htmlContentTypes = []string{"text/html", "application/xhtml+xml"}

// Page is the outcome of a GET that produced an HTTP response.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	// Body is the decoded text of an HTML response and empty for anything else.
	Body string
}

// PageFetcher performs single-attempt GETs through a shared client.
type PageFetcher struct {
	client      *http.Client
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
}

// NewPageFetcher creates a fetcher. A zero timeout leaves requests bounded only by ctx.
func NewPageFetcher(client *http.Client, userAgent string, timeout time.Duration) *PageFetcher {
	return &PageFetcher{
		client:      client,
		userAgent:   userAgent,
		timeout:     timeout,
		maxBodySize: defaultMaxBodySize,
	}
}

// FetchPage fetches a page with a single GET. Transport failures and timeouts are
// returned as errors and are not retried. Any HTTP response is returned as a
// Page whatever its status; the body is decoded only for HTML content types.
// When the body cannot be decoded the Page is still returned, with an empty
// Body, alongside the error.
func (f *PageFetcher) FetchPage(ctx context.Context, pageURL string) (*Page, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	page := &Page{
		URL:         pageURL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if !isHTMLContentType(page.ContentType) {
		return page, nil
	}

	body, closeBody, err := decodeBody(resp)
	if err != nil {
		return page, err
	}
	defer closeBody()

	reader, err := charset.NewReader(io.LimitReader(body, f.maxBodySize), page.ContentType)
	if err != nil {
		return page, err
	}
	text, err := io.ReadAll(reader)
	if err != nil {
		return page, fmt.Errorf("read body: %w", err)
	}
	page.Body = string(text)
	return page, nil
}

// FetchText fetches a document whose body is needed regardless of content type,
// requiring a 2XX response.
func (f *PageFetcher) FetchText(ctx context.Context, pageURL string) (string, error) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	req.Header.Set("Accept-Encoding", acceptEncoding)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &httpError{StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, closeBody, err := decodeBody(resp)
	if err != nil {
		return "", err
	}
	defer closeBody()

	text, err := io.ReadAll(io.LimitReader(body, f.maxBodySize))
	if err != nil {
		return "", err
	}
	return string(text), nil
}

// decodeBody unwraps the Content-Encoding of resp. Setting Accept-Encoding
// ourselves turns off the transport's transparent gzip handling.
func decodeBody(resp *http.Response) (io.Reader, func(), error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip decode: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case "br":
		return brotli.NewReader(resp.Body), func() {}, nil
	case "deflate":
		return deflateReader(resp.Body)
	default:
		return resp.Body, func() {}, nil
	}
}

// deflateReader reads HTTP deflate, which is zlib-wrapped, falling back to raw
// flate for servers that omit the zlib header.
func deflateReader(r io.Reader) (io.Reader, func(), error) {
	buffered := bufio.NewReader(r)
	header, err := buffered.Peek(2)
	if err == nil && isZlibHeader(header) {
		zr, err := zlib.NewReader(buffered)
		if err != nil {
			return nil, nil, fmt.Errorf("deflate decode: %w", err)
		}
		return zr, func() { _ = zr.Close() }, nil
	}
	fl := flate.NewReader(buffered)
	return fl, func() { _ = fl.Close() }, nil
}

// isZlibHeader checks the CMF/FLG pair of RFC 1950: deflate method and a
// header checksum divisible by 31.
func isZlibHeader(h []byte) bool {
	return h[0]&0x0f == 8 && (uint16(h[0])<<8|uint16(h[1]))%31 == 0
}

func isHTMLContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, t := range htmlContentTypes {
		if strings.Contains(contentType, t) {
			return true
		}
	}
	return false
}

// httpError represents an error that occurs when an HTTP request fails with a non-2XX status code.
type httpError struct {
	StatusCode int
	URL        string
}

// Error implements the error interface for httpError.
func (e *httpError) Error() string {
	return "HTTP error: " + http.StatusText(e.StatusCode) + " from " + e.URL
}
