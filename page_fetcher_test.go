package main

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(html string, statusCode int, contentType string, delayMilliseconds time.Duration) *httptest.Server {
	handler := http.NewServeMux()
	handler.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(delayMilliseconds * time.Millisecond)
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(statusCode)
		w.Write([]byte(html))
	})
	return httptest.NewServer(handler)
}

func newTestFetcher(timeout time.Duration) *PageFetcher {
	return NewPageFetcher(&http.Client{}, "TestBot/1.0", timeout)
}

func TestFetchPage_Success_ReturnsBody(t *testing.T) {
	t.Parallel()
	server := startTestServer("<html><body>Test Page</body></html>", http.StatusOK, "text/html; charset=utf-8", 0)
	defer server.Close()

	page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/html; charset=utf-8", page.ContentType)
	assert.Equal(t, "<html><body>Test Page</body></html>", page.Body)
}

func TestFetchPage_AcceptsXHTML(t *testing.T) {
	t.Parallel()
	server := startTestServer("<html/>", http.StatusOK, "application/xhtml+xml", 0)
	defer server.Close()

	page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html/>", page.Body)
}

func TestFetchPage_NonHTMLBodyIsDropped(t *testing.T) {
	t.Parallel()
	server := startTestServer("body{color:red}", http.StatusOK, "text/css", 0)
	defer server.Close()

	page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/css", page.ContentType)
	assert.Empty(t, page.Body)
}

func TestFetchPage_DecodesDeclaredCharset(t *testing.T) {
	t.Parallel()
	// "café" in ISO-8859-1
	server := startTestServer("caf\xe9", http.StatusOK, "text/html; charset=iso-8859-1", 0)
	defer server.Close()

	page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "café", page.Body)
}

func TestFetchPage_ErrorStatusIsStillAPage(t *testing.T) {
	t.Parallel()
	server := startTestServer("<html>oops</html>", http.StatusInternalServerError, "text/html", 0)
	defer server.Close()

	page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, page.StatusCode)
	assert.Equal(t, "<html>oops</html>", page.Body)
}

func TestFetchPage_SendsUserAgentAndAccept(t *testing.T) {
	t.Parallel()
	headers := make(chan http.Header, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Clone()
	}))
	defer server.Close()

	_, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	got := <-headers
	assert.Equal(t, "TestBot/1.0", got.Get("User-Agent"))
	assert.Equal(t, acceptHeader, got.Get("Accept"))
	assert.Equal(t, acceptEncoding, got.Get("Accept-Encoding"))
}

func TestFetchPage_ReturnsError_Timeout(t *testing.T) {
	t.Parallel()
	server := startTestServer("<html><body>Test Page</body></html>", http.StatusOK, "text/html", 2000)
	defer server.Close()

	_, err := newTestFetcher(100*time.Millisecond).FetchPage(context.Background(), server.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context deadline exceeded")
}

func TestFetchPage_RespectsContextShutdown(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	server := startTestServer("<html><body>Test Page</body></html>", http.StatusOK, "text/html", 2000)
	defer server.Close()

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := newTestFetcher(0).FetchPage(ctx, server.URL)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context canceled")
}

func TestFetchPage_ReturnsError_InvalidURL(t *testing.T) {
	t.Parallel()
	_, err := newTestFetcher(time.Second).FetchPage(context.Background(), "http://invalid-url.invalid")
	assert.Error(t, err)
}

func TestFetchText_ReturnsError_Non2XXStatus(t *testing.T) {
	t.Parallel()
	server := startTestServer("", http.StatusNotFound, "", 0)
	defer server.Close()

	_, err := newTestFetcher(time.Second).FetchText(context.Background(), server.URL)
	var httpErr *httpError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Contains(t, err.Error(), "Not Found")
}

func TestFetchText_ReadsAnyContentType(t *testing.T) {
	t.Parallel()
	server := startTestServer("<urlset/>", http.StatusOK, "application/xml", 0)
	defer server.Close()

	body, err := newTestFetcher(time.Second).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<urlset/>", body)
}

func startEncodedServer(t *testing.T, encoding, contentType string, payload []byte) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		zw := gzip.NewWriter(&buf)
		_, err := zw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	case "br":
		bw := brotli.NewWriter(&buf)
		_, err := bw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, bw.Close())
	case "deflate":
		zw := zlib.NewWriter(&buf)
		_, err := zw.Write(payload)
		require.NoError(t, err)
		require.NoError(t, zw.Close())
	default:
		buf.Write(payload)
	}
	encoded := buf.Bytes()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Encoding", encoding)
		w.Write(encoded)
	}))
}

func TestFetchPage_DecodesContentEncoding(t *testing.T) {
	t.Parallel()
	for _, encoding := range []string{"gzip", "br", "deflate"} {
		t.Run(encoding, func(t *testing.T) {
			t.Parallel()
			server := startEncodedServer(t, encoding, "text/html", []byte("<p>compressed</p>"))
			defer server.Close()

			page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
			require.NoError(t, err)
			assert.Equal(t, "<p>compressed</p>", page.Body)
		})
	}
}

func TestFetchPage_DecodesRawDeflate(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write([]byte("<p>raw</p>"))
	require.NoError(t, err)
	require.NoError(t, fw.Close())

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "deflate")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<p>raw</p>", page.Body)
}

func TestFetchPage_UndecodableBodyKeepsStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("Content-Encoding", "gzip")
		w.Write([]byte("not gzip at all"))
	}))
	defer server.Close()

	page, err := newTestFetcher(time.Second).FetchPage(context.Background(), server.URL)
	assert.Error(t, err)
	require.NotNil(t, page)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Equal(t, "text/html", page.ContentType)
	assert.Empty(t, page.Body)
}

func TestFetchText_DecodesBrotli(t *testing.T) {
	t.Parallel()
	server := startEncodedServer(t, "br", "application/xml", []byte("<urlset/>"))
	defer server.Close()

	body, err := newTestFetcher(time.Second).FetchText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "<urlset/>", body)
}
