package main

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
)

type PageReturn struct {
	HTML              string
	URL               string
	StatusCode        int
	ContentType       string
	DelayMilliseconds time.Duration
}

// testSite is an httptest server that also counts hits per path.
type testSite struct {
	*httptest.Server
	hits sync.Map
}

func (s *testSite) Hits(path string) int32 {
	counter, ok := s.hits.Load(path)
	if !ok {
		return 0
	}
	return counter.(*atomic.Int32).Load()
}

func (s *testSite) count(path string) {
	counter, _ := s.hits.LoadOrStore(path, &atomic.Int32{})
	counter.(*atomic.Int32).Add(1)
}

func startTestSite(pages []PageReturn) *testSite {
	site := &testSite{}
	handler := http.NewServeMux()

	lo.ForEach(pages, func(page PageReturn, _ int) {
		pattern := page.URL
		if pattern == "/" {
			pattern = "/{$}"
		}
		handler.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
			site.count(r.URL.Path)
			time.Sleep(page.DelayMilliseconds * time.Millisecond)
			if page.ContentType != "" {
				w.Header().Set("Content-Type", page.ContentType)
			}
			w.WriteHeader(page.StatusCode)
			w.Write([]byte(page.HTML))
		})
	})
	handler.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		site.count(r.URL.Path)
		http.NotFound(w, r)
	})
	site.Server = httptest.NewServer(handler)
	return site
}

func htmlPage(path, body string) PageReturn {
	return PageReturn{
		URL:         path,
		HTML:        body,
		StatusCode:  http.StatusOK,
		ContentType: "text/html; charset=utf-8",
	}
}
