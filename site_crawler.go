package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/semaphore"
)

// ErrCrawlerReused is returned when Crawl is called a second time on the same SiteCrawler.
var ErrCrawlerReused = errors.New("site crawler already ran: create a new one per crawl")

// CrawlStats summarizes a finished crawl.
type CrawlStats struct {
	PagesFetched  int64
	FetchErrors   int64
	RobotsSkipped int64
	HostSkipped   int64
	LinksEnqueued int64
}

type crawlCounters struct {
	pagesFetched  atomic.Int64
	fetchErrors   atomic.Int64
	robotsSkipped atomic.Int64
	hostSkipped   atomic.Int64
	linksEnqueued atomic.Int64
}

// SiteCrawler runs one polite crawl: a fixed pool of workers pulls tasks from a
// shared frontier, checks host and robots policy, waits for the host's rate
// limiter and fetches under a global concurrency bound. A SiteCrawler holds the
// state of a single run and cannot be reused.
type SiteCrawler struct {
	Config    CrawlConfig
	Logger    Logger
	Robots    *RobotsCache
	Limiters  *HostLimiters
	Fetcher   *PageFetcher
	Recorders []EventRecorder

	frontier *frontier
	slots    *semaphore.Weighted
	counters crawlCounters
	started  atomic.Bool
	now      func() time.Time

	recordMu  sync.Mutex
	recordErr error
}

// NewSiteCrawler creates a crawler for cfg. Every fetch goes through client.
func NewSiteCrawler(cfg CrawlConfig, logger Logger, client *http.Client, recorders ...EventRecorder) *SiteCrawler {
	return &SiteCrawler{
		Config:    cfg,
		Logger:    logger,
		Robots:    NewRobotsCache(client, cfg.UserAgent, logger),
		Limiters:  NewHostLimiters(cfg.PerHostQPS, cfg.Delay),
		Fetcher:   NewPageFetcher(client, cfg.UserAgent, cfg.RequestTimeout),
		Recorders: recorders,
		frontier:  newFrontier(cfg.MaxPages),
		slots:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		now:       time.Now,
	}
}

// Crawl runs until the frontier drains, max pages is reached or ctx is
// cancelled, and returns the visited URLs sorted. Cancelling ctx returns the
// URLs visited so far together with the context error.
func (sc *SiteCrawler) Crawl(ctx context.Context) ([]string, error) {
	if !sc.started.CompareAndSwap(false, true) {
		return nil, ErrCrawlerReused
	}
	if sc.Config.HTMLCacheDir != "" {
		if err := os.MkdirAll(sc.Config.HTMLCacheDir, 0o755); err != nil {
			return nil, fmt.Errorf("create html cache directory: %w", err)
		}
	}

	stop := context.AfterFunc(ctx, sc.frontier.close)
	defer stop()

	seeds := sc.seedTasks()
	sc.Logger.Debug("Starting crawl with %d seed(s)", len(seeds))

	if sc.Config.RespectRobots {
		if err := sc.Robots.Prefetch(ctx, lo.Map(seeds, func(t FrontierTask, _ int) string { return t.URL })); err != nil {
			sc.Logger.Warn("robots.txt prefetch interrupted: %v", err)
		}
	}
	for _, seed := range seeds {
		sc.frontier.push(seed)
	}
	if sc.Config.SeedSitemaps {
		sc.CrawlFromSiteMap(ctx, seeds)
	}

	var wg sync.WaitGroup
	sc.startCrawlWorkers(ctx, &wg)
	wg.Wait()

	urls := sc.frontier.visitedURLs()
	sc.Logger.Debug("Crawl complete: %d page(s) visited", len(urls))
	if err := ctx.Err(); err != nil {
		return urls, err
	}
	return urls, sc.recordError()
}

// Stats returns the counters collected so far.
func (sc *SiteCrawler) Stats() CrawlStats {
	return CrawlStats{
		PagesFetched:  sc.counters.pagesFetched.Load(),
		FetchErrors:   sc.counters.fetchErrors.Load(),
		RobotsSkipped: sc.counters.robotsSkipped.Load(),
		HostSkipped:   sc.counters.hostSkipped.Load(),
		LinksEnqueued: sc.counters.linksEnqueued.Load(),
	}
}

// seedTasks normalizes the configured start URLs, dropping invalid ones and duplicates.
func (sc *SiteCrawler) seedTasks() []FrontierTask {
	var seeds []string
	for _, raw := range sc.Config.StartURLs {
		raw = strings.TrimSpace(raw)
		normalized, ok := NormalizeURL(raw, raw)
		if !ok {
			sc.Logger.Warn("Skipping invalid start URL: %s", raw)
			continue
		}
		seeds = append(seeds, normalized)
	}
	return lo.Map(lo.Uniq(seeds), func(u string, _ int) FrontierTask {
		return FrontierTask{URL: u}
	})
}

// startCrawlWorkers starts a pool of workers that will process tasks from the frontier.
func (sc *SiteCrawler) startCrawlWorkers(ctx context.Context, wg *sync.WaitGroup) {
	for i := 0; i < sc.Config.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				task, ok := sc.frontier.next()
				if !ok {
					return
				}
				sc.CrawlPage(ctx, task)
				sc.frontier.done()
			}
		}()
	}
}

// CrawlPage applies host and robots policy to task, fetches it, records the
// outcome and enqueues the links it discovers.
func (sc *SiteCrawler) CrawlPage(ctx context.Context, task FrontierTask) {
	if sc.frontier.isVisited(task.URL) {
		sc.Logger.Debug("URL already crawled: %s", task.URL)
		return
	}
	if !URLHostAllowed(task.URL, sc.Config.AllowHosts) {
		sc.counters.hostSkipped.Add(1)
		sc.Logger.Debug("URL host not allowed, skipping: %s", task.URL)
		return
	}
	if sc.Config.RespectRobots && !sc.Robots.Allowed(ctx, task.URL) {
		sc.counters.robotsSkipped.Add(1)
		sc.Logger.Debug("URL not allowed by robots.txt: %s", task.URL)
		return
	}
	if !sc.frontier.reserve() {
		return
	}

	sc.Logger.Debug("Crawling page: %s", task.URL)
	page, err := sc.fetch(ctx, task.URL)
	sc.frontier.markVisited(task.URL)
	sc.recordEvent(task, page)
	if err != nil {
		sc.counters.fetchErrors.Add(1)
		sc.Logger.Warn("Failed to fetch page %s: %v", task.URL, err)
		return
	}
	sc.counters.pagesFetched.Add(1)

	if page.StatusCode >= 400 || page.Body == "" {
		return
	}
	sc.cacheHTML(page)

	links, err := ExtractLinks(page.Body, task.URL)
	if err != nil {
		sc.Logger.Warn("Failed to extract links from page %s: %v", task.URL, err)
		return
	}
	for _, link := range FrontierLinks(links, sc.Config.IncludeAssets) {
		sc.AddURLToCrawlQueue(FrontierTask{URL: link, Depth: task.Depth + 1, Referrer: task.URL})
	}
}

// AddURLToCrawlQueue enqueues task if its host is allowed, its depth is within
// the limit and the URL was never enqueued before.
func (sc *SiteCrawler) AddURLToCrawlQueue(task FrontierTask) bool {
	if !URLHostAllowed(task.URL, sc.Config.AllowHosts) {
		return false
	}
	if sc.Config.MaxDepth != nil && task.Depth > *sc.Config.MaxDepth {
		return false
	}
	if !sc.frontier.push(task) {
		return false
	}
	sc.counters.linksEnqueued.Add(1)
	return true
}

// fetch waits for a global slot and the host's limiter, then performs the GET.
func (sc *SiteCrawler) fetch(ctx context.Context, pageURL string) (*Page, error) {
	if err := sc.slots.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer sc.slots.Release(1)

	if err := sc.Limiters.Wait(ctx, hostKey(pageURL)); err != nil {
		return nil, err
	}
	return sc.Fetcher.FetchPage(ctx, pageURL)
}

func (sc *SiteCrawler) recordEvent(task FrontierTask, page *Page) {
	if len(sc.Recorders) == 0 {
		return
	}
	event := CrawlEvent{
		URL:          task.URL,
		Referrer:     task.Referrer,
		Depth:        task.Depth,
		DiscoveredAt: sc.now(),
	}
	if page != nil {
		event.Status = page.StatusCode
		event.ContentType = page.ContentType
	}
	for _, recorder := range sc.Recorders {
		if err := recorder.Record(event); err != nil {
			sc.Logger.Error("Failed to record crawl event for %s: %v", task.URL, err)
			sc.recordMu.Lock()
			if sc.recordErr == nil {
				sc.recordErr = err
			}
			sc.recordMu.Unlock()
		}
	}
}

func (sc *SiteCrawler) recordError() error {
	sc.recordMu.Lock()
	defer sc.recordMu.Unlock()
	if sc.recordErr != nil {
		return fmt.Errorf("record crawl events: %w", sc.recordErr)
	}
	return nil
}

func (sc *SiteCrawler) cacheHTML(page *Page) {
	if sc.Config.HTMLCacheDir == "" {
		return
	}
	path := filepath.Join(sc.Config.HTMLCacheDir, cacheFileName(page.URL))
	if err := os.WriteFile(path, []byte(page.Body), 0o644); err != nil {
		sc.Logger.Warn("Failed to cache page %s: %v", page.URL, err)
	}
}

// CrawlFromSiteMap enqueues the pages listed in the sitemaps of each seed host.
// Sitemaps come from the host's robots.txt Sitemap: lines, falling back to
// /sitemap.xml. Failures are logged and otherwise ignored.
func (sc *SiteCrawler) CrawlFromSiteMap(ctx context.Context, seeds []FrontierTask) {
	hosts := lo.UniqBy(seeds, func(t FrontierTask) string { return hostKey(t.URL) })
	for _, seed := range hosts {
		u, err := url.Parse(seed.URL)
		if err != nil {
			continue
		}
		var sitemaps []string
		if sc.Config.RespectRobots {
			sitemaps = sc.Robots.SitemapHints(ctx, u.Scheme, u.Host)
		}
		if len(sitemaps) == 0 {
			sitemaps = []string{u.Scheme + "://" + u.Host + "/sitemap.xml"}
		}
		added := 0
		for _, sitemapURL := range sitemaps {
			added += sc.enqueueSitemap(ctx, sitemapURL, 1)
		}
		sc.Logger.Debug("Enqueued %d URL(s) from sitemaps of %s", added, u.Host)
	}
}

// enqueueSitemap fetches one sitemap and enqueues its pages at depth 0. Child
// sitemaps of an index are followed while nesting allows.
func (sc *SiteCrawler) enqueueSitemap(ctx context.Context, sitemapURL string, nesting int) int {
	if err := sc.Limiters.Wait(ctx, hostKey(sitemapURL)); err != nil {
		return 0
	}
	body, err := sc.Fetcher.FetchText(ctx, sitemapURL)
	if err != nil {
		sc.Logger.Warn("Failed to fetch sitemap %s: %v", sitemapURL, err)
		return 0
	}
	pages, children, err := ParseSitemap(body)
	if err != nil {
		sc.Logger.Warn("Failed to parse sitemap %s: %v", sitemapURL, err)
		return 0
	}

	added := 0
	for _, loc := range pages {
		normalized, ok := NormalizeURL(sitemapURL, loc)
		if !ok {
			sc.Logger.Debug("Skipping invalid URL in sitemap: %s", loc)
			continue
		}
		if sc.AddURLToCrawlQueue(FrontierTask{URL: normalized, Referrer: sitemapURL}) {
			added++
		}
	}
	if nesting > 0 {
		for _, child := range children {
			if normalized, ok := NormalizeURL(sitemapURL, child); ok {
				added += sc.enqueueSitemap(ctx, normalized, nesting-1)
			}
		}
	}
	return added
}
