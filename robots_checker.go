package main

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"github.com/temoto/robotstxt"
	"golang.org/x/sync/errgroup"
)

const (
	robotsFetchTimeout = 15 * time.Second
	robotsMaxBodySize  = 512 * 1024
)

// RobotsChecker is a struct that checks if a path is allowed by robots.txt rules
type RobotsChecker struct {
	robotsData *robotstxt.RobotsData
}

// LoadRobots loads the robots.txt content into the RobotsChecker
func (rc *RobotsChecker) LoadRobots(pageContent string) error {
	robots, err := robotstxt.FromString(pageContent)
	if err != nil {
		return err
	}
	rc.robotsData = robots
	return nil
}

// IsAllowed checks if a given path is allowed for a specific user agent
func (rc *RobotsChecker) IsAllowed(path, userAgent string) bool {
	return rc.robotsData.TestAgent(path, userAgent)
}

// Sitemaps returns the Sitemap: URLs declared in the robots.txt.
func (rc *RobotsChecker) Sitemaps() []string {
	return rc.robotsData.Sitemaps
}

// NewRobotsChecker creates a new RobotsChecker instance and loads the robots.txt content
func NewRobotsChecker(robotsTxt string) (*RobotsChecker, error) {
	rc := &RobotsChecker{}
	err := rc.LoadRobots(robotsTxt)
	if err != nil {
		return nil, err
	}
	return rc, nil
}

// RobotsMode is the resolved crawl permission for a host.
type RobotsMode int

const (
	// RobotsOK means a robots.txt was fetched and its rules apply.
	RobotsOK RobotsMode = iota
	// RobotsAllowAll means the robots.txt is unavailable (4xx): no restrictions.
	RobotsAllowAll
	// RobotsDisallowAll means the robots.txt is unreachable (5xx or network failure).
	RobotsDisallowAll
)

func (m RobotsMode) String() string {
	switch m {
	case RobotsOK:
		return "ok"
	case RobotsAllowAll:
		return "allow_all"
	case RobotsDisallowAll:
		return "disallow_all"
	default:
		return "unknown"
	}
}

// RobotsState is the cached, immutable robots policy of one host.
type RobotsState struct {
	Mode    RobotsMode
	Checker *RobotsChecker
}

type robotsEntry struct {
	once  sync.Once
	state RobotsState
}

// RobotsCache fetches robots.txt at most once per host and answers permission
// queries following RFC 9309: unavailable (4xx) allows everything, unreachable
// (5xx, timeout, connection error) disallows everything.
type RobotsCache struct {
	client    *http.Client
	userAgent string
	timeout   time.Duration
	logger    Logger

	mu      sync.Mutex
	entries map[string]*robotsEntry
}

// NewRobotsCache creates an empty cache that fetches through client.
func NewRobotsCache(client *http.Client, userAgent string, logger Logger) *RobotsCache {
	return &RobotsCache{
		client:    client,
		userAgent: userAgent,
		timeout:   robotsFetchTimeout,
		logger:    logger,
		entries:   make(map[string]*robotsEntry),
	}
}

// Allowed reports whether the user agent may fetch rawURL, loading the host's
// robots.txt first if it has not been resolved yet.
func (rc *RobotsCache) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	state := rc.Load(ctx, u.Scheme, u.Host)
	switch state.Mode {
	case RobotsAllowAll:
		return true
	case RobotsDisallowAll:
		return false
	default:
		return state.Checker.IsAllowed(u.RequestURI(), rc.userAgent)
	}
}

// Load resolves and caches the robots state for host. Concurrent callers for
// the same host share a single fetch.
func (rc *RobotsCache) Load(ctx context.Context, scheme, host string) RobotsState {
	if scheme == "" {
		scheme = "https"
	}
	host = strings.ToLower(host)

	rc.mu.Lock()
	entry, ok := rc.entries[host]
	if !ok {
		entry = &robotsEntry{}
		rc.entries[host] = entry
	}
	rc.mu.Unlock()

	entry.once.Do(func() {
		entry.state = rc.fetch(ctx, scheme, host)
		rc.logger.Debug("robots.txt for %s resolved as %s", host, entry.state.Mode)
	})
	return entry.state
}

// Prefetch warms the cache for the hosts of all given URLs concurrently.
func (rc *RobotsCache) Prefetch(ctx context.Context, urls []string) error {
	byHost := make(map[string]*url.URL)
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		if _, seen := byHost[strings.ToLower(u.Host)]; !seen {
			byHost[strings.ToLower(u.Host)] = u
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, host := range lo.Keys(byHost) {
		u := byHost[host]
		g.Go(func() error {
			rc.Load(gctx, u.Scheme, host)
			return nil
		})
	}
	return g.Wait()
}

// SitemapHints returns the Sitemap: entries of the host's robots.txt, if it was parsed.
func (rc *RobotsCache) SitemapHints(ctx context.Context, scheme, host string) []string {
	state := rc.Load(ctx, scheme, host)
	if state.Mode != RobotsOK {
		return nil
	}
	return state.Checker.Sitemaps()
}

func (rc *RobotsCache) fetch(ctx context.Context, scheme, host string) RobotsState {
	robotsURL := scheme + "://" + host + "/robots.txt"
	timeoutCtx, cancel := context.WithTimeout(ctx, rc.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, http.MethodGet, robotsURL, nil)
	if err != nil {
		rc.logger.Warn("Invalid robots.txt URL %s: %v", robotsURL, err)
		return RobotsState{Mode: RobotsDisallowAll}
	}
	if rc.userAgent != "" {
		req.Header.Set("User-Agent", rc.userAgent)
	}

	resp, err := rc.client.Do(req)
	if err != nil {
		rc.logger.Warn("robots.txt unreachable at %s, disallowing host: %v", robotsURL, err)
		return RobotsState{Mode: RobotsDisallowAll}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500 && resp.StatusCode <= 599:
		return RobotsState{Mode: RobotsDisallowAll}
	case resp.StatusCode >= 400 && resp.StatusCode <= 499:
		return RobotsState{Mode: RobotsAllowAll}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, robotsMaxBodySize))
	if err != nil {
		rc.logger.Warn("robots.txt read failed at %s, disallowing host: %v", robotsURL, err)
		return RobotsState{Mode: RobotsDisallowAll}
	}

	checker, err := NewRobotsChecker(string(body))
	if err != nil {
		rc.logger.Warn("robots.txt at %s could not be parsed, allowing host: %v", robotsURL, err)
		return RobotsState{Mode: RobotsAllowAll}
	}
	return RobotsState{Mode: RobotsOK, Checker: checker}
}
