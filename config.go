package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

const (
	appName           = "urlharvester"
	defaultConfigFile = ".urlharvester.yaml"
	defaultUserAgent  = "urlharvester/0.7 (+https://example.invalid)"
)

// Configuration validation errors, returned by CrawlConfig.Validate.
var (
	ErrNoStartURLs           = errors.New("no start urls: provide at least one seed url")
	ErrNoOutputPath          = errors.New("no output path specified")
	ErrInvalidMaxPages       = errors.New("invalid max pages: must be positive")
	ErrInvalidConcurrency    = errors.New("invalid concurrency: must be positive")
	ErrInvalidQPS            = errors.New("invalid per-host qps: must be non-negative")
	ErrInvalidDelay          = errors.New("invalid delay: must be non-negative")
	ErrInvalidTimeout        = errors.New("invalid request timeout: must be positive")
	ErrInvalidSitemapMaxURLs = errors.New("invalid sitemap max urls: must be between 1 and 50000")
	ErrInvalidMaxDepth       = errors.New("invalid max depth: must be non-negative")
)

// ErrConfigNotFound is returned when a configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// CrawlConfig holds every option the crawl engine recognizes.
type CrawlConfig struct {
	StartURLs  []string `yaml:"start_urls"`
	AllowHosts []string `yaml:"allow_hosts"`
	MaxPages   int      `yaml:"max_pages"`
	// MaxDepth is unbounded when nil.
	MaxDepth       *int          `yaml:"max_depth"`
	Concurrency    int           `yaml:"concurrency"`
	PerHostQPS     float64       `yaml:"per_host_qps"`
	Delay          time.Duration `yaml:"delay"`
	UserAgent      string        `yaml:"user_agent"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	RespectRobots  bool          `yaml:"respect_robots"`
	IncludeAssets  bool          `yaml:"include_assets"`
	SeedSitemaps   bool          `yaml:"seed_sitemaps"`

	OutPath        string `yaml:"out"`
	DetailsPath    string `yaml:"details"`
	EventsDBPath   string `yaml:"events_db"`
	HTMLCacheDir   string `yaml:"html_cache_dir"`
	ExportJSONPath string `yaml:"export_json"`

	SitemapOut     string `yaml:"sitemap_out"`
	SitemapMaxURLs int    `yaml:"sitemap_max_urls"`
	SitemapGzip    bool   `yaml:"sitemap_gzip"`
	SitemapBaseURL string `yaml:"sitemap_base_url"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() CrawlConfig {
	return CrawlConfig{
		MaxPages:       5000,
		Concurrency:    20,
		PerHostQPS:     2.0,
		Delay:          250 * time.Millisecond,
		UserAgent:      defaultUserAgent,
		RequestTimeout: 30 * time.Second,
		RespectRobots:  true,
		SitemapMaxURLs: maxSitemapURLs,
	}
}

// Validate checks the configuration and returns the first problem found.
func (c CrawlConfig) Validate() error {
	if len(c.StartURLs) == 0 {
		return ErrNoStartURLs
	}
	if c.OutPath == "" {
		return ErrNoOutputPath
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxDepth != nil && *c.MaxDepth < 0 {
		return ErrInvalidMaxDepth
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.PerHostQPS < 0 {
		return ErrInvalidQPS
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.SitemapMaxURLs <= 0 || c.SitemapMaxURLs > maxSitemapURLs {
		return ErrInvalidSitemapMaxURLs
	}
	return nil
}

// LoadConfigFile decodes the YAML file at path over DefaultConfig.
func LoadConfigFile(path string) (CrawlConfig, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path) //nolint:gosec // user-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, ErrConfigNotFound
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. configPath, when given
// 2. .urlharvester.yaml in the current directory
// 3. urlharvester/config.yaml under the XDG config home
//
// It returns an empty string when nothing is found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, defaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if xdgConfig, err := xdg.SearchConfigFile(filepath.Join(appName, "config.yaml")); err == nil {
		return xdgConfig
	}
	return ""
}
