package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() CrawlConfig {
	cfg := DefaultConfig()
	cfg.StartURLs = []string{"https://example.com/"}
	cfg.OutPath = "urls.txt"
	return cfg
}

func TestDefaultConfig_Values(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()

	assert.Equal(t, 5000, cfg.MaxPages)
	assert.Equal(t, 20, cfg.Concurrency)
	assert.Equal(t, 2.0, cfg.PerHostQPS)
	assert.Equal(t, 250*time.Millisecond, cfg.Delay)
	assert.Equal(t, 30*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.RespectRobots)
	assert.False(t, cfg.IncludeAssets)
	assert.Equal(t, 50000, cfg.SitemapMaxURLs)
	assert.Nil(t, cfg.MaxDepth)
	assert.Equal(t, defaultUserAgent, cfg.UserAgent)
}

func TestCrawlConfig_Validate(t *testing.T) {
	t.Parallel()
	negative := -1
	tests := []struct {
		name   string
		mutate func(*CrawlConfig)
		want   error
	}{
		{"valid", func(*CrawlConfig) {}, nil},
		{"no seeds", func(c *CrawlConfig) { c.StartURLs = nil }, ErrNoStartURLs},
		{"no output", func(c *CrawlConfig) { c.OutPath = "" }, ErrNoOutputPath},
		{"zero max pages", func(c *CrawlConfig) { c.MaxPages = 0 }, ErrInvalidMaxPages},
		{"negative depth", func(c *CrawlConfig) { c.MaxDepth = &negative }, ErrInvalidMaxDepth},
		{"zero concurrency", func(c *CrawlConfig) { c.Concurrency = 0 }, ErrInvalidConcurrency},
		{"negative qps", func(c *CrawlConfig) { c.PerHostQPS = -0.5 }, ErrInvalidQPS},
		{"negative delay", func(c *CrawlConfig) { c.Delay = -time.Second }, ErrInvalidDelay},
		{"zero timeout", func(c *CrawlConfig) { c.RequestTimeout = 0 }, ErrInvalidTimeout},
		{"sitemap limit too large", func(c *CrawlConfig) { c.SitemapMaxURLs = 50001 }, ErrInvalidSitemapMaxURLs},
		{"sitemap limit zero", func(c *CrawlConfig) { c.SitemapMaxURLs = 0 }, ErrInvalidSitemapMaxURLs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)
		})
	}
}

func TestLoadConfigFile_OverridesDefaults(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
start_urls:
  - https://example.com/
allow_hosts: [example.com]
max_pages: 10
max_depth: 2
delay: 1s
request_timeout: 5s
sitemap_gzip: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/"}, cfg.StartURLs)
	assert.Equal(t, []string{"example.com"}, cfg.AllowHosts)
	assert.Equal(t, 10, cfg.MaxPages)
	require.NotNil(t, cfg.MaxDepth)
	assert.Equal(t, 2, *cfg.MaxDepth)
	assert.Equal(t, time.Second, cfg.Delay)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	assert.True(t, cfg.SitemapGzip)
	// untouched keys keep their defaults
	assert.Equal(t, 20, cfg.Concurrency)
	assert.True(t, cfg.RespectRobots)
}

func TestLoadConfigFile_Missing(t *testing.T) {
	t.Parallel()
	_, err := LoadConfigFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorIs(t, err, ErrConfigNotFound)
}

func TestLoadConfigFile_InvalidYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_pages: [unterminated"), 0o644))

	_, err := LoadConfigFile(path)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConfigNotFound)
}

func TestFindConfigFile_ExplicitPath(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "explicit.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	assert.Equal(t, path, FindConfigFile(path))
	assert.Empty(t, FindConfigFile(filepath.Join(t.TempDir(), "nope.yaml")))
}
