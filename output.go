package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// HarvestResult is the work product of one Harvest run.
type HarvestResult struct {
	URLs         []string
	SitemapFiles []string
	Stats        CrawlStats
}

// Harvest validates cfg, crawls, and writes every configured output. Output
// failures abort the run; per-page failures only show up in the stats and the
// event log.
func Harvest(ctx context.Context, cfg CrawlConfig, logger Logger) (*HarvestResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	recorders, err := openRecorders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	crawler := NewSiteCrawler(cfg, logger, newHTTPClient(cfg), recorders...)
	urls, crawlErr := crawler.Crawl(ctx)
	if err := errors.Join(crawlErr, closeRecorders(recorders)); err != nil {
		return nil, err
	}

	result := &HarvestResult{URLs: urls, Stats: crawler.Stats()}
	if err := WriteURLList(cfg.OutPath, urls); err != nil {
		return nil, err
	}
	if cfg.ExportJSONPath != "" {
		if err := WriteURLJSON(cfg.ExportJSONPath, urls); err != nil {
			return nil, err
		}
	}
	if cfg.SitemapOut != "" {
		opts := SitemapOptions{MaxURLs: cfg.SitemapMaxURLs, Gzip: cfg.SitemapGzip}
		if cfg.SitemapBaseURL != "" {
			opts.LocForPart = BaseURLLocator(cfg.SitemapBaseURL)
		}
		files, err := WriteSitemapAuto(urls, cfg.SitemapOut, opts)
		if err != nil {
			return nil, err
		}
		result.SitemapFiles = files
	}

	logger.Info("Crawl finished: %d pages fetched, %d failed, %d blocked by robots.txt",
		result.Stats.PagesFetched, result.Stats.FetchErrors, result.Stats.RobotsSkipped)
	return result, nil
}

func openRecorders(ctx context.Context, cfg CrawlConfig) ([]EventRecorder, error) {
	var recorders []EventRecorder
	if cfg.DetailsPath != "" {
		csvLog, err := OpenCSVEventLog(cfg.DetailsPath)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, csvLog)
	}
	if cfg.EventsDBPath != "" {
		store, err := OpenSQLiteEventStore(ctx, cfg.EventsDBPath)
		if err != nil {
			return nil, errors.Join(err, closeRecorders(recorders))
		}
		recorders = append(recorders, store)
	}
	return recorders, nil
}

func closeRecorders(recorders []EventRecorder) error {
	var errs []error
	for _, recorder := range recorders {
		errs = append(errs, recorder.Close())
	}
	return errors.Join(errs...)
}

// newHTTPClient builds the client shared by every worker. Per-request timeouts
// are applied by the fetchers through the request context.
func newHTTPClient(cfg CrawlConfig) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = cfg.Concurrency
	return &http.Client{Transport: transport}
}

// WriteURLList writes one URL per line, creating parent directories as needed.
func WriteURLList(path string, urls []string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(strings.Join(urls, "\n")), 0o644); err != nil {
		return fmt.Errorf("write url list: %w", err)
	}
	return nil
}

// WriteURLJSON writes {"urls": [...]} pretty-printed.
func WriteURLJSON(path string, urls []string) error {
	if urls == nil {
		urls = []string{}
	}
	if err := ensureParentDir(path); err != nil {
		return err
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json export: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(struct {
		URLs []string `json:"urls"`
	}{URLs: urls}); err != nil {
		_ = file.Close()
		return fmt.Errorf("write json export: %w", err)
	}
	return file.Close()
}

func ensureParentDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	return nil
}
