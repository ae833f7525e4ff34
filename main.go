package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           appName,
		Short:         "Polite web crawler and URL harvester",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("log-format", logFormatText, "Log format: text (structured) or plain")

	cmd.AddCommand(NewCrawlCmd())
	cmd.AddCommand(NewExtractCmd())
	return cmd
}

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	defaults := DefaultConfig()
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl the web starting from seed URLs",
		Long: `Crawl fetches pages breadth-first from the seed URLs, honouring robots.txt
(RFC 9309) and a per-host request rate, and writes the sorted list of visited URLs.

Examples:
  urlharvester crawl --start https://example.com/ --allow example.com --out urls.txt

  urlharvester crawl --start https://example.com/ --out urls.txt \
    --sitemap-out public/sitemap.xml --sitemap-gzip \
    --sitemap-base-url https://example.com

Options may also come from a YAML file (--config, .urlharvester.yaml in the
current directory, or urlharvester/config.yaml under the XDG config home).
Flags given on the command line win over the file.`,
		Args: cobra.NoArgs,
		RunE: runCrawlCmd,
	}

	flags := cmd.Flags()
	flags.StringP("config", "c", "", "Configuration file path")
	flags.StringSlice("start", nil, "Seed URLs")
	flags.StringSlice("allow", nil, "Allowed domains (subdomains allowed)")
	flags.Int("max-pages", defaults.MaxPages, "Maximum number of pages to visit")
	flags.Int("depth", -1, "Maximum link depth (negative for unbounded)")
	flags.Int("concurrency", defaults.Concurrency, "Maximum concurrent requests")
	flags.Float64("per-host-qps", defaults.PerHostQPS, "Requests per second per host (0 disables pacing)")
	flags.Duration("delay", defaults.Delay, "Fixed delay after every rate-limited slot")
	flags.Duration("request-timeout", defaults.RequestTimeout, "Timeout for each request")
	flags.String("user-agent", defaults.UserAgent, "User-Agent header and robots.txt agent")
	flags.Bool("respect-robots", defaults.RespectRobots, "Honour robots.txt rules")
	flags.Bool("include-assets", defaults.IncludeAssets, "Follow non-HTML assets too")
	flags.Bool("seed-sitemaps", false, "Also enqueue the URLs listed in each seed host's sitemaps")
	flags.StringP("out", "o", "", "Write the discovered URL list here")
	flags.String("details-out", "", "CSV of crawl events")
	flags.String("events-db", "", "SQLite database of crawl events")
	flags.String("cache-html", "", "Directory to cache fetched HTML")
	flags.String("export-json", "", "Write a JSON dump of the URLs")
	flags.String("sitemap-out", "", "Path to sitemap.xml or sitemap index")
	flags.Int("sitemap-max-urls", defaults.SitemapMaxURLs, "Maximum URLs per sitemap file")
	flags.Bool("sitemap-gzip", false, "Gzip sitemap files")
	flags.String("sitemap-base-url", "", "Public URL of the sitemap directory, used in the index")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildCrawlConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger, err := newCommandLogger(cmd)
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := Harvest(ctx, cfg, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d URLs to %s\n", len(result.URLs), cfg.OutPath)
	return nil
}

// buildCrawlConfig layers explicitly set flags over the config file, if any,
// which in turn is layered over DefaultConfig.
func buildCrawlConfig(cmd *cobra.Command) (CrawlConfig, error) {
	flags := cmd.Flags()
	cfg := DefaultConfig()

	configFlag, _ := flags.GetString("config")
	if path := FindConfigFile(configFlag); path != "" {
		loaded, err := LoadConfigFile(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else if configFlag != "" {
		return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, configFlag)
	}

	if flags.Changed("start") {
		cfg.StartURLs, _ = flags.GetStringSlice("start")
	}
	if flags.Changed("allow") {
		allow, _ := flags.GetStringSlice("allow")
		cfg.AllowHosts = lo.Map(allow, func(h string, _ int) string { return strings.ToLower(h) })
	}
	if flags.Changed("max-pages") {
		cfg.MaxPages, _ = flags.GetInt("max-pages")
	}
	if flags.Changed("depth") {
		depth, _ := flags.GetInt("depth")
		cfg.MaxDepth = nil
		if depth >= 0 {
			cfg.MaxDepth = &depth
		}
	}
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("per-host-qps") {
		cfg.PerHostQPS, _ = flags.GetFloat64("per-host-qps")
	}
	if flags.Changed("delay") {
		cfg.Delay, _ = flags.GetDuration("delay")
	}
	if flags.Changed("request-timeout") {
		cfg.RequestTimeout, _ = flags.GetDuration("request-timeout")
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent, _ = flags.GetString("user-agent")
	}
	if flags.Changed("respect-robots") {
		cfg.RespectRobots, _ = flags.GetBool("respect-robots")
	}
	if flags.Changed("include-assets") {
		cfg.IncludeAssets, _ = flags.GetBool("include-assets")
	}
	if flags.Changed("seed-sitemaps") {
		cfg.SeedSitemaps, _ = flags.GetBool("seed-sitemaps")
	}
	if flags.Changed("out") {
		cfg.OutPath, _ = flags.GetString("out")
	}
	if flags.Changed("details-out") {
		cfg.DetailsPath, _ = flags.GetString("details-out")
	}
	if flags.Changed("events-db") {
		cfg.EventsDBPath, _ = flags.GetString("events-db")
	}
	if flags.Changed("cache-html") {
		cfg.HTMLCacheDir, _ = flags.GetString("cache-html")
	}
	if flags.Changed("export-json") {
		cfg.ExportJSONPath, _ = flags.GetString("export-json")
	}
	if flags.Changed("sitemap-out") {
		cfg.SitemapOut, _ = flags.GetString("sitemap-out")
	}
	if flags.Changed("sitemap-max-urls") {
		cfg.SitemapMaxURLs, _ = flags.GetInt("sitemap-max-urls")
	}
	if flags.Changed("sitemap-gzip") {
		cfg.SitemapGzip, _ = flags.GetBool("sitemap-gzip")
	}
	if flags.Changed("sitemap-base-url") {
		cfg.SitemapBaseURL, _ = flags.GetString("sitemap-base-url")
	}
	return cfg, nil
}

// NewExtractCmd creates the extract command.
func NewExtractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract",
		Short: "Extract URLs from local files",
		Args:  cobra.NoArgs,
		RunE:  runExtractCmd,
	}
	cmd.Flags().StringSlice("path", nil, "Files or directories to scan")
	cmd.Flags().StringP("out", "o", "", "Write the URL list here")
	cmd.Flags().String("json-out", "", "Write a JSON dump of the URLs")
	_ = cmd.MarkFlagRequired("path")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

func runExtractCmd(cmd *cobra.Command, _ []string) error {
	paths, _ := cmd.Flags().GetStringSlice("path")
	out, _ := cmd.Flags().GetString("out")
	jsonOut, _ := cmd.Flags().GetString("json-out")

	logger, err := newCommandLogger(cmd)
	if err != nil {
		return err
	}
	logger.Debug("Scanning %s", strings.Join(paths, ", "))
	urls, err := ExtractFromFiles(paths)
	if err != nil {
		return err
	}
	logger.Info("Extracted %d URLs from %d paths", len(urls), len(paths))
	if err := WriteURLList(out, urls); err != nil {
		return err
	}
	if jsonOut != "" {
		if err := WriteURLJSON(jsonOut, urls); err != nil {
			return err
		}
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %d URLs to %s\n", len(urls), out)
	return nil
}

const (
	logFormatText  = "text"
	logFormatPlain = "plain"
)

// newCommandLogger picks the logger named by --log-format, writing to the
// command's stderr.
func newCommandLogger(cmd *cobra.Command) (Logger, error) {
	format, err := cmd.Flags().GetString("log-format")
	if err != nil {
		format, _ = cmd.Root().PersistentFlags().GetString("log-format")
	}
	verbose := getVerboseFlag(cmd)
	switch format {
	case "", logFormatText:
		return NewSlogLogger(cmd.ErrOrStderr(), verbose), nil
	case logFormatPlain:
		return NewPlainLogger(cmd.ErrOrStderr(), verbose), nil
	default:
		return nil, fmt.Errorf("unknown log format %q (want %s or %s)", format, logFormatText, logFormatPlain)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, _ = cmd.Root().PersistentFlags().GetBool("verbose")
	}
	return verbose
}
