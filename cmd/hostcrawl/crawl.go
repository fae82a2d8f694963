package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/hostcrawl/internal/config"
	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/database"
	"github.com/nao1215/hostcrawl/internal/model"
	"github.com/nao1215/hostcrawl/internal/pipeline"
	"github.com/nao1215/hostcrawl/internal/report"
	"github.com/nao1215/hostcrawl/internal/sink"
	"github.com/nao1215/hostcrawl/internal/tor"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>...",
		Short: "Crawl one or more websites breadth-first",
		Long: `Crawl downloads each seed URL, then every page it links to, layer by
layer, until --depth layers have been downloaded.

Downloads run on a pool of workers, but at most --per-host of them talk to
the same host at once; the rest wait in a per-host queue. Link extraction
runs on its own pool so parsing never holds a download slot.

Pages that fail to download are recorded and the crawl carries on. Press
Ctrl+C to stop early: the partial result is still reported and archived.

Examples:
  # Crawl a site three layers deep
  hostcrawl crawl https://example.com

  # Stay on the seed's registrable domain, two downloads per host
  hostcrawl crawl --same-site --per-host 2 https://example.com

  # Only follow links to these hosts
  hostcrawl crawl --allow-host example.com --allow-host docs.example.com https://example.com

  # Crawl an onion service through an embedded Tor daemon
  hostcrawl crawl --tor http://<address>.onion

  # Archive the crawl and print a Markdown report
  hostcrawl crawl --save --markdown -o report.md https://example.com`,
		Args: cobra.ArbitraryArgs,
		RunE: runCrawlCmd,
	}

	// Crawl shape
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Number of layers to download (1 downloads only the seed)")
	cmd.Flags().Int("downloaders", config.DefaultDownloaders,
		"Number of download workers")
	cmd.Flags().Int("extractors", config.DefaultExtractors,
		"Number of link extraction workers")
	cmd.Flags().Int("per-host", config.DefaultPerHost,
		"Maximum simultaneous downloads per host")
	cmd.Flags().StringSlice("allow-host", nil,
		"Only crawl these hosts (repeatable)")
	cmd.Flags().Bool("same-site", false,
		"Only crawl hosts under the seed's registrable domain")

	// HTTP behaviour
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request (default 2m when using --tor or --proxy)")
	cmd.Flags().Duration("delay", config.DefaultCrawlDelay,
		"Minimum interval between requests to the same host")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().Int64("max-body", config.DefaultMaxBodySize,
		"Maximum response body size in bytes")

	// Proxy
	cmd.Flags().String("proxy", "",
		"Route requests through a SOCKS5 proxy (e.g. 127.0.0.1:9050)")
	cmd.Flags().Bool("tor", false,
		"Start an embedded Tor daemon and route requests through it")
	cmd.Flags().Duration("tor-startup-timeout", config.DefaultTorStartupTimeout,
		"Timeout for embedded Tor startup")

	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of seeds crawled concurrently")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .hostcrawl in current or home directory)")

	// Report
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	// Sinks
	cmd.Flags().Bool("save", false,
		"Archive the crawl in the local SQLite database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl archive")
	cmd.Flags().StringSlice("kafka-brokers", nil,
		"Publish page events to these Kafka brokers")
	cmd.Flags().String("kafka-topic", config.DefaultKafkaTopic,
		"Kafka topic for page events")
	cmd.Flags().String("redis-addr", "",
		"Track crawl status in Redis at this address")
	cmd.Flags().String("neo4j-uri", "",
		"Write the link graph to Neo4j at this URI (e.g. neo4j://localhost:7687)")
	cmd.Flags().String("neo4j-user", "neo4j",
		"Neo4j user name")
	cmd.Flags().String("neo4j-password", "",
		"Neo4j password")

	return cmd
}

func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg.Verbose, cfg.JSONLogs)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, stopping crawl...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from cobra command flags and the
// configuration file.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	if cfg.Depth, err = flags.GetInt("depth"); err != nil {
		return nil, err
	}
	if cfg.Downloaders, err = flags.GetInt("downloaders"); err != nil {
		return nil, err
	}
	if cfg.Extractors, err = flags.GetInt("extractors"); err != nil {
		return nil, err
	}
	if cfg.PerHost, err = flags.GetInt("per-host"); err != nil {
		return nil, err
	}
	if cfg.AllowedHosts, err = flags.GetStringSlice("allow-host"); err != nil {
		return nil, err
	}
	if cfg.SameSite, err = flags.GetBool("same-site"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.CrawlDelay, err = flags.GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.MaxBodySize, err = flags.GetInt64("max-body"); err != nil {
		return nil, err
	}
	if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
		return nil, err
	}
	if cfg.UseTor, err = flags.GetBool("tor"); err != nil {
		return nil, err
	}
	if cfg.TorStartupTimeout, err = flags.GetDuration("tor-startup-timeout"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.SaveToDB, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.KafkaBrokers, err = flags.GetStringSlice("kafka-brokers"); err != nil {
		return nil, err
	}
	if cfg.KafkaTopic, err = flags.GetString("kafka-topic"); err != nil {
		return nil, err
	}
	if cfg.RedisAddr, err = flags.GetString("redis-addr"); err != nil {
		return nil, err
	}
	if cfg.Neo4jURI, err = flags.GetString("neo4j-uri"); err != nil {
		return nil, err
	}
	if cfg.Neo4jUser, err = flags.GetString("neo4j-user"); err != nil {
		return nil, err
	}
	if cfg.Neo4jPassword, err = flags.GetString("neo4j-password"); err != nil {
		return nil, err
	}

	cfg.Verbose = getBoolFlag(cmd, "verbose")
	cfg.JSONLogs = getBoolFlag(cmd, "json-logs")

	// Every request through Tor crosses several relays.
	if (cfg.UseTor || cfg.ProxyAddress != "") && !flags.Changed("timeout") {
		cfg.Timeout = config.DefaultTorTimeout
	}

	// An explicit config file must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.SiteConfigs, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	default:
		cfg.SiteConfigs = &config.File{Sites: make(map[string]config.SiteConfig)}
	}

	cfg.Targets = make([]string, 0, len(args))
	for _, arg := range args {
		target, err := normalizeTarget(arg)
		if err != nil {
			return nil, err
		}
		cfg.Targets = append(cfg.Targets, target)
	}
	return cfg, nil
}

// normalizeTarget turns a command-line seed into an absolute http(s) URL.
// A bare host such as "example.com/docs" gets an http:// scheme.
func normalizeTarget(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", fmt.Errorf("invalid target %q: empty", raw)
	}
	if !strings.Contains(target, "://") {
		target = "http://" + target
	}

	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid target %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid target %q: unsupported scheme %q", raw, u.Scheme)
	}
	if _, err := crawler.HostOf(target); err != nil {
		return "", fmt.Errorf("invalid target %q: %w", raw, err)
	}
	return u.String(), nil
}

// checkOnionTargets rejects onion seeds when no proxy is configured; they
// cannot be resolved over a direct connection.
func checkOnionTargets(cfg *config.Config) error {
	if cfg.UseTor || cfg.ProxyAddress != "" {
		return nil
	}
	for _, target := range cfg.Targets {
		host, err := crawler.HostOf(target)
		if err == nil && tor.IsOnionHost(host) {
			return fmt.Errorf("%s is an onion service: use --tor or --proxy", target)
		}
	}
	return nil
}

// runCrawl crawls every target and writes one report per seed. It returns
// an error when the run was interrupted or any seed's crawl did not
// complete; pages that merely failed to download are not errors.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	if err := checkOnionTargets(cfg); err != nil {
		return err
	}

	logger.Info("starting crawl",
		"targets", len(cfg.Targets),
		"depth", cfg.Depth,
		"perHost", cfg.PerHost,
		"batchSize", cfg.BatchSize,
	)

	sinks, closeSinks, err := openSinks(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSinks()

	client, stopProxy, err := newCrawlClient(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer stopProxy()

	c, err := crawler.New(newSiteFetcher(client, cfg),
		crawler.WithDownloaders(cfg.Downloaders),
		crawler.WithExtractors(cfg.Extractors),
		crawler.WithPerHost(cfg.PerHost),
		crawler.WithShutdownTimeout(cfg.ShutdownTimeout),
		crawler.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("failed to create crawler: %w", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			logger.Warn("crawler did not shut down cleanly", "error", err)
		}
	}()

	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeOutput(); err != nil {
			logger.Error("failed to close report file", "error", err)
		}
	}()
	writer := newReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(
		func(seed string) *pipeline.Pipeline {
			return pipeline.DefaultPipeline(c, sinks,
				crawlStepOptions(cfg, siteOf(cfg, seed), logger),
				pipeline.WithLogger(logger),
			)
		},
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
		pipeline.WithReportFactory(func(seed string) *model.CrawlReport {
			return model.NewCrawlReport(seed, seedDepth(cfg, seed))
		}),
	)

	fmt.Fprintf(stderr, "Crawling %d target(s) (depth %d, %d per host)...\n",
		len(cfg.Targets), cfg.Depth, cfg.PerHost)
	startTime := time.Now()

	var (
		mu         sync.Mutex
		done       int
		incomplete int
	)
	batchErr := bp.ProcessBatchWithCallback(ctx, cfg.Targets, func(rep *model.CrawlReport, _ int) {
		mu.Lock()
		defer mu.Unlock()

		done++
		if rep.Error != "" {
			incomplete++
		}
		fmt.Fprintf(stderr, "[%d/%d] %s: %d downloaded, %d failed\n",
			done, len(cfg.Targets), rep.SeedURL, len(rep.Downloaded), len(rep.Failures))

		if _, err := writer.Write(rep); err != nil {
			logger.Error("report failed", "seed", rep.SeedURL, "error", err)
		}
	})

	fmt.Fprintf(stderr, "Crawl finished in %s\n", time.Since(startTime).Round(time.Millisecond))

	switch {
	case batchErr != nil:
		return fmt.Errorf("crawl interrupted: %w", batchErr)
	case incomplete > 0:
		return fmt.Errorf("%d of %d crawls did not complete", incomplete, len(cfg.Targets))
	default:
		return nil
	}
}

// siteOf returns the site configuration of a seed's host.
func siteOf(cfg *config.Config, seed string) config.SiteConfig {
	host, err := crawler.HostOf(seed)
	if err != nil {
		return cfg.SiteFor("")
	}
	return cfg.SiteFor(host)
}

// seedDepth returns the site's depth override, or the global depth.
func seedDepth(cfg *config.Config, seed string) int {
	if site := siteOf(cfg, seed); site.Depth > 0 {
		return site.Depth
	}
	return cfg.Depth
}

// crawlStepOptions picks the host filter for a seed. Flags win over the
// site's allowedHosts.
func crawlStepOptions(cfg *config.Config, site config.SiteConfig, logger *slog.Logger) []pipeline.CrawlStepOption {
	opts := []pipeline.CrawlStepOption{pipeline.WithCrawlLogger(logger)}
	switch {
	case cfg.SameSite:
		opts = append(opts, pipeline.WithSameSite(true))
	case len(cfg.AllowedHosts) > 0:
		opts = append(opts, pipeline.WithAllowedHosts(cfg.AllowedHosts))
	case len(site.AllowedHosts) > 0:
		opts = append(opts, pipeline.WithAllowedHosts(site.AllowedHosts))
	}
	return opts
}

// openSinks opens every configured result destination. The returned
// function closes them all.
func openSinks(cfg *config.Config, logger *slog.Logger) (pipeline.Sinks, func(), error) {
	var (
		sinks   pipeline.Sinks
		closers []func() error
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				logger.Warn("failed to close sink", "error", err)
			}
		}
	}

	if cfg.SaveToDB {
		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return pipeline.Sinks{}, nil, fmt.Errorf("failed to open database: %w", err)
		}
		closers = append(closers, db.Close)
		sinks.Archive = db
		logger.Info("database opened", "path", db.Path())
	}

	if cfg.RedisAddr != "" {
		store := sink.NewRedisStatusStore(cfg.RedisAddr, sink.DefaultStatusPrefix, cfg.RedisTTL)
		closers = append(closers, store.Close)
		sinks.Status = store
	}

	if len(cfg.KafkaBrokers) > 0 {
		publisher := sink.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, publisher.Close)
		sinks.Publish = publisher
	}

	if cfg.Neo4jURI != "" {
		graph, err := sink.NewGraphWriter(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword, logger)
		if err != nil {
			closeAll()
			return pipeline.Sinks{}, nil, fmt.Errorf("failed to connect to neo4j: %w", err)
		}
		closers = append(closers, func() error {
			return graph.Close(context.Background())
		})
		sinks.Graph = graph
	}

	return sinks, closeAll, nil
}

// newCrawlClient returns the HTTP client for the crawl: direct, through a
// SOCKS5 proxy, or through an embedded Tor daemon. The returned function
// releases the proxy, if any.
func newCrawlClient(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*http.Client, func(), error) {
	switch {
	case cfg.UseTor:
		client, embedded, err := startEmbeddedTor(ctx, cfg, logger, stderr)
		if err != nil {
			return nil, nil, err
		}
		stop := func() {
			logger.Info("stopping embedded Tor daemon")
			if err := embedded.Stop(); err != nil {
				logger.Error("failed to stop embedded Tor", "error", err)
			}
		}
		return client.NewHTTPClient(), stop, nil

	case cfg.ProxyAddress != "":
		client, err := tor.NewClient(cfg.ProxyAddress, cfg.Timeout)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create proxy client: %w", err)
		}
		if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
			return nil, nil, fmt.Errorf("proxy check failed: %s (make sure a SOCKS5 proxy is running at %s): %w",
				status, cfg.ProxyAddress, status.Err())
		}
		logger.Info("proxy connection verified", "address", cfg.ProxyAddress)
		return client.NewHTTPClient(), func() {}, nil

	default:
		return crawler.NewHTTPClient(cfg.Timeout), func() {}, nil
	}
}

// startEmbeddedTor starts an embedded Tor daemon and returns a verified
// client for its SOCKS port.
func startEmbeddedTor(ctx context.Context, cfg *config.Config, logger *slog.Logger, stderr io.Writer) (*tor.Client, *tor.EmbeddedTor, error) {
	fmt.Fprintln(stderr, "Starting embedded Tor daemon...")
	fmt.Fprintln(stderr, "This may take 1-3 minutes while Tor bootstraps.")

	embedded := tor.NewEmbeddedTor(tor.WithStartupTimeout(cfg.TorStartupTimeout))
	if err := embedded.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("failed to start embedded Tor: %w", err)
	}
	logger.Info("embedded Tor daemon started", "socksAddr", embedded.SocksAddr())

	client, err := embedded.NewClient(cfg.Timeout)
	if err != nil {
		_ = embedded.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("failed to create Tor client: %w", err)
	}
	if status := client.CheckConnection(ctx); status != tor.ProxyStatusOK {
		_ = embedded.Stop() //nolint:errcheck // best effort cleanup
		return nil, nil, fmt.Errorf("embedded Tor proxy check failed: %w", status.Err())
	}
	return client, embedded, nil
}

// openOutput returns the report destination: path when set, stdout
// otherwise. Report files are created with 0600 as crawls may include
// URLs carrying credentials.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" {
		return stdout, func() error { return nil }, nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(w, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

