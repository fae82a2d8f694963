package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Defaults used by New.
const (
	DefaultDownloaders     = 16
	DefaultExtractors      = 16
	DefaultPerHost         = 16
	DefaultShutdownTimeout = time.Second
)

// Crawler performs bounded-depth breadth-first crawls. A Crawler is safe for
// concurrent use; concurrent crawls share its worker pools and its per-host
// download caps.
type Crawler struct {
	fetcher         Fetcher
	downloaders     int
	extractors      int
	perHost         int
	shutdownTimeout time.Duration
	logger          *slog.Logger

	downloads *workerPool
	extracts  *workerPool
	throttle  *hostThrottle

	// ctx is cancelled by Close and parents every session.
	ctx       context.Context //nolint:containedctx // lifetime of the crawler
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithDownloaders sets the number of download workers.
func WithDownloaders(n int) Option {
	return func(c *Crawler) {
		c.downloaders = n
	}
}

// WithExtractors sets the number of link extraction workers.
func WithExtractors(n int) Option {
	return func(c *Crawler) {
		c.extractors = n
	}
}

// WithPerHost sets the maximum number of simultaneous downloads per host.
func WithPerHost(n int) Option {
	return func(c *Crawler) {
		c.perHost = n
	}
}

// WithLogger sets the logger. Nil keeps slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Crawler) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithShutdownTimeout bounds how long Close waits for running tasks.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Crawler) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// New creates a Crawler and starts its worker pools. Invalid worker counts
// are reported immediately.
func New(fetcher Fetcher, opts ...Option) (*Crawler, error) {
	if fetcher == nil {
		return nil, ErrNilFetcher
	}

	c := &Crawler{
		fetcher:         fetcher,
		downloaders:     DefaultDownloaders,
		extractors:      DefaultExtractors,
		perHost:         DefaultPerHost,
		shutdownTimeout: DefaultShutdownTimeout,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	switch {
	case c.downloaders <= 0:
		return nil, ErrInvalidDownloaders
	case c.extractors <= 0:
		return nil, ErrInvalidExtractors
	case c.perHost <= 0:
		return nil, ErrInvalidPerHost
	}

	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.throttle = newHostThrottle(c.perHost)
	c.downloads = newWorkerPool("download", c.downloaders, c.logger)
	c.extracts = newWorkerPool("extract", c.extractors, c.logger)
	return c, nil
}

// Request describes one crawl.
type Request struct {
	// URL is the seed.
	URL string

	// MaxDepth is the number of layers to download, at least 1.
	// Depth 1 downloads only the seed.
	MaxDepth int

	// Filter restricts crawled hosts. Nil accepts all hosts.
	// The seed is subject to the filter too.
	Filter HostFilter

	// Observer receives page events. Nil disables events.
	Observer Observer
}

// Result is the outcome of a crawl. A URL absent from both fields was never
// reached; a URL in Errors was reached and failed.
type Result struct {
	// Downloaded lists successfully downloaded URLs in sorted order.
	Downloaded []string

	// Errors maps failed URLs to a *MalformedURLError or *DownloadError.
	Errors map[string]error
}

// Crawl crawls from url, accepting every host.
func (c *Crawler) Crawl(ctx context.Context, url string, maxDepth int) (*Result, error) {
	return c.Run(ctx, Request{URL: url, MaxDepth: maxDepth})
}

// CrawlHosts crawls from url, following only links whose host is in hosts.
func (c *Crawler) CrawlHosts(ctx context.Context, url string, maxDepth int, hosts []string) (*Result, error) {
	return c.Run(ctx, Request{URL: url, MaxDepth: maxDepth, Filter: AllowHosts(hosts...)})
}

// Run performs the crawl described by req one layer at a time and blocks
// until the last layer drains.
//
// Per-URL failures are reported in the Result and never fail the crawl. If
// ctx is cancelled or the crawler is closed mid-crawl, Run stops waiting and
// returns the pages completed so far together with ctx.Err() or ErrClosed.
func (c *Crawler) Run(ctx context.Context, req Request) (*Result, error) {
	if req.MaxDepth < 1 {
		return nil, ErrInvalidDepth
	}
	if c.ctx.Err() != nil {
		return nil, ErrClosed
	}

	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(c.ctx, cancel)
	defer stop()

	s := newSession(sctx, req)
	s.frontier.add(req.URL)

	interrupted := false
	for depth := 1; depth <= req.MaxDepth; depth++ {
		layer := s.frontier.drain()
		if len(layer) == 0 {
			break
		}
		final := depth == req.MaxDepth

		gen := s.barrier.begin()
		dispatched := 0
		for _, u := range layer {
			if c.admit(s, u, depth, final) {
				dispatched++
			}
		}
		s.barrier.arrive()

		c.logger.Info("crawling layer",
			"seed", req.URL, "depth", depth, "generation", gen,
			"candidates", len(layer), "dispatched", dispatched)

		if err := s.barrier.awaitAdvance(sctx); err != nil {
			interrupted = true
			break
		}
	}

	res := s.result()
	if !interrupted {
		return res, nil
	}
	if c.ctx.Err() != nil {
		return res, ErrClosed
	}
	return res, ctx.Err()
}

// admit runs the controller's checks on one URL of the current layer and
// hands it to the host throttle. It reports whether a download was dispatched.
func (c *Crawler) admit(s *session, rawURL string, depth int, final bool) bool {
	host, err := HostOf(rawURL)
	if err != nil {
		if s.visited.add(rawURL) {
			s.fail(rawURL, err)
			s.observer.PageFailed(rawURL, depth, err)
			c.logger.Debug("skipping malformed URL", "url", rawURL, "error", err)
		}
		return false
	}
	if !s.filter(host) {
		return false
	}
	if !s.visited.add(rawURL) {
		return false
	}

	s.barrier.register()
	job := &downloadJob{session: s, url: rawURL, host: host, depth: depth, final: final}
	if c.throttle.acquire(job) {
		c.dispatch(job)
	}
	return true
}

// dispatch submits a job that holds a host slot to the download pool. When
// the pool no longer accepts work, the job is abandoned and its slot passed
// on, so the loop also drains the host's queue.
func (c *Crawler) dispatch(job *downloadJob) {
	for job != nil {
		j := job
		if err := c.downloads.submit(func() { c.download(j) }); err == nil {
			return
		}
		j.session.barrier.arrive()
		job = c.throttle.release(j.host)
	}
}

func (c *Crawler) download(job *downloadJob) {
	s := job.session
	defer s.barrier.arrive()
	defer func() {
		c.dispatch(c.throttle.release(job.host))
	}()
	defer func() {
		if r := recover(); r != nil {
			err := &DownloadError{URL: job.url, Err: fmt.Errorf("panic: %v", r)}
			s.fail(job.url, err)
			c.logger.Warn("recovered panic while downloading", "url", job.url, "panic", r)
		}
	}()

	if s.ctx.Err() != nil {
		return
	}

	doc, err := c.fetcher.Download(s.ctx, job.url)
	if err != nil {
		if s.ctx.Err() != nil && errors.Is(err, s.ctx.Err()) {
			return
		}
		derr := &DownloadError{URL: job.url, Err: err}
		s.fail(job.url, derr)
		s.observer.PageFailed(job.url, job.depth, derr)
		c.logger.Debug("download failed", "url", job.url, "depth", job.depth, "error", err)
		return
	}

	s.downloaded.add(job.url)
	s.observer.PageDownloaded(job.url, job.depth)
	c.logger.Debug("downloaded", "url", job.url, "depth", job.depth)

	if job.final {
		return
	}

	s.barrier.register()
	if err := c.extracts.submit(func() { c.extract(s, job.url, job.depth, doc) }); err != nil {
		s.barrier.arrive()
	}
}

func (c *Crawler) extract(s *session, pageURL string, depth int, doc Document) {
	defer s.barrier.arrive()
	defer func() {
		if r := recover(); r != nil {
			c.logger.Warn("recovered panic while extracting links", "url", pageURL, "panic", r)
		}
	}()

	links, err := doc.ExtractLinks()
	if err != nil {
		c.logger.Debug("link extraction failed", "error", &ExtractError{URL: pageURL, Err: err})
		return
	}

	s.frontier.addAll(links)
	s.observer.LinksExtracted(pageURL, depth, links)
	c.logger.Debug("extracted links", "url", pageURL, "depth", depth, "links", len(links))
}

// Close stops the crawler. Pending crawls return their partial results with
// ErrClosed, queued work is dropped and running tasks get up to the shutdown
// timeout to finish. Later calls are no-ops.
func (c *Crawler) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		c.throttle.reset()

		ctx, cancel := context.WithTimeout(context.Background(), c.shutdownTimeout)
		defer cancel()

		droppedDownloads, derr := c.downloads.shutdown(ctx)
		droppedExtracts, eerr := c.extracts.shutdown(ctx)
		if droppedDownloads > 0 || droppedExtracts > 0 {
			c.logger.Debug("dropped queued work on close",
				"downloads", droppedDownloads, "extracts", droppedExtracts)
		}
		if derr != nil || eerr != nil {
			c.logger.Warn("workers still running after shutdown timeout", "timeout", c.shutdownTimeout)
			err = ErrShutdownTimeout
		}
	})
	return err
}
