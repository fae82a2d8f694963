package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/nao1215/hostcrawl/internal/crawler"
	"github.com/nao1215/hostcrawl/internal/model"
	"github.com/nao1215/hostcrawl/internal/sink"
)

// CrawlStep crawls from the report's seed and fills the report with the
// outcome. Several CrawlSteps may share one Crawler so that per-host limits
// span concurrent crawls.
type CrawlStep struct {
	crawler *crawler.Crawler

	// allowedHosts restricts crawled hosts; empty allows all.
	allowedHosts []string

	// sameSite restricts crawled hosts to the seed's registrable domain.
	sameSite bool

	observers []model.Observer

	logger *slog.Logger
}

// CrawlStepOption configures a CrawlStep.
type CrawlStepOption func(*CrawlStep)

// WithAllowedHosts limits the crawl to hosts.
func WithAllowedHosts(hosts []string) CrawlStepOption {
	return func(s *CrawlStep) {
		s.allowedHosts = hosts
	}
}

// WithSameSite limits the crawl to the seed's site. It takes precedence
// over WithAllowedHosts.
func WithSameSite(sameSite bool) CrawlStepOption {
	return func(s *CrawlStep) {
		s.sameSite = sameSite
	}
}

// WithObservers adds observers that receive page events during the crawl.
func WithObservers(observers ...model.Observer) CrawlStepOption {
	return func(s *CrawlStep) {
		s.observers = append(s.observers, observers...)
	}
}

// WithCrawlLogger sets a custom logger for the crawl step.
func WithCrawlLogger(logger *slog.Logger) CrawlStepOption {
	return func(s *CrawlStep) {
		s.logger = logger
	}
}

// NewCrawlStep creates a crawl step on c.
func NewCrawlStep(c *crawler.Crawler, opts ...CrawlStepOption) *CrawlStep {
	s := &CrawlStep{
		crawler: c,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do runs the crawl. An interrupted crawl still fills the report with its
// partial results and marks it cancelled; only a crawl that could not start
// returns an error.
func (s *CrawlStep) Do(ctx context.Context, report *model.CrawlReport) error {
	filter, err := s.filter(report)
	if err != nil {
		return err
	}

	rec := model.NewLinkRecorder(s.observers...)
	res, err := s.crawler.Run(ctx, crawler.Request{
		URL:      report.SeedURL,
		MaxDepth: report.MaxDepth,
		Filter:   filter,
		Observer: rec,
	})
	if res == nil {
		return err
	}

	fillReport(report, res)
	rec.Apply(report)
	report.Finish()

	if err != nil {
		s.logger.Warn("crawl interrupted", "seed", report.SeedURL, "error", err)
		report.Cancelled = true
		report.Error = err.Error()
		return nil
	}

	s.logger.Info("crawl completed",
		"seed", report.SeedURL,
		"downloaded", len(report.Downloaded),
		"failed", len(report.Failures),
	)
	return nil
}

func (s *CrawlStep) filter(report *model.CrawlReport) (crawler.HostFilter, error) {
	switch {
	case s.sameSite:
		return crawler.SameSite(report.SeedURL)
	case len(s.allowedHosts) > 0:
		report.AllowedHosts = s.allowedHosts
		return crawler.AllowHosts(s.allowedHosts...), nil
	default:
		return crawler.AllowAll(), nil
	}
}

// fillReport copies a crawl result into report.
func fillReport(report *model.CrawlReport, res *crawler.Result) {
	report.Downloaded = append(report.Downloaded[:0], res.Downloaded...)
	report.Failures = report.Failures[:0]
	for u, err := range res.Errors {
		kind := model.FailureDownload
		if errors.Is(err, crawler.ErrMalformedURL) {
			kind = model.FailureMalformedURL
		}
		report.AddFailure(u, kind, err.Error())
	}
}

// StatusStep writes the report's current state to a status store. Placed
// before the crawl it marks the session running; placed after it records
// the final state.
type StatusStep struct {
	store sink.StatusStore
}

// NewStatusStep creates a status step.
func NewStatusStep(store sink.StatusStore) *StatusStep {
	return &StatusStep{store: store}
}

func (s *StatusStep) Name() string { return "status" }

func (s *StatusStep) records() {}

func (s *StatusStep) Do(ctx context.Context, report *model.CrawlReport) error {
	return s.store.SetStatus(ctx, sink.StatusFromReport(report))
}

// Archiver stores finished reports. *database.CrawlDB implements it.
type Archiver interface {
	SaveCrawlReport(ctx context.Context, report *model.CrawlReport) error
}

// ArchiveStep saves the report to the crawl archive.
type ArchiveStep struct {
	archive Archiver
}

// NewArchiveStep creates an archive step.
func NewArchiveStep(archive Archiver) *ArchiveStep {
	return &ArchiveStep{archive: archive}
}

func (s *ArchiveStep) Name() string { return "archive" }

func (s *ArchiveStep) records() {}

func (s *ArchiveStep) Do(ctx context.Context, report *model.CrawlReport) error {
	return s.archive.SaveCrawlReport(ctx, report)
}

// ReportPublisher forwards reports to a message broker. *sink.Publisher
// implements it.
type ReportPublisher interface {
	PublishReport(ctx context.Context, report *model.CrawlReport) error
}

// PublishStep publishes the report's page outcomes.
type PublishStep struct {
	publisher ReportPublisher
}

// NewPublishStep creates a publish step.
func NewPublishStep(publisher ReportPublisher) *PublishStep {
	return &PublishStep{publisher: publisher}
}

func (s *PublishStep) Name() string { return "publish" }

func (s *PublishStep) records() {}

func (s *PublishStep) Do(ctx context.Context, report *model.CrawlReport) error {
	return s.publisher.PublishReport(ctx, report)
}

// GraphStore persists link graphs. *sink.GraphWriter implements it.
type GraphStore interface {
	WriteReport(ctx context.Context, report *model.CrawlReport) error
}

// GraphStep writes the report's link graph.
type GraphStep struct {
	graph GraphStore
}

// NewGraphStep creates a graph step.
func NewGraphStep(graph GraphStore) *GraphStep {
	return &GraphStep{graph: graph}
}

func (s *GraphStep) Name() string { return "graph" }

func (s *GraphStep) records() {}

func (s *GraphStep) Do(ctx context.Context, report *model.CrawlReport) error {
	return s.graph.WriteReport(ctx, report)
}

// Sinks are the optional destinations of a default pipeline. Nil fields are
// skipped.
type Sinks struct {
	Status  sink.StatusStore
	Archive Archiver
	Publish ReportPublisher
	Graph   GraphStore
}

// DefaultPipeline assembles the standard step order: status (running),
// crawl, status (final), archive, publish, graph. Sink failures do not
// stop the remaining sinks.
func DefaultPipeline(c *crawler.Crawler, sinks Sinks, crawlOpts []CrawlStepOption, opts ...Option) *Pipeline {
	p := New(append([]Option{WithContinueOnError(true)}, opts...)...)

	if sinks.Status != nil {
		p.AddStep(NewStatusStep(sinks.Status))
	}
	p.AddStep(NewCrawlStep(c, crawlOpts...))
	if sinks.Status != nil {
		p.AddStep(NewStatusStep(sinks.Status))
	}
	if sinks.Archive != nil {
		p.AddStep(NewArchiveStep(sinks.Archive))
	}
	if sinks.Publish != nil {
		p.AddStep(NewPublishStep(sinks.Publish))
	}
	if sinks.Graph != nil {
		p.AddStep(NewGraphStep(sinks.Graph))
	}
	return p
}
