package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/hostcrawl/internal/model"
)

// BatchProcessor crawls several seeds concurrently, one pipeline per seed.
// The pipelines normally share one Crawler, so its worker pools and host
// limits are shared across the batch.
type BatchProcessor struct {
	// pipelineFactory builds a fresh pipeline for each seed.
	pipelineFactory func(seed string) *Pipeline

	// newReport builds the report each pipeline fills.
	newReport func(seed string) *model.CrawlReport

	// concurrency is the maximum number of seeds crawled at once.
	concurrency int

	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Default is 4.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithDepth sets the depth of reports built by the default report factory.
func WithDepth(depth int) BatchOption {
	return func(b *BatchProcessor) {
		b.newReport = func(seed string) *model.CrawlReport {
			return model.NewCrawlReport(seed, depth)
		}
	}
}

// WithReportFactory replaces the report factory, for example to apply
// per-site depths.
func WithReportFactory(newReport func(seed string) *model.CrawlReport) BatchOption {
	return func(b *BatchProcessor) {
		b.newReport = newReport
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(pipelineFactory func(seed string) *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
	}
	WithDepth(3)(bp)

	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessBatch crawls seeds concurrently and returns one report per seed in
// input order. A seed whose pipeline fails still has its report; the error
// is recorded there. The returned error is the context's, if it ended the
// batch early; seeds not started by then have no report.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, seeds []string) ([]*model.CrawlReport, error) {
	results := make([]*model.CrawlReport, len(seeds))
	err := bp.ProcessBatchWithCallback(ctx, seeds, func(report *model.CrawlReport, index int) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback crawls seeds and calls callback as each one
// finishes. The callback runs on the goroutine that ran the crawl and must
// be safe for concurrent use if it touches shared state.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	seeds []string,
	callback func(report *model.CrawlReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_seeds", len(seeds),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, seed := range seeds {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			// Seeds queued behind the limit are not started after cancellation.
			if err := gctx.Err(); err != nil {
				return err
			}

			bp.logger.Info("crawling seed",
				"seed", seed,
				"index", i+1,
				"total", len(seeds),
			)

			report := bp.newReport(seed)
			if err := bp.pipelineFactory(seed).Execute(gctx, report); err != nil {
				bp.logger.Warn("crawl failed", "seed", seed, "error", err)
			} else {
				bp.logger.Info("crawl completed", "seed", seed)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("batch processing complete",
		"total_seeds", len(seeds),
		"elapsed", time.Since(startTime),
	)
	return err
}
