package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/hostcrawl/internal/model"
)

// DefaultGracePeriod bounds recording steps that run after cancellation.
const DefaultGracePeriod = 5 * time.Second

// Step is one stage of processing a crawl report. Steps run in order, each
// receiving the report as left by the previous ones.
type Step interface {
	// Do executes the step. Per-URL problems belong in the report; an
	// error means the step itself failed.
	Do(ctx context.Context, report *model.CrawlReport) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// recorder is implemented by steps that store or forward a report. They
// still run once the context is cancelled, under a detached context
// bounded by the grace period, so partial results are not lost.
type recorder interface {
	records()
}

// Pipeline orchestrates the execution of multiple steps.
type Pipeline struct {
	steps []Step

	logger *slog.Logger

	// continueOnError keeps executing steps after one fails.
	continueOnError bool

	gracePeriod time.Duration
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to continue after a step
// fails. The failure is still logged and recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// WithGracePeriod sets how long recording steps may run after the
// pipeline's context is cancelled.
func WithGracePeriod(d time.Duration) Option {
	return func(p *Pipeline) {
		if d > 0 {
			p.gracePeriod = d
		}
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps:       make([]Step, 0),
		gracePeriod: DefaultGracePeriod,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence.
//
// Cancellation is checked before each step. Once the context is done the
// report is marked cancelled, producing steps are skipped and recording
// steps still run; Execute then returns the context's error.
//
// Returns the first step error if continueOnError is false.
func (p *Pipeline) Execute(ctx context.Context, report *model.CrawlReport) error {
	cancelled := false

	for _, step := range p.steps {
		stepCtx := ctx
		cancel := context.CancelFunc(func() {})

		if err := ctx.Err(); err != nil {
			if !cancelled {
				cancelled = true
				p.logger.Warn("pipeline cancelled",
					"step", step.Name(),
					"reason", err,
				)
				report.Cancelled = true
				if report.Error == "" {
					report.Error = err.Error()
				}
			}
			if _, ok := step.(recorder); !ok {
				continue
			}
			stepCtx, cancel = context.WithTimeout(context.WithoutCancel(ctx), p.gracePeriod)
		}

		p.logger.Info("executing step",
			"step", step.Name(),
			"seed", report.SeedURL,
		)

		err := step.Do(stepCtx, report)
		cancel()
		if err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"seed", report.SeedURL,
				"error", err,
			)
			if report.Error == "" {
				report.Error = err.Error()
			}
			if !p.continueOnError {
				return err
			}
			continue
		}

		p.logger.Debug("step completed",
			"step", step.Name(),
			"seed", report.SeedURL,
		)
	}

	if cancelled {
		return ctx.Err()
	}
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
