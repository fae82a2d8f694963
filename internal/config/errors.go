package config

import "errors"

// Validation errors returned by Config.Validate. Callers match them with
// errors.Is.
var (
	// ErrNoTarget is returned when no seed URL is given.
	ErrNoTarget = errors.New("no target specified: provide at least one seed URL")

	// ErrInvalidDepth is returned when the depth is below 1.
	ErrInvalidDepth = errors.New("invalid depth: must be at least 1")

	// ErrInvalidDownloaders is returned when the download pool size is not positive.
	ErrInvalidDownloaders = errors.New("invalid downloaders: must be positive")

	// ErrInvalidExtractors is returned when the extraction pool size is not positive.
	ErrInvalidExtractors = errors.New("invalid extractors: must be positive")

	// ErrInvalidPerHost is returned when the per-host cap is not positive.
	ErrInvalidPerHost = errors.New("invalid per-host limit: must be positive")

	// ErrInvalidTimeout is returned when the request timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidCrawlDelay is returned for a negative crawl delay; use 0 for none.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned for a negative body size limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrConflictingReportFormats is returned when --json and --markdown are both set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when --proxy and --tor are both set.
	ErrConflictingProxy = errors.New("conflicting proxy settings: --proxy and --tor cannot be used together")

	// ErrConflictingHostFilter is returned when --allow-host and --same-site are both set.
	ErrConflictingHostFilter = errors.New("conflicting host filters: --allow-host and --same-site cannot be used together")

	// ErrMissingKafkaTopic is returned when Kafka brokers are set without a topic.
	ErrMissingKafkaTopic = errors.New("kafka brokers set without a topic")
)
