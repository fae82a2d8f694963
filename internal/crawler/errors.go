package crawler

import (
	"errors"
	"fmt"
)

// Configuration and lifecycle errors.
var (
	// ErrNilFetcher is returned by New when no Fetcher is supplied.
	ErrNilFetcher = errors.New("crawler: fetcher must not be nil")

	// ErrInvalidDownloaders is returned when the download worker count is not positive.
	ErrInvalidDownloaders = errors.New("crawler: download workers must be greater than 0")

	// ErrInvalidExtractors is returned when the extraction worker count is not positive.
	ErrInvalidExtractors = errors.New("crawler: extraction workers must be greater than 0")

	// ErrInvalidPerHost is returned when the per-host download cap is not positive.
	ErrInvalidPerHost = errors.New("crawler: per-host limit must be greater than 0")

	// ErrInvalidDepth is returned when a crawl is requested with a depth below 1.
	ErrInvalidDepth = errors.New("crawler: depth must be at least 1")

	// ErrClosed is returned by crawls started on, or interrupted by, a closed crawler.
	ErrClosed = errors.New("crawler: closed")

	// ErrShutdownTimeout is returned by Close when workers are still busy after
	// the shutdown timeout.
	ErrShutdownTimeout = errors.New("crawler: workers still running after shutdown timeout")
)

// Per-URL failure kinds.
var (
	// ErrMalformedURL marks URLs whose host cannot be derived.
	ErrMalformedURL = errors.New("malformed URL")

	// ErrHTTPStatus is wrapped by HTTPFetcher for responses with status >= 400.
	ErrHTTPStatus = errors.New("unexpected HTTP status")

	errMissingHost = errors.New("missing host")
	errPoolClosed  = errors.New("worker pool closed")
)

// MalformedURLError records a URL that could not be turned into a host.
// errors.Is(err, ErrMalformedURL) reports true for it.
type MalformedURLError struct {
	URL string
	Err error
}

func (e *MalformedURLError) Error() string {
	return fmt.Sprintf("malformed URL %q: %v", e.URL, e.Err)
}

// Unwrap returns both the kind sentinel and the underlying cause.
func (e *MalformedURLError) Unwrap() []error {
	return []error{ErrMalformedURL, e.Err}
}

// DownloadError records a failed download. The URL's outbound links are
// never discovered.
type DownloadError struct {
	URL string
	Err error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s: %v", e.URL, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

// ExtractError records a page that downloaded but could not be parsed.
// It is only logged; the page still counts as downloaded.
type ExtractError struct {
	URL string
	Err error
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("extract links from %s: %v", e.URL, e.Err)
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
