package crawler

import "context"

// Fetcher downloads pages. Implementations must be safe for concurrent use;
// the crawler calls Download from many download workers at once.
type Fetcher interface {
	// Download fetches url. Any error is recorded against the URL as a
	// DownloadError and the URL is not retried.
	Download(ctx context.Context, url string) (Document, error)
}

// Document is a downloaded page.
type Document interface {
	// ExtractLinks returns the page's outbound links as absolute URLs.
	// It runs on an extraction worker, never on a download worker.
	ExtractLinks() ([]string, error)
}

// Observer receives per-page events while a crawl runs. Methods are called
// from worker goroutines and must be safe for concurrent use. depth is the
// 1-based layer number of the page.
type Observer interface {
	PageDownloaded(url string, depth int)
	PageFailed(url string, depth int, err error)
	LinksExtracted(url string, depth int, links []string)
}

type nopObserver struct{}

func (nopObserver) PageDownloaded(string, int) {}
func (nopObserver) PageFailed(string, int, error) {}
func (nopObserver) LinksExtracted(string, int, []string) {}
