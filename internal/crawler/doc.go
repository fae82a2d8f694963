// Package crawler implements a bounded-depth, concurrent breadth-first web
// crawler.
//
// # Architecture
//
// A Crawler owns two worker pools, one for downloads and one for link
// extraction, and a host throttle shared by all of its crawls. Each call to
// Run (or Crawl / CrawlHosts) creates a session that walks the link graph one
// layer at a time:
//
//   - the controller marks every new URL of the layer as visited and hands
//     it to the host throttle
//   - the throttle starts at most the per-host cap of downloads per host and
//     queues the rest in FIFO order; a finishing download passes its slot to
//     the next queued URL of the same host
//   - successful downloads outside the final layer are passed to the
//     extraction pool, whose links form the next layer's frontier
//   - a layer barrier counts outstanding downloads and extractions; the
//     controller moves to the next layer only once it drains
//
// Failures are per URL. Malformed URLs and failed downloads are reported in
// Result.Errors and never abort the crawl. Extraction failures are logged
// and the page still counts as downloaded.
//
// # Fetching
//
// The core only depends on the Fetcher interface. HTTPFetcher is the
// implementation used by the CLI: it downloads with an *http.Client (direct
// or through Tor), spaces requests with an optional delay and extracts links
// from HTML with golang.org/x/net/html.
//
// # Usage
//
//	c, err := crawler.New(crawler.NewHTTPFetcher(nil), crawler.WithPerHost(2))
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//
//	res, err := c.Crawl(ctx, "https://example.com/", 3)
package crawler
