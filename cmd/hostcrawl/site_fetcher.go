package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/nao1215/hostcrawl/internal/config"
	"github.com/nao1215/hostcrawl/internal/crawler"
)

// siteFetcher routes each download to an HTTPFetcher built from the site
// configuration of the URL's host, so cookies, headers, link patterns and
// the request delay follow the host being fetched rather than the seed.
// Fetchers are built lazily and share one *http.Client.
type siteFetcher struct {
	client *http.Client
	cfg    *config.Config

	mu     sync.Mutex
	byHost map[string]*crawler.HTTPFetcher
}

func newSiteFetcher(client *http.Client, cfg *config.Config) *siteFetcher {
	return &siteFetcher{
		client: client,
		cfg:    cfg,
		byHost: make(map[string]*crawler.HTTPFetcher),
	}
}

// Download implements crawler.Fetcher.
func (f *siteFetcher) Download(ctx context.Context, rawURL string) (crawler.Document, error) {
	host, err := crawler.HostOf(rawURL)
	if err != nil {
		return nil, err
	}
	return f.fetcherFor(host).Download(ctx, rawURL)
}

func (f *siteFetcher) fetcherFor(host string) *crawler.HTTPFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()

	if fetcher, ok := f.byHost[host]; ok {
		return fetcher
	}

	site := f.cfg.SiteFor(host)
	fetcher := crawler.NewHTTPFetcher(f.client,
		crawler.WithUserAgent(f.cfg.UserAgent),
		crawler.WithMaxBodySize(f.cfg.MaxBodySize),
		crawler.WithDelay(f.cfg.CrawlDelay),
		crawler.WithHeaders(site.Headers),
		crawler.WithCookie(site.Cookie),
		crawler.WithIgnorePatterns(site.IgnorePatterns),
		crawler.WithFollowPatterns(site.FollowPatterns),
	)
	f.byHost[host] = fetcher
	return fetcher
}
