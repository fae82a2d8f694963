package crawler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"
)

// Defaults used by NewHTTPFetcher.
const (
	DefaultUserAgent   = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB
)

// maxRedirects caps redirect chains followed by NewHTTPClient clients.
const maxRedirects = 10

// HTTPFetcher is the Fetcher used by the CLI. It downloads over an
// *http.Client, which may be routed through Tor, and extracts links from
// HTML pages.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	cookie      string
	maxBodySize int64

	// limiter spaces out requests across all workers; nil means no delay.
	limiter *rate.Limiter

	ignorePatterns []string
	followPatterns []string
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders adds headers to every request.
func WithHeaders(headers map[string]string) HTTPOption {
	return func(f *HTTPFetcher) {
		for k, v := range headers {
			f.headers[k] = v
		}
	}
}

// WithCookie sets the Cookie header, e.g. for sites behind a login.
func WithCookie(cookie string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.cookie = cookie
	}
}

// WithMaxBodySize limits how many bytes of a response body are read.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithDelay sets the minimum interval between requests made by the fetcher.
// Zero disables the delay.
func WithDelay(d time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		if d <= 0 {
			f.limiter = nil
			return
		}
		f.limiter = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithIgnorePatterns drops extracted links whose path matches any pattern.
// Patterns use glob syntax (e.g. "/admin/*", "*.pdf").
func WithIgnorePatterns(patterns []string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.ignorePatterns = patterns
	}
}

// WithFollowPatterns keeps only extracted links whose path matches at least
// one pattern. An empty list keeps everything not ignored.
func WithFollowPatterns(patterns []string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.followPatterns = patterns
	}
}

// NewHTTPFetcher creates a fetcher that downloads with client.
func NewHTTPFetcher(client *http.Client, opts ...HTTPOption) *HTTPFetcher {
	if client == nil {
		client = NewHTTPClient(30 * time.Second)
	}
	f := &HTTPFetcher{
		client:      client,
		userAgent:   DefaultUserAgent,
		headers:     make(map[string]string),
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// NewHTTPClient returns a direct client with a cookie jar and the crawler's
// redirect cap.
func NewHTTPClient(timeout time.Duration) *http.Client {
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}) //nolint:errcheck // never fails
	return &http.Client{
		Timeout: timeout,
		Jar:     jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// Download fetches rawURL. Transport failures and responses with a status
// of 400 or above are errors.
func (f *HTTPFetcher) Download(ctx context.Context, rawURL string) (Document, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // drain for reuse
		return nil, fmt.Errorf("%w: %d %s", ErrHTTPStatus, resp.StatusCode, http.StatusText(resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return nil, err
	}

	// Links resolve against the final URL after redirects.
	base := req.URL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL
	}

	return &Page{
		URL:         base.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
		base:        base,
		fetcher:     f,
	}, nil
}

// Page is a document downloaded by HTTPFetcher.
type Page struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte

	base    *url.URL
	fetcher *HTTPFetcher
}

// IsHTML reports whether the page declared an HTML content type.
func (p *Page) IsHTML() bool {
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// ExtractLinks returns the page's links, filtered by the fetcher's ignore
// and follow patterns. Non-HTML pages have no links.
func (p *Page) ExtractLinks() ([]string, error) {
	if !p.IsHTML() {
		return nil, nil
	}
	links, err := extractLinks(p.base, bytes.NewReader(p.Body))
	if err != nil {
		return nil, err
	}

	kept := links[:0]
	for _, link := range links {
		if p.fetcher.shouldFollow(link) {
			kept = append(kept, link)
		}
	}
	return kept, nil
}

// shouldFollow applies ignore patterns first, then follow patterns.
func (f *HTTPFetcher) shouldFollow(link string) bool {
	u, err := url.Parse(link)
	if err != nil {
		return false
	}
	path := u.Path
	if path == "" {
		path = "/"
	}

	for _, pattern := range f.ignorePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	if len(f.followPatterns) == 0 {
		return true
	}
	for _, pattern := range f.followPatterns {
		if matchPattern(pattern, path) {
			return true
		}
	}
	return false
}
