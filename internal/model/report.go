package model

import (
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CrawlReport is the result of crawling one seed. It is what the report
// writers render, the archive stores and the sinks publish.
//
// A URL is reachable from the report in exactly one of Downloaded or
// Failures; URLs in neither were never reached.
type CrawlReport struct {
	// SessionID identifies the crawl across the archive and the sinks.
	SessionID string `json:"session_id"`

	// SeedURL is the URL the crawl started from.
	SeedURL string `json:"seed_url"`

	// MaxDepth is the number of layers requested.
	MaxDepth int `json:"max_depth"`

	// AllowedHosts is the host allow-list; empty means unrestricted.
	AllowedHosts []string `json:"allowed_hosts,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Downloaded lists successfully downloaded URLs, sorted.
	Downloaded []string `json:"downloaded"`

	// Failures lists URLs that were reached but failed, sorted by URL.
	Failures []Failure `json:"failures,omitempty"`

	// Depths maps every reached URL to the layer it was reached in.
	Depths map[string]int `json:"depths,omitempty"`

	// Edges are the links extracted from downloaded pages.
	Edges []Edge `json:"edges,omitempty"`

	// Cancelled is set when the crawl was interrupted and the lists are partial.
	Cancelled bool `json:"cancelled"`

	// Error describes why the crawl stopped early, if it did.
	Error string `json:"error,omitempty"`
}

// Failure is a URL that was reached but could not be crawled.
type Failure struct {
	URL     string      `json:"url"`
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Edge is a link from one downloaded page to another URL.
type Edge struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// NewCrawlReport starts a report for seedURL with a fresh session ID.
func NewCrawlReport(seedURL string, maxDepth int) *CrawlReport {
	return &CrawlReport{
		SessionID:  uuid.NewString(),
		SeedURL:    seedURL,
		MaxDepth:   maxDepth,
		StartedAt:  time.Now(),
		Downloaded: make([]string, 0),
		Depths:     make(map[string]int),
	}
}

// AddFailure records a failed URL.
func (r *CrawlReport) AddFailure(rawURL string, kind FailureKind, message string) {
	r.Failures = append(r.Failures, Failure{URL: rawURL, Kind: kind, Message: message})
}

// Finish stamps the end time and sorts the URL lists.
func (r *CrawlReport) Finish() {
	r.FinishedAt = time.Now()
	slices.Sort(r.Downloaded)
	slices.SortFunc(r.Failures, func(a, b Failure) int {
		return strings.Compare(a.URL, b.URL)
	})
}

// Duration returns how long the crawl ran, or 0 while it is running.
func (r *CrawlReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasFailures reports whether any URL failed.
func (r *CrawlReport) HasFailures() bool {
	return len(r.Failures) > 0
}

// FailuresByKind returns the failures of one kind.
func (r *CrawlReport) FailuresByKind(kind FailureKind) []Failure {
	var result []Failure
	for _, f := range r.Failures {
		if f.Kind == kind {
			result = append(result, f)
		}
	}
	return result
}

// Hosts returns the distinct hosts of all reached URLs, sorted.
func (r *CrawlReport) Hosts() []string {
	seen := make(map[string]struct{})
	add := func(rawURL string) {
		u, err := url.Parse(rawURL)
		if err != nil || u.Hostname() == "" {
			return
		}
		seen[strings.ToLower(u.Hostname())] = struct{}{}
	}
	for _, u := range r.Downloaded {
		add(u)
	}
	for _, f := range r.Failures {
		add(f.URL)
	}

	hosts := make([]string, 0, len(seen))
	for h := range seen {
		hosts = append(hosts, h)
	}
	slices.Sort(hosts)
	return hosts
}

// PagesPerLayer counts downloaded pages per layer; index 0 is layer 1.
func (r *CrawlReport) PagesPerLayer() []int {
	counts := make([]int, r.MaxDepth)
	for _, u := range r.Downloaded {
		if d, ok := r.Depths[u]; ok && d >= 1 && d <= r.MaxDepth {
			counts[d-1]++
		}
	}
	return counts
}
