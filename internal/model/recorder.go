package model

import (
	"maps"
	"slices"
	"strings"
	"sync"
)

// LinkRecorder collects the link graph and the layer of every page while a
// crawl runs. It satisfies crawler.Observer and is safe for concurrent use.
type LinkRecorder struct {
	mu     sync.Mutex
	depths map[string]int
	edges  map[Edge]struct{}
	next   []Observer
}

// Observer mirrors crawler.Observer so LinkRecorder can forward events
// without this package importing the crawler.
type Observer interface {
	PageDownloaded(url string, depth int)
	PageFailed(url string, depth int, err error)
	LinksExtracted(url string, depth int, links []string)
}

// NewLinkRecorder returns a recorder that also forwards every event to next.
func NewLinkRecorder(next ...Observer) *LinkRecorder {
	return &LinkRecorder{
		depths: make(map[string]int),
		edges:  make(map[Edge]struct{}),
		next:   next,
	}
}

func (l *LinkRecorder) PageDownloaded(url string, depth int) {
	l.mu.Lock()
	l.depths[url] = depth
	l.mu.Unlock()

	for _, o := range l.next {
		o.PageDownloaded(url, depth)
	}
}

func (l *LinkRecorder) PageFailed(url string, depth int, err error) {
	l.mu.Lock()
	l.depths[url] = depth
	l.mu.Unlock()

	for _, o := range l.next {
		o.PageFailed(url, depth, err)
	}
}

func (l *LinkRecorder) LinksExtracted(url string, depth int, links []string) {
	l.mu.Lock()
	for _, to := range links {
		l.edges[Edge{From: url, To: to}] = struct{}{}
	}
	l.mu.Unlock()

	for _, o := range l.next {
		o.LinksExtracted(url, depth, links)
	}
}

// Apply copies the recorded depths and edges into report. Edges are sorted
// by source, then target.
func (l *LinkRecorder) Apply(report *CrawlReport) {
	l.mu.Lock()
	defer l.mu.Unlock()

	report.Depths = maps.Clone(l.depths)
	report.Edges = slices.SortedFunc(maps.Keys(l.edges), func(a, b Edge) int {
		if c := strings.Compare(a.From, b.From); c != 0 {
			return c
		}
		return strings.Compare(a.To, b.To)
	})
}
