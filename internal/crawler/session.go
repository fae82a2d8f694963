package crawler

import (
	"context"
	"maps"
	"slices"
	"sync"
)

// urlSet is a concurrency-safe set of URLs.
type urlSet struct {
	mu   sync.Mutex
	urls map[string]struct{}
}

func newURLSet() *urlSet {
	return &urlSet{urls: make(map[string]struct{})}
}

// add inserts url and reports whether it was absent.
func (s *urlSet) add(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.urls[url]; ok {
		return false
	}
	s.urls[url] = struct{}{}
	return true
}

func (s *urlSet) addAll(urls []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range urls {
		s.urls[u] = struct{}{}
	}
}

// drain empties the set and returns its former contents, sorted.
func (s *urlSet) drain() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	urls := slices.Sorted(maps.Keys(s.urls))
	s.urls = make(map[string]struct{})
	return urls
}

func (s *urlSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.urls)
}

// session is the state of one crawl call.
type session struct {
	ctx      context.Context //nolint:containedctx // session scoped, dies with the call
	seed     string
	maxDepth int
	filter   HostFilter
	observer Observer

	barrier    layerBarrier
	visited    *urlSet
	downloaded *urlSet
	frontier   *urlSet

	errMu  sync.Mutex
	errors map[string]error
}

func newSession(ctx context.Context, req Request) *session {
	s := &session{
		ctx:        ctx,
		seed:       req.URL,
		maxDepth:   req.MaxDepth,
		filter:     req.Filter,
		observer:   req.Observer,
		visited:    newURLSet(),
		downloaded: newURLSet(),
		frontier:   newURLSet(),
		errors:     make(map[string]error),
	}
	if s.filter == nil {
		s.filter = AllowAll()
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	return s
}

// fail records the first error seen for url.
func (s *session) fail(url string, err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()

	if _, ok := s.errors[url]; !ok {
		s.errors[url] = err
	}
}

// result snapshots the session. Workers of an interrupted session may still
// be running, so only completed downloads are reported as successful.
func (s *session) result() *Result {
	s.errMu.Lock()
	errs := maps.Clone(s.errors)
	s.errMu.Unlock()

	s.downloaded.mu.Lock()
	downloaded := make([]string, 0, len(s.downloaded.urls))
	for u := range s.downloaded.urls {
		if _, failed := errs[u]; !failed {
			downloaded = append(downloaded, u)
		}
	}
	s.downloaded.mu.Unlock()
	slices.Sort(downloaded)

	return &Result{Downloaded: downloaded, Errors: errs}
}
