package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestHTTPFetcher(t *testing.T) {
	t.Parallel()

	t.Run("downloads HTML and extracts links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("User-Agent") != "hostcrawl-test" {
				t.Errorf("unexpected User-Agent %q", r.Header.Get("User-Agent"))
			}
			if r.Header.Get("X-Api-Key") != "secret" {
				t.Errorf("missing custom header")
			}
			if r.Header.Get("Cookie") != "session=abc" {
				t.Errorf("unexpected Cookie %q", r.Header.Get("Cookie"))
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, `<html><body><a href="/about">About</a><a href="/about#team">Team</a></body></html>`)
		}))
		defer server.Close()

		f := NewHTTPFetcher(server.Client(),
			WithUserAgent("hostcrawl-test"),
			WithHeaders(map[string]string{"X-Api-Key": "secret"}),
			WithCookie("session=abc"),
		)
		doc, err := f.Download(context.Background(), server.URL+"/")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		links, err := doc.ExtractLinks()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(links, []string{server.URL + "/about"}) {
			t.Errorf("links = %v", links)
		}
	})

	t.Run("error status is a download error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.NotFoundHandler())
		defer server.Close()

		_, err := NewHTTPFetcher(server.Client()).Download(context.Background(), server.URL+"/missing")
		if !errors.Is(err, ErrHTTPStatus) {
			t.Errorf("expected ErrHTTPStatus, got %v", err)
		}
	})

	t.Run("non-HTML pages have no links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"href": "<a href='/x'>"}`)
		}))
		defer server.Close()

		doc, err := NewHTTPFetcher(server.Client()).Download(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		links, err := doc.ExtractLinks()
		if err != nil || len(links) != 0 {
			t.Errorf("ExtractLinks() = %v, %v", links, err)
		}
	})

	t.Run("body is truncated at the size limit", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			fmt.Fprint(w, strings.Repeat("x", 1000))
		}))
		defer server.Close()

		doc, err := NewHTTPFetcher(server.Client(), WithMaxBodySize(100)).Download(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		page, ok := doc.(*Page)
		if !ok {
			t.Fatalf("unexpected document type %T", doc)
		}
		if len(page.Body) != 100 {
			t.Errorf("body length = %d, expected 100", len(page.Body))
		}
	})

	t.Run("links resolve against the redirect target", func(t *testing.T) {
		t.Parallel()

		mux := http.NewServeMux()
		mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/new/dir/", http.StatusFound)
		})
		mux.HandleFunc("/new/dir/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<a href="child">child</a>`)
		})
		server := httptest.NewServer(mux)
		defer server.Close()

		doc, err := NewHTTPFetcher(server.Client()).Download(context.Background(), server.URL+"/old")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		links, _ := doc.ExtractLinks()
		if !slices.Equal(links, []string{server.URL + "/new/dir/child"}) {
			t.Errorf("links = %v", links)
		}
	})

	t.Run("delay waits for cancellation", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		f := NewHTTPFetcher(server.Client(), WithDelay(time.Hour))
		if _, err := f.Download(context.Background(), server.URL); err != nil {
			t.Fatalf("first request should not wait: %v", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		if _, err := f.Download(ctx, server.URL); err == nil {
			t.Error("expected the second request to be held back by the delay")
		}
	})

	t.Run("patterns filter extracted links", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<a href="/docs/a">a</a><a href="/docs/b.pdf">b</a><a href="/admin/x">x</a><a href="/blog">blog</a>`)
		}))
		defer server.Close()

		f := NewHTTPFetcher(server.Client(),
			WithIgnorePatterns([]string{"*.pdf", "/admin/*"}),
			WithFollowPatterns([]string{"/docs/*"}),
		)
		doc, err := f.Download(context.Background(), server.URL)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		links, _ := doc.ExtractLinks()
		if !slices.Equal(links, []string{server.URL + "/docs/a"}) {
			t.Errorf("links = %v", links)
		}
	})
}

func TestNewHTTPClient(t *testing.T) {
	t.Parallel()

	client := NewHTTPClient(5 * time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("Timeout = %v", client.Timeout)
	}
	if client.Jar == nil {
		t.Error("expected a cookie jar")
	}
	via := make([]*http.Request, maxRedirects)
	if err := client.CheckRedirect(nil, via); !errors.Is(err, http.ErrUseLastResponse) {
		t.Errorf("expected redirect cap, got %v", err)
	}
}

func TestCrawlOverHTTP(t *testing.T) {
	t.Parallel()

	pages := map[string]string{
		"/":      `<a href="/one">1</a><a href="/two">2</a><a href="/gone">x</a>`,
		"/one":   `<a href="/">home</a><a href="/three">3</a>`,
		"/two":   `<a href="/one">1</a>`,
		"/three": `<a href="/four">4</a>`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, body)
	}))
	defer server.Close()

	c := newTestCrawler(t, NewHTTPFetcher(server.Client()), WithPerHost(2))
	res, err := c.Crawl(context.Background(), server.URL+"/", 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{server.URL + "/", server.URL + "/one", server.URL + "/three", server.URL + "/two"}
	if !slices.Equal(res.Downloaded, want) {
		t.Errorf("Downloaded = %v, expected %v", res.Downloaded, want)
	}
	if !errors.Is(res.Errors[server.URL+"/gone"], ErrHTTPStatus) {
		t.Errorf("Errors = %v", res.Errors)
	}
	if _, reached := res.Errors[server.URL+"/four"]; reached {
		t.Error("page beyond max depth was reached")
	}
}

func TestExtractLinks(t *testing.T) {
	t.Parallel()

	base, _ := url.Parse("http://test.example/dir/page")
	html := `<html><head><title>t</title></head><body>
		<a href="relative">rel</a>
		<a href="/abs#frag">abs</a>
		<a href="/abs">dup</a>
		<a href="#top">fragment only</a>
		<a href="javascript:void(0)">js</a>
		<a href="MAILTO:me@example.com">mail</a>
		<a href="tel:123">tel</a>
		<a href="data:text/plain,hi">data</a>
		<a href="ftp://files.example/">ftp</a>
		<a>no href</a>
		<area href="https://other.example/map">
		<iframe src="/frame"></iframe>
	</body></html>`

	links, err := extractLinks(base, strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{
		"http://test.example/dir/relative",
		"http://test.example/abs",
		"https://other.example/map",
		"http://test.example/frame",
	}
	if !slices.Equal(links, want) {
		t.Errorf("links = %v, expected %v", links, want)
	}

	t.Run("base element overrides the page URL", func(t *testing.T) {
		t.Parallel()

		links, err := extractLinks(base, strings.NewReader(`<head><base href="http://cdn.example/root/"></head><a href="x">x</a>`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !slices.Equal(links, []string{"http://cdn.example/root/x"}) {
			t.Errorf("links = %v", links)
		}
	})
}

func TestMatchPattern(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		pattern string
		path    string
		want    bool
	}{
		{"/admin/*", "/admin", true},
		{"/admin/*", "/admin/users/1", true},
		{"/admin/*", "/administrator", false},
		{"*.pdf", "/docs/file.pdf", true},
		{"*.pdf", "/docs/file.pdf.html", false},
		{"/api/v?", "/api/v2", true},
		{"/api/v?", "/api/v10", false},
		{"logout*", "/account/logout-now", true},
		{"/exact", "/exact", true},
		{"[", "/anything", false},
	}

	for _, tc := range testCases {
		if got := matchPattern(tc.pattern, tc.path); got != tc.want {
			t.Errorf("matchPattern(%q, %q) = %v, expected %v", tc.pattern, tc.path, got, tc.want)
		}
	}
}
