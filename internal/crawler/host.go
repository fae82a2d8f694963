package crawler

import (
	"net"
	"net/url"
	"strings"

	"github.com/nao1215/hostcrawl/internal/tor"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/text/cases"
)

// HostFilter decides whether URLs on host may be crawled. host is always
// lower case, without port.
type HostFilter func(host string) bool

// AllowAll accepts every host.
func AllowAll() HostFilter {
	return func(string) bool { return true }
}

// AllowHosts accepts only the listed hosts. Matching is case-insensitive and
// ignores a trailing dot. An empty list rejects everything.
func AllowHosts(hosts ...string) HostFilter {
	fold := cases.Fold()
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[fold.String(normalizeHost(h))] = struct{}{}
	}
	return func(host string) bool {
		// Casers keep state and cannot be shared between goroutines.
		_, ok := allowed[cases.Fold().String(normalizeHost(host))]
		return ok
	}
}

// SameSite accepts hosts that share the seed's registrable domain, so a
// crawl of www.example.com also follows blog.example.com. IP addresses and
// hosts without a public suffix only match themselves.
func SameSite(seedURL string) (HostFilter, error) {
	seedHost, err := HostOf(seedURL)
	if err != nil {
		return nil, err
	}
	site := registrableDomain(seedHost)
	return func(host string) bool {
		if host == seedHost {
			return true
		}
		return site != "" && registrableDomain(host) == site
	}, nil
}

func registrableDomain(host string) string {
	if net.ParseIP(host) != nil {
		return ""
	}
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return ""
	}
	return domain
}

// HostOf derives the throttling host of rawURL. Failures are returned as
// *MalformedURLError. Onion hosts must name a valid v3 service.
func HostOf(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", &MalformedURLError{URL: rawURL, Err: err}
	}
	host := normalizeHost(u.Hostname())
	if host == "" {
		return "", &MalformedURLError{URL: rawURL, Err: errMissingHost}
	}
	if tor.IsOnionHost(host) {
		if err := tor.ValidateOnionHost(host); err != nil {
			return "", &MalformedURLError{URL: rawURL, Err: err}
		}
	}
	return host, nil
}

func normalizeHost(host string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(host), "."))
}
