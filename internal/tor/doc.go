// Package tor lets the crawler reach onion services.
//
// It provides a SOCKS5 client (usually pointed at a Tor daemon) that builds
// HTTP clients for the crawler's fetcher, an embedded Tor daemon managed by
// tornago for `crawl --tor`, and v3 onion address validation used when the
// crawler derives hosts from URLs.
package tor
