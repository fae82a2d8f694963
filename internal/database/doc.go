// Package database archives finished crawls in SQLite via modernc.org/sqlite,
// a CGO-free driver, so the binary cross-compiles and the archive is a
// single file under the XDG data directory.
//
// Two tables are kept:
//   - crawl_sessions: one row per crawl with counts and the full JSON report
//   - crawl_pages: one row per reached URL with its layer and outcome
//
// The archive feeds the history command. It is not crawl state: an
// interrupted crawl is archived as cancelled and never resumed.
package database
