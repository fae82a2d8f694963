// Package model defines the data passed between hostcrawl's stages:
// the CrawlReport built from a crawl, its failures and link graph, the
// LinkRecorder that gathers the graph while the crawl runs and the Summary
// used for short listings.
//
// Reports are serializable to JSON and are what the archive stores and the
// sinks publish.
package model
