// Package main provides the entry point for the hostcrawl CLI.
//
// hostcrawl crawls websites breadth-first to a fixed depth, with a cap on
// simultaneous downloads per host, and records what it reached.
//
// Usage:
//
//	hostcrawl crawl <url>...
//	hostcrawl history [seed]
//
// See --help for all available options.
package main

func main() {
	Execute()
}
