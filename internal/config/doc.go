// Package config defines hostcrawl's run configuration: defaults, validation,
// the optional .hostcrawl YAML file with per-host settings and the XDG
// directories used for the crawl archive.
package config
