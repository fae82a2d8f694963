// Package pipeline runs a crawl report through a sequence of steps: crawl
// the seed, then record the result in the configured sinks (status store,
// archive, broker, graph database).
//
// Steps that only record a report keep running after the context is
// cancelled, under a short detached context, so an interrupted crawl still
// leaves its partial results behind.
//
// BatchProcessor crawls several seeds concurrently with an errgroup limit.
package pipeline
