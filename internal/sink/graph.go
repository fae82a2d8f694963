package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/nao1215/hostcrawl/internal/model"
)

// SessionRunner abstracts neo4j.SessionWithContext.
type SessionRunner interface {
	ExecuteWrite(ctx context.Context, work neo4j.ManagedTransactionWork, configurers ...func(*neo4j.TransactionConfig)) (any, error)
	Close(ctx context.Context) error
}

// DriverSessioner abstracts neo4j.DriverWithContext.
type DriverSessioner interface {
	NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner
	Close(ctx context.Context) error
}

type neo4jDriver struct {
	driver neo4j.DriverWithContext
}

func (d *neo4jDriver) NewSession(ctx context.Context, config neo4j.SessionConfig) SessionRunner {
	return d.driver.NewSession(ctx, config)
}

func (d *neo4jDriver) Close(ctx context.Context) error {
	return d.driver.Close(ctx)
}

// GraphWriter merges crawl link graphs into Neo4j.
type GraphWriter struct {
	driver DriverSessioner
	logger *slog.Logger
}

// NewGraphWriter connects to Neo4j at uri with basic auth.
func NewGraphWriter(uri, user, password string, logger *slog.Logger) (*GraphWriter, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	return NewGraphWriterWithDriver(&neo4jDriver{driver: driver}, logger), nil
}

// NewGraphWriterWithDriver builds a writer on a custom driver.
func NewGraphWriterWithDriver(driver DriverSessioner, logger *slog.Logger) *GraphWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphWriter{driver: driver, logger: logger}
}

// Close closes the driver.
func (w *GraphWriter) Close(ctx context.Context) error {
	return w.driver.Close(ctx)
}

// WriteReport merges a Page node per reached URL and a LINKS_TO edge per
// extracted link. Re-writing a session is idempotent.
func (w *GraphWriter) WriteReport(ctx context.Context, report *model.CrawlReport) error {
	if query, params := buildPagesQuery(report); query != "" {
		if err := w.runWrite(ctx, query, params); err != nil {
			return fmt.Errorf("failed to write pages: %w", err)
		}
	}
	if query, params := buildEdgesQuery(report); query != "" {
		if err := w.runWrite(ctx, query, params); err != nil {
			return fmt.Errorf("failed to write links: %w", err)
		}
	}
	return nil
}

func (w *GraphWriter) runWrite(ctx context.Context, query string, params map[string]any) error {
	session := w.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer func() {
		if err := session.Close(ctx); err != nil {
			w.logger.Warn("neo4j session close error", "error", err)
		}
	}()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, query, params)
		return nil, err
	})
	return err
}

func buildPagesQuery(report *model.CrawlReport) (string, map[string]any) {
	pages := make([]map[string]any, 0, len(report.Downloaded)+len(report.Failures))
	for _, u := range report.Downloaded {
		pages = append(pages, map[string]any{"url": u, "status": OutcomeDownloaded, "depth": report.Depths[u]})
	}
	for _, f := range report.Failures {
		pages = append(pages, map[string]any{"url": f.URL, "status": OutcomeFailed, "depth": report.Depths[f.URL]})
	}
	if len(pages) == 0 {
		return "", nil
	}

	query := "UNWIND $pages AS p " +
		"MERGE (n:Page {url: p.url}) " +
		"SET n.status = p.status, n.depth = p.depth, n.session_id = $session_id, n.seed_url = $seed_url"
	params := map[string]any{
		"pages":      pages,
		"session_id": report.SessionID,
		"seed_url":   report.SeedURL,
	}
	return query, params
}

func buildEdgesQuery(report *model.CrawlReport) (string, map[string]any) {
	if len(report.Edges) == 0 {
		return "", nil
	}
	edges := make([]map[string]any, len(report.Edges))
	for i, e := range report.Edges {
		edges[i] = map[string]any{"from": e.From, "to": e.To}
	}

	query := "UNWIND $edges AS e " +
		"MERGE (from:Page {url: e.from}) " +
		"MERGE (to:Page {url: e.to}) " +
		"MERGE (from)-[r:LINKS_TO {session_id: $session_id}]->(to)"
	params := map[string]any{
		"edges":      edges,
		"session_id": report.SessionID,
	}
	return query, params
}
