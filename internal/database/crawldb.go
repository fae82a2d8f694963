package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/hostcrawl/internal/model"
)

// FileName is the archive's file name inside the database directory.
const FileName = "hostcrawl.db"

// ErrNotFound is returned when no archived crawl matches a lookup.
var ErrNotFound = errors.New("crawl not found")

// Page statuses stored in crawl_pages.
const (
	StatusDownloaded = "downloaded"
	StatusFailed     = "failed"
)

// CrawlDB archives finished crawls in SQLite. It keeps results for the
// history command; it is never used to resume a crawl.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures Open.
type Options struct {
	// CreateIfNotExists creates the directory and database file when missing.
	CreateIfNotExists bool

	// EnableWAL turns on write-ahead logging.
	EnableWAL bool
}

// DefaultOptions creates the database on demand with WAL enabled.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens the archive in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s: %w", dbPath, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS crawl_sessions (
		id TEXT PRIMARY KEY,
		seed_url TEXT NOT NULL,
		max_depth INTEGER NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		downloaded INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0,
		cancelled INTEGER NOT NULL DEFAULT 0,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_seed ON crawl_sessions(seed_url);
	CREATE INDEX IF NOT EXISTS idx_sessions_started ON crawl_sessions(started_at);

	CREATE TABLE IF NOT EXISTS crawl_pages (
		session_id TEXT NOT NULL REFERENCES crawl_sessions(id) ON DELETE CASCADE,
		url TEXT NOT NULL,
		depth INTEGER,
		status TEXT NOT NULL,
		kind TEXT,
		message TEXT,
		PRIMARY KEY (session_id, url)
	);

	CREATE INDEX IF NOT EXISTS idx_pages_url ON crawl_pages(url);
	`
	_, err := cdb.db.ExecContext(ctx, schema)
	return err
}

// SaveCrawlReport stores report and one row per reached page in a single
// transaction. Saving the same session again replaces it.
func (cdb *CrawlDB) SaveCrawlReport(ctx context.Context, report *model.CrawlReport) (err error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM crawl_pages WHERE session_id = ?`, report.SessionID); err != nil {
		return fmt.Errorf("failed to replace pages: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
	INSERT OR REPLACE INTO crawl_sessions
		(id, seed_url, max_depth, started_at, finished_at, downloaded, failed, cancelled, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.SessionID,
		report.SeedURL,
		report.MaxDepth,
		formatTimestamp(report.StartedAt),
		formatTimestamp(report.FinishedAt),
		len(report.Downloaded),
		len(report.Failures),
		report.Cancelled,
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save crawl session: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO crawl_pages (session_id, url, depth, status, kind, message)
	VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare page insert: %w", err)
	}
	defer stmt.Close()

	for _, u := range report.Downloaded {
		if _, err = stmt.ExecContext(ctx, report.SessionID, u, depthOf(report, u), StatusDownloaded, nil, nil); err != nil {
			return fmt.Errorf("failed to save page %s: %w", u, err)
		}
	}
	for _, f := range report.Failures {
		if _, err = stmt.ExecContext(ctx, report.SessionID, f.URL, depthOf(report, f.URL), StatusFailed, f.Kind.String(), f.Message); err != nil {
			return fmt.Errorf("failed to save page %s: %w", f.URL, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit crawl report: %w", err)
	}
	return nil
}

func depthOf(report *model.CrawlReport, rawURL string) any {
	if d, ok := report.Depths[rawURL]; ok {
		return d
	}
	return nil
}

// GetCrawlReport returns the archived report with the given session ID.
func (cdb *CrawlDB) GetCrawlReport(ctx context.Context, sessionID string) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `SELECT report_json FROM crawl_sessions WHERE id = ?`, sessionID)
}

// GetLatestCrawlReport returns the most recent report for seedURL.
func (cdb *CrawlDB) GetLatestCrawlReport(ctx context.Context, seedURL string) (*model.CrawlReport, error) {
	return cdb.queryReport(ctx, `
	SELECT report_json FROM crawl_sessions
	WHERE seed_url = ?
	ORDER BY started_at DESC
	LIMIT 1
	`, seedURL)
}

func (cdb *CrawlDB) queryReport(ctx context.Context, query string, args ...any) (*model.CrawlReport, error) {
	var reportJSON string
	err := cdb.db.QueryRowContext(ctx, query, args...).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl report: %w", err)
	}

	var report model.CrawlReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// ListSeeds returns every archived seed URL, sorted.
func (cdb *CrawlDB) ListSeeds(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT seed_url FROM crawl_sessions ORDER BY seed_url`)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}
	return seeds, rows.Err()
}

// SessionMetadata summarizes an archived crawl without loading its report.
type SessionMetadata struct {
	ID         string    `json:"id"`
	SeedURL    string    `json:"seed_url"`
	MaxDepth   int       `json:"max_depth"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Downloaded int       `json:"downloaded"`
	Failed     int       `json:"failed"`
	Cancelled  bool      `json:"cancelled"`
}

// GetCrawlHistory lists the archived crawls of seedURL, newest first. An
// empty seedURL lists every crawl.
func (cdb *CrawlDB) GetCrawlHistory(ctx context.Context, seedURL string) ([]SessionMetadata, error) {
	query := `
	SELECT id, seed_url, max_depth, started_at, finished_at, downloaded, failed, cancelled
	FROM crawl_sessions
	WHERE ? = '' OR seed_url = ?
	ORDER BY started_at DESC
	`
	rows, err := cdb.db.QueryContext(ctx, query, seedURL, seedURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get crawl history: %w", err)
	}
	defer rows.Close()

	var results []SessionMetadata
	for rows.Next() {
		var (
			meta     SessionMetadata
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&meta.ID, &meta.SeedURL, &meta.MaxDepth, &started, &finished,
			&meta.Downloaded, &meta.Failed, &meta.Cancelled); err != nil {
			return nil, fmt.Errorf("failed to scan crawl session: %w", err)
		}
		meta.StartedAt = parseTimestamp(started)
		if finished.Valid {
			meta.FinishedAt = parseTimestamp(finished.String)
		}
		results = append(results, meta)
	}
	return results, rows.Err()
}

// PageRecord is one reached URL of an archived crawl.
type PageRecord struct {
	URL     string `json:"url"`
	Depth   int    `json:"depth"`
	Status  string `json:"status"`
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message,omitempty"`
}

// GetPages returns the pages of an archived crawl, optionally filtered by
// status (StatusDownloaded or StatusFailed; "" for all), sorted by URL.
func (cdb *CrawlDB) GetPages(ctx context.Context, sessionID, status string) ([]PageRecord, error) {
	query := `
	SELECT url, depth, status, kind, message
	FROM crawl_pages
	WHERE session_id = ? AND (? = '' OR status = ?)
	ORDER BY url
	`
	rows, err := cdb.db.QueryContext(ctx, query, sessionID, status, status)
	if err != nil {
		return nil, fmt.Errorf("failed to get pages: %w", err)
	}
	defer rows.Close()

	var pages []PageRecord
	for rows.Next() {
		var (
			p             PageRecord
			depth         sql.NullInt64
			kind, message sql.NullString
		)
		if err := rows.Scan(&p.URL, &depth, &p.Status, &kind, &message); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Depth = int(depth.Int64)
		p.Kind = kind.String
		p.Message = message.String
		pages = append(pages, p)
	}
	return pages, rows.Err()
}

// storedTimestamp has fixed width so that text ordering is time ordering.
const storedTimestamp = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(storedTimestamp)
}

// timestampFormats are tried in order; rows written by older builds or by
// hand may use SQLite's default layout.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
