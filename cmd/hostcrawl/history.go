package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/hostcrawl/internal/config"
	"github.com/nao1215/hostcrawl/internal/database"
	"github.com/nao1215/hostcrawl/internal/model"
	"github.com/nao1215/hostcrawl/internal/report"
)

const historyTimeLayout = "2006-01-02 15:04:05"

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed]",
		Short: "Show archived crawls",
		Long: `History reads the crawl archive written by 'hostcrawl crawl --save'.

Without flags it lists archived crawls, newest first, optionally limited to
one seed URL. --show prints a stored report in the same formats as the crawl
command; add --pages to list the stored page rows instead. --diff compares
the two most recent crawls of a seed.

Examples:
  # List every archived crawl
  hostcrawl history

  # List the crawls of one seed
  hostcrawl history https://example.com

  # List archived seeds
  hostcrawl history --seeds

  # Print an archived report as Markdown
  hostcrawl history --show <session-id> --markdown

  # List the failed pages of a crawl
  hostcrawl history --show <session-id> --pages --status failed

  # Compare the latest two crawls of a seed
  hostcrawl history --diff https://example.com`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().BoolP("seeds", "L", false,
		"List archived seed URLs")
	cmd.Flags().StringP("show", "s", "",
		"Print the archived report with this session ID")
	cmd.Flags().BoolP("pages", "p", false,
		"With --show, list the crawl's page rows")
	cmd.Flags().String("status", "",
		"With --pages, only list pages with this status (downloaded or failed)")
	cmd.Flags().Bool("diff", false,
		"Compare the two most recent crawls of the seed")

	cmd.Flags().BoolP("json", "j", false,
		"Output in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output reports in Markdown format")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the crawl archive")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	seed     string
	seeds    bool
	show     string
	pages    bool
	status   string
	diff     bool
	json     bool
	markdown bool
	dbDir    string
}

func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var (
		opts historyOptions
		err  error
	)
	flags := cmd.Flags()
	if opts.seeds, err = flags.GetBool("seeds"); err != nil {
		return opts, err
	}
	if opts.show, err = flags.GetString("show"); err != nil {
		return opts, err
	}
	if opts.pages, err = flags.GetBool("pages"); err != nil {
		return opts, err
	}
	if opts.status, err = flags.GetString("status"); err != nil {
		return opts, err
	}
	if opts.diff, err = flags.GetBool("diff"); err != nil {
		return opts, err
	}
	if opts.json, err = flags.GetBool("json"); err != nil {
		return opts, err
	}
	if opts.markdown, err = flags.GetBool("markdown"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}

	if len(args) == 1 {
		if opts.seed, err = normalizeTarget(args[0]); err != nil {
			return opts, err
		}
	}

	switch {
	case opts.json && opts.markdown:
		return opts, config.ErrConflictingReportFormats
	case opts.pages && opts.show == "":
		return opts, errors.New("--pages requires --show")
	case opts.status != "" && !opts.pages:
		return opts, errors.New("--status requires --pages")
	case opts.status != "" && opts.status != database.StatusDownloaded && opts.status != database.StatusFailed:
		return opts, fmt.Errorf("invalid status %q: use %s or %s", opts.status, database.StatusDownloaded, database.StatusFailed)
	case opts.diff && opts.seed == "":
		return opts, errors.New("--diff requires a seed URL")
	}
	return opts, nil
}

func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// The history command never creates an archive.
	db, err := database.Open(opts.dbDir, database.Options{EnableWAL: true})
	if errors.Is(err, database.ErrNotFound) {
		fmt.Fprintln(out, "No crawl archive found.")
		fmt.Fprintln(out, "\nUse 'hostcrawl crawl --save <url>' to archive a crawl.")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	switch {
	case opts.seeds:
		return listSeeds(ctx, db, out)
	case opts.pages:
		return listPages(ctx, db, out, opts)
	case opts.show != "":
		return showReport(ctx, db, out, opts)
	case opts.diff:
		return diffLatest(ctx, db, out, opts)
	default:
		return listHistory(ctx, db, out, opts)
	}
}

func listSeeds(ctx context.Context, db *database.CrawlDB, out io.Writer) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		fmt.Fprintln(out, "No archived crawls.")
		return nil
	}

	fmt.Fprintf(out, "Archived seeds (%d):\n\n", len(seeds))
	for _, seed := range seeds {
		fmt.Fprintf(out, "  • %s\n", seed)
	}
	fmt.Fprintln(out, "\nUse 'hostcrawl history <seed>' to see the crawls of a seed.")
	return nil
}

func listHistory(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	sessions, err := db.GetCrawlHistory(ctx, opts.seed)
	if err != nil {
		return err
	}

	if opts.json {
		return writeJSON(out, sessions)
	}

	if len(sessions) == 0 {
		if opts.seed != "" {
			fmt.Fprintf(out, "No archived crawls of %s\n", opts.seed)
		} else {
			fmt.Fprintln(out, "No archived crawls.")
		}
		return nil
	}

	fmt.Fprintf(out, "Archived crawls (%d):\n\n", len(sessions))
	fmt.Fprintf(out, "  %-36s  %-19s  %5s  %10s  %6s  %s\n",
		"ID", "Started", "Depth", "Downloaded", "Failed", "Seed")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))
	for _, s := range sessions {
		seed := s.SeedURL
		if s.Cancelled {
			seed += " (cancelled)"
		}
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %10d  %6d  %s\n",
			s.ID, formatHistoryTime(s.StartedAt), s.MaxDepth, s.Downloaded, s.Failed, seed)
	}
	fmt.Fprintln(out, "\nUse 'hostcrawl history --show <id>' to print a report.")
	return nil
}

func showReport(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	rep, err := db.GetCrawlReport(ctx, opts.show)
	if err != nil {
		return fmt.Errorf("failed to load crawl %s: %w", opts.show, err)
	}

	var w report.Writer
	switch {
	case opts.json:
		w = report.NewFullJSONWriter(out, getVersion(), report.WithPrettyPrint())
	case opts.markdown:
		w = report.NewMarkdownWriter(out)
	default:
		w = report.NewSimpleWriter(out, report.WithVerbose(true))
	}
	_, err = w.Write(rep)
	return err
}

func listPages(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	// Distinguish an unknown session from one with no matching pages.
	if _, err := db.GetCrawlReport(ctx, opts.show); err != nil {
		return fmt.Errorf("failed to load crawl %s: %w", opts.show, err)
	}
	pages, err := db.GetPages(ctx, opts.show, opts.status)
	if err != nil {
		return err
	}

	if opts.json {
		return writeJSON(out, pages)
	}

	fmt.Fprintf(out, "Pages of %s (%d):\n\n", opts.show, len(pages))
	for _, p := range pages {
		switch p.Status {
		case database.StatusFailed:
			fmt.Fprintf(out, "  [!] %d  %s  (%s: %s)\n", p.Depth, p.URL, p.Kind, p.Message)
		default:
			fmt.Fprintf(out, "  [+] %d  %s\n", p.Depth, p.URL)
		}
	}
	return nil
}

// CrawlDiff describes how the reach of a seed changed between two crawls.
type CrawlDiff struct {
	SeedURL         string    `json:"seed_url"`
	PreviousSession string    `json:"previous_session"`
	PreviousStarted time.Time `json:"previous_started"`
	CurrentSession  string    `json:"current_session"`
	CurrentStarted  time.Time `json:"current_started"`

	// NewPages were downloaded now but not before.
	NewPages []string `json:"new_pages,omitempty"`

	// LostPages were downloaded before but not now.
	LostPages []string `json:"lost_pages,omitempty"`

	// NewFailures fail now but did not fail before.
	NewFailures []string `json:"new_failures,omitempty"`

	// Recovered failed before and were downloaded now.
	Recovered []string `json:"recovered,omitempty"`

	Unchanged int `json:"unchanged"`
}

func diffLatest(ctx context.Context, db *database.CrawlDB, out io.Writer, opts historyOptions) error {
	sessions, err := db.GetCrawlHistory(ctx, opts.seed)
	if err != nil {
		return err
	}
	if len(sessions) < 2 {
		return fmt.Errorf("at least 2 archived crawls of %s are required (found %d)", opts.seed, len(sessions))
	}

	current, err := db.GetCrawlReport(ctx, sessions[0].ID)
	if err != nil {
		return err
	}
	previous, err := db.GetCrawlReport(ctx, sessions[1].ID)
	if err != nil {
		return err
	}

	diff := compareCrawls(previous, current)
	if opts.json {
		return writeJSON(out, diff)
	}
	writeDiffText(out, diff)
	return nil
}

// compareCrawls compares the downloaded and failed URLs of two crawls of
// the same seed.
func compareCrawls(previous, current *model.CrawlReport) *CrawlDiff {
	diff := &CrawlDiff{
		SeedURL:         current.SeedURL,
		PreviousSession: previous.SessionID,
		PreviousStarted: previous.StartedAt,
		CurrentSession:  current.SessionID,
		CurrentStarted:  current.StartedAt,
	}

	prevDownloaded := toSet(previous.Downloaded)
	curDownloaded := toSet(current.Downloaded)
	prevFailed := failedSet(previous)

	for _, u := range current.Downloaded {
		switch {
		case prevDownloaded[u]:
			diff.Unchanged++
		case prevFailed[u]:
			diff.Recovered = append(diff.Recovered, u)
		default:
			diff.NewPages = append(diff.NewPages, u)
		}
	}
	for _, u := range previous.Downloaded {
		if !curDownloaded[u] {
			diff.LostPages = append(diff.LostPages, u)
		}
	}
	for _, f := range current.Failures {
		if !prevFailed[f.URL] {
			diff.NewFailures = append(diff.NewFailures, f.URL)
		}
	}

	slices.Sort(diff.NewPages)
	slices.Sort(diff.LostPages)
	slices.Sort(diff.NewFailures)
	slices.Sort(diff.Recovered)
	return diff
}

func toSet(urls []string) map[string]bool {
	set := make(map[string]bool, len(urls))
	for _, u := range urls {
		set[u] = true
	}
	return set
}

func failedSet(r *model.CrawlReport) map[string]bool {
	set := make(map[string]bool, len(r.Failures))
	for _, f := range r.Failures {
		set[f.URL] = true
	}
	return set
}

func writeDiffText(out io.Writer, diff *CrawlDiff) {
	fmt.Fprintf(out, "Crawl Comparison: %s\n", diff.SeedURL)
	fmt.Fprintln(out, strings.Repeat("=", 60))
	fmt.Fprintf(out, "\nPrevious crawl: %s  (%s)\n", formatHistoryTime(diff.PreviousStarted), diff.PreviousSession)
	fmt.Fprintf(out, "Current crawl:  %s  (%s)\n", formatHistoryTime(diff.CurrentStarted), diff.CurrentSession)

	printURLs := func(title, marker string, urls []string) {
		if len(urls) == 0 {
			return
		}
		fmt.Fprintf(out, "\n%s (%d):\n", title, len(urls))
		for _, u := range urls {
			fmt.Fprintf(out, "  [%s] %s\n", marker, u)
		}
	}
	printURLs("New Pages", "+", diff.NewPages)
	printURLs("Lost Pages", "-", diff.LostPages)
	printURLs("New Failures", "!", diff.NewFailures)
	printURLs("Recovered", "~", diff.Recovered)

	fmt.Fprintf(out, "\nUnchanged: %d pages\n", diff.Unchanged)
}

func formatHistoryTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format(historyTimeLayout)
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
