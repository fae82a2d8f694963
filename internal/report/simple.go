package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/hostcrawl/internal/model"
)

// SimpleWriter outputs plain-text reports for terminal display.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints sections that have nothing in them.
	showEmpty bool

	// verbose lists every downloaded URL.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists downloaded URLs in addition to failures.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the full report.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	summary := model.NewSummary(report)
	w.writeHeader(&sb, summary, report.MaxDepth, report.Error)
	w.writeSummary(&sb, summary)
	w.writeLayers(&sb, report)
	w.writeFailures(&sb, report)
	if w.verbose {
		w.writeDownloaded(&sb, report)
	}
	w.writeFooter(&sb)

	return w.output.Write([]byte(sb.String()))
}

// WriteSummary outputs the header and counts only.
func (w *SimpleWriter) WriteSummary(summary model.Summary) (int, error) {
	var sb strings.Builder
	w.writeHeader(&sb, summary, 0, "")
	w.writeSummary(&sb, summary)
	w.writeFooter(&sb)
	return w.output.Write([]byte(sb.String()))
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, s model.Summary, maxDepth int, errMsg string) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                          HOSTCRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Seed URL:   %s\n", s.SeedURL)
	fmt.Fprintf(sb, "Session:    %s\n", s.SessionID)
	fmt.Fprintf(sb, "Started:    %s\n", s.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Duration:   %s\n", s.Duration.Round(time.Millisecond))
	if maxDepth > 0 {
		fmt.Fprintf(sb, "Max Depth:  %d\n", maxDepth)
	}
	fmt.Fprintf(sb, "Status:     %s\n", statusText(s.Cancelled, errMsg))
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeSummary(sb *strings.Builder, s model.Summary) {
	section(sb, "SUMMARY")

	fmt.Fprintf(sb, "  Downloaded:      %d\n", s.Downloaded)
	fmt.Fprintf(sb, "  Download errors: %d\n", s.DownloadErrors)
	fmt.Fprintf(sb, "  Malformed URLs:  %d\n", s.MalformedURLs)
	fmt.Fprintf(sb, "  Hosts:           %d\n", s.Hosts)
	fmt.Fprintf(sb, "  Links:           %d\n", s.Links)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  SUCCESS RATE:    %.1f%%\n", s.SuccessRate()*100)
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeLayers(sb *strings.Builder, report *model.CrawlReport) {
	if len(report.Depths) == 0 && !w.showEmpty {
		return
	}
	section(sb, "PAGES PER LAYER")
	for i, n := range report.PagesPerLayer() {
		fmt.Fprintf(sb, "  Layer %d: %d\n", i+1, n)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFailures(sb *strings.Builder, report *model.CrawlReport) {
	if !report.HasFailures() && !w.showEmpty {
		return
	}
	section(sb, "FAILURES")

	if !report.HasFailures() {
		sb.WriteString("  No failures\n\n")
		return
	}
	for _, kind := range []model.FailureKind{model.FailureDownload, model.FailureMalformedURL} {
		failures := report.FailuresByKind(kind)
		if len(failures) == 0 {
			continue
		}
		fmt.Fprintf(sb, "[!] %s (%d)\n", kind, len(failures))
		for _, f := range failures {
			fmt.Fprintf(sb, "  * %s\n", f.URL)
			if f.Message != "" {
				fmt.Fprintf(sb, "    Error: %s\n", f.Message)
			}
		}
		sb.WriteString("\n")
	}
}

func (w *SimpleWriter) writeDownloaded(sb *strings.Builder, report *model.CrawlReport) {
	section(sb, "DOWNLOADED")
	if len(report.Downloaded) == 0 {
		sb.WriteString("  Nothing downloaded\n\n")
		return
	}
	for _, u := range report.Downloaded {
		fmt.Fprintf(sb, "  [+] %s\n", u)
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by hostcrawl\n")
	sb.WriteString("https://github.com/nao1215/hostcrawl\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
