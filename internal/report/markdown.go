package report

import (
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/hostcrawl/internal/model"
)

// MarkdownWriter outputs reports as GitHub-flavored Markdown for sharing.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the full report.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)
	summary := model.NewSummary(report)

	w.writeHeader(md, summary, report.MaxDepth, report.Error)
	w.writeSummary(md, summary)
	w.writeLayers(md, report)
	w.writeHosts(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// WriteSummary outputs the header and counts only.
func (w *MarkdownWriter) WriteSummary(summary model.Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, summary, 0, "")
	w.writeSummary(md, summary)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, s model.Summary, maxDepth int, errMsg string) {
	md.H1("Crawl Report")
	md.PlainText("")

	rows := [][]string{
		{"Seed URL", "`" + s.SeedURL + "`"},
		{"Session", "`" + s.SessionID + "`"},
		{"Started", s.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", s.Duration.Round(time.Millisecond).String()},
	}
	if maxDepth > 0 {
		rows = append(rows, []string{"Max Depth", strconv.Itoa(maxDepth)})
	}
	rows = append(rows, []string{"Status", statusIcon(s.Cancelled, errMsg) + " " + statusText(s.Cancelled, errMsg)})

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func statusIcon(cancelled bool, errMsg string) string {
	switch {
	case cancelled:
		return "⚠️"
	case errMsg != "":
		return "❌"
	default:
		return "✅"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, s model.Summary) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"Downloaded", strconv.Itoa(s.Downloaded)},
			{"Download errors", strconv.Itoa(s.DownloadErrors)},
			{"Malformed URLs", strconv.Itoa(s.MalformedURLs)},
			{"Hosts", strconv.Itoa(s.Hosts)},
			{"Links", strconv.Itoa(s.Links)},
			{"**Reached**", "**" + strconv.Itoa(s.Reached()) + "**"},
		},
	})
	md.PlainText("")

	if s.Reached() > 0 {
		w.writePieChart(md, s)
	}
	w.writeAlert(md, s)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s model.Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Crawl Outcomes"),
		piechart.WithShowData(true),
	)

	if s.Downloaded > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(s.Downloaded))
	}
	if s.DownloadErrors > 0 {
		chart.LabelAndIntValue("Download errors", uint64(s.DownloadErrors))
	}
	if s.MalformedURLs > 0 {
		chart.LabelAndIntValue("Malformed URLs", uint64(s.MalformedURLs))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, s model.Summary) {
	switch {
	case s.Cancelled:
		md.Warningf("The crawl was cancelled. Results are partial.")
	case s.Reached() > 0 && s.Downloaded == 0:
		md.Cautionf("Nothing could be downloaded. %d URL(s) failed.", s.Reached())
	case s.DownloadErrors+s.MalformedURLs > 0:
		md.Importantf("%d of %d reached URL(s) failed.", s.DownloadErrors+s.MalformedURLs, s.Reached())
	case s.Reached() == 0:
		md.Note("No URL was reached. The seed may be excluded by the host filter.")
	default:
		md.Tip("Every reached URL was downloaded.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeLayers(md *markdown.Markdown, report *model.CrawlReport) {
	layers := report.PagesPerLayer()
	if len(layers) == 0 {
		return
	}

	md.H2("Pages per Layer")
	md.PlainText("")

	rows := make([][]string, len(layers))
	for i, n := range layers {
		rows[i] = []string{strconv.Itoa(i + 1), strconv.Itoa(n)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Layer", "Downloaded"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeHosts(md *markdown.Markdown, report *model.CrawlReport) {
	hosts := report.Hosts()
	if len(hosts) == 0 {
		return
	}
	md.H2("Hosts")
	md.PlainText("")
	md.BulletList(hosts...)
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Failures")
	md.PlainText("")

	if !report.HasFailures() {
		md.PlainText("No failures.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Failures))
	for i, f := range report.Failures {
		msg := f.Message
		if msg == "" {
			msg = "-"
		}
		rows[i] = []string{
			"`" + truncateString(f.URL, 80) + "`",
			f.Kind.String(),
			truncateString(msg, 80),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Kind", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [hostcrawl](https://github.com/nao1215/hostcrawl)*")
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
