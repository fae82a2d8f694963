package report

import (
	"io"

	"github.com/nao1215/hostcrawl/internal/model"
)

// Writer renders crawl reports.
type Writer interface {
	// Write outputs the full report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.CrawlReport) (int, error)

	// WriteSummary outputs only the counts of a report.
	WriteSummary(summary model.Summary) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// It is a separate type from io.MultiWriter because it fans out reports,
// not bytes.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the report to every Writer and stops at the first error.
func (m *MultiWriter) Write(report *model.CrawlReport) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(report)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteSummary outputs the summary to every Writer.
func (m *MultiWriter) WriteSummary(summary model.Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.WriteSummary(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// statusText describes how a crawl ended.
func statusText(cancelled bool, errMsg string) string {
	switch {
	case errMsg != "" && cancelled:
		return "Cancelled (" + errMsg + ")"
	case cancelled:
		return "Cancelled (partial results)"
	case errMsg != "":
		return "Error - " + errMsg
	default:
		return "Complete"
	}
}
