package model

import "time"

// Summary condenses a CrawlReport into the counts shown by the simple
// report and the history listing.
type Summary struct {
	SessionID      string        `json:"session_id"`
	SeedURL        string        `json:"seed_url"`
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	Downloaded     int           `json:"downloaded"`
	DownloadErrors int           `json:"download_errors"`
	MalformedURLs  int           `json:"malformed_urls"`
	Hosts          int           `json:"hosts"`
	Links          int           `json:"links"`
	Cancelled      bool          `json:"cancelled"`
}

// NewSummary summarizes report.
func NewSummary(report *CrawlReport) Summary {
	return Summary{
		SessionID:      report.SessionID,
		SeedURL:        report.SeedURL,
		StartedAt:      report.StartedAt,
		Duration:       report.Duration(),
		Downloaded:     len(report.Downloaded),
		DownloadErrors: len(report.FailuresByKind(FailureDownload)),
		MalformedURLs:  len(report.FailuresByKind(FailureMalformedURL)),
		Hosts:          len(report.Hosts()),
		Links:          len(report.Edges),
		Cancelled:      report.Cancelled,
	}
}

// Reached is the number of URLs that were downloaded or failed.
func (s Summary) Reached() int {
	return s.Downloaded + s.DownloadErrors + s.MalformedURLs
}

// SuccessRate is the share of reached URLs that downloaded, from 0 to 1.
func (s Summary) SuccessRate() float64 {
	if s.Reached() == 0 {
		return 0
	}
	return float64(s.Downloaded) / float64(s.Reached())
}
