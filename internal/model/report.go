package model

import "time"

// BytesPerMegabyte is the divisor used for all megabyte figures.
const BytesPerMegabyte = 1 << 20

// CrawlReport holds the aggregate result of a crawl.
// FilesDownloaded and TotalBytes only count successful outcomes.
type CrawlReport struct {
	// RunID identifies the crawl in the history database.
	RunID string `json:"run_id,omitempty"`

	// PageURL is the crawled page.
	PageURL string `json:"page_url"`

	// PageTitle is the <title> of the crawled page, if any.
	PageTitle string `json:"page_title,omitempty"`

	// StartedAt is when dispatching began.
	StartedAt time.Time `json:"started_at"`

	FilesDownloaded int     `json:"files_downloaded"`
	TotalBytes      int64   `json:"total_bytes"`
	ElapsedSeconds  float64 `json:"elapsed_seconds"`
	BandwidthMBps   float64 `json:"bandwidth_mbps"`

	// Dispatched is the number of links handed to workers.
	Dispatched int `json:"dispatched"`

	// Failed is the number of outcomes that did not produce a file.
	Failed int `json:"failed"`

	// Outcomes lists every outcome in completion order.
	Outcomes []DownloadOutcome `json:"outcomes"`
}

// TotalMegabytes returns TotalBytes in megabytes.
func (r *CrawlReport) TotalMegabytes() float64 {
	return float64(r.TotalBytes) / BytesPerMegabyte
}

// Successes returns the successful outcomes in completion order.
func (r *CrawlReport) Successes() []DownloadOutcome {
	result := make([]DownloadOutcome, 0, r.FilesDownloaded)
	for _, o := range r.Outcomes {
		if o.Succeeded() {
			result = append(result, o)
		}
	}
	return result
}

// Failures returns the failed outcomes in completion order.
func (r *CrawlReport) Failures() []DownloadOutcome {
	result := make([]DownloadOutcome, 0, r.Failed)
	for _, o := range r.Outcomes {
		if !o.Succeeded() {
			result = append(result, o)
		}
	}
	return result
}

// Aggregator folds download outcomes into a CrawlReport.
// It is not safe for concurrent use: a single goroutine owns it and
// receives outcomes from the workers over a channel.
type Aggregator struct {
	report CrawlReport
}

// NewAggregator creates an empty aggregator for the given page.
func NewAggregator(pageURL string) *Aggregator {
	return &Aggregator{
		report: CrawlReport{
			PageURL:  pageURL,
			Outcomes: make([]DownloadOutcome, 0),
		},
	}
}

// Add records one outcome. Sums are order independent, so outcomes may
// arrive in any order.
func (a *Aggregator) Add(o DownloadOutcome) {
	a.report.Dispatched++
	a.report.Outcomes = append(a.report.Outcomes, o)
	if !o.Succeeded() {
		a.report.Failed++
		return
	}
	a.report.FilesDownloaded++
	a.report.TotalBytes += o.Bytes
}

// Finish stamps the timing figures and returns the report.
// Bandwidth is zero when the elapsed time is not positive.
func (a *Aggregator) Finish(start, end time.Time) *CrawlReport {
	r := a.report
	r.StartedAt = start
	r.ElapsedSeconds = end.Sub(start).Seconds()
	r.BandwidthMBps = Bandwidth(r.TotalBytes, r.ElapsedSeconds)
	return &r
}

// Bandwidth returns megabytes per second, or 0 when seconds is not positive.
func Bandwidth(totalBytes int64, seconds float64) float64 {
	if seconds <= 0 {
		return 0
	}
	return float64(totalBytes) / BytesPerMegabyte / seconds
}
