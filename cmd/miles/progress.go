package main

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"

	"github.com/nao1215/miles/internal/model"
)

// maxSpinnerURLLength keeps the spinner line on one terminal row.
const maxSpinnerURLLength = 50

// progress shows a spinner with running download counts on stderr.
// Update is called from the scheduler's aggregator goroutine only.
type progress struct {
	spinner *spinner.Spinner

	done   int
	failed int
}

// newProgress returns a progress display writing to w. A disabled progress
// only counts outcomes.
func newProgress(w io.Writer, enabled bool) *progress {
	p := &progress{}
	if !enabled {
		return p
	}
	p.spinner = spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(w))
	p.spinner.Suffix = " fetching page..."
	return p
}

// Start starts the spinner.
func (p *progress) Start() {
	if p.spinner != nil {
		p.spinner.Start()
	}
}

// Stop stops the spinner and clears its line.
func (p *progress) Stop() {
	if p.spinner != nil {
		p.spinner.Stop()
	}
}

// Update records one outcome and refreshes the spinner text.
func (p *progress) Update(o model.DownloadOutcome) {
	p.done++
	if !o.Succeeded() {
		p.failed++
	}
	if p.spinner == nil {
		return
	}
	p.spinner.Lock()
	p.spinner.Suffix = fmt.Sprintf(" [%d done, %d failed] %s", p.done, p.failed, formatSpinnerURL(o.SourceURL))
	p.spinner.Unlock()
}

// formatSpinnerURL shortens a URL to its tail.
func formatSpinnerURL(u string) string {
	if len(u) <= maxSpinnerURLLength {
		return u
	}
	return "..." + u[len(u)-(maxSpinnerURLLength-3):]
}
