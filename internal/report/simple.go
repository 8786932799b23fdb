package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/nao1215/miles/internal/model"
)

// SimpleWriter prints the crawl summary as plain text. The first four
// lines are always:
//
//	Files Downloaded: 3
//	Bytes Downloaded: 0.07 MB
//	Elapsed Time:     0.52 s
//	Bandwidth:        0.13 MB/s
type SimpleWriter struct {
	baseWriter

	// verbose appends one line per outcome.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose lists every downloaded and failed file after the summary.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write prints the summary.
func (w *SimpleWriter) Write(report *model.CrawlReport) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Files Downloaded: %d\n", report.FilesDownloaded)
	fmt.Fprintf(&sb, "Bytes Downloaded: %.2f MB\n", report.TotalMegabytes())
	fmt.Fprintf(&sb, "Elapsed Time:     %.2f s\n", report.ElapsedSeconds)
	fmt.Fprintf(&sb, "Bandwidth:        %.2f MB/s\n", report.BandwidthMBps)

	if w.verbose {
		w.writeOutcomes(&sb, report)
	}

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeOutcomes(sb *strings.Builder, report *model.CrawlReport) {
	successes := report.Successes()
	if len(successes) > 0 {
		sb.WriteString("\nDownloaded:\n")
		for _, o := range successes {
			fmt.Fprintf(sb, "  %s (%s)\n", o.LocalPath, humanize.IBytes(uint64(o.Bytes))) //nolint:gosec // byte counts are never negative
		}
	}

	failures := report.Failures()
	if len(failures) > 0 {
		sb.WriteString("\nFailed:\n")
		for _, o := range failures {
			fmt.Fprintf(sb, "  %s: %s", o.SourceURL, o.Error)
			if o.Reason != "" {
				fmt.Fprintf(sb, " (%s)", o.Reason)
			}
			sb.WriteString("\n")
		}
	}
}
