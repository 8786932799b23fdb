package report

import (
	"fmt"
	"io"
	"maps"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/nao1215/miles/internal/model"
)

// MarkdownWriter outputs reports as GitHub Flavored Markdown.
type MarkdownWriter struct {
	baseWriter

	printer *message.Printer
	upper   cases.Caser
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
		printer:    message.NewPrinter(language.English),
		upper:      cases.Upper(language.Und),
	}
}

// Write outputs the report.
func (w *MarkdownWriter) Write(report *model.CrawlReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeSummary(md, report)
	w.writeTypes(md, report)
	w.writeFiles(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.CrawlReport) {
	md.H1("miles Crawl Report")
	md.PlainText("")

	title := report.PageTitle
	if title == "" {
		title = "-"
	}
	runID := report.RunID
	if runID == "" {
		runID = "-"
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Page", "`" + report.PageURL + "`"},
			{"Title", escapeCell(title)},
			{"Run ID", "`" + runID + "`"},
			{"Started", report.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Status", statusText(report)},
		},
	})
	md.PlainText("")
}

func statusText(report *model.CrawlReport) string {
	switch {
	case report.Dispatched == 0:
		return "➖ No matching links"
	case report.FilesDownloaded == 0:
		return "❌ All downloads failed"
	case report.Failed > 0:
		return fmt.Sprintf("⚠️ Partial (%d failed)", report.Failed)
	default:
		return "✅ Complete"
	}
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Summary")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Files Downloaded", w.printer.Sprintf("%d", report.FilesDownloaded)},
			{"Bytes Downloaded", w.sizeText(report.TotalBytes)},
			{"Elapsed Time", strconv.FormatFloat(report.ElapsedSeconds, 'f', 2, 64) + " s"},
			{"Bandwidth", strconv.FormatFloat(report.BandwidthMBps, 'f', 2, 64) + " MB/s"},
			{"Links Dispatched", w.printer.Sprintf("%d", report.Dispatched)},
			{"Failed", w.printer.Sprintf("%d", report.Failed)},
		},
	})
	md.PlainText("")

	if report.Dispatched > 0 {
		w.writePieChart(md, report)
	}
	w.writeAlert(md, report)
}

// sizeText formats n as "1.2 MiB (1,234,567 bytes)".
func (w *MarkdownWriter) sizeText(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n)) + w.printer.Sprintf(" (%d bytes)", n)
}

func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, report *model.CrawlReport) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Download Outcomes"),
		piechart.WithShowData(true),
	)
	if report.FilesDownloaded > 0 {
		chart.LabelAndIntValue("Downloaded", uint64(report.FilesDownloaded))
	}
	if report.Failed > 0 {
		chart.LabelAndIntValue("Failed", uint64(report.Failed))
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeAlert(md *markdown.Markdown, report *model.CrawlReport) {
	switch {
	case report.Dispatched == 0:
		md.Note("The page was fetched but contained no links of the requested types.")
	case report.FilesDownloaded == 0:
		md.Cautionf("None of the %d discovered files could be downloaded.", report.Dispatched)
	case report.Failed > 0:
		md.Warningf("%d of %d files could not be downloaded.", report.Failed, report.Dispatched)
	default:
		md.Tip("Every discovered file was downloaded.")
	}
	md.PlainText("")
}

// writeTypes summarises successful downloads by file extension.
func (w *MarkdownWriter) writeTypes(md *markdown.Markdown, report *model.CrawlReport) {
	successes := report.Successes()
	if len(successes) == 0 {
		return
	}

	type tally struct {
		files int
		bytes int64
	}
	byType := make(map[string]*tally)
	for _, o := range successes {
		ext := strings.TrimPrefix(path.Ext(o.LocalPath), ".")
		if ext == "" {
			ext = "other"
		}
		ext = w.upper.String(ext)
		t, ok := byType[ext]
		if !ok {
			t = &tally{}
			byType[ext] = t
		}
		t.files++
		t.bytes += o.Bytes
	}

	rows := make([][]string, 0, len(byType))
	for _, ext := range slices.Sorted(maps.Keys(byType)) {
		t := byType[ext]
		rows = append(rows, []string{ext, strconv.Itoa(t.files), w.sizeText(t.bytes)})
	}

	md.H2("File Types")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Type", "Files", "Size"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFiles(md *markdown.Markdown, report *model.CrawlReport) {
	md.H2("Downloaded Files")
	md.PlainText("")

	successes := report.Successes()
	if len(successes) == 0 {
		md.PlainText("No files were downloaded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(successes))
	for i, o := range successes {
		rows[i] = []string{
			"`" + path.Base(o.LocalPath) + "`",
			humanize.IBytes(uint64(o.Bytes)), //nolint:gosec // byte counts are never negative
			"`" + truncateString(o.Checksum, 16) + "`",
			truncateString(o.SourceURL, 60),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"File", "Size", "SHA3-256", "Source"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, o := range successes {
		if len(o.Metadata) == 0 {
			continue
		}
		lines := make([]string, 0, len(o.Metadata))
		for _, k := range slices.Sorted(maps.Keys(o.Metadata)) {
			lines = append(lines, k+": "+o.Metadata[k])
		}
		md.Details("Metadata: "+path.Base(o.LocalPath), strings.Join(lines, "\n"))
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.CrawlReport) {
	failures := report.Failures()
	if len(failures) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")

	rows := make([][]string, len(failures))
	for i, o := range failures {
		reason := o.Reason
		if reason == "" {
			reason = "-"
		}
		rows[i] = []string{
			truncateString(o.SourceURL, 60),
			o.Error.String(),
			escapeCell(truncateString(reason, 60)),
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Error", "Reason"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Report generated by [miles](https://github.com/nao1215/miles)*")
}

// escapeCell keeps pipes from breaking table rows.
func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
