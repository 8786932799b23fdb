package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nao1215/miles/internal/config"
	"github.com/nao1215/miles/internal/database"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show previous crawls",
		Long: `History lists the crawls recorded in the history database.

Each crawl gets a run ID. Pass it to --run to show the files of that crawl,
or search every crawl for a file with --checksum.

Examples:
  # List the 20 most recent crawls
  miles history

  # List every crawl
  miles history --limit 0

  # Show the files of one crawl as Markdown
  miles history --run 0b6f0c1e-1111-2222-3333-444455556666 -m

  # Find earlier downloads of the same file
  miles history --checksum 3a985da74fe225b2...`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "l", config.DefaultHistoryLimit,
		"Number of crawls to list (0 lists all)")
	cmd.Flags().StringP("run", "r", "",
		"Show the report of the crawl with this run ID")
	cmd.Flags().String("checksum", "",
		"Find downloaded files with this SHA3-256 checksum")
	cmd.Flags().BoolP("json", "j", false,
		"Output the --run report in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output the --run report in Markdown format")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetString("run")
	if err != nil {
		return err
	}
	checksum, err := cmd.Flags().GetString("checksum")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return err
	}

	// Validate before opening the database.
	if runID != "" && checksum != "" {
		return errors.New("--run and --checksum cannot be used together")
	}
	if jsonOutput && markdownOutput {
		return config.ErrConflictingReportFormats
	}

	db, err := database.Open(getDataDir(cmd), database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	switch {
	case runID != "":
		cfg := config.NewConfig()
		cfg.JSONReport = jsonOutput
		cfg.MarkdownReport = markdownOutput
		cfg.Verbose = true
		return showRun(ctx, out, db, cfg, runID)
	case checksum != "":
		return findChecksum(ctx, out, db, checksum)
	default:
		return listRuns(ctx, out, db, limit)
	}
}

// listRuns prints the most recent crawls, newest first.
func listRuns(ctx context.Context, out io.Writer, db *database.CrawlDB, limit int) error {
	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return fmt.Errorf("failed to get crawl history: %w", err)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No crawl history found.")
		fmt.Fprintln(out, "\nUse 'miles crawl <url>' to download files from a page.")
		return nil
	}

	fmt.Fprintf(out, "Crawl history (%d runs):\n\n", len(runs))
	fmt.Fprintf(out, "  %-36s  %-19s  %5s  %6s  %10s  %s\n", "Run ID", "Date", "Files", "Failed", "Size", "Page")
	fmt.Fprintln(out, "  "+strings.Repeat("-", 100))

	for _, r := range runs {
		fmt.Fprintf(out, "  %-36s  %-19s  %5d  %6d  %10s  %s\n",
			r.ID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FilesDownloaded,
			r.Failed,
			humanize.IBytes(uint64(max(r.TotalBytes, 0))),
			r.PageURL,
		)
	}

	fmt.Fprintln(out, "\nUse 'miles history --run <id>' to show the files of a crawl.")
	return nil
}

// showRun writes the stored report of one crawl.
func showRun(ctx context.Context, out io.Writer, db *database.CrawlDB, cfg *config.Config, runID string) error {
	crawlReport, err := db.GetRun(ctx, runID)
	if err != nil {
		return err
	}

	if !cfg.JSONReport && !cfg.MarkdownReport {
		fmt.Fprintf(out, "Run %s\n", crawlReport.RunID)
		fmt.Fprintf(out, "Page:    %s\n", crawlReport.PageURL)
		if crawlReport.PageTitle != "" {
			fmt.Fprintf(out, "Title:   %s\n", crawlReport.PageTitle)
		}
		fmt.Fprintf(out, "Started: %s (%s)\n\n",
			crawlReport.StartedAt.Local().Format("2006-01-02 15:04:05"),
			humanize.Time(crawlReport.StartedAt),
		)
	}

	_, err = newReportWriter(cfg, out).Write(crawlReport)
	return err
}

// findChecksum lists earlier downloads with the given checksum.
func findChecksum(ctx context.Context, out io.Writer, db *database.CrawlDB, checksum string) error {
	paths, err := db.FindByChecksum(ctx, strings.ToLower(strings.TrimSpace(checksum)))
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		fmt.Fprintf(out, "No downloaded file has checksum %s\n", checksum)
		return nil
	}

	fmt.Fprintf(out, "Files with checksum %s (%d):\n", checksum, len(paths))
	for _, p := range paths {
		fmt.Fprintf(out, "  %s\n", p)
	}
	return nil
}
