package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nao1215/miles/internal/config"
	"github.com/nao1215/miles/internal/database"
	"github.com/nao1215/miles/internal/download"
	"github.com/nao1215/miles/internal/fetch"
	"github.com/nao1215/miles/internal/log"
	"github.com/nao1215/miles/internal/model"
	"github.com/nao1215/miles/internal/pipeline"
	"github.com/nao1215/miles/internal/report"
)

// NewCrawlCmd creates the crawl command.
func NewCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <url>",
		Short: "Download the files linked from a web page",
		Long: `Crawl fetches a single page, extracts links to files of the requested
types and downloads each one into the destination directory.

Links are found by file extension anywhere in the page text, resolved
against the page URL and saved under their final path segment. Existing
files with the same name are overwritten. Downloads that fail are listed
in the verbose report and do not stop the crawl; a page that cannot be
fetched ends the run with an error.

Known file types: jpg, mp3, pdf, png

Examples:
  # Download every known file type into the current directory
  miles crawl https://example.com/gallery/

  # Download images only, four at a time, into ./photos
  miles crawl -f jpg,png -n 4 -d ./photos https://example.com/gallery/

  # Write a Markdown report with EXIF and PDF metadata
  miles crawl --metadata -m -o report.md https://example.com/gallery/

  # Send a cookie through a local SOCKS5 proxy
  miles crawl --cookie "session=abc" --proxy 127.0.0.1:9050 https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawlCmd,
	}

	cmd.Flags().StringP("destination", "d", config.DefaultDestination,
		"Directory receiving the downloaded files")
	cmd.Flags().Bool("mkdir", true,
		"Create the destination directory if it does not exist")
	cmd.Flags().IntP("parallel", "n", config.DefaultParallelism,
		"Maximum number of concurrent downloads")
	cmd.Flags().StringSliceP("types", "f", nil,
		"File types to download, comma separated or repeated (default: all)")

	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each HTTP request (0 disables it)")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with every request")
	cmd.Flags().String("cookie", "",
		"Cookie header sent with every request")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header as "Name: value" (repeatable)`)
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum response body size in bytes (0 means unlimited)")
	cmd.Flags().String("proxy", "",
		"SOCKS5 proxy address as host:port")
	cmd.Flags().Bool("metadata", false,
		"Record EXIF tags of images and document information of PDFs")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .miles in current or home directory)")
	cmd.Flags().Bool("no-history", false,
		"Do not record the crawl in the history database")
	cmd.Flags().BoolP("quiet", "q", false,
		"Do not show the progress spinner")

	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")

	return cmd
}

// runCrawlCmd executes the crawl command.
func runCrawlCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if cfg.MakeDestination {
		if err := os.MkdirAll(cfg.Destination, 0750); err != nil {
			return fmt.Errorf("failed to create destination: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cfg, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("received shutdown signal, finishing in-flight downloads...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runCrawl(ctx, cfg, logger, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// buildConfig creates a Config from built-in defaults, the config file and
// the flags that were set explicitly, in that order of precedence.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit path must exist; otherwise a missing file is fine.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyDefaults(file)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.BaseURL = args[0]
	cfg.Verbose = getVerboseFlag(cmd)
	cfg.LogFormat = getLogFormat(cmd)
	cfg.DBDir = getDataDir(cmd)

	if flags.Changed("destination") {
		if cfg.Destination, err = flags.GetString("destination"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("parallel") {
		if cfg.Parallelism, err = flags.GetInt("parallel"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("types") {
		if cfg.Types, err = flags.GetStringSlice("types"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("cookie") {
		if cfg.Cookie, err = flags.GetString("cookie"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("header") {
		raw, err := flags.GetStringArray("header")
		if err != nil {
			return nil, err
		}
		if cfg.Headers, err = parseHeaders(raw); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("proxy") {
		if cfg.ProxyAddress, err = flags.GetString("proxy"); err != nil {
			return nil, err
		}
	}

	if cfg.MakeDestination, err = flags.GetBool("mkdir"); err != nil {
		return nil, err
	}
	if cfg.Metadata, err = flags.GetBool("metadata"); err != nil {
		return nil, err
	}
	if cfg.Quiet, err = flags.GetBool("quiet"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory

	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newLogger returns the masking logger for the configured format.
func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	if cfg.LogFormat == config.LogFormatJSON {
		return log.NewSecureJSONLogger(w, cfg.Verbose)
	}
	return log.NewSecureLogger(w, cfg.Verbose)
}

// parseHeaders parses "Name: value" pairs.
func parseHeaders(raw []string) (map[string]string, error) {
	headers := make(map[string]string, len(raw))
	for _, h := range raw {
		name, value, ok := strings.Cut(h, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q: expected \"Name: value\"", h)
		}
		headers[name] = strings.TrimSpace(value)
	}
	return headers, nil
}

// newFetcher builds the HTTP fetcher shared by the page fetch and every
// download.
func newFetcher(cfg *config.Config) (*fetch.HTTPFetcher, error) {
	return fetch.NewHTTPFetcher(
		fetch.WithTimeout(cfg.Timeout),
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithProxy(cfg.ProxyAddress),
		fetch.WithSiteSettings(func(host string) fetch.SiteSettings {
			site := cfg.SiteSettings(host)
			return fetch.SiteSettings{Cookie: site.Cookie, Headers: site.Headers}
		}),
	)
}

// runCrawl executes the crawl and writes the report.
func runCrawl(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout, stderr io.Writer) error {
	req, err := cfg.CrawlRequest()
	if err != nil {
		return err
	}

	fetcher, err := newFetcher(cfg)
	if err != nil {
		return fmt.Errorf("failed to create HTTP client: %w", err)
	}

	logger.Info("starting crawl",
		"url", cfg.BaseURL,
		"destination", cfg.Destination,
		"parallel", cfg.Parallelism,
		"types", req.Categories,
	)

	worker := download.NewWorker(fetcher,
		download.WithLogger(logger),
		download.WithMetadata(cfg.Metadata),
	)

	// Debug logs and the spinner would fight over stderr.
	prog := newProgress(stderr, !cfg.Quiet && !cfg.Verbose)
	scheduler := pipeline.New(fetcher, worker,
		pipeline.WithLogger(logger),
		pipeline.WithCategoryTable(cfg.Table),
		pipeline.WithOutcomeHandler(prog.Update),
	)

	prog.Start()
	crawlReport, crawlErr := scheduler.Crawl(ctx, req)
	prog.Stop()

	if crawlReport == nil {
		return crawlErr
	}
	if crawlErr != nil {
		logger.Warn("crawl interrupted, reporting partial results", "error", crawlErr)
	}

	if err := outputReport(cfg, crawlReport, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if cfg.SaveToDB {
		// Record partial runs too, even after an interrupt.
		if err := saveCrawlReport(context.WithoutCancel(ctx), cfg.DBDir, crawlReport, logger); err != nil {
			logger.Error("failed to save crawl report", "error", err)
		}
	}

	if crawlErr != nil {
		return fmt.Errorf("crawl interrupted: %w", crawlErr)
	}
	return nil
}

// outputReport writes the report in the requested format. With --output
// the formatted report goes to the file and the text summary to stdout.
func outputReport(cfg *config.Config, crawlReport *model.CrawlReport, stdout io.Writer) error {
	if cfg.ReportFile == "" {
		_, err := newReportWriter(cfg, stdout).Write(crawlReport)
		return err
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer f.Close()

	w := report.NewMultiWriter(
		newReportWriter(cfg, f),
		report.NewSimpleWriter(stdout),
	)
	_, err = w.Write(crawlReport)
	return err
}

// newReportWriter selects the writer for the configured format.
func newReportWriter(cfg *config.Config, w io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewJSONWriter(w, report.WithPrettyPrint(), report.WithVersion(getVersion()))
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(w)
	default:
		return report.NewSimpleWriter(w, report.WithVerbose(cfg.Verbose))
	}
}

// saveCrawlReport records the report in the history database in dbDir.
func saveCrawlReport(ctx context.Context, dbDir string, crawlReport *model.CrawlReport, logger *slog.Logger) error {
	db, err := database.Open(dbDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.SaveReport(ctx, crawlReport); err != nil {
		return err
	}
	logger.Info("crawl report saved to database", "run", crawlReport.RunID, "path", db.Path())
	return nil
}
