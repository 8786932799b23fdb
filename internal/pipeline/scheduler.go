package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nao1215/miles/internal/crawler"
	"github.com/nao1215/miles/internal/fetch"
	"github.com/nao1215/miles/internal/model"
)

// Downloader downloads a single URL into a directory.
// Implementations must be safe for concurrent use and must report every
// failure through the returned outcome.
type Downloader interface {
	Download(ctx context.Context, rawURL, destination string) model.DownloadOutcome
}

// Scheduler drives one crawl at a time.
type Scheduler struct {
	fetcher    fetch.Fetcher
	downloader Downloader
	table      *model.CategoryTable
	logger     *slog.Logger

	// onOutcome is called from the aggregator goroutine for every outcome.
	onOutcome func(model.DownloadOutcome)

	now   func() time.Time
	newID func() string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithOutcomeHandler registers a callback invoked once per outcome, in
// completion order. Calls never overlap, so the callback needs no locking.
// A slow callback delays aggregation but not the downloads themselves
// beyond the result channel's capacity.
func WithOutcomeHandler(fn func(model.DownloadOutcome)) Option {
	return func(s *Scheduler) {
		s.onOutcome = fn
	}
}

// WithCategoryTable replaces the built-in category table.
func WithCategoryTable(table *model.CategoryTable) Option {
	return func(s *Scheduler) {
		s.table = table
	}
}

// WithClock replaces time.Now for elapsed-time measurement.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler that fetches the base page with f and hands
// links to d.
func New(f fetch.Fetcher, d Downloader, opts ...Option) *Scheduler {
	s := &Scheduler{
		fetcher:    f,
		downloader: d,
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.table == nil {
		s.table = model.NewCategoryTable()
	}
	return s
}

// Crawl executes req and returns its report. An empty category list
// selects every category in the table.
//
// The base page is fetched exactly once. If that fails the error wraps
// ErrPageFetchFailed and no report is returned. Otherwise every extracted
// link is downloaded with at most req.MaxParallelism downloads in flight,
// and the report is returned even if some or all downloads failed.
//
// If ctx is cancelled after dispatching has started, no further links are
// dispatched, downloads already handed to workers are collected, and the
// partial report is returned together with ctx.Err().
func (s *Scheduler) Crawl(ctx context.Context, req model.CrawlRequest) (*model.CrawlReport, error) {
	if req.MaxParallelism < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidParallelism, req.MaxParallelism)
	}
	base, err := url.Parse(req.BaseURL)
	if err != nil || !base.IsAbs() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, req.BaseURL)
	}

	s.logger.Debug("fetching page", "url", req.BaseURL)
	page, err := s.fetcher.Fetch(ctx, req.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPageFetchFailed, err)
	}
	content := page.Text()

	categories := req.Categories
	if len(categories) == 0 {
		categories = s.table.Categories()
	}
	links := crawler.NewExtractor(s.table).Extract(base, content, categories)
	agg := model.NewAggregator(req.BaseURL)

	start := s.now()
	work := make(chan string)
	results := make(chan model.DownloadOutcome, req.MaxParallelism)
	aggregated := make(chan struct{})

	go func() {
		defer close(aggregated)
		for outcome := range results {
			agg.Add(outcome)
			if s.onOutcome != nil {
				s.onOutcome(outcome)
			}
		}
	}()

	var g errgroup.Group
	g.Go(func() error {
		defer close(work)
		for link := range links {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case work <- link:
				s.logger.Debug("dispatched", "url", link)
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for range req.MaxParallelism {
		g.Go(func() error {
			for link := range work {
				results <- s.downloader.Download(ctx, link, req.Destination)
			}
			return nil
		})
	}

	waitErr := g.Wait()
	close(results)
	<-aggregated

	report := agg.Finish(start, s.now())
	report.RunID = s.newID()
	report.PageTitle = crawler.Title(content)

	s.logger.Info("crawl finished",
		"url", req.BaseURL,
		"dispatched", report.Dispatched,
		"downloaded", report.FilesDownloaded,
		"failed", report.Failed,
		"bytes", report.TotalBytes,
	)

	if waitErr != nil {
		return report, waitErr
	}
	return report, nil
}
