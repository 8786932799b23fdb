package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nao1215/miles/internal/download"
	"github.com/nao1215/miles/internal/fetch"
	"github.com/nao1215/miles/internal/model"
)

const galleryPage = `<html><head><title>Gallery</title></head><body>
<img src="a.jpg">
<a href="/files/b.jpg">b</a>
<a href="report.pdf">report</a>
</body></html>`

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pageFetcher(content string) fetch.Fetcher {
	return fetch.FetcherFunc(func(_ context.Context, rawURL string) (*fetch.Response, error) {
		return &fetch.Response{
			URL:         rawURL,
			StatusCode:  http.StatusOK,
			ContentType: "text/html; charset=utf-8",
			Body:        []byte(content),
		}, nil
	})
}

// numberedPage returns a page referencing n distinct pdf files, one per line.
func numberedPage(n int) string {
	var sb strings.Builder
	for i := range n {
		fmt.Fprintf(&sb, "<a href=\"f%d.pdf\">%d</a>\n", i, i)
	}
	return sb.String()
}

// fakeDownloader records calls and returns outcomes from fn.
type fakeDownloader struct {
	calls atomic.Int32
	fn    func(rawURL string) model.DownloadOutcome
}

func (d *fakeDownloader) Download(_ context.Context, rawURL, _ string) model.DownloadOutcome {
	d.calls.Add(1)
	o := d.fn(rawURL)
	o.SourceURL = rawURL
	return o
}

func succeedWith(size int64) func(string) model.DownloadOutcome {
	return func(string) model.DownloadOutcome {
		return model.DownloadOutcome{Bytes: size, LocalPath: "x"}
	}
}

func request(p int, categories ...model.Category) model.CrawlRequest {
	return model.CrawlRequest{
		BaseURL:        "https://example.com/gallery/",
		Categories:     categories,
		Destination:    "unused",
		MaxParallelism: p,
	}
}

func TestSchedulerCrawl(t *testing.T) {
	t.Parallel()

	t.Run("jpg only dispatches two links", func(t *testing.T) {
		t.Parallel()

		d := &fakeDownloader{fn: succeedWith(10)}
		s := New(pageFetcher(galleryPage), d, WithLogger(discardLogger()))

		report, err := s.Crawl(context.Background(), request(2, model.CategoryJPG))
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.FilesDownloaded != 2 || report.TotalBytes != 20 {
			t.Errorf("report = %d files / %d bytes, want 2 / 20", report.FilesDownloaded, report.TotalBytes)
		}
		if d.calls.Load() != 2 {
			t.Errorf("downloads = %d, want 2", d.calls.Load())
		}
		if report.PageTitle != "Gallery" {
			t.Errorf("PageTitle = %q, want %q", report.PageTitle, "Gallery")
		}
		if report.RunID == "" {
			t.Error("expected a run ID")
		}
	})

	t.Run("jpg and pdf dispatches three links", func(t *testing.T) {
		t.Parallel()

		d := &fakeDownloader{fn: succeedWith(1)}
		s := New(pageFetcher(galleryPage), d, WithLogger(discardLogger()))

		report, err := s.Crawl(context.Background(), request(1, model.CategoryJPG, model.CategoryPDF))
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.Dispatched != 3 || report.FilesDownloaded != 3 {
			t.Errorf("dispatched %d, downloaded %d, want 3 and 3", report.Dispatched, report.FilesDownloaded)
		}
	})

	t.Run("one failure does not abort the crawl", func(t *testing.T) {
		t.Parallel()

		d := &fakeDownloader{fn: func(rawURL string) model.DownloadOutcome {
			if strings.HasSuffix(rawURL, "b.jpg") {
				return model.DownloadOutcome{Error: model.ErrorKindFetchFailed, Reason: "404"}
			}
			return model.DownloadOutcome{Bytes: 7, LocalPath: "a.jpg"}
		}}
		s := New(pageFetcher(galleryPage), d, WithLogger(discardLogger()))

		report, err := s.Crawl(context.Background(), request(2, model.CategoryJPG))
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.FilesDownloaded != 1 {
			t.Errorf("FilesDownloaded = %d, want 1", report.FilesDownloaded)
		}
		if report.TotalBytes != 7 {
			t.Errorf("TotalBytes = %d, want 7", report.TotalBytes)
		}
		if report.Failed != 1 {
			t.Errorf("Failed = %d, want 1", report.Failed)
		}
	})

	t.Run("all downloads failing still yields a report", func(t *testing.T) {
		t.Parallel()

		d := &fakeDownloader{fn: func(string) model.DownloadOutcome {
			return model.DownloadOutcome{Error: model.ErrorKindWriteFailed}
		}}
		s := New(pageFetcher(galleryPage), d, WithLogger(discardLogger()))

		report, err := s.Crawl(context.Background(), request(4))
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.FilesDownloaded != 0 || report.Failed != report.Dispatched {
			t.Errorf("report = %+v, want every outcome failed", report)
		}
	})

	t.Run("empty page is not an error", func(t *testing.T) {
		t.Parallel()

		d := &fakeDownloader{fn: succeedWith(1)}
		s := New(pageFetcher("<html><body>no files</body></html>"), d, WithLogger(discardLogger()))

		report, err := s.Crawl(context.Background(), request(3, model.NewCategoryTable().Categories()...))
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report == nil {
			t.Fatal("expected a report")
		}
		if report.FilesDownloaded != 0 || report.TotalBytes != 0 || report.Dispatched != 0 {
			t.Errorf("report = %+v, want zero totals", report)
		}
		if d.calls.Load() != 0 {
			t.Errorf("downloads = %d, want 0", d.calls.Load())
		}
	})
}

func TestSchedulerPageFetchFailure(t *testing.T) {
	t.Parallel()

	failing := fetch.FetcherFunc(func(_ context.Context, rawURL string) (*fetch.Response, error) {
		return nil, &fetch.StatusError{URL: rawURL, StatusCode: http.StatusInternalServerError}
	})
	d := &fakeDownloader{fn: succeedWith(1)}
	s := New(failing, d, WithLogger(discardLogger()))

	report, err := s.Crawl(context.Background(), request(2))
	if !errors.Is(err, ErrPageFetchFailed) {
		t.Fatalf("Crawl() error = %v, want ErrPageFetchFailed", err)
	}
	if !errors.Is(err, fetch.ErrBadStatus) {
		t.Errorf("Crawl() error = %v, want it to wrap ErrBadStatus", err)
	}
	if report != nil {
		t.Errorf("report = %+v, want nil", report)
	}
	if d.calls.Load() != 0 {
		t.Errorf("downloads = %d, want 0", d.calls.Load())
	}
}

func TestSchedulerInvalidRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		req     model.CrawlRequest
		wantErr error
	}{
		{
			name:    "zero parallelism",
			req:     model.CrawlRequest{BaseURL: "https://example.com/", MaxParallelism: 0},
			wantErr: ErrInvalidParallelism,
		},
		{
			name:    "relative base URL",
			req:     model.CrawlRequest{BaseURL: "gallery/index.html", MaxParallelism: 1},
			wantErr: ErrInvalidBaseURL,
		},
		{
			name:    "unparsable base URL",
			req:     model.CrawlRequest{BaseURL: "http://[::1", MaxParallelism: 1},
			wantErr: ErrInvalidBaseURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fetched := false
			f := fetch.FetcherFunc(func(_ context.Context, _ string) (*fetch.Response, error) {
				fetched = true
				return &fetch.Response{}, nil
			})
			s := New(f, &fakeDownloader{fn: succeedWith(1)}, WithLogger(discardLogger()))

			if _, err := s.Crawl(context.Background(), tt.req); !errors.Is(err, tt.wantErr) {
				t.Errorf("Crawl() error = %v, want %v", err, tt.wantErr)
			}
			if fetched {
				t.Error("page was fetched for an invalid request")
			}
		})
	}
}

func TestSchedulerParallelismBound(t *testing.T) {
	t.Parallel()

	for _, p := range []int{1, 3, 8} {
		t.Run(fmt.Sprintf("P=%d", p), func(t *testing.T) {
			t.Parallel()

			// The first p downloads wait for each other, so a pool that
			// runs fewer than p at once is caught by the timeout.
			var current, maxSeen atomic.Int32
			full := make(chan struct{})
			var fullOnce sync.Once
			d := &fakeDownloader{fn: func(string) model.DownloadOutcome {
				n := current.Add(1)
				for {
					old := maxSeen.Load()
					if n <= old || maxSeen.CompareAndSwap(old, n) {
						break
					}
				}
				if n == int32(p) {
					fullOnce.Do(func() { close(full) })
				}
				select {
				case <-full:
				case <-time.After(2 * time.Second):
				}
				time.Sleep(time.Millisecond)
				current.Add(-1)
				return model.DownloadOutcome{Bytes: 1, LocalPath: "x"}
			}}
			s := New(pageFetcher(numberedPage(30)), d, WithLogger(discardLogger()))

			report, err := s.Crawl(context.Background(), request(p, model.CategoryPDF))
			if err != nil {
				t.Fatalf("Crawl() error = %v", err)
			}
			if got := maxSeen.Load(); got != int32(p) {
				t.Errorf("max concurrent downloads = %d, want %d", got, p)
			}
			if report.Dispatched != 30 || len(report.Outcomes) != 30 {
				t.Errorf("dispatched %d with %d outcomes, want 30 and 30", report.Dispatched, len(report.Outcomes))
			}
		})
	}
}

func TestSchedulerOutOfOrderCompletion(t *testing.T) {
	t.Parallel()

	// Earlier links take longer, so completion order is reversed.
	d := &fakeDownloader{fn: func(rawURL string) model.DownloadOutcome {
		var i int
		_, _ = fmt.Sscanf(filepath.Base(rawURL), "f%d.pdf", &i)
		time.Sleep(time.Duration(10-i) * 2 * time.Millisecond)
		return model.DownloadOutcome{Bytes: int64(i + 1), LocalPath: "x"}
	}}

	var mu sync.Mutex
	var order []string
	s := New(pageFetcher(numberedPage(10)), d,
		WithLogger(discardLogger()),
		WithOutcomeHandler(func(o model.DownloadOutcome) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, o.SourceURL)
		}),
	)

	report, err := s.Crawl(context.Background(), request(10, model.CategoryPDF))
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if report.FilesDownloaded != 10 {
		t.Errorf("FilesDownloaded = %d, want 10", report.FilesDownloaded)
	}
	if report.TotalBytes != 55 {
		t.Errorf("TotalBytes = %d, want 55", report.TotalBytes)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 10 {
		t.Fatalf("handler called %d times, want 10", len(order))
	}
	seen := make(map[string]bool)
	for _, u := range order {
		if seen[u] {
			t.Errorf("outcome for %s delivered twice", u)
		}
		seen[u] = true
	}
}

func TestSchedulerTiming(t *testing.T) {
	t.Parallel()

	t.Run("bandwidth from elapsed time", func(t *testing.T) {
		t.Parallel()

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		ticks := []time.Time{base, base.Add(2 * time.Second)}
		var i int
		clock := func() time.Time {
			tick := ticks[i]
			i++
			return tick
		}

		d := &fakeDownloader{fn: succeedWith(2 * model.BytesPerMegabyte)}
		s := New(pageFetcher(galleryPage), d, WithLogger(discardLogger()), WithClock(clock))

		report, err := s.Crawl(context.Background(), request(1, model.CategoryJPG))
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.ElapsedSeconds != 2 {
			t.Errorf("ElapsedSeconds = %v, want 2", report.ElapsedSeconds)
		}
		if report.BandwidthMBps != 2 {
			t.Errorf("BandwidthMBps = %v, want 2", report.BandwidthMBps)
		}
		if !report.StartedAt.Equal(base) {
			t.Errorf("StartedAt = %v, want %v", report.StartedAt, base)
		}
	})

	t.Run("zero elapsed time gives zero bandwidth", func(t *testing.T) {
		t.Parallel()

		frozen := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		d := &fakeDownloader{fn: succeedWith(100)}
		s := New(pageFetcher(galleryPage), d,
			WithLogger(discardLogger()),
			WithClock(func() time.Time { return frozen }),
		)

		report, err := s.Crawl(context.Background(), request(1, model.CategoryJPG))
		if err != nil {
			t.Fatalf("Crawl() error = %v", err)
		}
		if report.BandwidthMBps != 0 {
			t.Errorf("BandwidthMBps = %v, want 0", report.BandwidthMBps)
		}
	})
}

func TestSchedulerCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := &fakeDownloader{fn: succeedWith(1)}
	s := New(pageFetcher(numberedPage(50)), d,
		WithLogger(discardLogger()),
		WithOutcomeHandler(func(model.DownloadOutcome) { cancel() }),
	)

	report, err := s.Crawl(ctx, request(1, model.CategoryPDF))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Crawl() error = %v, want context.Canceled", err)
	}
	if report == nil {
		t.Fatal("expected a partial report")
	}
	if report.Dispatched >= 50 {
		t.Errorf("Dispatched = %d, want dispatching to stop early", report.Dispatched)
	}
	if int(d.calls.Load()) != report.Dispatched {
		t.Errorf("downloads = %d, outcomes = %d, want equal", d.calls.Load(), report.Dispatched)
	}
}

func TestSchedulerEndToEnd(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = io.WriteString(w, galleryPage)
	})
	mux.HandleFunc("/a.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("/files/b.jpg", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/report.pdf", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	f, err := fetch.NewHTTPFetcher()
	if err != nil {
		t.Fatal(err)
	}
	dest := t.TempDir()
	s := New(f, download.NewWorker(f), WithLogger(discardLogger()))

	report, err := s.Crawl(context.Background(), model.CrawlRequest{
		BaseURL:        srv.URL + "/",
		Categories:     []model.Category{model.CategoryJPG, model.CategoryPDF},
		Destination:    dest,
		MaxParallelism: 2,
	})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if report.FilesDownloaded != 2 || report.Failed != 1 {
		t.Errorf("downloaded %d, failed %d, want 2 and 1", report.FilesDownloaded, report.Failed)
	}
	if report.TotalBytes != int64(len("jpeg-bytes")+len("%PDF-1.4")) {
		t.Errorf("TotalBytes = %d", report.TotalBytes)
	}
	for _, name := range []string{"a.jpg", "report.pdf"} {
		if _, err := os.Stat(filepath.Join(dest, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
	if _, err := os.Stat(filepath.Join(dest, "b.jpg")); !os.IsNotExist(err) {
		t.Errorf("b.jpg should not exist, Stat() error = %v", err)
	}
}
