package download

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"

	"github.com/nao1215/miles/internal/fetch"
	"github.com/nao1215/miles/internal/metadata"
	"github.com/nao1215/miles/internal/model"
)

// filePerm is the permission of written files.
const filePerm = 0o644

// Worker downloads URLs into a directory. It is safe for concurrent use.
type Worker struct {
	fetcher fetch.Fetcher
	logger  *slog.Logger

	// inspect enables metadata extraction for images and PDFs.
	inspect bool

	// now is replaceable for tests.
	now func() time.Time
}

// Option configures a Worker.
type Option func(*Worker)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Worker) {
		w.logger = logger
	}
}

// WithMetadata enables metadata extraction: EXIF tags of images and the
// document information of PDFs.
func WithMetadata(enabled bool) Option {
	return func(w *Worker) {
		w.inspect = enabled
	}
}

// NewWorker creates a Worker that fetches with f.
func NewWorker(f fetch.Fetcher, opts ...Option) *Worker {
	w := &Worker{
		fetcher: f,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// FileName returns the local file name for rawURL: the final segment of
// its path. Query strings and fragments are not part of the name.
func FileName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, rawURL)
	}
	if u.Path == "" || strings.HasSuffix(u.Path, "/") {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, rawURL)
	}
	name := path.Base(u.Path)
	switch name {
	case "", ".", "..", "/":
		return "", fmt.Errorf("%w: %s", ErrInvalidName, rawURL)
	}
	if strings.ContainsAny(name, `\`+"\x00") {
		return "", fmt.Errorf("%w: %s", ErrInvalidName, rawURL)
	}
	return name, nil
}

// Download fetches rawURL and writes the body to destination, replacing
// any file of the same name. The returned outcome describes the attempt.
func (w *Worker) Download(ctx context.Context, rawURL, destination string) model.DownloadOutcome {
	start := w.now()
	outcome := w.download(ctx, rawURL, destination)
	outcome.SourceURL = rawURL
	outcome.Duration = w.now().Sub(start)

	if outcome.Succeeded() {
		w.logger.Debug("downloaded", "url", rawURL, "path", outcome.LocalPath, "bytes", outcome.Bytes)
	} else {
		w.logger.Warn("download failed", "url", rawURL, "kind", outcome.Error.String(), "reason", outcome.Reason)
	}
	return outcome
}

func (w *Worker) download(ctx context.Context, rawURL, destination string) model.DownloadOutcome {
	name, err := FileName(rawURL)
	if err != nil {
		return failure(model.ErrorKindInvalidName, err)
	}

	resp, err := w.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return failure(model.ErrorKindFetchFailed, err)
	}

	target := filepath.Join(destination, name)
	if err := writeFile(destination, target, resp.Body); err != nil {
		return failure(model.ErrorKindWriteFailed, err)
	}

	sum := sha3.Sum256(resp.Body)
	outcome := model.DownloadOutcome{
		LocalPath: target,
		Bytes:     int64(len(resp.Body)),
		Checksum:  hex.EncodeToString(sum[:]),
	}
	if w.inspect && metadata.Supports(name) {
		outcome.Metadata = metadata.Inspect(name, resp.Body)
	}
	return outcome
}

func failure(kind model.ErrorKind, err error) model.DownloadOutcome {
	return model.DownloadOutcome{
		Error:  kind,
		Reason: err.Error(),
	}
}

// writeFile stores data at target through a temporary file in dir, so a
// failed write leaves neither a partial file nor a damaged previous copy.
func writeFile(dir, target string, data []byte) (err error) {
	tmp, err := os.CreateTemp(dir, ".miles-*.part")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), filePerm); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), target)
}
