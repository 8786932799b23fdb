package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/miles/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "miles.db"

// storedTimeFormat has a fixed width so stored timestamps sort as text.
const storedTimeFormat = "2006-01-02T15:04:05.000000000Z"

var (
	// ErrRunNotFound is returned when no run has the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoRunID is returned when saving a report without a RunID.
	ErrNoRunID = errors.New("report has no run ID")
)

// CrawlDB is the crawl history database.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = dbPath + "?mode=rwc"
	} else if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		}
		return nil, fmt.Errorf("failed to check database path: %w", err)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}
	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		page_url TEXT NOT NULL,
		page_title TEXT NOT NULL DEFAULT '',
		started_at TEXT NOT NULL,
		files_downloaded INTEGER NOT NULL,
		total_bytes INTEGER NOT NULL,
		elapsed_seconds REAL NOT NULL,
		bandwidth_mbps REAL NOT NULL,
		dispatched INTEGER NOT NULL,
		failed INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_page ON runs(page_url);

	-- One row per download attempt, in completion order (seq).
	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		source_url TEXT NOT NULL,
		local_path TEXT NOT NULL DEFAULT '',
		bytes INTEGER NOT NULL DEFAULT 0,
		checksum TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '',
		error_kind INTEGER NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		duration_ns INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id, seq);
	CREATE INDEX IF NOT EXISTS idx_outcomes_checksum ON outcomes(checksum);
	`
	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveReport stores a crawl report and its outcomes.
func (cdb *CrawlDB) SaveReport(ctx context.Context, report *model.CrawlReport) (err error) {
	if report.RunID == "" {
		return ErrNoRunID
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, page_url, page_title, started_at, files_downloaded, total_bytes,
		elapsed_seconds, bandwidth_mbps, dispatched, failed)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID,
		report.PageURL,
		report.PageTitle,
		report.StartedAt.UTC().Format(storedTimeFormat),
		report.FilesDownloaded,
		report.TotalBytes,
		report.ElapsedSeconds,
		report.BandwidthMBps,
		report.Dispatched,
		report.Failed,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO outcomes (run_id, seq, source_url, local_path, bytes, checksum, metadata,
		error_kind, reason, duration_ns)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare outcome insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range report.Outcomes {
		var metadata string
		if len(o.Metadata) > 0 {
			b, mErr := json.Marshal(o.Metadata)
			if mErr != nil {
				return fmt.Errorf("failed to serialize metadata: %w", mErr)
			}
			metadata = string(b)
		}
		if _, err = stmt.ExecContext(ctx,
			report.RunID,
			i,
			o.SourceURL,
			o.LocalPath,
			o.Bytes,
			o.Checksum,
			metadata,
			int(o.Error),
			o.Reason,
			int64(o.Duration),
		); err != nil {
			return fmt.Errorf("failed to insert outcome: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run: %w", err)
	}
	return nil
}

// RunSummary is a run without its outcomes.
type RunSummary struct {
	ID              string
	PageURL         string
	PageTitle       string
	StartedAt       time.Time
	FilesDownloaded int
	Failed          int
	TotalBytes      int64
	ElapsedSeconds  float64
	BandwidthMBps   float64
}

// ListRuns returns up to limit runs, newest first. A non-positive limit
// returns every run.
func (cdb *CrawlDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, page_url, page_title, started_at, files_downloaded, failed, total_bytes,
		elapsed_seconds, bandwidth_mbps
	FROM runs
	ORDER BY started_at DESC, rowid DESC`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	results := make([]RunSummary, 0)
	for rows.Next() {
		var s RunSummary
		var startedAt string
		if err := rows.Scan(
			&s.ID,
			&s.PageURL,
			&s.PageTitle,
			&startedAt,
			&s.FilesDownloaded,
			&s.Failed,
			&s.TotalBytes,
			&s.ElapsedSeconds,
			&s.BandwidthMBps,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(startedAt)
		results = append(results, s)
	}
	return results, rows.Err()
}

// GetRun returns the stored report for runID, outcomes included.
func (cdb *CrawlDB) GetRun(ctx context.Context, runID string) (*model.CrawlReport, error) {
	report := &model.CrawlReport{Outcomes: make([]model.DownloadOutcome, 0)}
	var startedAt string

	err := cdb.db.QueryRowContext(ctx, `
	SELECT id, page_url, page_title, started_at, files_downloaded, total_bytes,
		elapsed_seconds, bandwidth_mbps, dispatched, failed
	FROM runs WHERE id = ?`, runID).Scan(
		&report.RunID,
		&report.PageURL,
		&report.PageTitle,
		&startedAt,
		&report.FilesDownloaded,
		&report.TotalBytes,
		&report.ElapsedSeconds,
		&report.BandwidthMBps,
		&report.Dispatched,
		&report.Failed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	report.StartedAt = parseTimestamp(startedAt)

	rows, err := cdb.db.QueryContext(ctx, `
	SELECT source_url, local_path, bytes, checksum, metadata, error_kind, reason, duration_ns
	FROM outcomes WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o model.DownloadOutcome
		var metadata string
		var kind int
		var duration int64
		if err := rows.Scan(
			&o.SourceURL,
			&o.LocalPath,
			&o.Bytes,
			&o.Checksum,
			&metadata,
			&kind,
			&o.Reason,
			&duration,
		); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		if metadata != "" {
			if err := json.Unmarshal([]byte(metadata), &o.Metadata); err != nil {
				return nil, fmt.Errorf("failed to parse metadata: %w", err)
			}
		}
		o.Error = model.ErrorKind(kind)
		o.Duration = time.Duration(duration)
		report.Outcomes = append(report.Outcomes, o)
	}
	return report, rows.Err()
}

// FindByChecksum returns the local paths of earlier successful downloads
// with the given SHA3-256 checksum, newest first.
func (cdb *CrawlDB) FindByChecksum(ctx context.Context, checksum string) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `
	SELECT o.local_path
	FROM outcomes o JOIN runs r ON r.id = o.run_id
	WHERE o.checksum = ? AND o.error_kind = 0
	ORDER BY r.started_at DESC, o.seq`, checksum)
	if err != nil {
		return nil, fmt.Errorf("failed to query checksum: %w", err)
	}
	defer rows.Close()

	paths := make([]string, 0)
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// timestampFormats contains the timestamp formats that may be stored.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999",
}

// parseTimestamp parses s with the first matching format, or returns the
// zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
