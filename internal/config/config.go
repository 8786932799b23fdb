package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/miles/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "miles"

	// DefaultDestination is the current directory.
	DefaultDestination = "."

	// DefaultParallelism downloads one file at a time.
	DefaultParallelism = 1

	// DefaultTimeout of zero means requests never time out.
	DefaultTimeout time.Duration = 0

	// DefaultUserAgent identifies miles in HTTP requests.
	DefaultUserAgent = "miles (+https://github.com/nao1215/miles)"

	// DefaultMaxBodySize of zero means bodies are not size limited.
	DefaultMaxBodySize int64 = 0

	// DefaultHistoryLimit is the number of runs listed by the history command.
	DefaultHistoryLimit = 20

	// LogFormatText and LogFormatJSON are the accepted log formats.
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config holds every option of a crawl run. It is built once by the CLI
// and treated as read-only after Validate succeeds.
type Config struct {
	// BaseURL is the page to crawl. Must be an absolute http or https URL.
	BaseURL string

	// Destination is the directory receiving downloaded files.
	Destination string

	// MakeDestination creates Destination if it does not exist.
	MakeDestination bool

	// Parallelism bounds concurrent downloads.
	Parallelism int

	// Types lists the requested file type names. Empty selects all types.
	Types []string

	// Table resolves Types into categories. The scheduler extracts links
	// with the same table, so every accepted name has patterns.
	Table *model.CategoryTable

	// Timeout applies to each HTTP request. Zero disables it.
	Timeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// Cookie and Headers apply to every host unless a site entry in the
	// config file overrides them.
	Cookie  string
	Headers map[string]string

	// MaxBodySize limits response bodies in bytes. Zero disables the limit.
	MaxBodySize int64

	// ProxyAddress is an optional SOCKS5 proxy in host:port form.
	ProxyAddress string

	// Metadata records EXIF tags of images and document information of PDFs.
	Metadata bool

	// Verbose enables debug logging and per-file report lines.
	Verbose bool

	// LogFormat is LogFormatText or LogFormatJSON.
	LogFormat string

	// Quiet disables the progress spinner.
	Quiet bool

	// JSONReport and MarkdownReport select the report format. Mutually exclusive.
	JSONReport     bool
	MarkdownReport bool

	// ReportFile redirects the report to a file instead of stdout.
	ReportFile string

	// ConfigFilePath is an explicit config file path.
	ConfigFilePath string

	// SiteConfigs is the loaded config file, or an empty File.
	SiteConfigs *File

	// DBDir is the directory holding the history database.
	DBDir string

	// SaveToDB records the crawl in the history database.
	SaveToDB bool
}

// NewConfig creates a Config with default values.
func NewConfig() *Config {
	return &Config{
		Destination:     DefaultDestination,
		MakeDestination: true,
		Parallelism:     DefaultParallelism,
		Table:           model.NewCategoryTable(),
		LogFormat:       LogFormatText,
		Timeout:         DefaultTimeout,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		SiteConfigs:     NewFile(),
		DBDir:           XDGDataDir(),
		SaveToDB:        true,
	}
}

// XDGDataDir returns the XDG data directory for miles.
// On Linux: ~/.local/share/miles
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for miles.
// On Linux: ~/.config/miles
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ApplyDefaults overlays the defaults section of f onto c. Only values set
// in the file are applied, so built-in defaults survive an empty file.
func (c *Config) ApplyDefaults(f *File) {
	if f == nil {
		return
	}
	c.SiteConfigs = f

	d := f.Defaults
	if d.Destination != "" {
		c.Destination = d.Destination
	}
	if d.Parallel != 0 {
		c.Parallelism = d.Parallel
	}
	if len(d.Types) > 0 {
		c.Types = d.Types
	}
	if d.Timeout != 0 {
		c.Timeout = d.Timeout
	}
	if d.UserAgent != "" {
		c.UserAgent = d.UserAgent
	}
	if d.MaxBodySize != 0 {
		c.MaxBodySize = d.MaxBodySize
	}
	if d.Proxy != "" {
		c.ProxyAddress = d.Proxy
	}
	if d.Cookie != "" {
		c.Cookie = d.Cookie
	}
	if len(d.Headers) > 0 {
		c.Headers = d.Headers
	}
}

// SiteSettings returns the cookie and headers for requests to host: the
// run-wide values with the host's entry from the config file merged over
// them. Hosts are matched as they appear in URLs, port included.
func (c *Config) SiteSettings(host string) SiteConfig {
	f := File{Defaults: Defaults{SiteConfig: SiteConfig{Cookie: c.Cookie, Headers: c.Headers}}}
	if c.SiteConfigs != nil {
		f.Sites = c.SiteConfigs.Sites
	}
	return f.GetSiteConfig(host)
}

// Categories returns the requested categories in extraction order.
// A Config without a table falls back to the built-in one.
func (c *Config) Categories() ([]model.Category, error) {
	if c.Table == nil {
		c.Table = model.NewCategoryTable()
	}
	return c.Table.ParseCategories(c.Types)
}

// CrawlRequest builds the request handed to the scheduler.
func (c *Config) CrawlRequest() (model.CrawlRequest, error) {
	categories, err := c.Categories()
	if err != nil {
		return model.CrawlRequest{}, err
	}
	return model.CrawlRequest{
		BaseURL:        c.BaseURL,
		Categories:     categories,
		Destination:    c.Destination,
		MaxParallelism: c.Parallelism,
	}, nil
}

// Validate checks the configuration and returns the first violated rule.
// The destination must already exist; callers create it beforehand when
// MakeDestination is set.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrNoBaseURL
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidBaseURL, c.BaseURL)
	}

	if c.Parallelism <= 0 {
		return ErrInvalidParallelism
	}

	if _, err := c.Categories(); err != nil {
		return err
	}

	if c.Timeout < 0 {
		return ErrInvalidTimeout
	}

	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, c.LogFormat)
	}

	info, err := os.Stat(c.Destination)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrDestinationNotFound, c.Destination)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrDestinationNotDir, c.Destination)
	}

	return nil
}
