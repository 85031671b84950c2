package config

import (
	"fmt"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"golang.org/x/text/language"

	"github.com/nao1215/spidercrab/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "spidercrab"

	// DefaultDepth of -1 follows references until the site is exhausted.
	DefaultDepth = -1

	// DefaultWorkers is the number of concurrent fetches.
	DefaultWorkers = 8

	// DefaultTimeout bounds each request, including reading the body.
	DefaultTimeout = 10 * time.Second

	// DefaultUserAgent identifies spidercrab in HTTP requests.
	DefaultUserAgent = "spidercrab (+https://github.com/nao1215/spidercrab)"

	// DefaultMaxBodySize limits how much of an HTML page is read.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultIgnoreFile is loaded when present and no other ignore file is given.
	DefaultIgnoreFile = ".spidercrab-ignore"

	// HistoryDBFile is the file name of the run history database.
	HistoryDBFile = "history.db"
)

// Report formats.
const (
	FormatSimple   = "simple"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Formats lists the supported report formats.
var Formats = []string{FormatSimple, FormatJSON, FormatMarkdown, FormatCSV}

// Config holds all options of a check. It is populated from defaults, the
// configuration file and CLI flags, in that order.
type Config struct {
	// Seed is the URL the crawl starts from.
	Seed string

	// Depth is the maximum hop count from the seed. -1 is unbounded.
	Depth int

	// Workers is the number of concurrent fetches.
	Workers int

	// Timeout bounds every request.
	Timeout time.Duration

	// UserAgent is the User-Agent header sent with requests.
	UserAgent string

	// Headers are added to every request, e.g. Authorization for staging sites.
	Headers map[string]string

	// Hosts are parsed in addition to the seed host.
	Hosts []string

	// DisabledRules are never reported.
	DisabledRules []string

	// ExcludePatterns are URL path globs that are never fetched.
	ExcludePatterns []string

	// RequestsPerSecond limits requests per host. 0 disables limiting.
	RequestsPerSecond float64

	// MaxPages caps the number of fetched URLs. 0 is unlimited.
	MaxPages int

	// MaxBodySize limits how many bytes of an HTML page are read.
	MaxBodySize int64

	// IgnoreFile is the path of the ignore file. Empty means DefaultIgnoreFile
	// when it exists.
	IgnoreFile string

	// ConfigFilePath is the explicit configuration file path, if any.
	ConfigFilePath string

	// Format is the report format, one of Formats.
	Format string

	// ReportFile is where the report is written. Empty means stdout.
	ReportFile string

	// DotFile is where the Graphviz graph is written. "-" means stdout,
	// empty disables graph export.
	DotFile string

	// Summary appends a per-rule summary table to the simple report.
	Summary bool

	// Language formats the counts of the summary.
	Language language.Tag

	// SaveHistory archives the report in the history database.
	SaveHistory bool

	// DBDir is the directory of the history database.
	DBDir string
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Depth:       DefaultDepth,
		Workers:     DefaultWorkers,
		Timeout:     DefaultTimeout,
		UserAgent:   DefaultUserAgent,
		MaxBodySize: DefaultMaxBodySize,
		Format:      FormatSimple,
		Language:    language.English,
		DBDir:       XDGDataDir(),
	}
}

// XDGDataDir returns the XDG data directory for spidercrab.
// On Linux: ~/.local/share/spidercrab
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for spidercrab.
// On Linux: ~/.config/spidercrab
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// HistoryDBPath returns the path of the history database.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.DBDir, HistoryDBFile)
}

// Validate checks if the configuration is valid.
// It returns the first problem found.
func (c *Config) Validate() error {
	if c.Seed == "" {
		return ErrNoSeed
	}
	if c.Depth < -1 {
		return ErrInvalidDepth
	}
	if c.Workers <= 0 {
		return ErrInvalidWorkers
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if !slices.Contains(Formats, c.Format) {
		return ErrInvalidFormat
	}
	if c.RequestsPerSecond < 0 {
		return ErrInvalidRate
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.MaxBodySize <= 0 {
		return ErrInvalidMaxBodySize
	}
	for _, name := range c.DisabledRules {
		if !model.KnownRule(name) {
			return fmt.Errorf("%w: %q in disabled rules", ErrUnknownRule, name)
		}
	}
	return nil
}
