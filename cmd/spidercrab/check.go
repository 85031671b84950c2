package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nao1215/spidercrab/internal/config"
	"github.com/nao1215/spidercrab/internal/crawler"
	"github.com/nao1215/spidercrab/internal/database"
	"github.com/nao1215/spidercrab/internal/graph"
	"github.com/nao1215/spidercrab/internal/model"
	"github.com/nao1215/spidercrab/internal/report"
	"github.com/nao1215/spidercrab/internal/rules"
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
)

// stdoutPath selects standard output for --output and --dot.
const stdoutPath = "-"

// NewCheckCmd creates the check command.
func NewCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <url>",
		Short: "Crawl a site and report broken links and markup problems",
		Long: `Check crawls the site reachable from the seed URL breadth first.

Every page, image, script and stylesheet is fetched once. HTML pages on the
seed host (and on hosts given with --host) are parsed and their references
followed; other URLs are only checked for reachability.

Findings are printed one per line:
  ERROR - SpiderError (<rule>): <message>

Rules: http-error, missing-title, missing-href, missing-src, empty-script,
invalid-url. Add the class "scrab-skip" to an element to exclude it.

Examples:
  # Check a local build
  spidercrab check http://localhost:8080/

  # Only follow two hops from the seed, 16 workers
  spidercrab check -d 2 -w 16 https://example.com/

  # Markdown report plus a Graphviz site map
  spidercrab check -f markdown -o report.md -g site.dot https://example.com/

  # Suppress known issues and archive the run
  spidercrab check -i .spidercrab-ignore --history https://example.com/

Ignore file format (one rule per line):
  # rule          url
  missing-title   https://example.com/legacy.html
  http-error      https://example.com/removed.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: runCheckCmd,
	}

	// Crawl behavior flags
	cmd.Flags().IntP("depth", "d", config.DefaultDepth,
		"Maximum hops from the seed (-1 = unlimited)")
	cmd.Flags().IntP("workers", "w", config.DefaultWorkers,
		"Number of concurrent fetches")
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Timeout for each request")
	cmd.Flags().StringArray("host", nil,
		"Additional host whose pages are parsed (repeatable)")
	cmd.Flags().StringArrayP("exclude", "x", nil,
		"URL path glob that is never fetched (repeatable)")
	cmd.Flags().Float64("rate", 0,
		"Maximum requests per second per host (0 = unlimited)")
	cmd.Flags().Int("max-pages", 0,
		"Maximum number of URLs to fetch (0 = unlimited)")
	cmd.Flags().Int64("max-body-size", config.DefaultMaxBodySize,
		"Maximum bytes read from an HTML page")
	cmd.Flags().String("user-agent", config.DefaultUserAgent,
		"User-Agent header sent with requests")
	cmd.Flags().StringArrayP("header", "H", nil,
		`Extra request header as "Name: value" (repeatable)`)
	cmd.Flags().StringArray("disable", nil,
		"Rule that is never reported (repeatable)")

	// Configuration flags
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .spidercrab.yaml or $XDG_CONFIG_HOME/spidercrab/config.yaml)")
	cmd.Flags().StringP("ignore-file", "i", "",
		"Ignore file path (default: "+config.DefaultIgnoreFile+" when present)")

	// Report flags
	cmd.Flags().StringP("format", "f", config.FormatSimple,
		"Report format: "+strings.Join(config.Formats, ", "))
	cmd.Flags().StringP("output", "o", "",
		"Write report to file instead of stdout")
	cmd.Flags().StringP("dot", "g", "",
		`Write the link graph in Graphviz DOT format ("-" = stdout)`)
	cmd.Flags().Bool("summary", false,
		"Append per-rule counts to the simple report")
	cmd.Flags().String("lang", "en",
		"Language tag used to format summary counts (e.g. en, de, fr)")

	// History flags
	cmd.Flags().Bool("history", false,
		"Archive the report in the run history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the run history database")

	return cmd
}

// runCheckCmd executes the check command.
func runCheckCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := newLogger(cmd)

	checkReport, err := runCheck(cmd.Context(), cfg, logger, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	if checkReport.Aborted {
		return &exitError{
			code: model.ExitFault,
			err:  fmt.Errorf("crawl interrupted: %s", checkReport.AbortReason),
		}
	}
	if code := checkReport.ExitCode(); code != model.ExitClean {
		return &exitError{code: code}
	}
	return nil
}

// buildConfig creates a Config from defaults, the configuration file and
// the flags that were set explicitly, in that order.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error
	cfg.ConfigFilePath, err = flags.GetString("config")
	if err != nil {
		return nil, err
	}

	// An explicit config file must exist; the default locations are optional.
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		file.Apply(cfg)
	case cfg.ConfigFilePath != "":
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if flags.Changed("depth") {
		if cfg.Depth, err = flags.GetInt("depth"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("workers") {
		if cfg.Workers, err = flags.GetInt("workers"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("timeout") {
		if cfg.Timeout, err = flags.GetDuration("timeout"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("rate") {
		if cfg.RequestsPerSecond, err = flags.GetFloat64("rate"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-pages") {
		if cfg.MaxPages, err = flags.GetInt("max-pages"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("max-body-size") {
		if cfg.MaxBodySize, err = flags.GetInt64("max-body-size"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("user-agent") {
		if cfg.UserAgent, err = flags.GetString("user-agent"); err != nil {
			return nil, err
		}
	}
	if flags.Changed("ignore-file") {
		if cfg.IgnoreFile, err = flags.GetString("ignore-file"); err != nil {
			return nil, err
		}
	}

	// List flags add to the values from the configuration file.
	hosts, err := flags.GetStringArray("host")
	if err != nil {
		return nil, err
	}
	cfg.Hosts = append(cfg.Hosts, hosts...)

	exclude, err := flags.GetStringArray("exclude")
	if err != nil {
		return nil, err
	}
	cfg.ExcludePatterns = append(cfg.ExcludePatterns, exclude...)

	disabled, err := flags.GetStringArray("disable")
	if err != nil {
		return nil, err
	}
	cfg.DisabledRules = append(cfg.DisabledRules, disabled...)

	headers, err := flags.GetStringArray("header")
	if err != nil {
		return nil, err
	}
	for _, h := range headers {
		name, value, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		cfg.Headers[name] = value
	}

	if cfg.Format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.DotFile, err = flags.GetString("dot"); err != nil {
		return nil, err
	}
	if cfg.Summary, err = flags.GetBool("summary"); err != nil {
		return nil, err
	}
	if flags.Changed("lang") {
		lang, err := flags.GetString("lang")
		if err != nil {
			return nil, err
		}
		if cfg.Language, err = language.Parse(lang); err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", lang, err)
		}
	}
	if cfg.SaveHistory, err = flags.GetBool("history"); err != nil {
		return nil, err
	}
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}

	cfg.Seed = args[0]

	return cfg, nil
}

// parseHeader splits a "Name: value" flag value.
func parseHeader(s string) (string, string, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q (expected \"Name: value\")", s)
	}
	return name, strings.TrimSpace(value), nil
}

// runCheck crawls the seed and writes every requested output.
func runCheck(ctx context.Context, cfg *config.Config, logger *slog.Logger, stdout io.Writer) (*model.CheckReport, error) {
	suppressions, err := loadSuppressions(cfg, logger)
	if err != nil {
		return nil, err
	}

	fetcher := crawler.NewHTTPFetcher(
		crawler.WithTimeout(cfg.Timeout),
		crawler.WithUserAgent(cfg.UserAgent),
		crawler.WithHeaders(cfg.Headers),
		crawler.WithMaxBodySize(cfg.MaxBodySize),
		crawler.WithRateLimit(cfg.RequestsPerSecond),
		crawler.WithFetcherLogger(logger),
	)

	spider := crawler.NewSpider(fetcher,
		crawler.WithMaxDepth(cfg.Depth),
		crawler.WithMaxPages(cfg.MaxPages),
		crawler.WithWorkers(cfg.Workers),
		crawler.WithHosts(cfg.Hosts),
		crawler.WithRuleEngine(rules.NewEngine(cfg.DisabledRules...)),
		crawler.WithSuppressions(suppressions),
		crawler.WithExcludePatterns(cfg.ExcludePatterns),
		crawler.WithLogger(logger),
	)

	checkReport, err := spider.Check(ctx, cfg.Seed)
	if err != nil {
		return nil, err
	}

	if err := writeReport(cfg, checkReport, stdout); err != nil {
		return nil, err
	}
	if err := writeDOT(cfg.DotFile, checkReport, stdout); err != nil {
		return nil, err
	}
	if cfg.SaveHistory {
		// The crawl result is still reported when archiving fails.
		if err := saveHistory(ctx, cfg, checkReport, logger); err != nil {
			logger.Error("failed to archive report", "run", checkReport.RunID, "error", err)
		}
	}

	return checkReport, nil
}

// loadSuppressions reads the ignore file, if any.
func loadSuppressions(cfg *config.Config, logger *slog.Logger) ([]model.SuppressionRule, error) {
	path := config.ResolveIgnoreFile(cfg.IgnoreFile)
	if path == "" {
		return nil, nil
	}
	suppressions, err := config.LoadIgnoreFile(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded ignore file", "path", path, "rules", len(suppressions))
	return suppressions, nil
}

// writeReport writes the report in the configured format.
func writeReport(cfg *config.Config, checkReport *model.CheckReport, stdout io.Writer) error {
	output, closeOutput, err := openOutput(cfg.ReportFile, stdout)
	if err != nil {
		return err
	}

	writer, err := report.New(cfg.Format, output, report.Options{
		Summary:  cfg.Summary,
		Version:  getVersion(),
		Language: cfg.Language,
	})
	if err != nil {
		_ = closeOutput() //nolint:errcheck // format error takes precedence
		return err
	}

	if _, err := writer.Write(checkReport); err != nil {
		_ = closeOutput() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("failed to write report: %w", err)
	}
	return closeOutput()
}

// writeDOT writes the link graph when a destination is configured.
func writeDOT(path string, checkReport *model.CheckReport, stdout io.Writer) error {
	if path == "" {
		return nil
	}
	output, closeOutput, err := openOutput(path, stdout)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(output, graph.RenderDOT(checkReport)); err != nil {
		_ = closeOutput() //nolint:errcheck // write error takes precedence
		return fmt.Errorf("failed to write graph: %w", err)
	}
	return closeOutput()
}

// openOutput returns stdout for "" and "-", otherwise a new file at path.
// Parent directories are created as needed.
func openOutput(path string, stdout io.Writer) (io.Writer, func() error, error) {
	if path == "" || path == stdoutPath {
		return stdout, func() error { return nil }, nil
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // user-provided output path
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

// saveHistory archives the report in the history database.
func saveHistory(ctx context.Context, cfg *config.Config, checkReport *model.CheckReport, logger *slog.Logger) error {
	db, err := database.Open(cfg.HistoryDBPath(), database.DefaultOptions())
	if err != nil {
		return err
	}
	defer db.Close()

	// The crawl context may already be cancelled for an interrupted run.
	if err := db.SaveRun(context.WithoutCancel(ctx), checkReport); err != nil {
		return err
	}

	logger.Info("report archived", "run", checkReport.RunID, "db", db.Path())
	return nil
}
