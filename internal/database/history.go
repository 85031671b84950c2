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

	"github.com/nao1215/spidercrab/internal/model"
)

// Errors returned by HistoryDB lookups.
var (
	// ErrRunNotFound is returned when no run matches the requested ID.
	ErrRunNotFound = errors.New("run not found")

	// ErrAmbiguousRun is returned when an ID prefix matches more than one run.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")

	// ErrDatabaseNotFound is returned by Open when the file is missing and
	// CreateIfNotExists is false.
	ErrDatabaseNotFound = errors.New("history database not found")
)

// HistoryDB stores archived check reports.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
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

// Open opens or creates the history database at dbPath.
// If CreateIfNotExists is true, the parent directory and database file are created.
func Open(dbPath string, opts Options) (*HistoryDB, error) {
	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(filepath.Dir(dbPath), 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a missing file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	h := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := h.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return h, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		pages INTEGER NOT NULL,
		findings INTEGER NOT NULL,
		suppressed INTEGER NOT NULL,
		exit_code INTEGER NOT NULL,
		aborted INTEGER NOT NULL DEFAULT 0,
		rule_counts TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_seed ON runs(seed);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary contains summary information about an archived run.
// This is used for listing history without loading the full report.
type RunSummary struct {
	// ID is the run ID of the report.
	ID string

	// Seed is the crawl entry URL.
	Seed string

	// StartedAt is when the crawl began.
	StartedAt time.Time

	// FinishedAt is when the crawl ended.
	FinishedAt time.Time

	// Pages is the number of URLs fetched.
	Pages int

	// Findings is the number of unsuppressed findings.
	Findings int

	// Suppressed is the number of findings removed by the ignore file.
	Suppressed int

	// ExitCode is the exit status the run produced.
	ExitCode int

	// Aborted is true when the crawl was interrupted.
	Aborted bool

	// RuleCounts contains counts of findings by rule name.
	RuleCounts map[string]int
}

// SaveRun archives a report. Saving the same run ID twice replaces the
// earlier copy.
func (h *HistoryDB) SaveRun(ctx context.Context, report *model.CheckReport) error {
	if report.RunID == "" {
		return errors.New("report has no run id")
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}
	countsJSON, err := json.Marshal(report.CountByRule())
	if err != nil {
		return fmt.Errorf("failed to serialize rule counts: %w", err)
	}

	query := `
	INSERT INTO runs (id, seed, started_at, finished_at, pages, findings, suppressed, exit_code, aborted, rule_counts, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		seed = excluded.seed,
		started_at = excluded.started_at,
		finished_at = excluded.finished_at,
		pages = excluded.pages,
		findings = excluded.findings,
		suppressed = excluded.suppressed,
		exit_code = excluded.exit_code,
		aborted = excluded.aborted,
		rule_counts = excluded.rule_counts,
		report_json = excluded.report_json
	`

	_, err = h.db.ExecContext(ctx, query,
		report.RunID,
		report.Seed,
		report.StartedAt.UTC().Format(timestampLayout),
		report.FinishedAt.UTC().Format(timestampLayout),
		len(report.Pages),
		len(report.Findings),
		len(report.Suppressed),
		report.ExitCode(),
		report.Aborted,
		string(countsJSON),
		string(reportJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	return nil
}

// ListRuns returns run summaries, newest first. An empty seed lists every run.
func (h *HistoryDB) ListRuns(ctx context.Context, seed string) ([]RunSummary, error) {
	query := `
	SELECT id, seed, started_at, finished_at, pages, findings, suppressed, exit_code, aborted, rule_counts
	FROM runs
	`
	args := make([]any, 0, 1)
	if seed != "" {
		query += " WHERE seed = ?"
		args = append(args, seed)
	}
	query += " ORDER BY started_at DESC, id"

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var results []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished string
		var countsJSON sql.NullString

		if err := rows.Scan(&s.ID, &s.Seed, &started, &finished, &s.Pages, &s.Findings,
			&s.Suppressed, &s.ExitCode, &s.Aborted, &countsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)

		s.RuleCounts = make(map[string]int)
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &s.RuleCounts); err != nil {
				s.RuleCounts = make(map[string]int)
			}
		}

		results = append(results, s)
	}

	return results, rows.Err()
}

// GetRun loads an archived report by run ID or by a unique ID prefix.
func (h *HistoryDB) GetRun(ctx context.Context, id string) (*model.CheckReport, error) {
	if id == "" {
		return nil, ErrRunNotFound
	}

	var reportJSON string
	err := h.db.QueryRowContext(ctx, "SELECT report_json FROM runs WHERE id = ?", id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		reportJSON, err = h.getRunByPrefix(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	var report model.CheckReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// getRunByPrefix returns the report JSON of the only run whose ID starts with prefix.
func (h *HistoryDB) getRunByPrefix(ctx context.Context, prefix string) (string, error) {
	query := `
	SELECT report_json FROM runs
	WHERE substr(id, 1, ?) = ?
	LIMIT 2
	`

	rows, err := h.db.QueryContext(ctx, query, len(prefix), prefix)
	if err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var blobs []string
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return "", fmt.Errorf("failed to scan run: %w", err)
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to get run: %w", err)
	}

	switch len(blobs) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return blobs[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRun, prefix)
	}
}

// ListSeeds returns every seed with at least one archived run.
func (h *HistoryDB) ListSeeds(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT seed FROM runs
	ORDER BY seed
	`

	rows, err := h.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list seeds: %w", err)
	}
	defer rows.Close()

	var seeds []string
	for rows.Next() {
		var seed string
		if err := rows.Scan(&seed); err != nil {
			return nil, fmt.Errorf("failed to scan seed: %w", err)
		}
		seeds = append(seeds, seed)
	}

	return seeds, rows.Err()
}

// timestampLayout has a fixed-width fraction so stored values sort by time.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
