package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/spidercrab/internal/config"
	"github.com/nao1215/spidercrab/internal/database"
	"github.com/nao1215/spidercrab/internal/model"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
)

// Trend directions between two runs.
const (
	trendWorsened  = "worsened"
	trendImproved  = "improved"
	trendUnchanged = "unchanged"
)

// NewCompareCmd creates the compare command.
// This command compares archived runs of the same seed.
func NewCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare <seed>",
		Short: "Compare the latest run of a site with an earlier one",
		Long: `Compare shows how the findings of a site changed between two archived runs.

By default the latest two runs of the seed are compared. The output lists:
- New findings that appeared since the earlier run
- Resolved findings that are no longer reported
- Per-rule counts of both runs

Runs are archived with 'spidercrab check --history'.

Examples:
  # Compare the latest two runs
  spidercrab compare https://example.com/

  # Compare the latest run with a specific earlier run
  spidercrab compare --with 1f2e3d4c https://example.com/

  # Output the comparison as JSON
  spidercrab compare --json https://example.com/`,
		Args: cobra.ExactArgs(1),
		RunE: runCompareCmd,
	}

	cmd.Flags().String("with", "", "Compare with the run with this ID instead of the previous run")
	cmd.Flags().BoolP("json", "j", false, "Output the comparison in JSON format")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run history database")

	return cmd
}

// runCompareCmd executes the compare command.
func runCompareCmd(cmd *cobra.Command, args []string) error {
	seed, err := model.NormalizeURL(args[0])
	if err != nil {
		return fmt.Errorf("invalid seed %q: %w", args[0], err)
	}

	withID, err := cmd.Flags().GetString("with")
	if err != nil {
		return err
	}
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}

	db, err := openHistory(dbDir)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		return errors.New("no runs archived yet (use 'spidercrab check --history <url>')")
	}
	if err != nil {
		return err
	}
	defer db.Close()

	previous, current, err := selectRuns(cmd.Context(), db, seed, withID)
	if err != nil {
		return err
	}

	result := compareReports(previous, current)
	if jsonOutput {
		return outputComparisonJSON(cmd.OutOrStdout(), result)
	}
	return outputComparisonText(cmd.OutOrStdout(), result)
}

// selectRuns returns the earlier and the latest run of seed.
func selectRuns(ctx context.Context, db *database.HistoryDB, seed, withID string) (*model.CheckReport, *model.CheckReport, error) {
	runs, err := db.ListRuns(ctx, seed)
	if err != nil {
		return nil, nil, err
	}

	switch {
	case len(runs) == 0:
		return nil, nil, fmt.Errorf("no runs archived for %s", seed)
	case withID == "" && len(runs) < 2:
		return nil, nil, fmt.Errorf("only one run archived for %s (at least two are needed)", seed)
	}

	current, err := db.GetRun(ctx, runs[0].ID)
	if err != nil {
		return nil, nil, err
	}

	previousID := withID
	if previousID == "" {
		previousID = runs[1].ID
	}
	previous, err := db.GetRun(ctx, previousID)
	if err != nil {
		return nil, nil, err
	}
	if previous.Seed != seed {
		return nil, nil, fmt.Errorf("run %s checked %s, not %s", shortID(previous.RunID), previous.Seed, seed)
	}
	return previous, current, nil
}

// ComparisonResult contains the differences between two runs.
type ComparisonResult struct {
	// Seed is the compared site.
	Seed string `json:"seed"`

	// Previous describes the earlier run.
	Previous RunMetadata `json:"previous"`

	// Current describes the later run.
	Current RunMetadata `json:"current"`

	// NewFindings are reported by the current run only, in report order.
	NewFindings []model.Finding `json:"new_findings,omitempty"`

	// ResolvedFindings were reported by the previous run only, in report order.
	ResolvedFindings []model.Finding `json:"resolved_findings,omitempty"`

	// UnchangedCount is the number of findings reported by both runs.
	UnchangedCount int `json:"unchanged_count"`

	// Trend is "improved", "worsened" or "unchanged".
	Trend string `json:"trend"`
}

// RunMetadata contains metadata about a run for comparison display.
type RunMetadata struct {
	// ID is the run ID.
	ID string `json:"id"`

	// StartedAt is when the run began.
	StartedAt time.Time `json:"started_at"`

	// Pages is the number of fetched URLs.
	Pages int `json:"pages"`

	// TotalFindings is the number of unsuppressed findings.
	TotalFindings int `json:"total_findings"`

	// RuleCounts is the number of findings per rule.
	RuleCounts map[string]int `json:"rule_counts"`
}

func newRunMetadata(r *model.CheckReport) RunMetadata {
	return RunMetadata{
		ID:            r.RunID,
		StartedAt:     r.StartedAt,
		Pages:         len(r.Pages),
		TotalFindings: len(r.Findings),
		RuleCounts:    r.CountByRule(),
	}
}

// compareReports compares two reports of the same seed.
func compareReports(previous, current *model.CheckReport) *ComparisonResult {
	result := &ComparisonResult{
		Seed:     current.Seed,
		Previous: newRunMetadata(previous),
		Current:  newRunMetadata(current),
	}

	previousKeys := make(map[string]struct{}, len(previous.Findings))
	for _, f := range previous.Findings {
		previousKeys[findingKey(f)] = struct{}{}
	}
	currentKeys := make(map[string]struct{}, len(current.Findings))
	for _, f := range current.Findings {
		currentKeys[findingKey(f)] = struct{}{}
	}

	for _, f := range current.Findings {
		if _, ok := previousKeys[findingKey(f)]; !ok {
			result.NewFindings = append(result.NewFindings, f)
		}
	}
	for _, f := range previous.Findings {
		if _, ok := currentKeys[findingKey(f)]; ok {
			result.UnchangedCount++
		} else {
			result.ResolvedFindings = append(result.ResolvedFindings, f)
		}
	}

	switch delta := len(current.Findings) - len(previous.Findings); {
	case delta > 0:
		result.Trend = trendWorsened
	case delta < 0:
		result.Trend = trendImproved
	default:
		result.Trend = trendUnchanged
	}

	return result
}

// findingKey identifies a finding across runs.
func findingKey(f model.Finding) string {
	return f.Rule + "|" + f.Page + "|" + f.Message
}

// outputComparisonJSON outputs the comparison result in JSON format.
func outputComparisonJSON(out io.Writer, result *ComparisonResult) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

// outputComparisonText outputs the comparison result in human-readable text format.
func outputComparisonText(out io.Writer, result *ComparisonResult) error {
	fmt.Fprintf(out, "Run Comparison: %s\n", result.Seed)
	fmt.Fprintln(out, strings.Repeat("=", 60))

	fmt.Fprintf(out, "\nTrend: %s\n", formatTrend(result.Trend))
	fmt.Fprintf(out, "\nPrevious run: %s  %s\n", shortID(result.Previous.ID), result.Previous.StartedAt.Local().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(out, "Current run:  %s  %s\n\n", shortID(result.Current.ID), result.Current.StartedAt.Local().Format("2006-01-02 15:04:05"))

	tbl := table.New("Rule", "Previous", "Current", "Change").WithWriter(out)
	for _, rule := range model.RuleNames {
		before, after := result.Previous.RuleCounts[rule], result.Current.RuleCounts[rule]
		if before == 0 && after == 0 {
			continue
		}
		tbl.AddRow(rule, strconv.Itoa(before), strconv.Itoa(after), formatDelta(after-before))
	}
	tbl.AddRow("total",
		strconv.Itoa(result.Previous.TotalFindings),
		strconv.Itoa(result.Current.TotalFindings),
		formatDelta(result.Current.TotalFindings-result.Previous.TotalFindings))
	tbl.Print()

	if len(result.NewFindings) > 0 {
		fmt.Fprintf(out, "\nNew Findings (%d):\n", len(result.NewFindings))
		for _, f := range result.NewFindings {
			fmt.Fprintf(out, "  [+] %s\n", f.Line())
		}
	}

	if len(result.ResolvedFindings) > 0 {
		fmt.Fprintf(out, "\nResolved Findings (%d):\n", len(result.ResolvedFindings))
		for _, f := range result.ResolvedFindings {
			fmt.Fprintf(out, "  [-] %s\n", f.Line())
		}
	}

	if result.UnchangedCount > 0 {
		fmt.Fprintf(out, "\nUnchanged: %d findings\n", result.UnchangedCount)
	}

	return nil
}

// formatTrend formats the trend direction for display.
func formatTrend(trend string) string {
	switch trend {
	case trendImproved:
		return "IMPROVED (fewer findings)"
	case trendWorsened:
		return "WORSENED (more findings)"
	default:
		return "UNCHANGED"
	}
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}
