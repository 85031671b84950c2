package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/spidercrab/internal/config"
	"github.com/nao1215/spidercrab/internal/database"
	"github.com/nao1215/spidercrab/internal/graph"
	"github.com/nao1215/spidercrab/internal/model"
	"github.com/nao1215/spidercrab/internal/report"
	"github.com/rodaine/table"
	"github.com/spf13/cobra"
)

// shortIDLen is the run ID prefix shown in listings. Any unique prefix is accepted.
const shortIDLen = 8

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [seed]",
		Short: "List and inspect archived check runs",
		Long: `History shows runs archived with 'spidercrab check --history'.

Without arguments every run is listed, newest first. With a seed URL only the
runs of that seed are listed. Run IDs may be shortened to any unique prefix.

Examples:
  # List all runs
  spidercrab history

  # List runs of one site
  spidercrab history https://example.com/

  # Print the findings of a run
  spidercrab history --show 1f2e3d4c

  # Print a run as Markdown
  spidercrab history --show 1f2e3d4c -f markdown

  # Re-render the link graph of a run
  spidercrab history --dot 1f2e3d4c | dot -Tsvg > site.svg

  # List every seed with archived runs
  spidercrab history --seeds`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().String("show", "", "Print the report of the run with this ID")
	cmd.Flags().String("dot", "", "Print the link graph of the run with this ID")
	cmd.Flags().Bool("seeds", false, "List seeds with archived runs")
	cmd.Flags().StringP("format", "f", config.FormatSimple,
		"Report format for --show: simple, json, markdown, csv")
	cmd.Flags().String("db-dir", config.XDGDataDir(), "Directory of the run history database")

	cmd.MarkFlagsMutuallyExclusive("show", "dot", "seeds")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	showID, err := flags.GetString("show")
	if err != nil {
		return err
	}
	dotID, err := flags.GetString("dot")
	if err != nil {
		return err
	}
	listSeeds, err := flags.GetBool("seeds")
	if err != nil {
		return err
	}
	format, err := flags.GetString("format")
	if err != nil {
		return err
	}
	dbDir, err := flags.GetString("db-dir")
	if err != nil {
		return err
	}

	var seed string
	if len(args) == 1 {
		if seed, err = model.NormalizeURL(args[0]); err != nil {
			return fmt.Errorf("invalid seed %q: %w", args[0], err)
		}
	}

	out := cmd.OutOrStdout()

	db, err := openHistory(dbDir)
	if errors.Is(err, database.ErrDatabaseNotFound) {
		fmt.Fprintln(out, "No runs archived yet.")
		fmt.Fprintln(out, "\nUse 'spidercrab check --history <url>' to archive a run.")
		return nil
	}
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	switch {
	case showID != "":
		return showRun(ctx, db, showID, format, out)
	case dotID != "":
		return showRunGraph(ctx, db, dotID, out)
	case listSeeds:
		return listArchivedSeeds(ctx, db, out)
	default:
		return listRuns(ctx, db, seed, out)
	}
}

// openHistory opens an existing history database in dbDir.
func openHistory(dbDir string) (*database.HistoryDB, error) {
	cfg := config.NewConfig()
	cfg.DBDir = dbDir
	return database.Open(cfg.HistoryDBPath(), database.Options{CreateIfNotExists: false})
}

// showRun prints an archived report in the requested format.
func showRun(ctx context.Context, db *database.HistoryDB, id, format string, out io.Writer) error {
	checkReport, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	writer, err := report.New(format, out, report.Options{Summary: true, Version: getVersion()})
	if err != nil {
		return err
	}
	_, err = writer.Write(checkReport)
	return err
}

// showRunGraph prints the link graph of an archived report.
func showRunGraph(ctx context.Context, db *database.HistoryDB, id string, out io.Writer) error {
	checkReport, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	_, err = io.WriteString(out, graph.RenderDOT(checkReport))
	return err
}

// listArchivedSeeds lists all seeds that have runs in the database.
func listArchivedSeeds(ctx context.Context, db *database.HistoryDB, out io.Writer) error {
	seeds, err := db.ListSeeds(ctx)
	if err != nil {
		return err
	}
	if len(seeds) == 0 {
		fmt.Fprintln(out, "No runs archived yet.")
		return nil
	}

	fmt.Fprintf(out, "Archived seeds (%d):\n\n", len(seeds))
	for _, s := range seeds {
		fmt.Fprintf(out, "  • %s\n", s)
	}
	fmt.Fprintln(out, "\nUse 'spidercrab history <seed>' to see the runs of a seed.")
	return nil
}

// listRuns prints a table of runs, newest first.
func listRuns(ctx context.Context, db *database.HistoryDB, seed string, out io.Writer) error {
	runs, err := db.ListRuns(ctx, seed)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		if seed != "" {
			fmt.Fprintf(out, "No runs archived for %s\n", seed)
		} else {
			fmt.Fprintln(out, "No runs archived yet.")
		}
		return nil
	}

	tbl := table.New("ID", "Started", "Seed", "Pages", "Findings", "Suppressed", "Status").WithWriter(out)
	for _, r := range runs {
		tbl.AddRow(
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.Seed,
			strconv.Itoa(r.Pages),
			strconv.Itoa(r.Findings),
			strconv.Itoa(r.Suppressed),
			runStatus(r),
		)
	}
	tbl.Print()

	fmt.Fprintln(out, "\nUse 'spidercrab history --show <id>' to print a run.")
	fmt.Fprintln(out, "Use 'spidercrab compare <seed>' to compare the latest two runs of a seed.")
	return nil
}

// shortID returns the listing prefix of a run ID.
func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}

// runStatus describes a run in one word.
func runStatus(r database.RunSummary) string {
	switch {
	case r.Aborted:
		return "interrupted"
	case r.ExitCode == model.ExitClean:
		return "clean"
	default:
		return "findings"
	}
}
