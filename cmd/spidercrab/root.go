package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nao1215/spidercrab/internal/log"
	"github.com/nao1215/spidercrab/internal/model"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command for spidercrab.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "spidercrab",
		Short: "Link and asset checker for static websites",
		Long: `spidercrab crawls a website from a seed URL and checks every page, link,
image, script and stylesheet it can reach.

It reports unreachable URLs, pages without a title, anchors without href,
images and scripts without src, empty inline scripts and unparsable URLs.
Known problems can be suppressed with an ignore file.

Exit status is 0 when no findings remain, 1 when findings were reported and
2 when the check could not run.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global flags that apply to all commands
	cmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug)")
	cmd.PersistentFlags().BoolP("quiet", "q", false, "Only log errors")
	cmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON")

	// Add subcommands
	cmd.AddCommand(NewCheckCmd())
	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewCompareCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command and exits with its status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(handleError(os.Stderr, err))
}

// exitError carries an exit status through cobra. A nil err exits silently.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// handleError prints err as a fatal message when needed and returns the exit status.
func handleError(w io.Writer, err error) int {
	if err == nil {
		return model.ExitClean
	}
	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil {
			fmt.Fprintf(w, "fatal: %v\n", ee.err)
		}
		return ee.code
	}
	fmt.Fprintf(w, "fatal: %v\n", err)
	return model.ExitFault
}

// logOptions reads the global logging flags from the command or its root.
func logOptions(cmd *cobra.Command) log.Options {
	flags := cmd.Flags()
	if flags.Lookup("verbose") == nil {
		flags = cmd.Root().PersistentFlags()
	}

	var opts log.Options
	opts.Verbosity, _ = flags.GetCount("verbose") //nolint:errcheck // defined on root
	opts.Quiet, _ = flags.GetBool("quiet")        //nolint:errcheck // defined on root
	opts.JSON, _ = flags.GetBool("log-json")      //nolint:errcheck // defined on root
	return opts
}

// newLogger creates the logger for a command. Logs go to stderr so that
// reports on stdout stay machine readable.
func newLogger(cmd *cobra.Command) *slog.Logger {
	return log.NewLogger(cmd.ErrOrStderr(), logOptions(cmd))
}
