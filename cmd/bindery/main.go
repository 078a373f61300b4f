package main

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/vango-dev/bindery/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// errFailed reports a scenario that ran but did not pass. Its output has
// already been written, so main only sets the exit status.
var errFailed = stderrors.New("bindery: scenario failed")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		if !stderrors.Is(err, errFailed) {
			errors.Print(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bindery",
		Short: "Drive reactive property graphs from scenario files",
		Long: `Bindery runs YAML scenarios against a reactive property graph.

A scenario declares properties, rules, derived edges and groups, then a
list of steps that set and touch properties and check validity, values,
messages and the events the bus dispatched.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		runCmd(),
		checkCmd(),
		versionCmd(),
	)
	return rootCmd
}

// success prints a success message.
func success(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "  %s\n", fmt.Sprintf(format, args...))
}
