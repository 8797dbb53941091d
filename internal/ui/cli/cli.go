// Package cli is the codeintel command line: one subcommand per engine
// operation plus a long-running serve mode.
package cli

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeintel/internal/core/errors"

	"github.com/spf13/cobra"
)

const versionString = "0.3.0"

type options struct {
	configPath string
	root       string
	verbose    bool
	jsonOut    bool
}

// usageError marks bad flags or arguments; they exit with status 2.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}

// Run executes the command line in args and returns the exit status.
func Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(&options{}, stdin, stdout, stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	fmt.Fprintf(stderr, "Error: %s\n", err)
	var ue usageError
	if stderrors.As(err, &ue) {
		return 2
	}
	if errors.IsCode(err, errors.CodeCancelled) {
		return 130
	}
	return 1
}

func newRootCmd(opts *options, stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "codeintel",
		Short:         "Symbol search, dependency analysis and safe renames over tree-sitter syntax trees",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error { return usageError{err} })

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "path to codeintel.toml (default: <root>/codeintel.toml)")
	flags.StringVar(&opts.root, "root", "", "project root (default: detected from the working directory)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	flags.BoolVar(&opts.jsonOut, "json", false, "print results as JSON")

	root.AddCommand(
		newSymbolCmd(opts),
		newDepsCmd(opts),
		newRefactorCmd(opts),
		newLanguagesCmd(opts),
		newServeCmd(opts),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Args:  usageArgs(cobra.NoArgs),
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "codeintel v%s\n", versionString)
			},
		},
	)
	return root
}
