package cli

import (
	"context"
	stderrors "errors"

	"codeintel/internal/core/ports"

	"github.com/spf13/cobra"
)

func withRuntime(cmd *cobra.Command, opts *options, fn func(ctx context.Context, rt *runtime) error) error {
	ctx := cmd.Context()
	rt, err := setup(ctx, opts, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer rt.close()
	return fn(ctx, rt)
}

func newSymbolCmd(opts *options) *cobra.Command {
	var (
		operation    string
		scope        string
		language     string
		contextLines int
	)
	cmd := &cobra.Command{
		Use:   "symbol NAME",
		Short: "Find definitions and references of an identifier",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ports.SymbolRequest{
				Symbol:    args[0],
				Operation: operation,
				Scope:     scope,
				Language:  language,
			}
			if cmd.Flags().Changed("context") {
				req.ContextLines = &contextLines
			}
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				res, err := rt.app.SymbolSearch(ctx, req)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.jsonOut, res, renderSymbols)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&operation, "op", "o", "all", "definition, references or all")
	f.StringVarP(&scope, "scope", "s", "project", "project, file:<path> or directory:<path>")
	f.StringVarP(&language, "lang", "l", "", "restrict to one language id")
	f.IntVarP(&contextLines, "context", "C", 0, "lines of context around each match (default from config)")
	return cmd
}

func newDepsCmd(opts *options) *cobra.Command {
	var (
		scope string
		depth int
	)
	cmd := &cobra.Command{
		Use:   "deps imports|dependents|graph [TARGET]",
		Short: "Show what a file imports, what imports it, or its import graph",
		Long: "TARGET is a file path relative to the project root. It may be omitted when " +
			"--scope names a file.",
		Args: usageArgs(cobra.RangeArgs(1, 2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ports.DependencyRequest{Operation: args[0], Scope: scope, Depth: depth}
			if len(args) == 2 {
				req.Target = args[1]
			}
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				res, err := rt.app.Dependencies(ctx, req)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.jsonOut, res, renderDependencies)
			})
		},
	}
	f := cmd.Flags()
	f.StringVarP(&scope, "scope", "s", "project", "project, file:<path> or directory:<path>")
	f.IntVarP(&depth, "depth", "d", 1, "graph depth (1-10)")
	return cmd
}

func newRefactorCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refactor",
		Short: "Preview or apply a scope-aware rename",
	}
	cmd.AddCommand(
		newRenameCmd(opts, "preview", "Show the diff a rename would produce without writing anything"),
		newRenameCmd(opts, "rename", "Rename an identifier across the scope and write the files"),
		newPlanCmd(opts, "apply", "Apply a plan saved by an earlier preview (needs refactor.plan_store)"),
		newPlanCmd(opts, "cancel", "Discard a plan saved by an earlier preview"),
	)
	return cmd
}

// newPlanCmd acts on a plan id printed by preview. Across invocations the
// plan only survives when refactor.plan_store is configured.
func newPlanCmd(opts *options, op, short string) *cobra.Command {
	return &cobra.Command{
		Use:   op + " PLAN_ID",
		Short: short,
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				if op == "cancel" {
					if err := rt.app.CancelPlan(ctx, args[0]); err != nil {
						return err
					}
					return render(cmd.OutOrStdout(), opts.jsonOut, cancelledPlan{PlanID: args[0], State: "cancelled"}, renderCancelled)
				}
				res, err := rt.app.ApplyPlan(ctx, args[0])
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.jsonOut, res, renderRefactor)
			})
		},
	}
}

func newRenameCmd(opts *options, op, short string) *cobra.Command {
	var (
		scope       string
		backup      bool
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   op + " OLD NEW",
		Short: short,
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := ports.RefactorRequest{Operation: op, OldName: args[0], NewName: args[1], Scope: scope}
			if cmd.Flags().Changed("backup") {
				req.Backup = &backup
			}
			if interactive {
				switch {
				case opts.jsonOut:
					return usageError{stderrors.New("--interactive cannot be combined with --json")}
				case req.Backup != nil:
					return usageError{stderrors.New("--interactive takes backups from refactor.backup, not --backup")}
				case !isTerminal(cmd.InOrStdin()):
					return usageError{stderrors.New("--interactive needs a terminal on stdin")}
				}
				return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
					ask := terminalAsk(cmd.InOrStdin(), cmd.OutOrStdout())
					return confirmRename(ctx, rt, req, cmd.OutOrStdout(), ask)
				})
			}
			return withRuntime(cmd, opts, func(ctx context.Context, rt *runtime) error {
				res, err := rt.app.Refactor(ctx, req)
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.jsonOut, res, renderRefactor)
			})
		},
	}
	cmd.Flags().StringVarP(&scope, "scope", "s", "project", "project, file:<path> or directory:<path>")
	if op == "rename" {
		cmd.Flags().BoolVar(&backup, "backup", false, "keep a copy of each file before writing (default from config)")
		cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "show the diff and ask before writing")
	}
	return cmd
}

func newLanguagesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "languages",
		Short: "List the enabled languages and the files they claim",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, opts, func(_ context.Context, rt *runtime) error {
				return render(cmd.OutOrStdout(), opts.jsonOut, languageRows(rt.app.Registry), renderLanguages)
			})
		},
	}
}
