// Package cli handles command-line parsing and dispatch for backpack.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/NielsdaWheelz/backpack/internal/commands"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/version"
)

const rootLong = `backpack keeps agent context files (CLAUDE.md, task notes, editor rules)
committed on a working branch and emits a clean copy of that branch with
those files stripped from every commit.

run 'backpack <command> --help' for command-specific help.`

// Run parses arguments and dispatches to the appropriate subcommand.
// Returns an error if the command fails; the caller should print the error and exit.
// Parse failures are reported as E_USAGE.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(stdout, stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	if _, ok := errors.AsBackpackError(err); ok {
		return err
	}
	// Cobra's own errors: unknown commands and the like.
	return errors.Wrap(errors.EUsage, err.Error(), err)
}

type globalOpts struct {
	verbose bool
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalOpts{}

	root := &cobra.Command{
		Use:           "backpack",
		Short:         "carry agent context on a branch, emit it clean",
		Long:          rootLong,
		Version:       version.Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			configureLogging(stderr, g.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			_ = cmd.Help()
			return errors.New(errors.EUsage, "no command specified")
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetVersionTemplate("backpack {{.Version}}\n")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.WrapWithDetails(errors.EUsage, "invalid flags", err, map[string]string{
			"hint": fmt.Sprintf("run '%s --help' for usage", cmd.CommandPath()),
		})
	})
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log debug output and stream rewrite tool output")

	root.AddCommand(
		newInitCmd(),
		newEmitCmd(g),
		newPlanCmd(),
		newLSCmd(),
		newShowCmd(),
		newLogCmd(),
		newDoctorCmd(),
	)
	return root
}

// configureLogging routes logrus to stderr. Warnings and above by default,
// everything with --verbose.
func configureLogging(stderr io.Writer, verbose bool) {
	logrus.SetOutput(stderr)
	logrus.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.WarnLevel)
	}
}

// maxArgs accepts at most n positional arguments.
func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) > n {
			return errors.NewWithDetails(errors.EUsage,
				fmt.Sprintf("%s accepts at most %d argument(s), got %d", cmd.Name(), n, len(args)),
				map[string]string{"hint": fmt.Sprintf("run '%s --help' for usage", cmd.CommandPath())})
		}
		return nil
	}
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

type commandFunc func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error

// withRepoEnv runs fn against the real runner, filesystem, and environment.
func withRepoEnv(cmd *cobra.Command, fn commandFunc) error {
	cwd, err := os.Getwd()
	if err != nil {
		return errors.Wrap(errors.ENoRepo, "failed to get working directory", err)
	}
	return fn(cmd.Context(), exec.NewRealRunner(), fs.NewRealFS(), paths.OSEnv{}, cwd)
}

func newInitCmd() *cobra.Command {
	var opts commands.InitOpts
	cmd := &cobra.Command{
		Use:   "init",
		Short: "create the metadata record on the current branch",
		Long: `create .backpack/meta.json and stub context files on the current branch
and commit them. re-running with --manage adds patterns to an existing record.`,
		Example: `  backpack init
  backpack init --base develop --manage CLAUDE.md --manage .cursor/`,
		Args: maxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoEnv(cmd, func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error {
				return commands.Init(ctx, cr, fsys, env, cwd, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().StringVar(&opts.Base, "base", "", "base branch to record (must exist)")
	cmd.Flags().StringArrayVar(&opts.Manage, "manage", nil, "path pattern to manage (repeatable)")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "replace an unreadable metadata record")
	cmd.Flags().BoolVar(&opts.NoCommit, "no-commit", false, "write files without committing them")
	return cmd
}

func newEmitCmd(g *globalOpts) *cobra.Command {
	var opts commands.EmitOpts
	cmd := &cobra.Command{
		Use:   "emit [source]",
		Short: "build the emit branch with managed files stripped",
		Long: `create or replace <source><suffix> from the source branch, removing every
managed path from each commit after the merge base and dropping commits
marked for removal. the source branch is never modified.`,
		Example: `  backpack emit
  backpack emit feat/login --base develop
  backpack emit --dry-run`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Source = firstArg(args)
			opts.Stream = g.verbose
			return withRepoEnv(cmd, func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error {
				return commands.Emit(ctx, cr, fsys, env, cwd, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().StringVar(&opts.Base, "base", "", "base branch (overrides metadata and config)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "print the plan without changing anything")
	return cmd
}

func newPlanCmd() *cobra.Command {
	var opts commands.PlanOpts
	cmd := &cobra.Command{
		Use:   "plan [source]",
		Short: "preview which commits an emit would strip, drop, or prune",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Source = firstArg(args)
			return withRepoEnv(cmd, func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error {
				return commands.Plan(ctx, cr, fsys, env, cwd, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().StringVar(&opts.Base, "base", "", "base branch (overrides metadata and config)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON")
	return cmd
}

func newLSCmd() *cobra.Command {
	var opts commands.LSOpts
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "list branches carrying backpack metadata",
		Args:  maxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoEnv(cmd, func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error {
				return commands.LS(ctx, cr, fsys, env, cwd, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON")
	return cmd
}

func newShowCmd() *cobra.Command {
	var opts commands.ShowOpts
	cmd := &cobra.Command{
		Use:   "show [branch]",
		Short: "show metadata and emit status for one branch",
		Long: `show metadata and emit status for one branch (default: current branch).
the branch may be given as a unique prefix.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Branch = firstArg(args)
			return withRepoEnv(cmd, func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error {
				return commands.Show(ctx, cr, fsys, env, cwd, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON")
	return cmd
}

func newLogCmd() *cobra.Command {
	var opts commands.LogOpts
	cmd := &cobra.Command{
		Use:   "log [branch]",
		Short: "list recorded emits, newest first",
		Args:  maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Branch = firstArg(args)
			return withRepoEnv(cmd, func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error {
				return commands.Log(ctx, cr, fsys, env, cwd, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", commands.DefaultLogLimit, "maximum records to show (negative for all)")
	cmd.Flags().BoolVar(&opts.JSON, "json", false, "output as JSON")
	return cmd
}

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "check prerequisites and show resolved paths",
		Long: `check prerequisites and show resolved paths.
verifies git, git filter-repo, the metadata record, and .gitignore.`,
		Args: maxArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepoEnv(cmd, func(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) error {
				return commands.Doctor(ctx, cr, fsys, env, cwd, cmd.OutOrStdout(), cmd.ErrOrStderr())
			})
		},
	}
}
