// Package git provides repo discovery and git operations via CommandRunner.
package git

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
)

// RepoRoot holds the absolute path to a git repository root.
type RepoRoot struct {
	Path string // absolute, clean, no trailing newline
}

// GetRepoRoot discovers the git repository root from the given working directory.
// Uses `git rev-parse --show-toplevel` via CommandRunner.
//
// Returns E_NO_REPO if:
//   - Not inside a git repository (exit code != 0)
//   - Git outputs empty or multi-line stdout
//   - cwd is empty
//
// Returns E_GIT_NOT_INSTALLED if the git binary cannot be executed.
func GetRepoRoot(ctx context.Context, cr exec.CommandRunner, cwd string) (RepoRoot, error) {
	if cwd == "" {
		return RepoRoot{}, errors.New(errors.ENoRepo, "working directory is empty")
	}

	result, err := cr.Run(ctx, "git", []string{"rev-parse", "--show-toplevel"}, exec.RunOpts{Dir: cwd})
	if err != nil {
		return RepoRoot{}, errors.Wrap(errors.EGitNotInstalled, "failed to run git; is git installed and on PATH?", err)
	}

	if result.ExitCode != 0 {
		return RepoRoot{}, errors.New(errors.ENoRepo, "not inside a git repository")
	}

	out := strings.TrimSpace(result.Stdout)
	if out == "" {
		return RepoRoot{}, errors.New(errors.ENoRepo, "git rev-parse returned empty output")
	}
	if strings.Contains(out, "\n") {
		return RepoRoot{}, errors.New(errors.ENoRepo, "git rev-parse returned unexpected multi-line output")
	}

	absPath := out
	if !filepath.IsAbs(absPath) {
		absPath = filepath.Join(cwd, out)
	}
	absPath, err = filepath.Abs(filepath.Clean(absPath))
	if err != nil {
		return RepoRoot{}, errors.Wrap(errors.ENoRepo, "failed to resolve absolute path", err)
	}

	return RepoRoot{Path: absPath}, nil
}

// GitCommonDir returns the absolute path of the repository's shared control
// directory (".git" for a plain checkout, the main ".git" for a worktree).
// Tool state such as the rewrite tool's cache and backpack's journal live here.
func GitCommonDir(ctx context.Context, cr exec.CommandRunner, repoRoot string) (string, error) {
	return gitPath(ctx, cr, repoRoot, "--git-common-dir")
}

// GitDir returns the absolute path of the working tree's own control
// directory. It differs from GitCommonDir only inside a linked worktree.
func GitDir(ctx context.Context, cr exec.CommandRunner, repoRoot string) (string, error) {
	return gitPath(ctx, cr, repoRoot, "--git-dir")
}

func gitPath(ctx context.Context, cr exec.CommandRunner, repoRoot, flag string) (string, error) {
	args := []string{"rev-parse", flag}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return "", errors.Wrap(errors.EInternal, "failed to run git rev-parse "+flag, err)
	}
	if result.ExitCode != 0 {
		return "", commandError(errors.ENoRepo, "failed to locate git directory", args, result)
	}

	dir := strings.TrimSpace(result.Stdout)
	if dir == "" {
		return "", errors.New(errors.ENoRepo, "git rev-parse "+flag+" returned empty output")
	}
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(repoRoot, dir)
	}
	return filepath.Clean(dir), nil
}

// HasCommits checks if the repository has at least one commit.
// Uses `git rev-parse --verify HEAD` via CommandRunner.
//
// Returns (true, nil) if HEAD exists (repo has commits).
// Returns (false, nil) if HEAD does not exist (empty repo, fresh git init).
// Returns (false, error) only for execution failures (binary not found, etc.).
func HasCommits(ctx context.Context, cr exec.CommandRunner, repoRoot string) (bool, error) {
	result, err := cr.Run(ctx, "git", []string{"rev-parse", "--verify", "HEAD"}, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return false, errors.Wrap(errors.EInternal, "failed to run git rev-parse --verify HEAD", err)
	}
	return result.ExitCode == 0, nil
}

// IsClean checks if the working tree has no uncommitted changes to tracked
// files. Untracked files are ignored: they survive branch switches untouched.
//
// Returns (true, nil) if the working tree is clean.
// Returns (false, nil) if there are uncommitted changes.
// Returns (false, error) only for execution failures.
func IsClean(ctx context.Context, cr exec.CommandRunner, repoRoot string) (bool, error) {
	result, err := cr.Run(ctx, "git", []string{"status", "--porcelain", "--untracked-files=no"}, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return false, errors.Wrap(errors.EInternal, "failed to run git status --porcelain", err)
	}

	// Non-zero exit code from git status is unusual but treat as dirty
	if result.ExitCode != 0 {
		return false, nil
	}

	return strings.TrimSpace(result.Stdout) == "", nil
}

// HasChanges reports whether any of paths differs from HEAD, counting
// untracked files.
func HasChanges(ctx context.Context, cr exec.CommandRunner, repoRoot string, paths ...string) (bool, error) {
	args := append([]string{"status", "--porcelain", "--untracked-files=all", "--"}, paths...)
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return false, errors.Wrap(errors.EInternal, "failed to run git status --porcelain", err)
	}
	if result.ExitCode != 0 {
		return false, commandError(errors.EInternal, "failed to check status", args, result)
	}
	return strings.TrimSpace(result.Stdout) != "", nil
}

// GitVersion returns the output of `git --version` (e.g. "git version 2.43.0").
func GitVersion(ctx context.Context, cr exec.CommandRunner) (string, error) {
	result, err := cr.Run(ctx, "git", []string{"--version"}, exec.RunOpts{})
	if err != nil || result.ExitCode != 0 {
		return "", errors.NewWithDetails(errors.EGitNotInstalled, "git is not installed or not on PATH", map[string]string{
			"hint": "install git from https://git-scm.com/downloads",
		})
	}
	return strings.TrimSpace(result.Stdout), nil
}

// commandError builds a coded error carrying the failed command and its
// stderr. The stderr is kept verbatim so users can diagnose git directly.
func commandError(code errors.Code, msg string, args []string, result exec.CmdResult) error {
	stderr := strings.TrimSpace(result.Stderr)
	full := msg
	if stderr != "" {
		full = msg + ": " + stderr
	}
	return errors.NewWithDetails(code, full, map[string]string{
		"command": "git " + strings.Join(args, " "),
		"stderr":  stderr,
	})
}
