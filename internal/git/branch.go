package git

import (
	"context"
	"sort"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
)

// CurrentBranch returns the short name of the checked out branch.
// Uses `git symbolic-ref --short -q HEAD`, which also works before the first commit.
// Returns E_DETACHED_HEAD if HEAD does not point at a branch.
func CurrentBranch(ctx context.Context, cr exec.CommandRunner, repoRoot string) (string, error) {
	result, err := cr.Run(ctx, "git", []string{"symbolic-ref", "--short", "-q", "HEAD"}, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return "", errors.Wrap(errors.EInternal, "failed to run git symbolic-ref", err)
	}

	branch := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 || branch == "" {
		return "", errors.New(errors.EDetachedHead, "HEAD is detached; check out a branch first")
	}
	return branch, nil
}

// BranchExists checks if a local branch exists.
// Uses `git show-ref --verify refs/heads/<branch>` via CommandRunner.
//
// Returns (true, nil) if the branch exists locally.
// Returns (false, nil) if the branch does not exist.
// Returns (false, error) only for execution failures.
func BranchExists(ctx context.Context, cr exec.CommandRunner, repoRoot, branch string) (bool, error) {
	ref := "refs/heads/" + branch
	result, err := cr.Run(ctx, "git", []string{"show-ref", "--verify", "--quiet", ref}, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return false, errors.Wrap(errors.EInternal, "failed to run git show-ref --verify", err)
	}
	return result.ExitCode == 0, nil
}

// CreateBranch creates branch pointing at startPoint without checking it out.
// Fails if the branch already exists; callers delete first to recreate.
func CreateBranch(ctx context.Context, cr exec.CommandRunner, repoRoot, branch, startPoint string) error {
	args := []string{"branch", "--no-track", branch, startPoint}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to run git branch", err)
	}
	if result.ExitCode != 0 {
		return commandError(errors.EBranchOpFailed, "failed to create branch "+branch, args, result)
	}
	return nil
}

// DeleteBranch force-deletes a local branch. The branch must not be checked out.
func DeleteBranch(ctx context.Context, cr exec.CommandRunner, repoRoot, branch string) error {
	args := []string{"branch", "-D", branch}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to run git branch -D", err)
	}
	if result.ExitCode != 0 {
		return commandError(errors.EBranchOpFailed, "failed to delete branch "+branch, args, result)
	}
	return nil
}

// Checkout switches the working tree to branch.
func Checkout(ctx context.Context, cr exec.CommandRunner, repoRoot, branch string) error {
	args := []string{"checkout", "--quiet", branch}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to run git checkout", err)
	}
	if result.ExitCode != 0 {
		return commandError(errors.ECheckoutFailed, "failed to check out "+branch, args, result)
	}
	return nil
}

// ListBranches returns all local branch short names, sorted.
func ListBranches(ctx context.Context, cr exec.CommandRunner, repoRoot string) ([]string, error) {
	args := []string{"for-each-ref", "--format=%(refname:short)", "refs/heads/"}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to run git for-each-ref", err)
	}
	if result.ExitCode != 0 {
		return nil, commandError(errors.EInternal, "failed to list branches", args, result)
	}

	var branches []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if b := strings.TrimSpace(line); b != "" {
			branches = append(branches, b)
		}
	}
	sort.Strings(branches)
	return branches, nil
}

// CommitPaths commits only the given paths with message, regardless of what
// else is staged. Hooks are skipped: this is a tool bookkeeping commit.
func CommitPaths(ctx context.Context, cr exec.CommandRunner, repoRoot, message string, paths ...string) error {
	addArgs := append([]string{"add", "--"}, paths...)
	result, err := cr.Run(ctx, "git", addArgs, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to run git add", err)
	}
	if result.ExitCode != 0 {
		return commandError(errors.ECommitFailed, "failed to stage files", addArgs, result)
	}

	commitArgs := append([]string{"commit", "--quiet", "--no-verify", "-m", message, "--"}, paths...)
	result, err = cr.Run(ctx, "git", commitArgs, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to run git commit", err)
	}
	if result.ExitCode != 0 {
		return commandError(errors.ECommitFailed, "failed to commit", commitArgs, result)
	}
	return nil
}
