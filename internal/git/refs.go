package git

import (
	"context"
	"strconv"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
)

// RefExists reports whether rev resolves to a commit.
func RefExists(ctx context.Context, cr exec.CommandRunner, repoRoot, rev string) (bool, error) {
	result, err := cr.Run(ctx, "git", []string{"rev-parse", "--verify", "--quiet", rev + "^{commit}"}, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return false, errors.Wrap(errors.EInternal, "failed to run git rev-parse --verify", err)
	}
	return result.ExitCode == 0, nil
}

// RevParse resolves rev to a full commit hash.
func RevParse(ctx context.Context, cr exec.CommandRunner, repoRoot, rev string) (string, error) {
	args := []string{"rev-parse", "--verify", "--quiet", rev + "^{commit}"}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return "", errors.Wrap(errors.EInternal, "failed to run git rev-parse", err)
	}
	sha := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 || sha == "" {
		return "", errors.NewWithDetails(errors.EBranchNotFound, "cannot resolve "+rev, map[string]string{
			"rev": rev,
		})
	}
	return sha, nil
}

// MergeBase returns the best common ancestor of a and b.
func MergeBase(ctx context.Context, cr exec.CommandRunner, repoRoot, a, b string) (string, error) {
	args := []string{"merge-base", a, b}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return "", errors.Wrap(errors.EInternal, "failed to run git merge-base", err)
	}
	sha := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 || sha == "" {
		if result.ExitCode == 1 && strings.TrimSpace(result.Stderr) == "" {
			return "", errors.NewWithDetails(errors.EMergeBaseFailed, a+" and "+b+" share no history", map[string]string{
				"hint": "the base branch must share history with the source branch",
			})
		}
		return "", commandError(errors.EMergeBaseFailed, "failed to compute merge base of "+a+" and "+b, args, result)
	}
	return sha, nil
}

// CountCommits returns the number of commits reachable from tip but not from base.
func CountCommits(ctx context.Context, cr exec.CommandRunner, repoRoot, base, tip string) (int, error) {
	args := []string{"rev-list", "--count", base + ".." + tip}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return 0, errors.Wrap(errors.EInternal, "failed to run git rev-list --count", err)
	}
	if result.ExitCode != 0 {
		return 0, commandError(errors.EInternal, "failed to count commits", args, result)
	}
	n, err := strconv.Atoi(strings.TrimSpace(result.Stdout))
	if err != nil {
		return 0, errors.Wrap(errors.EInternal, "unexpected git rev-list --count output", err)
	}
	return n, nil
}

// RemoteDefaultBranch guesses the integration branch for remote.
//
// Order: the remote's symbolic HEAD, then <remote>/main, <remote>/master,
// then local main and master. Returns "" when nothing matches. The returned
// name is usable as a revision (e.g. "origin/main" or "main").
func RemoteDefaultBranch(ctx context.Context, cr exec.CommandRunner, repoRoot, remote string) (string, error) {
	if remote != "" {
		result, err := cr.Run(ctx, "git", []string{"symbolic-ref", "--short", "-q", "refs/remotes/" + remote + "/HEAD"}, exec.RunOpts{Dir: repoRoot})
		if err != nil {
			return "", errors.Wrap(errors.EInternal, "failed to run git symbolic-ref", err)
		}
		if ref := strings.TrimSpace(result.Stdout); result.ExitCode == 0 && ref != "" {
			return ref, nil
		}

		for _, name := range []string{"main", "master"} {
			ok, err := RefExists(ctx, cr, repoRoot, "refs/remotes/"+remote+"/"+name)
			if err != nil {
				return "", err
			}
			if ok {
				return remote + "/" + name, nil
			}
		}
	}

	for _, name := range []string{"main", "master"} {
		ok, err := BranchExists(ctx, cr, repoRoot, name)
		if err != nil {
			return "", err
		}
		if ok {
			return name, nil
		}
	}
	return "", nil
}
