package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/git"
	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/render"
	"github.com/NielsdaWheelz/backpack/internal/repo"
	"github.com/NielsdaWheelz/backpack/internal/status"
)

// LSOpts holds options for the ls command.
type LSOpts struct {
	// JSON outputs machine-readable JSON.
	JSON bool
}

// LS executes the backpack ls command.
// Lists local branches carrying metadata with their derived emit status.
// Branches with corrupt metadata are skipped with a warning.
// This is a read-only command: nothing is checked out or written.
func LS(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string, opts LSOpts, stdout, stderr io.Writer) error {
	rc, err := repo.Resolve(ctx, cr, fsys, env, cwd)
	if err != nil {
		return err
	}

	r, err := git.OpenRepo(rc.RepoRoot)
	if err != nil {
		return err
	}

	entries, err := scanBranches(ctx, cr, r, rc)
	if err != nil {
		return err
	}

	current, _ := git.CurrentBranch(ctx, cr, rc.RepoRoot)

	jr := openJournalReadOnly(rc, stderr)
	if jr != nil {
		defer jr.Close()
	}

	summaries := make([]render.BranchSummary, 0, len(entries))
	for _, e := range entries {
		if e.Meta == nil {
			fmt.Fprintf(stderr, "warning: skipping %s: %s\n", e.Name, errMessage(e.Err))
			continue
		}
		summaries = append(summaries, branchSummary(ctx, cr, rc, jr, e, current))
	}

	sortSummaries(summaries)

	if opts.JSON {
		return render.WriteLSJSON(stdout, summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintln(stderr, "no branches carry backpack metadata; run 'backpack init' on a feature branch")
		return nil
	}
	return render.WriteLSHuman(stdout, render.FormatHumanRows(summaries, time.Now()))
}

// branchSummary joins a branch's metadata with git and journal state.
func branchSummary(ctx context.Context, cr exec.CommandRunner, rc *repo.RepoContext, jr *journal.Journal, e branchEntry, current string) render.BranchSummary {
	emit := emitBranchFor(e.Name, e.Meta, rc.Config.EmitSuffix)
	snap := snapshot(ctx, cr, rc, jr, e.Name, emit)
	derived := status.Derive(e.Meta, snap)

	summary := render.BranchSummary{
		Branch:       e.Name,
		Current:      e.Name == current,
		EmitBranch:   emit,
		EmitExists:   snap.EmitExists,
		ManagedCount: len(e.Meta.EffectiveManagedFiles()),
		Status:       derived.Status,
		Stale:        derived.Stale,
	}
	if e.Meta.BaseBranch != "" {
		base := e.Meta.BaseBranch
		summary.BaseBranch = &base
	}
	if t, err := time.Parse(time.RFC3339, e.Meta.CreatedAt); err == nil {
		summary.CreatedAt = &t
	}
	if snap.Last != nil {
		if t, err := time.Parse(time.RFC3339Nano, snap.Last.FinishedAt); err == nil {
			summary.LastEmitAt = &t
		}
	}
	return summary
}

// sortSummaries sorts by last emit descending (newest first); never emitted
// branches follow, by name.
func sortSummaries(summaries []render.BranchSummary) {
	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]

		if a.LastEmitAt == nil && b.LastEmitAt == nil {
			return a.Branch < b.Branch
		}
		if a.LastEmitAt == nil {
			return false
		}
		if b.LastEmitAt == nil {
			return true
		}
		if !a.LastEmitAt.Equal(*b.LastEmitAt) {
			return a.LastEmitAt.After(*b.LastEmitAt)
		}
		return a.Branch < b.Branch
	})
}
