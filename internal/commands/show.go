package commands

import (
	"context"
	stderrors "errors"
	"io"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/git"
	"github.com/NielsdaWheelz/backpack/internal/ids"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/render"
	"github.com/NielsdaWheelz/backpack/internal/repo"
	"github.com/NielsdaWheelz/backpack/internal/status"
)

// ShowOpts holds options for the show command.
type ShowOpts struct {
	// Branch is the source branch (exact or unique prefix; empty = current).
	Branch string

	// JSON outputs machine-readable JSON.
	JSON bool
}

// Show executes the backpack show command.
// Inspects one branch's committed metadata, managed set and last emit.
// This is a read-only command.
func Show(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string, opts ShowOpts, stdout, stderr io.Writer) error {
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

	input := opts.Branch
	if input == "" {
		if input, err = git.CurrentBranch(ctx, cr, rc.RepoRoot); err != nil {
			return err
		}
	}

	ref, err := ids.ResolveBranch(input, branchRefs(entries))
	if err != nil {
		return resolveError(err)
	}

	var entry branchEntry
	for _, e := range entries {
		if e.Name == ref.Name {
			entry = e
			break
		}
	}
	if entry.Meta == nil {
		return entry.Err
	}

	jr := openJournalReadOnly(rc, stderr)
	if jr != nil {
		defer jr.Close()
	}

	emit := emitBranchFor(entry.Name, entry.Meta, rc.Config.EmitSuffix)
	snap := snapshot(ctx, cr, rc, jr, entry.Name, emit)
	derived := status.Derive(entry.Meta, snap)

	detail := &render.BranchDetail{
		Branch:                entry.Name,
		Meta:                  entry.Meta,
		EffectiveManagedFiles: entry.Meta.EffectiveManagedFiles(),
		EmitBranch:            emit,
		EmitExists:            snap.EmitExists,
		SourceTip:             snap.SourceTip,
		Status:                derived.Status,
		Stale:                 derived.Stale,
		LastEmit:              snap.Last,
	}

	if opts.JSON {
		return render.WriteShowJSON(stdout, detail)
	}
	return render.WriteShowHuman(stdout, detail)
}

// resolveError maps branch resolution errors to coded errors.
func resolveError(err error) error {
	var notFound *ids.ErrNotFound
	if stderrors.As(err, &notFound) {
		return errors.NewWithDetails(errors.EBranchNotFound, err.Error(), map[string]string{
			"input": notFound.Input,
			"hint":  "run 'backpack ls' to list branches carrying metadata",
		})
	}

	var ambiguous *ids.ErrAmbiguous
	if stderrors.As(err, &ambiguous) {
		names := make([]string, len(ambiguous.Candidates))
		for i, c := range ambiguous.Candidates {
			names[i] = c.Name
		}
		return errors.NewWithDetails(errors.EBranchAmbiguous, err.Error(), map[string]string{
			"input":      ambiguous.Input,
			"candidates": strings.Join(names, ","),
		})
	}

	return errors.Wrap(errors.EInternal, "branch resolution failed", err)
}
