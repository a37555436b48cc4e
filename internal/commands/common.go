// Package commands implements backpack CLI commands.
package commands

import (
	"context"
	"fmt"
	"io"

	gogit "github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/git"
	"github.com/NielsdaWheelz/backpack/internal/ids"
	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/repo"
	"github.com/NielsdaWheelz/backpack/internal/status"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// branchEntry is a local branch whose tip carries a metadata record.
type branchEntry struct {
	Name string
	Meta *store.BranchMetadata // nil when the record is corrupt
	Err  error                 // parse error for a corrupt record
}

// scanBranches reads the committed metadata of every local branch without a
// checkout. Branches without a record (including emit branches) are left out.
func scanBranches(ctx context.Context, cr exec.CommandRunner, r *gogit.Repository, rc *repo.RepoContext) ([]branchEntry, error) {
	names, err := git.ListBranches(ctx, cr, rc.RepoRoot)
	if err != nil {
		return nil, err
	}

	var entries []branchEntry
	for _, name := range names {
		meta, err := store.ReadAtBranch(r, name)
		if err != nil {
			entries = append(entries, branchEntry{Name: name, Err: err})
			continue
		}
		if meta == nil {
			continue
		}
		entries = append(entries, branchEntry{Name: name, Meta: meta})
	}
	return entries, nil
}

func branchRefs(entries []branchEntry) []ids.BranchRef {
	refs := make([]ids.BranchRef, len(entries))
	for i, e := range entries {
		refs[i] = ids.BranchRef{Name: e.Name, Broken: e.Meta == nil}
	}
	return refs
}

// emitBranchFor returns the cached emit branch name, or the derived one.
func emitBranchFor(name string, meta *store.BranchMetadata, suffix string) string {
	if meta != nil && meta.EmitBranchName != "" {
		return meta.EmitBranchName
	}
	return core.EmitBranchName(name, suffix)
}

// snapshot gathers the local inputs for status derivation. jr may be nil.
func snapshot(ctx context.Context, cr exec.CommandRunner, rc *repo.RepoContext, jr *journal.Journal, branch, emit string) status.Snapshot {
	var snap status.Snapshot

	if tip, err := git.RevParse(ctx, cr, rc.RepoRoot, "refs/heads/"+branch); err == nil {
		snap.SourceTip = tip
	}
	if ok, err := git.BranchExists(ctx, cr, rc.RepoRoot, emit); err == nil {
		snap.EmitExists = ok
	}

	if jr != nil {
		var err error
		if snap.Last, err = jr.Last(branch); err != nil {
			logrus.WithError(err).WithField("branch", branch).Debug("journal read failed")
		}
		if snap.LastOK, err = jr.LastOK(branch); err != nil {
			logrus.WithError(err).WithField("branch", branch).Debug("journal read failed")
		}
	}
	return snap
}

// openJournalReadOnly opens the journal for reporting commands. A missing or
// unreadable journal is reported as a warning and yields nil.
func openJournalReadOnly(rc *repo.RepoContext, stderr io.Writer) *journal.Journal {
	jr, err := journal.OpenIfExists(rc.State.JournalPath())
	if err != nil {
		fmt.Fprintf(stderr, "warning: emit history unavailable: %v\n", err)
		return nil
	}
	return jr
}

func boolStr(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
