package rewrite

import (
	"context"

	gogit "github.com/go-git/go-git/v5"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/git"
)

// PlannedCommit is the predicted fate of one commit in the emit range.
type PlannedCommit struct {
	Hash    string `json:"hash"`
	Summary string `json:"summary"`

	// Drop is set for commits carrying the marker; they vanish whole.
	Drop bool `json:"drop"`

	// ManagedTouched lists managed paths the commit changes; those changes
	// are stripped.
	ManagedTouched []string `json:"managed_touched"`

	// OtherTouched counts unmanaged paths the commit changes.
	OtherTouched int `json:"other_touched"`

	// Survives is set when the commit remains on the emit branch: it is not
	// dropped and still changes something after stripping.
	Survives bool `json:"survives"`
}

// PlanResult previews an emit without mutating anything.
type PlanResult struct {
	MergeBase string          `json:"merge_base"`
	Tip       string          `json:"tip"`
	Commits   []PlannedCommit `json:"commits"` // oldest first
}

// Counts returns the number of commits in range, dropped, and surviving.
func (p *PlanResult) Counts() (total, dropped, surviving int) {
	for _, c := range p.Commits {
		total++
		if c.Drop {
			dropped++
		}
		if c.Survives {
			surviving++
		}
	}
	return total, dropped, surviving
}

// Plan lists the commits in mergeBase..tip and classifies each against the
// managed patterns and drop marker. Commit ancestry comes from git rev-list;
// commit contents are read in-process.
func Plan(ctx context.Context, cr exec.CommandRunner, repo *gogit.Repository, repoRoot, mergeBase, tip string, patterns []string, marker string) (*PlanResult, error) {
	hashes, err := git.RevList(ctx, cr, repoRoot, mergeBase, tip)
	if err != nil {
		return nil, err
	}

	plan := &PlanResult{MergeBase: mergeBase, Tip: tip, Commits: make([]PlannedCommit, 0, len(hashes))}
	for _, h := range hashes {
		info, err := git.ReadCommit(repo, h)
		if err != nil {
			return nil, err
		}

		pc := PlannedCommit{
			Hash:           info.Hash,
			Summary:        core.Summary(info.Message),
			Drop:           marker != "" && core.HasMarkerLine(info.Message, marker),
			ManagedTouched: []string{},
		}
		for _, p := range info.Paths {
			if core.MatchAny(patterns, p) {
				pc.ManagedTouched = append(pc.ManagedTouched, p)
			} else {
				pc.OtherTouched++
			}
		}
		pc.Survives = !pc.Drop && pc.OtherTouched > 0
		plan.Commits = append(plan.Commits, pc)
	}
	return plan, nil
}
