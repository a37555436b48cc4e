// Package emitservice provides the concrete implementation of
// pipeline.EmitService. It wires the repo gates, metadata store, git
// primitives and the rewriter into the emit steps.
package emitservice

import (
	"bytes"
	"context"
	"io"
	"path/filepath"

	gogit "github.com/go-git/go-git/v5"
	"github.com/sirupsen/logrus"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/git"
	"github.com/NielsdaWheelz/backpack/internal/pipeline"
	"github.com/NielsdaWheelz/backpack/internal/repo"
	"github.com/NielsdaWheelz/backpack/internal/rewrite"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// BackfillMessage is the commit message used when recording emitBranchName.
const BackfillMessage = "backpack: record emit branch"

// Service is the production implementation of pipeline.EmitService.
type Service struct {
	cr   exec.CommandRunner
	fsys fs.FS
	rc   *repo.RepoContext

	// Stdout and Stderr, when set, receive the rewrite tool's live output.
	Stdout io.Writer
	Stderr io.Writer

	gitRepo *gogit.Repository
}

// New creates a Service for an already resolved repository.
func New(cr exec.CommandRunner, fsys fs.FS, rc *repo.RepoContext) *Service {
	return &Service{cr: cr, fsys: fsys, rc: rc}
}

var _ pipeline.EmitService = (*Service)(nil)

func (s *Service) store() *store.Store {
	return s.rc.Store(s.fsys)
}

// Preflight verifies the rewrite tool is installed and HEAD is on a branch.
// A dry run only warns about a missing tool.
func (s *Service) Preflight(ctx context.Context, st *pipeline.EmitState) error {
	version, err := rewrite.CheckInstalled(ctx, s.cr)
	if err != nil {
		if !st.DryRun {
			return err
		}
		st.Warn("W_REWRITE_TOOL_MISSING", rewrite.ToolName+" is not installed; emit will fail until it is")
	}
	st.ToolVersion = version

	branch, err := repo.CheckEmitSafe(ctx, s.cr, s.rc.RepoRoot)
	if err != nil {
		return err
	}

	st.RepoRoot = s.rc.RepoRoot
	st.GitDir = s.rc.GitDir
	st.OriginalBranch = branch
	return nil
}

// ResolveSource picks the source branch and loads its metadata.
//
// With no explicit source the current branch is used; if it is an emit
// branch whose source exists, the source is used instead. A real emit
// switches to the source (refusing on a dirty tree) so the backfill commit
// lands there; a dry run does not switch. Either way the committed record
// is used, never the working tree copy.
func (s *Service) ResolveSource(ctx context.Context, st *pipeline.EmitState) error {
	suffix := s.rc.Config.EmitSuffix

	source := st.Source
	if source == "" {
		source = st.OriginalBranch
	}

	exists, err := git.BranchExists(ctx, s.cr, s.rc.RepoRoot, source)
	if err != nil {
		return err
	}
	if !exists {
		return errors.NewWithDetails(
			errors.ESourceBranchNotFound,
			"source branch '"+source+"' not found",
			map[string]string{"branch": source},
		)
	}

	if candidate, ok := core.SourceBranchName(source, suffix); ok {
		found, err := git.BranchExists(ctx, s.cr, s.rc.RepoRoot, candidate)
		if err != nil {
			return err
		}
		if found {
			logrus.WithFields(logrus.Fields{"emit": source, "source": candidate}).Debug("on emit branch; using its source")
			source = candidate
		}
	}
	st.SourceBranch = source

	if !st.DryRun && source != st.OriginalBranch {
		if err := repo.RequireClean(ctx, s.cr, s.rc.RepoRoot, "switch to "+source); err != nil {
			return err
		}
		if err := git.Checkout(ctx, s.cr, s.rc.RepoRoot, source); err != nil {
			return err
		}
		st.Switched = true
	}

	r, err := s.repo()
	if err != nil {
		return err
	}
	meta, err := store.ReadAtBranch(r, source)
	if err != nil {
		return err
	}
	if meta == nil {
		return errors.NewWithDetails(
			errors.ENoMetadata,
			"branch "+source+" carries no backpack metadata; run 'backpack init' first",
			map[string]string{"branch": source},
		)
	}

	st.Meta = meta
	st.Managed = meta.EffectiveManagedFiles()
	st.EmitBranch = meta.EmitBranchName
	if st.EmitBranch == "" {
		st.EmitBranch = core.EmitBranchName(source, suffix)
	}
	if st.EmitBranch == source {
		return errors.NewWithDetails(
			errors.EMetadataCorrupt,
			"emit branch name equals the source branch '"+source+"'",
			map[string]string{"branch": source},
		)
	}
	return nil
}

// BackfillMetadata records the emit branch name in the committed record and
// commits only the metadata file to the source branch. Refuses with
// E_DIRTY_TREE when the metadata file has uncommitted edits, which would
// otherwise be swept into the backfill commit.
func (s *Service) BackfillMetadata(ctx context.Context, st *pipeline.EmitState) error {
	if st.Meta.EmitBranchName != "" {
		return nil
	}

	dirty, err := git.HasChanges(ctx, s.cr, s.rc.RepoRoot, store.MetaFile)
	if err != nil {
		return err
	}
	if dirty {
		return errors.NewWithDetails(
			errors.EDirtyTree,
			store.MetaFile+" has uncommitted changes",
			map[string]string{
				"branch": st.SourceBranch,
				"hint":   "commit or discard the changes to " + store.MetaFile + ", then emit again",
			},
		)
	}

	meta := *st.Meta
	meta.EmitBranchName = st.EmitBranch
	if err := s.store().Write(&meta); err != nil {
		return err
	}
	if err := git.CommitPaths(ctx, s.cr, s.rc.RepoRoot, BackfillMessage+" "+st.EmitBranch, store.MetaFile); err != nil {
		return err
	}

	st.Meta = &meta
	st.Backfilled = true
	return nil
}

// ResolveBase resolves the base branch via repo.ResolveBase.
func (s *Service) ResolveBase(ctx context.Context, st *pipeline.EmitState) error {
	res, err := repo.ResolveBase(ctx, s.cr, s.rc, st.Base, st.Meta)
	if err != nil {
		return err
	}
	st.BaseBranch = res.Branch
	st.BaseRef = res.Ref
	st.BaseSource = res.Source
	return checkNotBase(st)
}

// checkNotBase refuses an emit branch name that names the base branch.
func checkNotBase(st *pipeline.EmitState) error {
	if st.EmitBranch != st.BaseBranch && st.EmitBranch != st.BaseRef {
		return nil
	}
	return errors.NewWithDetails(
		errors.EMetadataCorrupt,
		"emit branch name '"+st.EmitBranch+"' is the base branch",
		map[string]string{"branch": st.SourceBranch, "emit_branch": st.EmitBranch, "base": st.BaseRef},
	)
}

// ComputeMergeBase computes merge-base(source, base) and pins the source tip.
// Never cached: a rebased source moves the merge-base.
func (s *Service) ComputeMergeBase(ctx context.Context, st *pipeline.EmitState) error {
	tip, err := git.RevParse(ctx, s.cr, s.rc.RepoRoot, st.SourceBranch)
	if err != nil {
		return err
	}
	mb, err := git.MergeBase(ctx, s.cr, s.rc.RepoRoot, tip, st.BaseRef)
	if err != nil {
		return err
	}
	st.SourceTip = tip
	st.MergeBase = mb
	return nil
}

// RecreateEmitBranch deletes the emit branch if present (leaving it first if
// it is checked out) and recreates it at the source tip. A branch that is
// the base, or that carries a record of its own, is never replaced.
func (s *Service) RecreateEmitBranch(ctx context.Context, st *pipeline.EmitState) error {
	if err := checkNotBase(st); err != nil {
		return err
	}
	if err := s.checkNotSource(st); err != nil {
		return err
	}

	if cur, err := git.CurrentBranch(ctx, s.cr, s.rc.RepoRoot); err == nil && cur == st.EmitBranch {
		if err := git.Checkout(ctx, s.cr, s.rc.RepoRoot, st.SourceBranch); err != nil {
			return err
		}
		st.Switched = true
	}

	exists, err := git.BranchExists(ctx, s.cr, s.rc.RepoRoot, st.EmitBranch)
	if err != nil {
		return err
	}
	if exists {
		if err := git.DeleteBranch(ctx, s.cr, s.rc.RepoRoot, st.EmitBranch); err != nil {
			return err
		}
	}

	return git.CreateBranch(ctx, s.cr, s.rc.RepoRoot, st.EmitBranch, st.SourceTip)
}

// checkNotSource refuses to replace an existing branch whose record differs
// from the one at the merge base: such a branch is a source branch, not an
// emit branch (an emit branch only keeps what the merge base had).
func (s *Service) checkNotSource(st *pipeline.EmitState) error {
	r, err := s.repo()
	if err != nil {
		return err
	}
	own, ok, err := git.ReadFileAtBranch(r, st.EmitBranch, store.MetaFile)
	if errors.GetCode(err) == errors.EBranchNotFound {
		return nil
	}
	if err != nil || !ok {
		return err
	}

	inherited, found, err := git.ReadFileAtCommit(r, st.MergeBase, store.MetaFile)
	if err != nil {
		return err
	}
	if found && bytes.Equal(own, inherited) {
		return nil
	}
	return errors.NewWithDetails(
		errors.EMetadataCorrupt,
		"emit branch '"+st.EmitBranch+"' carries its own backpack metadata; refusing to replace it",
		map[string]string{
			"branch":      st.SourceBranch,
			"emit_branch": st.EmitBranch,
			"hint":        "set emitBranchName in " + store.MetaFile + " to a branch backpack owns",
		},
	)
}

// ClearRewriteState removes the rewrite tool's control dir, in both the
// common dir and (inside a linked worktree) the worktree's own git dir.
func (s *Service) ClearRewriteState(_ context.Context, _ *pipeline.EmitState) error {
	dirs := []string{s.rc.State.FilterRepoDir()}
	if s.rc.WorktreeGitDir != "" && s.rc.WorktreeGitDir != s.rc.GitDir {
		dirs = append(dirs, filepath.Join(s.rc.WorktreeGitDir, "filter-repo"))
	}
	for _, dir := range dirs {
		if err := rewrite.ClearState(s.fsys, dir); err != nil {
			return err
		}
	}
	return nil
}

// Rewrite strips the managed set and drops markered commits over
// mergeBase..emit. An empty range needs no rewrite.
func (s *Service) Rewrite(ctx context.Context, st *pipeline.EmitState) error {
	plan, err := s.plan(ctx, st)
	if err != nil {
		return err
	}
	st.Plan = plan
	st.Commits, st.Dropped, _ = plan.Counts()

	if st.Commits == 0 {
		st.Skipped = true
		st.EmitTip = st.SourceTip
		st.Warn(pipeline.WarnEmptyRange, "no commits between "+st.BaseRef+" and "+st.SourceBranch+"; emit branch equals the source")
		return nil
	}

	rw := rewrite.New(s.cr)
	rw.Stdout = s.Stdout
	rw.Stderr = s.Stderr
	err = rw.Run(ctx, rewrite.Request{
		RepoRoot:   s.rc.RepoRoot,
		Branch:     st.EmitBranch,
		MergeBase:  st.MergeBase,
		Patterns:   st.Managed,
		DropMarker: core.RemovableCommitMarker,
	})
	if err != nil {
		return err
	}

	tip, err := git.RevParse(ctx, s.cr, s.rc.RepoRoot, st.EmitBranch)
	if err != nil {
		return err
	}
	st.EmitTip = tip

	kept, err := git.CountCommits(ctx, s.cr, s.rc.RepoRoot, st.MergeBase, tip)
	if err != nil {
		return err
	}
	st.Kept = kept
	return nil
}

// Restore checks out the branch the user started on, or the source branch
// when they started on the emit branch. A no-op if already there.
func (s *Service) Restore(ctx context.Context, st *pipeline.EmitState) error {
	target := st.SourceBranch
	if st.OriginalBranch != "" && st.OriginalBranch != st.EmitBranch {
		target = st.OriginalBranch
	}
	if target == "" {
		return nil
	}

	if cur, err := git.CurrentBranch(ctx, s.cr, s.rc.RepoRoot); err == nil && cur == target {
		return nil
	}
	return git.Checkout(ctx, s.cr, s.rc.RepoRoot, target)
}

// PlanEmit previews the emit without touching any ref.
func (s *Service) PlanEmit(ctx context.Context, st *pipeline.EmitState) error {
	plan, err := s.plan(ctx, st)
	if err != nil {
		return err
	}
	st.Plan = plan
	st.Commits, st.Dropped, _ = plan.Counts()
	return nil
}

func (s *Service) plan(ctx context.Context, st *pipeline.EmitState) (*rewrite.PlanResult, error) {
	r, err := s.repo()
	if err != nil {
		return nil, err
	}
	return rewrite.Plan(ctx, s.cr, r, s.rc.RepoRoot, st.MergeBase, st.SourceTip, st.Managed, core.RemovableCommitMarker)
}

// repo opens the go-git repository once per service.
func (s *Service) repo() (*gogit.Repository, error) {
	if s.gitRepo != nil {
		return s.gitRepo, nil
	}
	r, err := git.OpenRepo(s.rc.RepoRoot)
	if err != nil {
		return nil, err
	}
	s.gitRepo = r
	return r, nil
}
