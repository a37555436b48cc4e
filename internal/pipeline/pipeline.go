// Package pipeline provides the emit orchestrator.
// The pipeline executes steps in a fixed order, short-circuits on first error,
// and preserves BackpackError codes. Once the source branch is known, every
// failure runs Restore so the user is never left on a half-built emit branch.
package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/rewrite"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// EmitOpts contains the inputs for one emit.
type EmitOpts struct {
	// Source is the source branch (empty = current branch).
	Source string

	// Base overrides base branch resolution (may be empty).
	Base string

	// DryRun computes the plan without mutating anything.
	DryRun bool
}

// Warning represents a non-fatal warning emitted during pipeline execution.
type Warning struct {
	// Code is a stable warning identifier.
	Code string

	// Message is a human-readable description.
	Message string
}

// EmitState accumulates state during pipeline execution.
// Fields are populated by steps as they execute.
type EmitState struct {
	// From opts (copied at start)
	Source string
	Base   string
	DryRun bool

	// Generated immediately
	RunID     string
	StartedAt time.Time

	// Populated by Preflight
	RepoRoot       string
	GitDir         string
	OriginalBranch string
	ToolVersion    string

	// Populated by ResolveSource
	SourceBranch string
	EmitBranch   string
	Meta         *store.BranchMetadata
	Managed      []string
	Switched     bool // ResolveSource checked out SourceBranch

	// Populated by BackfillMetadata
	Backfilled bool

	// Populated by ResolveBase
	BaseBranch string
	BaseRef    string
	BaseSource string

	// Populated by ComputeMergeBase
	MergeBase string
	SourceTip string

	// Populated by Rewrite (or PlanEmit on dry runs)
	EmitTip string
	Commits int // commits in range before rewriting
	Dropped int // markered commits
	Kept    int // commits on the emit branch after rewriting
	Skipped bool
	Plan    *rewrite.PlanResult

	// FailedStep names the step that failed, if any.
	FailedStep string

	// Accumulated warnings (non-fatal)
	Warnings []Warning
}

// Warn records a non-fatal warning and logs it.
func (st *EmitState) Warn(code, msg string) {
	st.Warnings = append(st.Warnings, Warning{Code: code, Message: msg})
	logrus.WithField("code", code).Debug(msg)
}

// EmitService defines the step implementations for the emit pipeline.
// Each method corresponds to a pipeline step executed in order.
// Implementations are injected to allow testing without real git.
type EmitService interface {
	// Preflight checks the rewrite tool, repo and HEAD.
	Preflight(ctx context.Context, st *EmitState) error

	// ResolveSource picks the source branch, switching off an emit branch,
	// and loads its metadata.
	ResolveSource(ctx context.Context, st *EmitState) error

	// BackfillMetadata records and commits emitBranchName if missing.
	BackfillMetadata(ctx context.Context, st *EmitState) error

	// ResolveBase picks the base branch.
	ResolveBase(ctx context.Context, st *EmitState) error

	// ComputeMergeBase computes merge-base(source, base), every run.
	ComputeMergeBase(ctx context.Context, st *EmitState) error

	// RecreateEmitBranch deletes any old emit branch and copies the source tip.
	RecreateEmitBranch(ctx context.Context, st *EmitState) error

	// ClearRewriteState removes leftover rewrite tool state.
	ClearRewriteState(ctx context.Context, st *EmitState) error

	// Rewrite strips managed paths and drops markered commits on the emit branch.
	Rewrite(ctx context.Context, st *EmitState) error

	// Restore checks out the branch the user should end up on.
	Restore(ctx context.Context, st *EmitState) error

	// PlanEmit previews the rewrite (dry runs only).
	PlanEmit(ctx context.Context, st *EmitState) error
}

// Pipeline orchestrates the execution of emit steps in a fixed order.
type Pipeline struct {
	svc     EmitService
	nowFunc func() time.Time
}

// NewPipeline creates a pipeline with the given service implementation.
func NewPipeline(svc EmitService) *Pipeline {
	return &Pipeline{
		svc:     svc,
		nowFunc: time.Now,
	}
}

// SetNowFunc overrides the time source for testing.
func (p *Pipeline) SetNowFunc(fn func() time.Time) {
	p.nowFunc = fn
}

type step struct {
	name string
	fn   func(context.Context, *EmitState) error
}

// Run executes the pipeline steps in fixed order:
//  1. Preflight
//  2. ResolveSource
//  3. BackfillMetadata
//  4. ResolveBase
//  5. ComputeMergeBase
//  6. RecreateEmitBranch
//  7. ClearRewriteState
//  8. Rewrite
//  9. Restore
//
// A dry run executes Preflight, ResolveSource, ResolveBase, ComputeMergeBase
// and PlanEmit only.
//
// Behavior:
//   - Generates run_id immediately and stores it in state
//   - Executes steps in order; short-circuits on first error
//   - If error is *BackpackError, preserves code/message/details exactly
//   - Otherwise wraps into E_INTERNAL with Details["step"]
//   - After ResolveSource succeeded, a failure runs Restore best-effort and
//     still returns the original error
//   - Returns the state even on error (after run_id generation)
func (p *Pipeline) Run(ctx context.Context, opts EmitOpts) (*EmitState, error) {
	now := p.nowFunc()
	runID, err := core.NewRunID(now)
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to generate run_id", err)
	}

	st := &EmitState{
		Source:    opts.Source,
		Base:      opts.Base,
		DryRun:    opts.DryRun,
		RunID:     runID,
		StartedAt: now,
	}

	var steps []step
	if opts.DryRun {
		steps = []step{
			{StepPreflight, p.svc.Preflight},
			{StepResolveSource, p.svc.ResolveSource},
			{StepResolveBase, p.svc.ResolveBase},
			{StepComputeMergeBase, p.svc.ComputeMergeBase},
			{StepPlanEmit, p.svc.PlanEmit},
		}
	} else {
		steps = []step{
			{StepPreflight, p.svc.Preflight},
			{StepResolveSource, p.svc.ResolveSource},
			{StepBackfillMetadata, p.svc.BackfillMetadata},
			{StepResolveBase, p.svc.ResolveBase},
			{StepComputeMergeBase, p.svc.ComputeMergeBase},
			{StepRecreateEmitBranch, p.svc.RecreateEmitBranch},
			{StepClearRewriteState, p.svc.ClearRewriteState},
			{StepRewrite, p.svc.Rewrite},
			{StepRestore, p.svc.Restore},
		}
	}

	sourceResolved := false
	for _, s := range steps {
		logrus.WithFields(logrus.Fields{"run_id": st.RunID, "step": s.name}).Debug("emit step")

		if err := s.fn(ctx, st); err != nil {
			st.FailedStep = s.name
			if sourceResolved && !opts.DryRun && s.name != StepRestore {
				p.restoreAfterFailure(ctx, st)
			}
			return st, wrapStepError(err, s.name)
		}
		if s.name == StepResolveSource {
			sourceResolved = true
		}
	}

	return st, nil
}

// restoreAfterFailure runs Restore with a context that survives cancellation,
// so an interrupted emit still switches the user back. Its own error is only
// logged; the caller reports the original failure.
func (p *Pipeline) restoreAfterFailure(ctx context.Context, st *EmitState) {
	if err := p.svc.Restore(context.WithoutCancel(ctx), st); err != nil {
		st.Warn(WarnRestoreFailed, "failed to restore branch "+st.SourceBranch+": "+err.Error())
	}
}

// wrapStepError ensures the error is a *BackpackError.
// If already *BackpackError, returns it unchanged.
// Otherwise wraps it with E_INTERNAL and step name in details.
func wrapStepError(err error, stepName string) error {
	if err == nil {
		return nil
	}

	if _, ok := errors.AsBackpackError(err); ok {
		return err
	}

	return errors.WrapWithDetails(
		errors.EInternal,
		"internal error",
		err,
		map[string]string{"step": stepName},
	)
}

// Step name constants.
const (
	StepPreflight          = "Preflight"
	StepResolveSource      = "ResolveSource"
	StepBackfillMetadata   = "BackfillMetadata"
	StepResolveBase        = "ResolveBase"
	StepComputeMergeBase   = "ComputeMergeBase"
	StepRecreateEmitBranch = "RecreateEmitBranch"
	StepClearRewriteState  = "ClearRewriteState"
	StepRewrite            = "Rewrite"
	StepRestore            = "Restore"
	StepPlanEmit           = "PlanEmit"
)

// Warning codes.
const (
	WarnRestoreFailed = "W_RESTORE_FAILED"
	WarnJournalFailed = "W_JOURNAL_FAILED"
	WarnEmptyRange    = "W_EMPTY_RANGE"
)
