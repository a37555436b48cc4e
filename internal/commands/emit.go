package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NielsdaWheelz/backpack/internal/emitservice"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/lock"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/pipeline"
	"github.com/NielsdaWheelz/backpack/internal/render"
	"github.com/NielsdaWheelz/backpack/internal/repo"
)

// EmitOpts holds options for the emit command.
type EmitOpts struct {
	// Source is the source branch (empty = current branch).
	Source string

	// Base overrides base branch resolution.
	Base string

	// DryRun prints the plan instead of emitting.
	DryRun bool

	// Stream tees the rewrite tool's output to stderr.
	Stream bool
}

// Emit executes the backpack emit command.
// Holds the repo lock for the duration of the pipeline and journals the
// outcome, success or failure.
func Emit(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string, opts EmitOpts, stdout, stderr io.Writer) error {
	rc, err := repo.Resolve(ctx, cr, fsys, env, cwd)
	if err != nil {
		return err
	}

	if opts.DryRun {
		return runPlan(ctx, cr, fsys, rc, opts.Source, opts.Base, false, stdout, stderr)
	}

	unlock, err := acquireEmitLock(rc)
	if err != nil {
		return err
	}
	defer func() {
		if err := unlock(); err != nil {
			logrus.WithError(err).Warn("failed to release repo lock")
		}
	}()

	svc := emitservice.New(cr, fsys, rc)
	if opts.Stream {
		svc.Stdout = stderr
		svc.Stderr = stderr
	}

	st, runErr := pipeline.NewPipeline(svc).Run(ctx, pipeline.EmitOpts{
		Source: opts.Source,
		Base:   opts.Base,
	})
	if st != nil && st.SourceBranch != "" {
		recordEmit(rc, st, runErr, time.Now())
	}

	if runErr != nil {
		printEmitFailure(stderr, st)
		return runErr
	}

	printEmitSuccess(stdout, st)
	printWarnings(stderr, st.Warnings)
	return nil
}

// acquireEmitLock takes the repo lock, mapping a held lock to E_REPO_LOCKED.
func acquireEmitLock(rc *repo.RepoContext) (func() error, error) {
	unlock, err := lock.NewRepoLock(rc.State.LockPath()).Lock("emit")
	if err == nil {
		return unlock, nil
	}

	var locked *lock.ErrLocked
	if stderrors.As(err, &locked) {
		return nil, errors.WrapWithDetails(errors.ERepoLocked, locked.Error(), err, map[string]string{
			"lock_path": locked.Path,
			"hint":      "wait for the other emit to finish, or remove the lock file if no emit is running",
		})
	}
	return nil, errors.Wrap(errors.EInternal, "failed to acquire repo lock", err)
}

// recordEmit appends the run to the journal. Failures only warn.
func recordEmit(rc *repo.RepoContext, st *pipeline.EmitState, runErr error, finished time.Time) {
	rec := &journal.Record{
		RunID:      st.RunID,
		Source:     st.SourceBranch,
		Emit:       st.EmitBranch,
		Base:       st.BaseBranch,
		BaseSource: st.BaseSource,
		MergeBase:  st.MergeBase,
		SourceTip:  st.SourceTip,
		EmitTip:    st.EmitTip,
		Commits:    st.Commits,
		Dropped:    st.Dropped,
		Status:     journal.StatusOK,
		StartedAt:  st.StartedAt.UTC().Format(time.RFC3339Nano),
		FinishedAt: finished.UTC().Format(time.RFC3339Nano),
	}
	if runErr != nil {
		rec.Status = journal.StatusFailed
		rec.ErrorCode = string(errors.GetCode(runErr))
		rec.FailedStep = st.FailedStep
	}

	jr, err := journal.Open(rc.State.JournalPath())
	if err != nil {
		st.Warn(pipeline.WarnJournalFailed, "emit not recorded: "+errMessage(err))
		return
	}
	defer jr.Close()

	if err := jr.Append(rec); err != nil {
		st.Warn(pipeline.WarnJournalFailed, "emit not recorded: "+errMessage(err))
	}
}

// printEmitSuccess prints the success output in key: value form.
func printEmitSuccess(w io.Writer, st *pipeline.EmitState) {
	fmt.Fprintf(w, "run_id: %s\n", st.RunID)
	fmt.Fprintf(w, "source: %s\n", st.SourceBranch)
	fmt.Fprintf(w, "emit: %s\n", st.EmitBranch)
	fmt.Fprintf(w, "base: %s\n", st.BaseRef)
	fmt.Fprintf(w, "merge_base: %s\n", st.MergeBase)
	fmt.Fprintf(w, "emit_tip: %s\n", st.EmitTip)
	fmt.Fprintf(w, "commits: %d\n", st.Commits)
	fmt.Fprintf(w, "dropped: %d\n", st.Dropped)
	fmt.Fprintf(w, "kept: %d\n", st.Kept)
}

// printEmitFailure prints where the run stopped. The error itself is printed
// by the caller.
func printEmitFailure(w io.Writer, st *pipeline.EmitState) {
	if st == nil {
		return
	}
	if st.FailedStep != "" {
		fmt.Fprintf(w, "failed_step: %s\n", st.FailedStep)
	}
	if st.RunID != "" {
		fmt.Fprintf(w, "run_id: %s\n", st.RunID)
	}
	printWarnings(w, st.Warnings)
}

func printWarnings(w io.Writer, warnings []pipeline.Warning) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s\n", warn.Message)
	}
}

// PlanOpts holds options for the plan command.
type PlanOpts struct {
	Source string
	Base   string
	JSON   bool
}

// Plan executes the backpack plan command: a read-only emit preview.
func Plan(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string, opts PlanOpts, stdout, stderr io.Writer) error {
	rc, err := repo.Resolve(ctx, cr, fsys, env, cwd)
	if err != nil {
		return err
	}
	return runPlan(ctx, cr, fsys, rc, opts.Source, opts.Base, opts.JSON, stdout, stderr)
}

func runPlan(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, rc *repo.RepoContext, source, base string, asJSON bool, stdout, stderr io.Writer) error {
	st, err := pipeline.NewPipeline(emitservice.New(cr, fsys, rc)).Run(ctx, pipeline.EmitOpts{
		Source: source,
		Base:   base,
		DryRun: true,
	})
	if err != nil {
		return err
	}

	total, dropped, surviving := st.Plan.Counts()
	detail := &render.PlanDetail{
		Source:     st.SourceBranch,
		EmitBranch: st.EmitBranch,
		Base:       st.BaseRef,
		BaseSource: st.BaseSource,
		Managed:    st.Managed,
		Plan:       st.Plan,
		Summary:    render.PlanCounts{Total: total, Dropped: dropped, Surviving: surviving},
	}

	printWarnings(stderr, st.Warnings)
	if asJSON {
		return render.WritePlanJSON(stdout, detail)
	}
	return render.WritePlanHuman(stdout, detail)
}
