package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/journal"
)

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNone(s string) string {
	if s == "" {
		return None
	}
	return s
}

// WriteShowHuman writes human-readable show output.
func WriteShowHuman(w io.Writer, d *BranchDetail) error {
	fmt.Fprintln(w, "=== branch ===")
	fmt.Fprintf(w, "branch: %s\n", d.Branch)
	fmt.Fprintf(w, "source_tip: %s\n", orNone(d.SourceTip))
	fmt.Fprintf(w, "base_branch: %s\n", orNone(d.Meta.BaseBranch))
	fmt.Fprintf(w, "created_at: %s\n", orNone(d.Meta.CreatedAt))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== managed ===")
	if len(d.Meta.ManagedFiles) == 0 {
		fmt.Fprintln(w, "managed_files: none")
	} else {
		fmt.Fprintf(w, "managed_files: %s\n", strings.Join(d.Meta.ManagedFiles, ", "))
	}
	fmt.Fprintf(w, "effective: %s\n", strings.Join(d.EffectiveManagedFiles, ", "))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== emit ===")
	fmt.Fprintf(w, "emit_branch: %s\n", d.EmitBranch)
	fmt.Fprintf(w, "emit_exists: %s\n", yesNo(d.EmitExists))
	fmt.Fprintf(w, "status: %s\n", d.Status)
	fmt.Fprintf(w, "stale: %s\n", yesNo(d.Stale))

	if d.LastEmit != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== last emit ===")
		writeRecord(w, d.LastEmit)
	}
	return nil
}

// writeRecord writes one journal record as key: value lines.
func writeRecord(w io.Writer, r *journal.Record) {
	fmt.Fprintf(w, "run_id: %s\n", r.RunID)
	fmt.Fprintf(w, "status: %s\n", r.Status)
	if r.ErrorCode != "" {
		fmt.Fprintf(w, "error_code: %s\n", r.ErrorCode)
	}
	if r.FailedStep != "" {
		fmt.Fprintf(w, "failed_step: %s\n", r.FailedStep)
	}
	fmt.Fprintf(w, "emit_branch: %s\n", r.Emit)
	fmt.Fprintf(w, "base: %s\n", orNone(r.Base))
	fmt.Fprintf(w, "merge_base: %s\n", orNone(r.MergeBase))
	fmt.Fprintf(w, "emit_tip: %s\n", orNone(r.EmitTip))
	fmt.Fprintf(w, "commits: %d\n", r.Commits)
	fmt.Fprintf(w, "dropped: %d\n", r.Dropped)
	fmt.Fprintf(w, "started_at: %s\n", r.StartedAt)
	if d := r.Duration(); d > 0 {
		fmt.Fprintf(w, "duration: %s\n", d)
	}
}
