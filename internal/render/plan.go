package render

import (
	"fmt"
	"io"
	"strings"
)

// WritePlanHuman writes a plan preview: a header, then one line per commit,
// oldest first, marked "drop", "strip" (managed changes removed), "keep", or
// "prune" (nothing left after stripping).
func WritePlanHuman(w io.Writer, d *PlanDetail) error {
	fmt.Fprintf(w, "source: %s\n", d.Source)
	fmt.Fprintf(w, "emit_branch: %s\n", d.EmitBranch)
	fmt.Fprintf(w, "base: %s (%s)\n", d.Base, d.BaseSource)
	fmt.Fprintf(w, "merge_base: %s\n", d.Plan.MergeBase)
	fmt.Fprintf(w, "managed_files: %s\n", strings.Join(d.Managed, ", "))
	fmt.Fprintf(w, "commits: %d (dropped %d, surviving %d)\n", d.Summary.Total, d.Summary.Dropped, d.Summary.Surviving)

	if len(d.Plan.Commits) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	for _, c := range d.Plan.Commits {
		action := "keep"
		switch {
		case c.Drop:
			action = "drop"
		case !c.Survives:
			action = "prune"
		case len(c.ManagedTouched) > 0:
			action = "strip"
		}

		line := fmt.Sprintf("%-5s  %s  %s", action, shortHash(c.Hash), c.Summary)
		if action == "strip" {
			line += "  [" + strings.Join(c.ManagedTouched, ", ") + "]"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func shortHash(h string) string {
	if len(h) > 10 {
		return h[:10]
	}
	return h
}
