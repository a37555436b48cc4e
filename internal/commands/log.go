package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/render"
	"github.com/NielsdaWheelz/backpack/internal/repo"
)

// DefaultLogLimit is the number of records log prints without -n.
const DefaultLogLimit = 20

// LogOpts holds options for the log command.
type LogOpts struct {
	// Branch filters by source branch (empty = all branches).
	Branch string

	// Limit caps the number of records (0 = DefaultLogLimit, <0 = all).
	Limit int

	// JSON outputs machine-readable JSON.
	JSON bool
}

// Log executes the backpack log command: emit history, newest first.
func Log(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string, opts LogOpts, stdout, stderr io.Writer) error {
	rc, err := repo.Resolve(ctx, cr, fsys, env, cwd)
	if err != nil {
		return err
	}

	limit := opts.Limit
	switch {
	case limit == 0:
		limit = DefaultLogLimit
	case limit < 0:
		limit = 0
	}

	jr, err := journal.OpenIfExists(rc.State.JournalPath())
	if err != nil {
		return err
	}

	var records []*journal.Record
	if jr != nil {
		defer jr.Close()
		if records, err = jr.List(opts.Branch, limit); err != nil {
			return err
		}
	}

	if opts.JSON {
		return render.WriteLogJSON(stdout, records)
	}
	if len(records) == 0 {
		fmt.Fprintln(stderr, "no emits recorded")
		return nil
	}
	return render.WriteLogHuman(stdout, records, time.Now())
}
