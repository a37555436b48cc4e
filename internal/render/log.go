package render

import (
	"fmt"
	"io"
	"time"

	"github.com/NielsdaWheelz/backpack/internal/journal"
)

// WriteLogHuman writes journal records one per line, newest first:
//
//	<run_id>  <source> -> <emit>  <status>  <commits>/<dropped>  <when>
func WriteLogHuman(w io.Writer, records []*journal.Record, now time.Time) error {
	for _, r := range records {
		when := r.StartedAt
		if t, err := time.Parse(time.RFC3339Nano, r.StartedAt); err == nil {
			when = formatRelativeTime(t, now)
		}

		status := r.Status
		if r.ErrorCode != "" {
			status += " (" + r.ErrorCode + ")"
		}

		if _, err := fmt.Fprintf(w, "%s  %s -> %s  %s  commits=%d dropped=%d  %s\n",
			r.RunID, r.Source, r.Emit, status, r.Commits, r.Dropped, when); err != nil {
			return err
		}
	}
	return nil
}
