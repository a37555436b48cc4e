package render

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Constants for human output formatting.
const (
	// BranchMaxLen is the maximum display length for branch names in human output.
	BranchMaxLen = 40

	// None is displayed for unset values.
	None = "-"
)

// BranchHumanRow holds the fields for a single human-output row.
// This is separate from BranchSummary to allow formatting before display.
type BranchHumanRow struct {
	Branch   string
	Emit     string
	Base     string
	Managed  string
	LastEmit string
	Status   string
}

var lsHeader = BranchHumanRow{
	Branch:   "BRANCH",
	Emit:     "EMIT",
	Base:     "BASE",
	Managed:  "MANAGED",
	LastEmit: "LAST EMIT",
	Status:   "STATUS",
}

// WriteLSHuman writes the ls output in human-readable format.
// Fields are separated by whitespace columns for easy scanning.
func WriteLSHuman(w io.Writer, rows []BranchHumanRow) error {
	if len(rows) == 0 {
		return nil
	}

	widths := columnWidths(rows)
	for _, row := range append([]BranchHumanRow{lsHeader}, rows...) {
		if _, err := fmt.Fprintln(w, formatRow(row, widths)); err != nil {
			return err
		}
	}
	return nil
}

// colWidths holds the calculated column widths.
type colWidths struct {
	branch   int
	emit     int
	base     int
	managed  int
	lastEmit int
}

// columnWidths calculates the maximum width for each column.
func columnWidths(rows []BranchHumanRow) colWidths {
	widths := colWidths{
		branch:   len(lsHeader.Branch),
		emit:     len(lsHeader.Emit),
		base:     len(lsHeader.Base),
		managed:  len(lsHeader.Managed),
		lastEmit: len(lsHeader.LastEmit),
	}

	for _, row := range rows {
		widths.branch = max(widths.branch, displayLen(row.Branch))
		widths.emit = max(widths.emit, displayLen(row.Emit))
		widths.base = max(widths.base, displayLen(row.Base))
		widths.managed = max(widths.managed, displayLen(row.Managed))
		widths.lastEmit = max(widths.lastEmit, displayLen(row.LastEmit))
	}

	return widths
}

// formatRow formats a row; the status column is last and unpadded.
func formatRow(r BranchHumanRow, w colWidths) string {
	return fmt.Sprintf("%s  %s  %s  %s  %s  %s",
		pad(r.Branch, w.branch),
		pad(r.Emit, w.emit),
		pad(r.Base, w.base),
		pad(r.Managed, w.managed),
		pad(r.LastEmit, w.lastEmit),
		r.Status,
	)
}

func displayLen(s string) int {
	return len([]rune(s))
}

func pad(s string, width int) string {
	if n := displayLen(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

// FormatHumanRow converts a BranchSummary to a BranchHumanRow for display.
func FormatHumanRow(s BranchSummary, now time.Time) BranchHumanRow {
	row := BranchHumanRow{
		Branch:   TruncateForDisplay(s.Branch, BranchMaxLen),
		Emit:     None,
		Base:     None,
		Managed:  fmt.Sprintf("%d", s.ManagedCount),
		LastEmit: None,
		Status:   s.Status,
	}

	if s.Current {
		row.Branch = "* " + row.Branch
	}
	if s.EmitExists {
		row.Emit = TruncateForDisplay(s.EmitBranch, BranchMaxLen)
	}
	if s.BaseBranch != nil && *s.BaseBranch != "" {
		row.Base = *s.BaseBranch
	}
	if s.LastEmitAt != nil {
		row.LastEmit = formatRelativeTime(*s.LastEmitAt, now)
	}
	return row
}

// FormatHumanRows converts a slice of BranchSummary to BranchHumanRow.
func FormatHumanRows(summaries []BranchSummary, now time.Time) []BranchHumanRow {
	rows := make([]BranchHumanRow, len(summaries))
	for i, s := range summaries {
		rows[i] = FormatHumanRow(s, now)
	}
	return rows
}

// formatRelativeTime formats a time as a human-friendly relative string.
func formatRelativeTime(t time.Time, now time.Time) string {
	diff := now.Sub(t)
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 min ago"
		}
		return fmt.Sprintf("%d mins ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	case diff < 30*24*time.Hour:
		weeks := int(diff.Hours() / (24 * 7))
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		return t.Format("2006-01-02")
	}
}

// TruncateForDisplay truncates s to maxLen runes, adding an ellipsis if needed.
func TruncateForDisplay(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-1]) + "…"
}
