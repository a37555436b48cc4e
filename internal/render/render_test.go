package render

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/rewrite"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

func strPtr(s string) *string { return &s }

func TestFormatRelativeTime(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{time.Minute, "1 min ago"},
		{5 * time.Minute, "5 mins ago"},
		{time.Hour, "1 hour ago"},
		{3 * time.Hour, "3 hours ago"},
		{24 * time.Hour, "1 day ago"},
		{3 * 24 * time.Hour, "3 days ago"},
		{8 * 24 * time.Hour, "1 week ago"},
		{60 * 24 * time.Hour, "2025-11-11"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("formatRelativeTime(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestTruncateForDisplay(t *testing.T) {
	if got := TruncateForDisplay("short", 10); got != "short" {
		t.Errorf("got %q", got)
	}
	if got := TruncateForDisplay("abcdefghij", 5); got != "abcd…" {
		t.Errorf("got %q", got)
	}
}

func TestWriteLSHuman(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	last := now.Add(-2 * time.Hour)
	summaries := []BranchSummary{
		{Branch: "feat", Current: true, EmitBranch: "feat-emit", EmitExists: true, BaseBranch: strPtr("main"), ManagedCount: 4, LastEmitAt: &last, Status: "up to date"},
		{Branch: "wip", EmitBranch: "wip-emit", ManagedCount: 3, Status: "never emitted"},
	}

	var buf bytes.Buffer
	if err := WriteLSHuman(&buf, FormatHumanRows(summaries, now)); err != nil {
		t.Fatal(err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[0], "BRANCH") || !strings.HasSuffix(lines[0], "STATUS") {
		t.Errorf("header = %q", lines[0])
	}
	for _, want := range []string{"* feat", "feat-emit", "main", "2 hours ago", "up to date"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("row 1 missing %q: %q", want, lines[1])
		}
	}
	if !strings.Contains(lines[2], "wip") || strings.Contains(lines[2], "wip-emit") {
		t.Errorf("row 2 = %q; missing emit branch should render as -", lines[2])
	}
	// Columns line up
	if strings.Index(lines[0], "EMIT") != strings.Index(lines[1], "feat-emit") {
		t.Errorf("columns misaligned:\n%s", buf.String())
	}
}

func TestWriteLSHuman_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLSHuman(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output, got %q", buf.String())
	}
}

func TestWriteLSJSON_Envelope(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteLSJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}

	var env struct {
		SchemaVersion string            `json:"schema_version"`
		Data          []json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, buf.String())
	}
	if env.SchemaVersion != SchemaVersion {
		t.Errorf("schema_version = %q", env.SchemaVersion)
	}
	if env.Data == nil || len(env.Data) != 0 {
		t.Errorf("data = %v, want empty array", env.Data)
	}
}

func TestWriteShowHuman(t *testing.T) {
	d := &BranchDetail{
		Branch:                "feat",
		Meta:                  &store.BranchMetadata{Version: 1, ManagedFiles: []string{"CLAUDE.md"}, BaseBranch: "main"},
		EffectiveManagedFiles: []string{".backpack/meta.json", "CLAUDE.md"},
		EmitBranch:            "feat-emit",
		SourceTip:             "abc123",
		Status:                "emit failed",
		LastEmit: &journal.Record{
			RunID:     "20260110120000-a1b2",
			Status:    journal.StatusFailed,
			ErrorCode: "E_REWRITE_FAILED",
			Emit:      "feat-emit",
		},
	}

	var buf bytes.Buffer
	if err := WriteShowHuman(&buf, d); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"=== branch ===",
		"branch: feat",
		"base_branch: main",
		"managed_files: CLAUDE.md",
		"emit_exists: no",
		"status: emit failed",
		"=== last emit ===",
		"error_code: E_REWRITE_FAILED",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteLogHuman(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	records := []*journal.Record{
		{RunID: "r2", Source: "feat", Emit: "feat-emit", Status: journal.StatusOK, Commits: 3, Dropped: 1, StartedAt: now.Add(-5 * time.Minute).Format(time.RFC3339Nano)},
		{RunID: "r1", Source: "feat", Emit: "feat-emit", Status: journal.StatusFailed, ErrorCode: "E_REWRITE_FAILED", StartedAt: "garbage"},
	}

	var buf bytes.Buffer
	if err := WriteLogHuman(&buf, records, now); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines", len(lines))
	}
	if want := "r2  feat -> feat-emit  ok  commits=3 dropped=1  5 mins ago"; lines[0] != want {
		t.Errorf("line 0 = %q, want %q", lines[0], want)
	}
	if !strings.Contains(lines[1], "failed (E_REWRITE_FAILED)") || !strings.HasSuffix(lines[1], "garbage") {
		t.Errorf("line 1 = %q", lines[1])
	}
}

func TestWritePlanHuman(t *testing.T) {
	d := &PlanDetail{
		Source:     "feat",
		EmitBranch: "feat-emit",
		Base:       "main",
		BaseSource: "metadata",
		Managed:    []string{"CLAUDE.md"},
		Plan: &rewrite.PlanResult{
			MergeBase: "0123456789abcdef",
			Commits: []rewrite.PlannedCommit{
				{Hash: "aaaaaaaaaaaaaaaa", Summary: "scratch", Drop: true, ManagedTouched: []string{}},
				{Hash: "bbbbbbbbbbbbbbbb", Summary: "notes", ManagedTouched: []string{"CLAUDE.md"}},
				{Hash: "cccccccccccccccc", Summary: "feature", ManagedTouched: []string{"CLAUDE.md"}, OtherTouched: 1, Survives: true},
				{Hash: "dddddddddddddddd", Summary: "fix", ManagedTouched: []string{}, OtherTouched: 2, Survives: true},
			},
		},
		Summary: PlanCounts{Total: 4, Dropped: 1, Surviving: 2},
	}

	var buf bytes.Buffer
	if err := WritePlanHuman(&buf, d); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"base: main (metadata)",
		"commits: 4 (dropped 1, surviving 2)",
		"drop   aaaaaaaaaa  scratch",
		"prune  bbbbbbbbbb  notes",
		"strip  cccccccccc  feature  [CLAUDE.md]",
		"keep   dddddddddd  fix",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}
