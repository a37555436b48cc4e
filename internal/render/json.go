// Package render provides output formatting for backpack commands.
package render

import (
	"encoding/json"
	"io"
	"time"

	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/rewrite"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// SchemaVersion tags every JSON envelope.
const SchemaVersion = "1.0"

// BranchSummary represents a source branch in ls output (both human and JSON).
// This is the public contract for ls --json output.
type BranchSummary struct {
	// Branch is the source branch name.
	Branch string `json:"branch"`

	// Current is true for the checked out branch.
	Current bool `json:"current"`

	// EmitBranch is the emit branch name (cached or derived).
	EmitBranch string `json:"emit_branch"`

	// EmitExists indicates whether the emit branch exists locally.
	EmitExists bool `json:"emit_exists"`

	// BaseBranch is the recorded base branch (null if unset).
	BaseBranch *string `json:"base_branch"`

	// ManagedCount is the size of the effective managed set.
	ManagedCount int `json:"managed_count"`

	// CreatedAt is the metadata creation time (null if unset or unparseable).
	CreatedAt *time.Time `json:"created_at"`

	// LastEmitAt is when the newest journal record finished (null if none).
	LastEmitAt *time.Time `json:"last_emit_at"`

	// Status is the derived emit status.
	Status string `json:"status"`

	// Stale is true when the source moved since the last successful emit.
	Stale bool `json:"stale"`
}

// Envelope is the stable JSON output format shared by every --json flag.
type Envelope struct {
	SchemaVersion string `json:"schema_version"`
	Data          any    `json:"data"`
}

func writeEnvelope(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(Envelope{SchemaVersion: SchemaVersion, Data: data})
}

// WriteLSJSON writes the ls output as JSON to the given writer.
func WriteLSJSON(w io.Writer, summaries []BranchSummary) error {
	// Use empty slice if nil for valid JSON array output
	if summaries == nil {
		summaries = []BranchSummary{}
	}
	return writeEnvelope(w, summaries)
}

// ============================================================================
// Show command JSON types
// ============================================================================

// BranchDetail represents the full branch detail for show --json output.
type BranchDetail struct {
	// Branch is the source branch name.
	Branch string `json:"branch"`

	// Meta is the parsed metadata record.
	Meta *store.BranchMetadata `json:"meta"`

	// EffectiveManagedFiles is the managed set an emit strips.
	EffectiveManagedFiles []string `json:"effective_managed_files"`

	// EmitBranch is the emit branch name (cached or derived).
	EmitBranch string `json:"emit_branch"`

	// EmitExists indicates whether the emit branch exists locally.
	EmitExists bool `json:"emit_exists"`

	// SourceTip is the current source commit.
	SourceTip string `json:"source_tip"`

	// Status is the derived emit status.
	Status string `json:"status"`

	// Stale is true when the source moved since the last successful emit.
	Stale bool `json:"stale"`

	// LastEmit is the newest journal record (null if none).
	LastEmit *journal.Record `json:"last_emit"`
}

// WriteShowJSON writes the show output as JSON to the given writer.
func WriteShowJSON(w io.Writer, detail *BranchDetail) error {
	return writeEnvelope(w, detail)
}

// WriteLogJSON writes journal records as JSON, newest first.
func WriteLogJSON(w io.Writer, records []*journal.Record) error {
	if records == nil {
		records = []*journal.Record{}
	}
	return writeEnvelope(w, records)
}

// PlanDetail is the plan --json payload.
type PlanDetail struct {
	Source     string              `json:"source"`
	EmitBranch string              `json:"emit_branch"`
	Base       string              `json:"base"`
	BaseSource string              `json:"base_source"`
	Managed    []string            `json:"managed_files"`
	Plan       *rewrite.PlanResult `json:"plan"`
	Summary    PlanCounts          `json:"summary"`
}

// PlanCounts summarizes a plan.
type PlanCounts struct {
	Total     int `json:"total"`
	Dropped   int `json:"dropped"`
	Surviving int `json:"surviving"`
}

// WritePlanJSON writes the plan as JSON.
func WritePlanJSON(w io.Writer, detail *PlanDetail) error {
	return writeEnvelope(w, detail)
}
