// Package status provides pure emit status derivation for source branches.
// No filesystem, git, or journal calls are made in this package.
package status

import (
	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// Derived status string constants (user-visible contract).
const (
	StatusBroken      = "broken"
	StatusNeverEmit   = "never emitted"
	StatusFailed      = "emit failed"
	StatusEmitMissing = "emit missing"
	StatusStale       = "stale"
	StatusUpToDate    = "up to date"
	StatusUnknown     = "emitted"
)

// Snapshot contains local-only inputs for status derivation.
// These values must be computed by the caller from git and the journal.
type Snapshot struct {
	// SourceTip is the current commit of the source branch.
	SourceTip string

	// EmitExists is true iff the emit branch exists locally.
	EmitExists bool

	// Last is the newest journal record for the source branch (may be nil).
	Last *journal.Record

	// LastOK is the newest successful journal record (may be nil).
	LastOK *journal.Record
}

// Derived contains the computed status values.
type Derived struct {
	// Status is the human-readable status string.
	Status string

	// Stale is true when the source moved since the last successful emit.
	Stale bool
}

// Derive computes the emit status from meta and local snapshot.
// meta may be nil for unreadable metadata; Status is then "broken".
//
// Precedence:
//  1. broken (no metadata)
//  2. emit failed (newest record failed)
//  3. never emitted (no emit branch and no successful record)
//  4. emit missing (successful record but branch deleted)
//  5. stale / up to date (comparing the recorded source tip)
//  6. emitted (branch exists, journal has no record, e.g. a fresh clone)
//
// This function is pure and must not panic.
func Derive(meta *store.BranchMetadata, in Snapshot) Derived {
	if meta == nil {
		return Derived{Status: StatusBroken}
	}

	if in.Last != nil && in.Last.Status == journal.StatusFailed {
		return Derived{Status: StatusFailed, Stale: stale(in)}
	}

	if !in.EmitExists {
		if in.LastOK == nil {
			return Derived{Status: StatusNeverEmit}
		}
		return Derived{Status: StatusEmitMissing, Stale: stale(in)}
	}

	if in.LastOK == nil {
		return Derived{Status: StatusUnknown}
	}
	if stale(in) {
		return Derived{Status: StatusStale, Stale: true}
	}
	return Derived{Status: StatusUpToDate}
}

// stale reports whether the source tip differs from the last successful emit.
// Unknown tips are not considered stale.
func stale(in Snapshot) bool {
	if in.LastOK == nil || in.LastOK.SourceTip == "" || in.SourceTip == "" {
		return false
	}
	return in.LastOK.SourceTip != in.SourceTip
}
