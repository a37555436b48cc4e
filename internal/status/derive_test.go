package status

import (
	"testing"

	"github.com/NielsdaWheelz/backpack/internal/journal"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// Test helper: a minimal metadata record.
func mkMeta() *store.BranchMetadata {
	return &store.BranchMetadata{Version: 1, ManagedFiles: []string{}, BaseBranch: "main"}
}

// Test helper: a journal record with the given status and source tip.
func mkRec(status, sourceTip string) *journal.Record {
	return &journal.Record{RunID: "20260110120000-a3f2", Source: "feat", Status: status, SourceTip: sourceTip}
}

func TestDerive(t *testing.T) {
	ok := mkRec(journal.StatusOK, "aaa")
	failed := mkRec(journal.StatusFailed, "bbb")

	tests := []struct {
		name      string
		meta      *store.BranchMetadata
		snapshot  Snapshot
		want      string
		wantStale bool
	}{
		// ============================================================
		// 1. nil meta => broken
		// ============================================================
		{
			name:     "nil meta",
			meta:     nil,
			snapshot: Snapshot{EmitExists: true, Last: ok, LastOK: ok},
			want:     StatusBroken,
		},

		// ============================================================
		// 2. failed newest record wins
		// ============================================================
		{
			name:     "failed after success",
			meta:     mkMeta(),
			snapshot: Snapshot{SourceTip: "aaa", EmitExists: true, Last: failed, LastOK: ok},
			want:     StatusFailed,
		},
		{
			name:      "failed and moved",
			meta:      mkMeta(),
			snapshot:  Snapshot{SourceTip: "ccc", EmitExists: false, Last: failed, LastOK: ok},
			want:      StatusFailed,
			wantStale: true,
		},

		// ============================================================
		// 3-4. emit branch absent
		// ============================================================
		{
			name:     "never emitted",
			meta:     mkMeta(),
			snapshot: Snapshot{SourceTip: "aaa"},
			want:     StatusNeverEmit,
		},
		{
			name:     "emit deleted",
			meta:     mkMeta(),
			snapshot: Snapshot{SourceTip: "aaa", Last: ok, LastOK: ok},
			want:     StatusEmitMissing,
		},

		// ============================================================
		// 5. freshness
		// ============================================================
		{
			name:     "up to date",
			meta:     mkMeta(),
			snapshot: Snapshot{SourceTip: "aaa", EmitExists: true, Last: ok, LastOK: ok},
			want:     StatusUpToDate,
		},
		{
			name:      "stale",
			meta:      mkMeta(),
			snapshot:  Snapshot{SourceTip: "ddd", EmitExists: true, Last: ok, LastOK: ok},
			want:      StatusStale,
			wantStale: true,
		},
		{
			name:     "unknown source tip is not stale",
			meta:     mkMeta(),
			snapshot: Snapshot{EmitExists: true, Last: ok, LastOK: ok},
			want:     StatusUpToDate,
		},

		// ============================================================
		// 6. branch without journal history
		// ============================================================
		{
			name:     "emit branch without records",
			meta:     mkMeta(),
			snapshot: Snapshot{SourceTip: "aaa", EmitExists: true},
			want:     StatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.meta, tt.snapshot)
			if got.Status != tt.want {
				t.Errorf("Status = %q, want %q", got.Status, tt.want)
			}
			if got.Stale != tt.wantStale {
				t.Errorf("Stale = %v, want %v", got.Stale, tt.wantStale)
			}
		})
	}
}
