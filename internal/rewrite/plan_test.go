package rewrite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/testutil"
)

func TestPlan(t *testing.T) {
	testutil.RequireTools(t, "git")

	r := testutil.NewRepo(t)
	mb := r.Commit("base", map[string]*string{"README.md": testutil.Str("r")})
	r.Checkout("feat", true)
	r.Commit("backpack: init", map[string]*string{
		".backpack/meta.json": testutil.Str("{}"),
		".backpack/task.md":   testutil.Str("task"),
	})
	r.Commit(dropped("temp"), map[string]*string{"README.md": testutil.Str("r + temp")})
	r.Commit("feature\n\nbody", map[string]*string{"a.go": testutil.Str("package a"), "CLAUDE.md": testutil.Str("x")})

	patterns := []string{".backpack/", "CLAUDE.md"}
	plan, err := Plan(context.Background(), exec.NewRealRunner(), r.Repo, r.Dir, mb.String(), "feat", patterns, core.RemovableCommitMarker)
	require.NoError(t, err)
	require.Len(t, plan.Commits, 3)

	initCommit, temp, feature := plan.Commits[0], plan.Commits[1], plan.Commits[2]

	assert.Equal(t, "backpack: init", initCommit.Summary)
	assert.Equal(t, []string{".backpack/meta.json", ".backpack/task.md"}, initCommit.ManagedTouched)
	assert.False(t, initCommit.Survives)

	assert.Equal(t, "temp", temp.Summary)
	assert.True(t, temp.Drop)
	assert.False(t, temp.Survives)

	assert.Equal(t, "feature", feature.Summary)
	assert.Equal(t, []string{"CLAUDE.md"}, feature.ManagedTouched)
	assert.Equal(t, 1, feature.OtherTouched)
	assert.True(t, feature.Survives)

	total, drops, surviving := plan.Counts()
	assert.Equal(t, 3, total)
	assert.Equal(t, 1, drops)
	assert.Equal(t, 1, surviving)
}

func TestPlan_EmptyRange(t *testing.T) {
	testutil.RequireTools(t, "git")

	r := testutil.NewRepo(t)
	r.Commit("base", map[string]*string{"README.md": testutil.Str("r")})
	r.Checkout("feat", true)

	plan, err := Plan(context.Background(), exec.NewRealRunner(), r.Repo, r.Dir, "main", "feat", nil, core.RemovableCommitMarker)
	require.NoError(t, err)
	assert.Empty(t, plan.Commits)
}
