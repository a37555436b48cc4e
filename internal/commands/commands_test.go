package commands

import (
	"context"
	osexec "os/exec"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/store"
	"github.com/NielsdaWheelz/backpack/internal/testutil"
)

// mapEnv implements paths.Env over a map.
type mapEnv map[string]string

func (m mapEnv) Get(key string) string { return m[key] }

// isolatedEnv points the user config dir at an empty temp dir.
func isolatedEnv(t *testing.T) mapEnv {
	return mapEnv{"BACKPACK_CONFIG_DIR": t.TempDir()}
}

const featMeta = `{"version":1,"managedFiles":["CLAUDE.md"],"baseBranch":"main"}`

// newFeatRepo builds main with README.md and a checked out feat branch
// carrying metadata, a managed CLAUDE.md and a feature file.
func newFeatRepo(t *testing.T) *testutil.Repo {
	t.Helper()
	testutil.RequireTools(t, "git")
	r := testutil.NewRepo(t)
	r.Commit("init", map[string]*string{"README.md": testutil.Str("readme\n")})
	r.Checkout("feat", true)
	r.Commit("backpack: init", map[string]*string{
		store.MetaFile: testutil.Str(featMeta),
		store.TaskFile: testutil.Str("# task\n"),
		"CLAUDE.md":    testutil.Str("agent notes\n"),
	})
	r.Commit("add feature", map[string]*string{"feature.go": testutil.Str("package feature\n")})
	return r
}

func gitRun(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := osexec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// toolRunner answers `git filter-repo --version` itself and passes every
// other command to the real runner.
type toolRunner struct {
	exec.CommandRunner
	installed bool
}

func newToolRunner(installed bool) toolRunner {
	return toolRunner{CommandRunner: exec.NewRealRunner(), installed: installed}
}

func (r toolRunner) Run(ctx context.Context, name string, args []string, opts exec.RunOpts) (exec.CmdResult, error) {
	if name == "git" && len(args) == 2 && args[0] == "filter-repo" && args[1] == "--version" {
		if r.installed {
			return exec.CmdResult{Stdout: "a40bce548d2c\n"}, nil
		}
		return exec.CmdResult{ExitCode: 1, Stderr: "git: 'filter-repo' is not a git command."}, nil
	}
	return r.CommandRunner.Run(ctx, name, args, opts)
}
