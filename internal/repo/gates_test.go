package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
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

func resolve(t *testing.T, dir string, env mapEnv) *RepoContext {
	t.Helper()
	rc, err := Resolve(context.Background(), exec.NewRealRunner(), fs.NewRealFS(), env, dir)
	require.NoError(t, err)
	return rc
}

func TestResolve(t *testing.T) {
	testutil.RequireTools(t, "git")
	r := testutil.NewRepo(t)
	r.Commit("init", map[string]*string{
		"README.md":      testutil.Str("hi"),
		".backpack.yaml": testutil.Str("base_branch: develop\nemit_suffix: -clean\n"),
		"sub/x.txt":      testutil.Str("x"),
	})

	rc := resolve(t, filepath.Join(r.Dir, "sub"), isolatedEnv(t))
	assert.Equal(t, r.Dir, rc.RepoRoot)
	assert.Equal(t, filepath.Join(r.Dir, ".git"), rc.GitDir)
	assert.Equal(t, filepath.Join(r.Dir, ".git", "backpack", "journal.db"), rc.State.JournalPath())
	assert.Equal(t, "develop", rc.Config.BaseBranch)
	assert.Equal(t, "-clean", rc.Config.EmitSuffix)
	assert.Equal(t, "origin", rc.Config.Remote)
}

func TestResolve_NotARepo(t *testing.T) {
	testutil.RequireTools(t, "git")
	_, err := Resolve(context.Background(), exec.NewRealRunner(), fs.NewRealFS(), isolatedEnv(t), t.TempDir())
	assert.Equal(t, errors.ENoRepo, errors.GetCode(err))
}

func TestResolve_InvalidConfig(t *testing.T) {
	testutil.RequireTools(t, "git")
	r := testutil.NewRepo(t)
	r.Commit("init", map[string]*string{".backpack.yaml": testutil.Str("bogus_key: 1\n")})

	_, err := Resolve(context.Background(), exec.NewRealRunner(), fs.NewRealFS(), isolatedEnv(t), r.Dir)
	assert.Equal(t, errors.EInvalidConfig, errors.GetCode(err))
}

func TestCheckEmitSafe(t *testing.T) {
	testutil.RequireTools(t, "git")
	ctx := context.Background()
	cr := exec.NewRealRunner()

	t.Run("empty repo", func(t *testing.T) {
		r := testutil.NewRepo(t)
		_, err := CheckEmitSafe(ctx, cr, r.Dir)
		assert.Equal(t, errors.EEmptyRepo, errors.GetCode(err))
	})

	t.Run("on branch", func(t *testing.T) {
		r := testutil.NewRepo(t)
		r.Commit("init", map[string]*string{"a": testutil.Str("a")})
		branch, err := CheckEmitSafe(ctx, cr, r.Dir)
		require.NoError(t, err)
		assert.Equal(t, "main", branch)
	})

	t.Run("detached", func(t *testing.T) {
		r := testutil.NewRepo(t)
		h := r.Commit("init", map[string]*string{"a": testutil.Str("a")})
		wt, err := r.Repo.Worktree()
		require.NoError(t, err)
		require.NoError(t, wt.Checkout(&gogit.CheckoutOptions{Hash: h}))

		_, err = CheckEmitSafe(ctx, cr, r.Dir)
		assert.Equal(t, errors.EDetachedHead, errors.GetCode(err))
	})
}

func TestRequireClean(t *testing.T) {
	testutil.RequireTools(t, "git")
	ctx := context.Background()
	cr := exec.NewRealRunner()
	r := testutil.NewRepo(t)
	r.Commit("init", map[string]*string{"a.txt": testutil.Str("a")})

	require.NoError(t, RequireClean(ctx, cr, r.Dir, "emit"))

	// Untracked files do not count
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir, "new.txt"), []byte("n"), 0o644))
	require.NoError(t, RequireClean(ctx, cr, r.Dir, "emit"))

	require.NoError(t, os.WriteFile(filepath.Join(r.Dir, "a.txt"), []byte("changed"), 0o644))
	err := RequireClean(ctx, cr, r.Dir, "emit")
	assert.Equal(t, errors.EDirtyTree, errors.GetCode(err))
}

func TestResolveBase(t *testing.T) {
	testutil.RequireTools(t, "git")
	ctx := context.Background()
	cr := exec.NewRealRunner()

	r := testutil.NewRepo(t)
	h := r.Commit("init", map[string]*string{"a": testutil.Str("a")})
	r.Checkout("develop", true)
	r.Checkout("trunk", true)
	r.Checkout("main", false)
	r.AddRemoteRef("origin", "release", h)

	userDir := t.TempDir()
	withUser := mapEnv{"BACKPACK_CONFIG_DIR": userDir}
	require.NoError(t, os.WriteFile(filepath.Join(userDir, "config.yaml"), []byte("base_branch: trunk\n"), 0o644))

	tests := []struct {
		name       string
		env        mapEnv
		repoConfig string
		explicit   string
		meta       *store.BranchMetadata
		want       BaseResolution
		wantCode   errors.Code
	}{
		{
			name:     "flag wins",
			env:      withUser,
			explicit: "develop",
			meta:     &store.BranchMetadata{BaseBranch: "trunk"},
			want:     BaseResolution{Branch: "develop", Ref: "develop", Source: BaseFromFlag},
		},
		{
			name: "metadata",
			env:  withUser,
			meta: &store.BranchMetadata{BaseBranch: "develop"},
			want: BaseResolution{Branch: "develop", Ref: "develop", Source: BaseFromMetadata},
		},
		{
			name:       "repo config over user config",
			env:        withUser,
			repoConfig: "base_branch: develop\n",
			meta:       &store.BranchMetadata{},
			want:       BaseResolution{Branch: "develop", Ref: "develop", Source: BaseFromRepoConfig},
		},
		{
			name: "user config",
			env:  withUser,
			want: BaseResolution{Branch: "trunk", Ref: "trunk", Source: BaseFromUserConfig},
		},
		{
			name: "remote fallback for configured name",
			env:  isolatedEnv(t),
			meta: &store.BranchMetadata{BaseBranch: "release"},
			want: BaseResolution{Branch: "release", Ref: "origin/release", Source: BaseFromMetadata},
		},
		{
			name: "detected",
			env:  isolatedEnv(t),
			want: BaseResolution{Branch: "main", Ref: "main", Source: BaseFromDetected},
		},
		{
			name:     "explicit not found",
			env:      isolatedEnv(t),
			explicit: "nope",
			wantCode: errors.EBaseBranchNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgPath := filepath.Join(r.Dir, ".backpack.yaml")
			os.Remove(cfgPath)
			if tt.repoConfig != "" {
				require.NoError(t, os.WriteFile(cfgPath, []byte(tt.repoConfig), 0o644))
				defer os.Remove(cfgPath)
			}

			rc := resolve(t, r.Dir, tt.env)
			got, err := ResolveBase(ctx, cr, rc, tt.explicit, tt.meta)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errors.GetCode(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveBase_Unresolved(t *testing.T) {
	testutil.RequireTools(t, "git")
	r := testutil.NewRepo(t)
	r.Commit("init", map[string]*string{"a": testutil.Str("a")})
	r.Checkout("feature", true)
	require.NoError(t, r.Repo.Storer.RemoveReference(plumbing.NewBranchReferenceName("main")))

	rc := resolve(t, r.Dir, isolatedEnv(t))
	_, err := ResolveBase(context.Background(), exec.NewRealRunner(), rc, "", nil)
	assert.Equal(t, errors.EBaseBranchUnresolved, errors.GetCode(err))

	ae, ok := errors.AsBackpackError(err)
	require.True(t, ok)
	assert.NotEmpty(t, ae.Details["hint"])
}
