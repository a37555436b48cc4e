package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/repo"
	"github.com/NielsdaWheelz/backpack/internal/testutil"
)

func TestDoctor_Success(t *testing.T) {
	r := newFeatRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir, ".backpack.yaml"), []byte("emit_suffix: -clean\n"), 0o644))

	var stdout, stderr bytes.Buffer
	err := Doctor(context.Background(), newToolRunner(true), fs.NewRealFS(), isolatedEnv(t), r.Dir, &stdout, &stderr)
	require.NoError(t, err)

	out := stdout.String()
	for _, want := range []string{
		"repo_root: " + r.Dir + "\n",
		"journal: " + journalPath(r) + "\n",
		"filter_repo_version: a40bce548d2c\n",
		"user_config: none\n",
		"repo_config: " + filepath.Join(r.Dir, ".backpack.yaml") + "\n",
		"emit_suffix: -clean\n",
		"remote: origin\n",
		"branch: feat\n",
		"metadata: present\n",
		"emit_branch: feat-clean\n",
		"managed_files: 4\n",
		"base: main\n",
		"base_source: " + repo.BaseFromMetadata + "\n",
		"gitignore_ok: true\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasSuffix(out, "status: ok\n"))
	assert.Empty(t, stderr.String())
}

func TestDoctor_NoMetadataStillOK(t *testing.T) {
	r := newFeatRepo(t)
	gitRun(t, r.Dir, "checkout", "--quiet", "main")
	gitRun(t, r.Dir, "branch", "-m", "main", "trunk")

	var stdout, stderr bytes.Buffer
	err := Doctor(context.Background(), newToolRunner(true), fs.NewRealFS(), isolatedEnv(t), r.Dir, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "metadata: missing\n")
	assert.Contains(t, stdout.String(), "base: unresolved (E_BASE_BRANCH_UNRESOLVED)\n")
}

func TestDoctor_WarnsOnIgnoredMetaDir(t *testing.T) {
	r := newFeatRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(r.Dir, ".gitignore"), []byte(".backpack\n"), 0o644))

	var stdout, stderr bytes.Buffer
	err := Doctor(context.Background(), newToolRunner(true), fs.NewRealFS(), isolatedEnv(t), r.Dir, &stdout, &stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "gitignore_ok: false\n")
	assert.Contains(t, stderr.String(), "warning: .backpack is ignored")
}

func TestDoctor_ToolMissing(t *testing.T) {
	r := newFeatRepo(t)

	var stdout, stderr bytes.Buffer
	err := Doctor(context.Background(), newToolRunner(false), fs.NewRealFS(), isolatedEnv(t), r.Dir, &stdout, &stderr)
	assert.Equal(t, errors.ERewriteToolNotInstalled, errors.GetCode(err))
	assert.Empty(t, stdout.String())
}

func TestDoctor_NotInRepo(t *testing.T) {
	testutil.RequireTools(t, "git")

	var stdout, stderr bytes.Buffer
	err := Doctor(context.Background(), newToolRunner(true), fs.NewRealFS(), isolatedEnv(t), t.TempDir(), &stdout, &stderr)
	assert.Equal(t, errors.ENoRepo, errors.GetCode(err))
}
