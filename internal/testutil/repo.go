// Package testutil builds throwaway git repositories for tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// Repo is a repository built in-process with go-git.
type Repo struct {
	T    testing.TB
	Dir  string
	Repo *gogit.Repository

	tick int64
}

// NewRepo initializes an empty repository whose HEAD points at refs/heads/main.
func NewRepo(t testing.TB) *Repo {
	t.Helper()
	dir := t.TempDir()
	// Resolve symlinks (macOS /var -> /private/var) so paths compare equal to git output.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	repo, err := gogit.PlainInitWithOptions(dir, &gogit.PlainInitOptions{
		InitOptions: gogit.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)

	cfg, err := repo.Config()
	require.NoError(t, err)
	cfg.User.Name = "Test"
	cfg.User.Email = "test@example.com"
	require.NoError(t, repo.SetConfig(cfg))

	return &Repo{T: t, Dir: dir, Repo: repo, tick: 1700000000}
}

// Str returns a pointer to s, for file maps passed to Commit.
func Str(s string) *string { return &s }

// Commit writes files (nil content deletes) and commits them on the current
// branch. Commit times increase monotonically so ordering is stable.
func (r *Repo) Commit(msg string, files map[string]*string) plumbing.Hash {
	r.T.Helper()
	wt, err := r.Repo.Worktree()
	require.NoError(r.T, err)

	for name, content := range files {
		full := filepath.Join(r.Dir, filepath.FromSlash(name))
		if content == nil {
			_, err := wt.Remove(name)
			require.NoError(r.T, err)
			continue
		}
		require.NoError(r.T, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(r.T, os.WriteFile(full, []byte(*content), 0o644))
		_, err := wt.Add(name)
		require.NoError(r.T, err)
	}

	r.tick += 60
	sig := &object.Signature{Name: "Test", Email: "test@example.com", When: time.Unix(r.tick, 0)}
	hash, err := wt.Commit(msg, &gogit.CommitOptions{Author: sig, Committer: sig, AllowEmptyCommits: true})
	require.NoError(r.T, err)
	return hash
}

// Checkout switches to branch, creating it at HEAD when create is set.
func (r *Repo) Checkout(branch string, create bool) {
	r.T.Helper()
	wt, err := r.Repo.Worktree()
	require.NoError(r.T, err)
	require.NoError(r.T, wt.Checkout(&gogit.CheckoutOptions{
		Branch: plumbing.NewBranchReferenceName(branch),
		Create: create,
		Keep:   false,
	}))
}

// Head returns the short name of the checked out branch.
func (r *Repo) Head() string {
	r.T.Helper()
	ref, err := r.Repo.Head()
	require.NoError(r.T, err)
	return ref.Name().Short()
}

// Tip returns the commit hash at the tip of branch.
func (r *Repo) Tip(branch string) plumbing.Hash {
	r.T.Helper()
	ref, err := r.Repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(r.T, err)
	return ref.Hash()
}

// FileAt returns the content of path at rev and whether it exists there.
func (r *Repo) FileAt(rev plumbing.Hash, path string) (string, bool) {
	r.T.Helper()
	c, err := r.Repo.CommitObject(rev)
	require.NoError(r.T, err)
	f, err := c.File(path)
	if err != nil {
		return "", false
	}
	content, err := f.Contents()
	require.NoError(r.T, err)
	return content, true
}

// Messages returns commit messages reachable from rev, newest first.
func (r *Repo) Messages(rev plumbing.Hash) []string {
	r.T.Helper()
	iter, err := r.Repo.Log(&gogit.LogOptions{From: rev})
	require.NoError(r.T, err)
	var msgs []string
	require.NoError(r.T, iter.ForEach(func(c *object.Commit) error {
		msgs = append(msgs, c.Message)
		return nil
	}))
	return msgs
}

// AddRemoteRef points refs/remotes/<remote>/<branch> at hash.
func (r *Repo) AddRemoteRef(remote, branch string, hash plumbing.Hash) {
	r.T.Helper()
	_, err := r.Repo.CreateRemote(&config.RemoteConfig{Name: remote, URLs: []string{"https://example.com/" + remote + ".git"}})
	if err != nil && err != gogit.ErrRemoteExists {
		require.NoError(r.T, err)
	}
	require.NoError(r.T, r.Repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewRemoteReferenceName(remote, branch), hash)))
}

// RequireTools skips the test unless every named executable is on PATH.
// "git-filter-repo" is probed through git so both install styles are found.
func RequireTools(t testing.TB, tools ...string) {
	t.Helper()
	for _, tool := range tools {
		if tool == "git-filter-repo" {
			if err := exec.Command("git", "filter-repo", "--version").Run(); err != nil {
				t.Skip("git filter-repo not installed")
			}
			continue
		}
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
}
