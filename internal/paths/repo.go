package paths

import "path/filepath"

// RepoConfigFileName is the per-repository config file at the working tree root.
const RepoConfigFileName = ".backpack.yaml"

// RepoState holds the per-repository state locations. Everything lives under
// the git common dir so linked worktrees share one lock and one journal, and
// nothing is ever tracked.
type RepoState struct {
	GitDir string // absolute git common dir
}

// NewRepoState returns the state layout for the given git common dir.
func NewRepoState(gitCommonDir string) RepoState {
	return RepoState{GitDir: gitCommonDir}
}

// Dir returns <gitdir>/backpack.
func (r RepoState) Dir() string {
	return filepath.Join(r.GitDir, "backpack")
}

// LockPath returns <gitdir>/backpack/emit.lock.
func (r RepoState) LockPath() string {
	return filepath.Join(r.Dir(), "emit.lock")
}

// JournalPath returns <gitdir>/backpack/journal.db.
func (r RepoState) JournalPath() string {
	return filepath.Join(r.Dir(), "journal.db")
}

// FilterRepoDir returns the rewrite tool's control directory, <gitdir>/filter-repo.
func (r RepoState) FilterRepoDir() string {
	return filepath.Join(r.GitDir, "filter-repo")
}

// RepoConfigPath returns <repoRoot>/.backpack.yaml.
func RepoConfigPath(repoRoot string) string {
	return filepath.Join(repoRoot, RepoConfigFileName)
}
