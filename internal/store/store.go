// Package store persists the per-branch metadata record committed at
// .backpack/meta.json. Files are written atomically via temp file + rename.
package store

import (
	"path/filepath"
	"time"

	"github.com/NielsdaWheelz/backpack/internal/fs"
)

// Repo-relative paths of the tool-owned files. Always slash-separated.
const (
	MetaDir    = ".backpack"
	MetaFile   = MetaDir + "/meta.json"
	TaskFile   = MetaDir + "/task.md"
	AgentsFile = MetaDir + "/agents.md"
)

// ImplicitManagedFiles are stripped on every emit whether or not the record
// lists them.
var ImplicitManagedFiles = []string{MetaFile, TaskFile, AgentsFile}

// Store handles persistence of the branch metadata record in one working tree.
type Store struct {
	FS       fs.FS            // filesystem interface for stubbing
	RepoRoot string           // absolute working tree root
	Now      func() time.Time // injectable clock for deterministic tests
}

// NewStore creates a new Store with the given dependencies.
func NewStore(filesystem fs.FS, repoRoot string, now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		FS:       filesystem,
		RepoRoot: repoRoot,
		Now:      now,
	}
}

// MetaDirPath returns the absolute path to the .backpack directory.
func (s *Store) MetaDirPath() string {
	return filepath.Join(s.RepoRoot, filepath.FromSlash(MetaDir))
}

// MetaPath returns the absolute path to meta.json in the working tree.
func (s *Store) MetaPath() string {
	return filepath.Join(s.RepoRoot, filepath.FromSlash(MetaFile))
}

// Path returns the absolute path of a repo-relative slash path.
func (s *Store) Path(rel string) string {
	return filepath.Join(s.RepoRoot, filepath.FromSlash(rel))
}
