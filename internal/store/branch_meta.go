package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	gogit "github.com/go-git/go-git/v5"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/git"
)

// SchemaVersion is the current metadata record version.
const SchemaVersion = 1

// BranchMetadata is the record committed to a source branch at .backpack/meta.json.
type BranchMetadata struct {
	// Version is the integer schema tag.
	Version int `json:"version"`

	// ManagedFiles lists path patterns stripped on emit, in insertion order.
	// The implicit tool-owned files are not listed here.
	ManagedFiles []string `json:"managedFiles"`

	// BaseBranch is the upstream branch emits are computed against (optional).
	BaseBranch string `json:"baseBranch,omitempty"`

	// EmitBranchName caches the derived emit branch name (optional).
	EmitBranchName string `json:"emitBranchName,omitempty"`

	// CreatedAt is the creation timestamp in RFC3339 UTC format.
	CreatedAt string `json:"createdAt,omitempty"`
}

// NewBranchMetadata creates a record with the current schema version.
func NewBranchMetadata(baseBranch string, managed []string, createdAt time.Time) *BranchMetadata {
	m := &BranchMetadata{
		Version:      SchemaVersion,
		ManagedFiles: []string{},
		BaseBranch:   baseBranch,
		CreatedAt:    createdAt.UTC().Format(time.RFC3339),
	}
	m.AppendManaged(managed...)
	return m
}

// EffectiveManagedFiles returns the implicit tool-owned files followed by the
// listed patterns, normalized and deduplicated.
func (m *BranchMetadata) EffectiveManagedFiles() []string {
	all := make([]string, 0, len(ImplicitManagedFiles)+len(m.ManagedFiles))
	all = append(all, ImplicitManagedFiles...)
	all = append(all, m.ManagedFiles...)
	return core.DedupPatterns(all)
}

// AppendManaged adds patterns to ManagedFiles, skipping empties, duplicates,
// and the implicit files. Existing order is preserved.
// Returns the patterns actually added.
func (m *BranchMetadata) AppendManaged(patterns ...string) []string {
	seen := make(map[string]struct{}, len(m.ManagedFiles)+len(ImplicitManagedFiles))
	for _, p := range ImplicitManagedFiles {
		seen[p] = struct{}{}
	}
	for _, p := range m.ManagedFiles {
		seen[core.NormalizePattern(p)] = struct{}{}
	}

	var added []string
	for _, p := range core.DedupPatterns(patterns) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		m.ManagedFiles = append(m.ManagedFiles, p)
		added = append(added, p)
	}
	return added
}

// Parse decodes a metadata record. source names where the bytes came from
// and is only used in error details.
// Returns E_METADATA_CORRUPT for malformed JSON or an unsupported version.
func Parse(data []byte, source string) (*BranchMetadata, error) {
	var meta BranchMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, errors.WrapWithDetails(
			errors.EMetadataCorrupt,
			"failed to parse "+MetaFile,
			err,
			map[string]string{"source": source},
		)
	}

	if meta.Version < 1 || meta.Version > SchemaVersion {
		return nil, errors.NewWithDetails(
			errors.EMetadataCorrupt,
			fmt.Sprintf("unsupported metadata version %d (expected %d)", meta.Version, SchemaVersion),
			map[string]string{"source": source},
		)
	}

	if meta.ManagedFiles == nil {
		meta.ManagedFiles = []string{}
	}
	return &meta, nil
}

// Read reads and parses the working tree copy of meta.json.
// Returns E_NO_METADATA if the file doesn't exist.
// Returns E_METADATA_CORRUPT if the file can't be read or parsed.
func (s *Store) Read() (*BranchMetadata, error) {
	return s.readFile(s.MetaPath())
}

func (s *Store) readFile(path string) (*BranchMetadata, error) {
	data, err := s.FS.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewWithDetails(
				errors.ENoMetadata,
				"no backpack metadata on this branch; run 'backpack init' first",
				map[string]string{"meta_path": path},
			)
		}
		return nil, errors.WrapWithDetails(
			errors.EMetadataCorrupt,
			"failed to read "+MetaFile,
			err,
			map[string]string{"meta_path": path},
		)
	}
	return Parse(data, path)
}

// ReadAtBranch reads the record committed at the tip of branch without a
// checkout. Returns (nil, nil) if the branch carries no record.
func ReadAtBranch(repo *gogit.Repository, branch string) (*BranchMetadata, error) {
	data, ok, err := git.ReadFileAtBranch(repo, branch, MetaFile)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return Parse(data, branch+":"+MetaFile)
}

// ReadRef reads a record from either a file path or a branch name.
// An existing regular file wins; anything else is treated as a branch.
// Returns E_NO_METADATA if the branch has no record.
func (s *Store) ReadRef(repo *gogit.Repository, branchOrPath string) (*BranchMetadata, error) {
	path := branchOrPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.RepoRoot, path)
	}
	if info, err := s.FS.Stat(path); err == nil && info.Mode().IsRegular() {
		return s.readFile(path)
	}

	meta, err := ReadAtBranch(repo, branchOrPath)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, errors.NewWithDetails(
			errors.ENoMetadata,
			"branch "+branchOrPath+" carries no backpack metadata",
			map[string]string{"branch": branchOrPath},
		)
	}
	return meta, nil
}

// Write writes meta.json atomically, creating .backpack/ if needed.
// Returns E_METADATA_WRITE_FAILED on any write error.
func (s *Store) Write(meta *BranchMetadata) error {
	metaPath := s.MetaPath()

	if err := s.FS.MkdirAll(s.MetaDirPath(), 0o755); err != nil {
		return errors.WrapWithDetails(
			errors.EMetadataWriteFailed,
			"failed to create "+MetaDir,
			err,
			map[string]string{"meta_dir": s.MetaDirPath()},
		)
	}

	if meta.ManagedFiles == nil {
		meta.ManagedFiles = []string{}
	}
	if err := fs.WriteJSONAtomic(s.FS, metaPath, meta, 0o644); err != nil {
		return errors.WrapWithDetails(
			errors.EMetadataWriteFailed,
			"failed to write "+MetaFile+" atomically",
			err,
			map[string]string{"meta_path": metaPath},
		)
	}

	return nil
}

// Update reads, updates, and writes meta.json atomically.
// The updateFn receives the current record and should modify it in place.
func (s *Store) Update(updateFn func(*BranchMetadata)) (*BranchMetadata, error) {
	meta, err := s.Read()
	if err != nil {
		return nil, err
	}

	updateFn(meta)

	if err := s.Write(meta); err != nil {
		return nil, err
	}
	return meta, nil
}
