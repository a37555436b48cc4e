package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/git"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/repo"
	"github.com/NielsdaWheelz/backpack/internal/scaffold"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// InitCommitMessage is the message of the commit init creates.
const InitCommitMessage = "backpack: init"

// InitOpts holds options for the init command.
type InitOpts struct {
	// Base is recorded as baseBranch (empty = resolve from config/remote).
	Base string

	// Manage lists patterns to add to managedFiles.
	Manage []string

	// Force replaces an existing record.
	Force bool

	// NoCommit leaves the scaffolded files uncommitted.
	NoCommit bool
}

// InitResult holds the result of the init command for output formatting.
type InitResult struct {
	Branch       string
	MetaState    string // "created", "updated", "overwritten" or "unchanged"
	BaseBranch   string
	Managed      []string
	StubsCreated []string
	Committed    bool
}

// Init implements the `backpack init` command.
// Writes .backpack/meta.json and the stub files (never overwritten), then
// commits them to the current branch.
func Init(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string, opts InitOpts, stdout, stderr io.Writer) error {
	rc, err := repo.Resolve(ctx, cr, fsys, env, cwd)
	if err != nil {
		return err
	}

	branch, err := repo.CheckEmitSafe(ctx, cr, rc.RepoRoot)
	if err != nil {
		return err
	}
	if core.IsEmitBranchName(branch, rc.Config.EmitSuffix) {
		return errors.NewWithDetails(
			errors.EOnEmitBranch,
			"'"+branch+"' is an emit branch; run init on the source branch",
			map[string]string{"branch": branch},
		)
	}

	entries, err := scaffold.IgnoringEntries(fsys, filepath.Join(rc.RepoRoot, ".gitignore"))
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to read .gitignore", err)
	}
	if len(entries) > 0 {
		return errors.NewWithDetails(
			errors.EMetadataIgnored,
			store.MetaDir+" is ignored by .gitignore ("+strings.Join(entries, ", ")+"); its files must be committed",
			map[string]string{"hint": "remove the entry or add !" + store.MetaDir + "/ to .gitignore"},
		)
	}

	s := rc.Store(fsys)
	meta, state, err := initRecord(s, opts)
	if err != nil {
		return err
	}

	switch {
	case opts.Base != "":
		res, err := repo.ResolveBase(ctx, cr, rc, opts.Base, nil)
		if err != nil {
			return err
		}
		meta.BaseBranch = res.Branch
	case state == "created" || state == "overwritten":
		meta.BaseBranch = detectBase(ctx, cr, rc, stderr)
	}

	if state != "unchanged" {
		if err := s.Write(meta); err != nil {
			return err
		}
	}

	stubs, err := scaffold.CreateStubs(fsys, rc.RepoRoot)
	if err != nil {
		return errors.Wrap(errors.EMetadataWriteFailed, "failed to create stub files", err)
	}

	result := InitResult{
		Branch:       branch,
		MetaState:    state,
		BaseBranch:   meta.BaseBranch,
		Managed:      meta.ManagedFiles,
		StubsCreated: stubs.Created,
	}

	if !opts.NoCommit {
		committed, err := commitScaffold(ctx, cr, rc.RepoRoot)
		if err != nil {
			return err
		}
		result.Committed = committed
	}

	writeInitOutput(stdout, result)
	return nil
}

// initRecord decides what to write: a new record, the existing one with
// appended patterns, or a replacement when forced.
func initRecord(s *store.Store, opts InitOpts) (*store.BranchMetadata, string, error) {
	existing, err := s.Read()
	switch {
	case err == nil:
	case errors.GetCode(err) == errors.ENoMetadata:
		return store.NewBranchMetadata("", opts.Manage, s.Now()), "created", nil
	case errors.GetCode(err) == errors.EMetadataCorrupt && opts.Force:
		return store.NewBranchMetadata("", opts.Manage, s.Now()), "overwritten", nil
	default:
		return nil, "", err
	}

	if opts.Force {
		return store.NewBranchMetadata("", opts.Manage, s.Now()), "overwritten", nil
	}
	if len(opts.Manage) == 0 && opts.Base == "" {
		return nil, "", errors.NewWithDetails(
			errors.EMetadataExists,
			store.MetaFile+" already exists; use --manage to add patterns or --force to replace it",
			map[string]string{"meta_path": s.MetaPath()},
		)
	}

	added := existing.AppendManaged(opts.Manage...)
	if len(added) == 0 && (opts.Base == "" || opts.Base == existing.BaseBranch) {
		return existing, "unchanged", nil
	}
	return existing, "updated", nil
}

// detectBase returns the configured or detected base when it resolves.
// Otherwise it warns and returns "", leaving resolution to emit.
func detectBase(ctx context.Context, cr exec.CommandRunner, rc *repo.RepoContext, stderr io.Writer) string {
	res, err := repo.ResolveBase(ctx, cr, rc, "", nil)
	if err != nil {
		fmt.Fprintf(stderr, "warning: base branch not recorded: %s\n", errMessage(err))
		return ""
	}
	return res.Branch
}

// commitScaffold commits the tool-owned files if anything changed.
func commitScaffold(ctx context.Context, cr exec.CommandRunner, repoRoot string) (bool, error) {
	files := store.ImplicitManagedFiles
	changed, err := git.HasChanges(ctx, cr, repoRoot, files...)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}
	if err := git.CommitPaths(ctx, cr, repoRoot, InitCommitMessage, files...); err != nil {
		return false, err
	}
	return true, nil
}

func errMessage(err error) string {
	if be, ok := errors.AsBackpackError(err); ok {
		return be.Msg
	}
	return err.Error()
}

// writeInitOutput writes the stable key: value output for init.
func writeInitOutput(w io.Writer, r InitResult) {
	fmt.Fprintf(w, "branch: %s\n", r.Branch)
	fmt.Fprintf(w, "meta: %s\n", r.MetaState)

	base := r.BaseBranch
	if base == "" {
		base = "none"
	}
	fmt.Fprintf(w, "base_branch: %s\n", base)

	managed := "none"
	if len(r.Managed) > 0 {
		managed = strings.Join(r.Managed, ", ")
	}
	fmt.Fprintf(w, "managed_files: %s\n", managed)

	stubs := "none"
	if len(r.StubsCreated) > 0 {
		stubs = strings.Join(r.StubsCreated, ", ")
	}
	fmt.Fprintf(w, "stubs_created: %s\n", stubs)
	fmt.Fprintf(w, "committed: %s\n", boolStr(r.Committed))
}
