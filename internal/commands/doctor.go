package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/git"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/repo"
	"github.com/NielsdaWheelz/backpack/internal/rewrite"
	"github.com/NielsdaWheelz/backpack/internal/scaffold"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// DoctorReport holds all the data for doctor output.
type DoctorReport struct {
	// Repo and state locations
	RepoRoot    string
	GitDir      string
	StateDir    string
	JournalPath string
	LockPath    string

	// Tooling
	GitVersion        string
	FilterRepoVersion string

	// Config resolution
	UserConfig       string
	RepoConfig       string
	ConfigBaseBranch string
	EmitSuffix       string
	Remote           string

	// Current branch
	Branch      string
	Metadata    string // "present", "missing" or "corrupt"
	Base        string
	BaseSource  string
	IgnoredBy   []string
	EmitBranch  string
	ManagedSize int
}

// Doctor implements the `backpack doctor` command.
// Validates repo, tools and config, and reports how the current branch would
// be emitted. Missing tools and invalid config are errors; anything specific
// to the current branch is only reported.
func Doctor(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string, stdout, stderr io.Writer) error {
	gitVersion, err := git.GitVersion(ctx, cr)
	if err != nil {
		return err
	}

	rc, err := repo.Resolve(ctx, cr, fsys, env, cwd)
	if err != nil {
		return err
	}

	toolVersion, err := rewrite.CheckInstalled(ctx, cr)
	if err != nil {
		return err
	}

	report := DoctorReport{
		RepoRoot:          rc.RepoRoot,
		GitDir:            rc.GitDir,
		StateDir:          rc.State.Dir(),
		JournalPath:       rc.State.JournalPath(),
		LockPath:          rc.State.LockPath(),
		GitVersion:        gitVersion,
		FilterRepoVersion: toolVersion,
		UserConfig:        existingOrNone(fsys, rc.UserConfigPath),
		RepoConfig:        existingOrNone(fsys, paths.RepoConfigPath(rc.RepoRoot)),
		ConfigBaseBranch:  rc.Config.BaseBranch,
		EmitSuffix:        rc.Config.EmitSuffix,
		Remote:            rc.Config.Remote,
	}

	report.IgnoredBy, err = scaffold.IgnoringEntries(fsys, filepath.Join(rc.RepoRoot, ".gitignore"))
	if err != nil {
		return errors.Wrap(errors.EInternal, "failed to read .gitignore", err)
	}

	branch, err := repo.CheckEmitSafe(ctx, cr, rc.RepoRoot)
	if err != nil {
		return err
	}
	report.Branch = branch

	meta, err := rc.Store(fsys).Read()
	switch errors.GetCode(err) {
	case "":
		report.Metadata = "present"
		report.EmitBranch = emitBranchFor(branch, meta, rc.Config.EmitSuffix)
		report.ManagedSize = len(meta.EffectiveManagedFiles())
	case errors.ENoMetadata:
		report.Metadata = "missing"
		meta = nil
	default:
		report.Metadata = "corrupt"
		meta = nil
	}

	if res, err := repo.ResolveBase(ctx, cr, rc, "", meta); err == nil {
		report.Base = res.Ref
		report.BaseSource = res.Source
	} else {
		report.Base = "unresolved (" + string(errors.GetCode(err)) + ")"
	}

	writeDoctorOutput(stdout, report)
	if len(report.IgnoredBy) > 0 {
		fmt.Fprintf(stderr, "warning: %s is ignored by .gitignore (%s); backpack init will refuse\n",
			store.MetaDir, strings.Join(report.IgnoredBy, ", "))
	}
	return nil
}

func existingOrNone(fsys fs.FS, path string) string {
	if path == "" || !fs.Exists(fsys, path) {
		return "none"
	}
	return path
}

// writeDoctorOutput writes the stable key: value output.
func writeDoctorOutput(w io.Writer, r DoctorReport) {
	fmt.Fprintf(w, "repo_root: %s\n", r.RepoRoot)
	fmt.Fprintf(w, "git_common_dir: %s\n", r.GitDir)
	fmt.Fprintf(w, "state_dir: %s\n", r.StateDir)
	fmt.Fprintf(w, "journal: %s\n", r.JournalPath)
	fmt.Fprintf(w, "lock: %s\n", r.LockPath)

	fmt.Fprintf(w, "git_version: %s\n", r.GitVersion)
	fmt.Fprintf(w, "filter_repo_version: %s\n", r.FilterRepoVersion)

	fmt.Fprintf(w, "user_config: %s\n", r.UserConfig)
	fmt.Fprintf(w, "repo_config: %s\n", r.RepoConfig)
	fmt.Fprintf(w, "config_base_branch: %s\n", orNone(r.ConfigBaseBranch))
	fmt.Fprintf(w, "emit_suffix: %s\n", r.EmitSuffix)
	fmt.Fprintf(w, "remote: %s\n", orNone(r.Remote))

	fmt.Fprintf(w, "branch: %s\n", r.Branch)
	fmt.Fprintf(w, "metadata: %s\n", r.Metadata)
	if r.Metadata == "present" {
		fmt.Fprintf(w, "emit_branch: %s\n", r.EmitBranch)
		fmt.Fprintf(w, "managed_files: %d\n", r.ManagedSize)
	}
	fmt.Fprintf(w, "base: %s\n", r.Base)
	if r.BaseSource != "" {
		fmt.Fprintf(w, "base_source: %s\n", r.BaseSource)
	}
	fmt.Fprintf(w, "gitignore_ok: %s\n", boolStr(len(r.IgnoredBy) == 0))

	fmt.Fprintln(w, "status: ok")
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
