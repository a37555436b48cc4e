// Package repo resolves the repository context shared by backpack commands
// and applies the safety gates that guard emit.
package repo

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/NielsdaWheelz/backpack/internal/config"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/git"
	"github.com/NielsdaWheelz/backpack/internal/paths"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// RepoContext holds the resolved repository context.
type RepoContext struct {
	// RepoRoot is the absolute path to the working tree root.
	RepoRoot string

	// GitDir is the absolute git common dir (shared by linked worktrees).
	GitDir string

	// WorktreeGitDir is this working tree's own git dir; equal to GitDir
	// outside linked worktrees.
	WorktreeGitDir string

	// State locates the lock, journal and rewrite control dir.
	State paths.RepoState

	// Config is the merged user + repo configuration.
	Config config.Config

	// UserConfigPath is the user config file consulted ("" if none).
	UserConfigPath string
}

// Resolve finds the repository containing cwd and loads its configuration.
//
// Error codes:
//   - E_GIT_NOT_INSTALLED: git cannot be executed
//   - E_NO_REPO: cwd is not inside a git working tree
//   - E_INVALID_CONFIG: a config file is malformed
func Resolve(ctx context.Context, cr exec.CommandRunner, fsys fs.FS, env paths.Env, cwd string) (*RepoContext, error) {
	root, err := git.GetRepoRoot(ctx, cr, cwd)
	if err != nil {
		return nil, err
	}

	gitDir, err := git.GitCommonDir(ctx, cr, root.Path)
	if err != nil {
		return nil, err
	}

	worktreeGitDir, err := git.GitDir(ctx, cr, root.Path)
	if err != nil {
		return nil, err
	}

	userPath := paths.UserConfigPath(env)
	cfg, err := config.Load(fsys, userPath, root.Path)
	if err != nil {
		return nil, err
	}

	return &RepoContext{
		RepoRoot:       root.Path,
		GitDir:         gitDir,
		WorktreeGitDir: worktreeGitDir,
		State:          paths.NewRepoState(gitDir),
		Config:         cfg,
		UserConfigPath: userPath,
	}, nil
}

// Store returns the metadata store for the working tree.
func (rc *RepoContext) Store(fsys fs.FS) *store.Store {
	return store.NewStore(fsys, rc.RepoRoot, nil)
}

// CheckEmitSafe applies the gates every history-touching command needs and
// returns the checked out branch.
//
// Error codes:
//   - E_EMPTY_REPO: repo has no commits
//   - E_DETACHED_HEAD: HEAD is not on a branch
func CheckEmitSafe(ctx context.Context, cr exec.CommandRunner, repoRoot string) (string, error) {
	hasCommits, err := git.HasCommits(ctx, cr, repoRoot)
	if err != nil {
		return "", err
	}
	if !hasCommits {
		return "", errors.New(errors.EEmptyRepo, "repository has no commits; create an initial commit first")
	}

	return git.CurrentBranch(ctx, cr, repoRoot)
}

// RequireClean returns E_DIRTY_TREE if tracked files have uncommitted changes.
// action names what is being refused, e.g. "switch to feature".
func RequireClean(ctx context.Context, cr exec.CommandRunner, repoRoot, action string) error {
	clean, err := git.IsClean(ctx, cr, repoRoot)
	if err != nil {
		return err
	}
	if !clean {
		return errors.NewWithDetails(
			errors.EDirtyTree,
			"working tree has uncommitted changes; commit or stash them before you "+action,
			map[string]string{"hint": "git stash"},
		)
	}
	return nil
}

// Base sources recorded in BaseResolution.Source.
const (
	BaseFromFlag       = "flag"
	BaseFromMetadata   = "metadata"
	BaseFromRepoConfig = "repo config"
	BaseFromUserConfig = "user config"
	BaseFromDetected   = "detected"
)

// BaseResolution is the outcome of ResolveBase.
type BaseResolution struct {
	// Branch is the name as configured, e.g. "main".
	Branch string

	// Ref is the revision that resolved, e.g. "main" or "origin/main".
	Ref string

	// Source says which input decided (BaseFrom*).
	Source string
}

type baseCandidate struct {
	name, source string
}

// ResolveBase picks the base branch for an emit.
//
// Order: explicit → meta.BaseBranch → repo config → user config →
// auto-detection on the configured remote. A configured name that has no
// local branch falls back to <remote>/<name>.
//
// Error codes:
//   - E_BASE_BRANCH_NOT_FOUND: the chosen name resolves to no commit
//   - E_BASE_BRANCH_UNRESOLVED: nothing is configured and detection found nothing
func ResolveBase(ctx context.Context, cr exec.CommandRunner, rc *RepoContext, explicit string, meta *store.BranchMetadata) (BaseResolution, error) {
	candidates := []baseCandidate{{explicit, BaseFromFlag}}
	if meta != nil {
		candidates = append(candidates, baseCandidate{meta.BaseBranch, BaseFromMetadata})
	}
	candidates = append(candidates, baseCandidate{rc.Config.BaseBranch, rc.configBaseSource()})

	for _, c := range candidates {
		name := strings.TrimSpace(c.name)
		if name == "" {
			continue
		}
		ref, err := resolveRef(ctx, cr, rc, name)
		if err != nil {
			return BaseResolution{}, err
		}
		if ref == "" {
			return BaseResolution{}, errors.NewWithDetails(
				errors.EBaseBranchNotFound,
				"base branch '"+name+"' not found (from "+c.source+")",
				map[string]string{"branch": name, "source": c.source},
			)
		}
		logrus.WithFields(logrus.Fields{"base": ref, "source": c.source}).Debug("resolved base branch")
		return BaseResolution{Branch: name, Ref: ref, Source: c.source}, nil
	}

	detected, err := git.RemoteDefaultBranch(ctx, cr, rc.RepoRoot, rc.Config.Remote)
	if err != nil {
		return BaseResolution{}, err
	}
	if detected == "" {
		return BaseResolution{}, errors.NewWithDetails(
			errors.EBaseBranchUnresolved,
			"could not determine the base branch",
			map[string]string{"hint": "pass --base, or set base_branch in " + paths.RepoConfigFileName},
		)
	}
	logrus.WithFields(logrus.Fields{"base": detected, "source": BaseFromDetected}).Debug("resolved base branch")
	return BaseResolution{Branch: detected, Ref: detected, Source: BaseFromDetected}, nil
}

// resolveRef returns the revision name resolves to, trying <remote>/<name>
// when there is no such branch. Returns "" if neither resolves.
func resolveRef(ctx context.Context, cr exec.CommandRunner, rc *RepoContext, name string) (string, error) {
	ok, err := git.RefExists(ctx, cr, rc.RepoRoot, name)
	if err != nil || ok {
		return name, err
	}
	if rc.Config.Remote == "" || strings.HasPrefix(name, rc.Config.Remote+"/") {
		return "", nil
	}
	remoteRef := rc.Config.Remote + "/" + name
	ok, err = git.RefExists(ctx, cr, rc.RepoRoot, "refs/remotes/"+remoteRef)
	if err != nil {
		return "", err
	}
	if ok {
		return remoteRef, nil
	}
	return "", nil
}

func (rc *RepoContext) configBaseSource() string {
	if rc.Config.Sources["base_branch"] == paths.RepoConfigPath(rc.RepoRoot) {
		return BaseFromRepoConfig
	}
	return BaseFromUserConfig
}
