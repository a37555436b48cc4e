package git

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
)

// OpenRepo opens the repository containing root for in-process object reads.
// Linked worktrees resolve to the shared object store.
func OpenRepo(root string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(root, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if stderrors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, errors.New(errors.ENoRepo, "not inside a git repository")
		}
		return nil, errors.Wrap(errors.EInternal, "failed to open repository", err)
	}
	return repo, nil
}

// ReadFileAtBranch returns the content of path as committed at the tip of
// the local branch, without touching the working tree.
//
// Returns (nil, false, nil) if the file does not exist at that commit.
// Returns E_BRANCH_NOT_FOUND if the branch does not exist.
func ReadFileAtBranch(repo *gogit.Repository, branch, path string) ([]byte, bool, error) {
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		if stderrors.Is(err, plumbing.ErrReferenceNotFound) {
			return nil, false, errors.NewWithDetails(errors.EBranchNotFound, "branch not found: "+branch, map[string]string{
				"branch": branch,
			})
		}
		return nil, false, errors.Wrap(errors.EInternal, "failed to resolve branch "+branch, err)
	}

	return readFileAt(repo, ref.Hash(), branch, path)
}

// ReadFileAtCommit returns the content of path as committed at rev, a full
// commit hash. Returns (nil, false, nil) if the file does not exist there.
func ReadFileAtCommit(repo *gogit.Repository, rev, path string) ([]byte, bool, error) {
	return readFileAt(repo, plumbing.NewHash(rev), rev, path)
}

func readFileAt(repo *gogit.Repository, hash plumbing.Hash, name, path string) ([]byte, bool, error) {
	commit, err := repo.CommitObject(hash)
	if err != nil {
		return nil, false, errors.Wrap(errors.EInternal, "failed to read commit for "+name, err)
	}

	f, err := commit.File(path)
	if err != nil {
		if stderrors.Is(err, object.ErrFileNotFound) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(errors.EInternal, fmt.Sprintf("failed to read %s at %s", path, name), err)
	}

	contents, err := f.Contents()
	if err != nil {
		return nil, false, errors.Wrap(errors.EInternal, fmt.Sprintf("failed to read %s at %s", path, name), err)
	}
	return []byte(contents), true, nil
}

// CommitInfo is a commit in an emit range, with the paths it changes
// relative to its first parent.
type CommitInfo struct {
	Hash    string
	Message string
	Paths   []string // sorted, deduplicated
}

// RevList returns the hashes in base..tip, oldest first.
// Merge commits included; ancestry is respected the way git log --topo-order does.
func RevList(ctx context.Context, cr exec.CommandRunner, repoRoot, base, tip string) ([]string, error) {
	args := []string{"rev-list", "--reverse", "--topo-order", base + ".." + tip}
	result, err := cr.Run(ctx, "git", args, exec.RunOpts{Dir: repoRoot})
	if err != nil {
		return nil, errors.Wrap(errors.EInternal, "failed to run git rev-list", err)
	}
	if result.ExitCode != 0 {
		return nil, commandError(errors.EInternal, "failed to list commits", args, result)
	}

	var hashes []string
	for _, line := range strings.Split(result.Stdout, "\n") {
		if h := strings.TrimSpace(line); h != "" {
			hashes = append(hashes, h)
		}
	}
	return hashes, nil
}

// ReadCommit loads a commit and the paths it touches relative to its first parent.
// Root commits are diffed against the empty tree.
func ReadCommit(repo *gogit.Repository, hash string) (CommitInfo, error) {
	c, err := repo.CommitObject(plumbing.NewHash(hash))
	if err != nil {
		return CommitInfo{}, errors.Wrap(errors.EInternal, "failed to read commit "+hash, err)
	}

	tree, err := c.Tree()
	if err != nil {
		return CommitInfo{}, errors.Wrap(errors.EInternal, "failed to read tree of "+hash, err)
	}

	var parentTree *object.Tree
	if c.NumParents() > 0 {
		parent, err := c.Parent(0)
		if err != nil {
			return CommitInfo{}, errors.Wrap(errors.EInternal, "failed to read parent of "+hash, err)
		}
		if parentTree, err = parent.Tree(); err != nil {
			return CommitInfo{}, errors.Wrap(errors.EInternal, "failed to read parent tree of "+hash, err)
		}
	}

	changes, err := object.DiffTree(parentTree, tree)
	if err != nil {
		return CommitInfo{}, errors.Wrap(errors.EInternal, "failed to diff "+hash, err)
	}

	seen := make(map[string]struct{})
	for _, ch := range changes {
		for _, name := range []string{ch.From.Name, ch.To.Name} {
			if name != "" {
				seen[name] = struct{}{}
			}
		}
	}
	paths := make([]string, 0, len(seen))
	for p := range seen {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	return CommitInfo{Hash: c.Hash.String(), Message: c.Message, Paths: paths}, nil
}
