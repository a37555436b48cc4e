package rewrite

import (
	"context"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/exec"
	"github.com/NielsdaWheelz/backpack/internal/fs"
)

// ToolName is the history rewrite tool, run as a git subcommand.
const ToolName = "git filter-repo"

// installHint is shown when the rewrite tool is missing.
const installHint = "install git-filter-repo (pip install git-filter-repo, or brew install git-filter-repo) and make sure `git filter-repo --version` works"

// Request describes one rewrite of a freshly created branch.
type Request struct {
	RepoRoot  string
	Branch    string   // rewritten in place
	MergeBase string   // exclusive lower bound of the range
	Patterns  []string // managed paths to strip
	// DropMarker, when set, drops whole commits whose message carries it.
	DropMarker string
}

// Rewriter runs the rewrite tool.
type Rewriter struct {
	CR exec.CommandRunner

	// Stdout and Stderr, when set, receive the tool's live output.
	Stdout io.Writer
	Stderr io.Writer
}

// New creates a Rewriter.
func New(cr exec.CommandRunner) *Rewriter {
	return &Rewriter{CR: cr}
}

// Args returns the git arguments for req, starting with "filter-repo".
func Args(req Request) []string {
	args := []string{"filter-repo"}
	args = append(args, PathArgs(req.Patterns)...)
	args = append(args, "--invert-paths", "--force", "--refs", req.MergeBase+".."+req.Branch)
	if req.DropMarker != "" {
		args = append(args, "--commit-callback", DropCallback(req.DropMarker))
	}
	return args
}

// Env is the environment overlay for the tool. The user's global git config
// is replaced by an empty one so aliases, hooks, and rewrite settings there
// cannot change the result.
func Env() map[string]string {
	return map[string]string{"GIT_CONFIG_GLOBAL": os.DevNull}
}

// Run rewrites req.Branch in place over req.MergeBase..req.Branch.
// The caller must have cleared prior tool state (see ClearState).
// Returns E_REWRITE_FAILED carrying the tool's stderr verbatim on failure.
func (r *Rewriter) Run(ctx context.Context, req Request) error {
	args := Args(req)
	logrus.WithFields(logrus.Fields{
		"branch":     req.Branch,
		"merge_base": req.MergeBase,
		"patterns":   strings.Join(req.Patterns, ","),
	}).Debug("rewriting branch")

	result, err := r.CR.Run(ctx, "git", args, exec.RunOpts{
		Dir:    req.RepoRoot,
		Env:    Env(),
		Stdout: r.Stdout,
		Stderr: r.Stderr,
	})
	if err != nil {
		return errors.Wrap(errors.ERewriteFailed, "failed to run "+ToolName, err)
	}
	if result.ExitCode != 0 {
		stderr := strings.TrimSpace(result.Stderr)
		msg := ToolName + " failed"
		if stderr != "" {
			msg += ":\n" + stderr
		}
		return errors.NewWithDetails(errors.ERewriteFailed, msg, map[string]string{
			"stderr":    stderr,
			"exit_code": strconv.Itoa(result.ExitCode),
			"branch":    req.Branch,
		})
	}
	return nil
}

// CheckInstalled verifies the rewrite tool is available and returns its
// version string. Returns E_REWRITE_TOOL_NOT_INSTALLED with an install hint
// otherwise.
func CheckInstalled(ctx context.Context, cr exec.CommandRunner) (string, error) {
	result, err := cr.Run(ctx, "git", []string{"filter-repo", "--version"}, exec.RunOpts{})
	if err != nil || result.ExitCode != 0 {
		return "", errors.NewWithDetails(errors.ERewriteToolNotInstalled, ToolName+" is not installed", map[string]string{
			"hint": installHint,
		})
	}
	return strings.TrimSpace(result.Stdout), nil
}

// ClearState removes the tool's control directory (<gitdir>/filter-repo) so
// the next run does not refuse or reuse stale state. Missing dir is fine.
func ClearState(fsys fs.FS, dir string) error {
	if err := fsys.RemoveAll(dir); err != nil {
		return errors.WrapWithDetails(errors.EInternal, "failed to clear rewrite state", err, map[string]string{
			"dir": dir,
		})
	}
	return nil
}
