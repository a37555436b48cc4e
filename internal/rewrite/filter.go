// Package rewrite strips managed paths and marker commits from a commit
// range by driving git filter-repo.
package rewrite

import "github.com/NielsdaWheelz/backpack/internal/core"

// PathArgs translates managed patterns into filter-repo path selectors.
//
//	CLAUDE.md            --path CLAUDE.md
//	.cursor/, .cursor/** --path .cursor/
//	*.prompt             --path-glob *.prompt
//
// Patterns are normalized and deduplicated first; empty patterns are ignored.
func PathArgs(patterns []string) []string {
	var args []string
	for _, p := range core.DedupPatterns(patterns) {
		if core.ClassifyPattern(p) == core.PatternGlob {
			args = append(args, "--path-glob", p)
			continue
		}
		args = append(args, "--path", p)
	}
	return args
}
