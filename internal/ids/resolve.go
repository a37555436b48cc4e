// Package ids resolves branch arguments for backpack commands.
// It implements exact-match and unique-prefix resolution.
package ids

import (
	"fmt"
	"sort"
	"strings"
)

// BranchRef represents a source branch that carries metadata.
// Used for resolution input and output.
type BranchRef struct {
	// Name is the local branch name.
	Name string

	// Broken indicates the committed meta.json is unreadable or invalid.
	// Resolver does not refuse broken branches; command layer decides.
	Broken bool
}

// ErrNotFound indicates no matching branch (exact or prefix).
type ErrNotFound struct {
	Input string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("no backpack branch matches %q", e.Input)
}

// ErrAmbiguous indicates a prefix matched multiple branches.
type ErrAmbiguous struct {
	Input      string
	Candidates []BranchRef // sorted by Name
}

func (e *ErrAmbiguous) Error() string {
	names := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		names[i] = c.Name
	}
	return fmt.Sprintf("ambiguous branch %q matches: %s", e.Input, strings.Join(names, ", "))
}

// ResolveBranch resolves an input branch name or prefix to a single branch.
//
// Resolution rules:
//  1. Exact match wins.
//  2. Otherwise, treat input as a prefix:
//     - 0 matches: not found
//     - 1 match: resolve
//     - >1 matches: ambiguous (return candidates)
//  3. Input normalization: trim whitespace and a leading "refs/heads/";
//     empty after trim = not found.
func ResolveBranch(input string, refs []BranchRef) (BranchRef, error) {
	input = strings.TrimPrefix(strings.TrimSpace(input), "refs/heads/")
	if input == "" {
		return BranchRef{}, &ErrNotFound{Input: ""}
	}

	for _, ref := range refs {
		if ref.Name == input {
			return ref, nil
		}
	}

	var prefixMatches []BranchRef
	for _, ref := range refs {
		if strings.HasPrefix(ref.Name, input) {
			prefixMatches = append(prefixMatches, ref)
		}
	}

	switch len(prefixMatches) {
	case 0:
		return BranchRef{}, &ErrNotFound{Input: input}
	case 1:
		return prefixMatches[0], nil
	default:
		sort.Slice(prefixMatches, func(i, j int) bool {
			return prefixMatches[i].Name < prefixMatches[j].Name
		})
		return BranchRef{}, &ErrAmbiguous{Input: input, Candidates: prefixMatches}
	}
}
