package core

import "strings"

// DefaultEmitSuffix is appended to a source branch name to form its emit branch.
const DefaultEmitSuffix = "-emit"

// EmitBranchName returns "<source><suffix>".
// An empty suffix falls back to DefaultEmitSuffix so a source branch can never
// be its own emit branch.
func EmitBranchName(source, suffix string) string {
	if suffix == "" {
		suffix = DefaultEmitSuffix
	}
	return source + suffix
}

// SourceBranchName reverses EmitBranchName.
// Returns ("", false) if branch does not end in suffix or nothing precedes it.
func SourceBranchName(branch, suffix string) (string, bool) {
	if suffix == "" {
		suffix = DefaultEmitSuffix
	}
	if !strings.HasSuffix(branch, suffix) {
		return "", false
	}
	source := strings.TrimSuffix(branch, suffix)
	if source == "" || strings.HasSuffix(source, "/") {
		return "", false
	}
	return source, true
}

// IsEmitBranchName reports whether branch follows the emit naming convention.
func IsEmitBranchName(branch, suffix string) bool {
	_, ok := SourceBranchName(branch, suffix)
	return ok
}
