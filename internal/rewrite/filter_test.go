package rewrite

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPathArgs(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		want     []string
	}{
		{
			name:     "literal",
			patterns: []string{"CLAUDE.md"},
			want:     []string{"--path", "CLAUDE.md"},
		},
		{
			name:     "directory forms fold to prefix",
			patterns: []string{".cursor/", ".cursor/**", "docs/*"},
			want:     []string{"--path", ".cursor/", "--path", "docs/"},
		},
		{
			name:     "globs",
			patterns: []string{"*.prompt", "notes/?.md"},
			want:     []string{"--path-glob", "*.prompt", "--path-glob", "notes/?.md"},
		},
		{
			name:     "normalized and deduplicated",
			patterns: []string{"./a.md", "/a.md", "", "  ", "a.md"},
			want:     []string{"--path", "a.md"},
		},
		{
			name:     "empty",
			patterns: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, PathArgs(tt.patterns)); diff != "" {
				t.Errorf("PathArgs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
