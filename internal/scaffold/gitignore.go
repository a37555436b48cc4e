package scaffold

import (
	"os"
	"strings"

	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/store"
)

// IgnoringEntries returns the lines of the .gitignore at gitignorePath that
// would hide the backpack directory from git. Backpack files must be
// committed, so any match blocks init. A missing file has no entries.
//
// Only the plain forms are recognized (".backpack", ".backpack/", with or
// without a leading "/", and "*" wildcards covering the whole directory);
// negations are honored when they follow a match.
func IgnoringEntries(fsys fs.FS, gitignorePath string) ([]string, error) {
	content, err := fsys.ReadFile(gitignorePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []string
	for _, line := range strings.Split(string(content), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if neg, ok := strings.CutPrefix(trimmed, "!"); ok {
			if ignoresMetaDir(neg) {
				entries = nil
			}
			continue
		}
		if ignoresMetaDir(trimmed) {
			entries = append(entries, trimmed)
		}
	}
	return entries, nil
}

func ignoresMetaDir(pattern string) bool {
	p := strings.TrimPrefix(pattern, "/")
	p = strings.TrimSuffix(p, "/")
	switch p {
	case store.MetaDir, ".*", "*":
		return true
	}
	return false
}
