package rewrite

import (
	"fmt"
	"strings"
)

// DropCallback returns a filter-repo --commit-callback body that skips every
// commit carrying marker on its own line. Children of a skipped commit are
// re-parented onto its first parent, so the skipped commit's changes vanish.
//
// The predicate matches core.HasRemovableMarker.
func DropCallback(marker string) string {
	var b strings.Builder
	b.WriteString("for line in commit.message.splitlines():\n")
	b.WriteString("    if line.strip() == " + pyBytes(marker) + ":\n")
	b.WriteString("        commit.skip(commit.first_parent())\n")
	b.WriteString("        break\n")
	return b.String()
}

// pyBytes renders s as a Python bytes literal.
func pyBytes(s string) string {
	var b strings.Builder
	b.WriteString(`b"`)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' || c == '"':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&b, `\x%02x`, c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteString(`"`)
	return b.String()
}
