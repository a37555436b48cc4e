package core

import (
	"regexp"
	"strings"
)

// RemovableCommitMarker marks a whole commit for deletion on emit when it
// appears on its own line anywhere in the commit message.
const RemovableCommitMarker = "[backpack:drop]"

// HasRemovableMarker reports whether msg contains the marker on its own line.
// Surrounding whitespace on the line is ignored; the marker embedded in other
// text does not count.
func HasRemovableMarker(msg string) bool {
	return HasMarkerLine(msg, RemovableCommitMarker)
}

// lineBreak splits lines on \n, \r\n and a lone \r, like Python's
// bytes.splitlines in the rewrite callback.
var lineBreak = regexp.MustCompile(`\r?\n|\r`)

// asciiSpace is the set bytes.strip removes; Unicode spaces are kept.
const asciiSpace = " \t\n\v\f\r"

// HasMarkerLine reports whether any line of msg, trimmed of ASCII
// whitespace, equals marker.
func HasMarkerLine(msg, marker string) bool {
	for _, line := range lineBreak.Split(msg, -1) {
		if strings.Trim(line, asciiSpace) == marker {
			return true
		}
	}
	return false
}

// Summary returns the first line of a commit message.
func Summary(msg string) string {
	msg = strings.TrimLeft(msg, "\n")
	if idx := strings.IndexByte(msg, '\n'); idx >= 0 {
		return strings.TrimRight(msg[:idx], "\r")
	}
	return msg
}
