package core

import (
	"regexp"
	"strings"
)

// PatternKind classifies a managed path pattern.
type PatternKind int

const (
	// PatternLiteral matches exactly one path.
	PatternLiteral PatternKind = iota
	// PatternDir matches every path under a directory ("dir/", "dir/*", "dir/**").
	PatternDir
	// PatternGlob is a shell glob where '*' also crosses '/'.
	PatternGlob
)

// NormalizePattern trims whitespace, strips leading "./" and "/", and folds the
// directory forms "dir/*" and "dir/**" into "dir/".
// Returns "" for patterns that name nothing.
func NormalizePattern(p string) string {
	p = strings.TrimSpace(p)
	for strings.HasPrefix(p, "./") {
		p = strings.TrimPrefix(p, "./")
	}
	p = strings.TrimLeft(p, "/")

	switch {
	case strings.HasSuffix(p, "/**"):
		p = strings.TrimSuffix(p, "**")
	case strings.HasSuffix(p, "/*"):
		p = strings.TrimSuffix(p, "*")
	}

	if p == "" || p == "." || p == "/" {
		return ""
	}
	return p
}

// ClassifyPattern reports the kind of a normalized pattern.
func ClassifyPattern(p string) PatternKind {
	if strings.HasSuffix(p, "/") && !strings.ContainsAny(strings.TrimSuffix(p, "/"), "*?[") {
		return PatternDir
	}
	if strings.ContainsAny(p, "*?[") {
		return PatternGlob
	}
	return PatternLiteral
}

// DedupPatterns normalizes patterns, drops empties and duplicates, and keeps
// first-seen order.
func DedupPatterns(patterns []string) []string {
	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, p := range patterns {
		n := NormalizePattern(p)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// MatchPattern reports whether the repo-relative path is covered by pattern.
// The pattern is normalized first.
func MatchPattern(pattern, path string) bool {
	pattern = NormalizePattern(pattern)
	if pattern == "" {
		return false
	}
	switch ClassifyPattern(pattern) {
	case PatternDir:
		return strings.HasPrefix(path, pattern)
	case PatternGlob:
		re, err := globToRegexp(pattern)
		if err != nil {
			return false
		}
		return re.MatchString(path)
	default:
		// A literal naming a directory covers everything under it.
		return path == pattern || strings.HasPrefix(path, pattern+"/")
	}
}

// MatchAny reports whether path is covered by any of the patterns.
func MatchAny(patterns []string, path string) bool {
	for _, p := range patterns {
		if MatchPattern(p, path) {
			return true
		}
	}
	return false
}

// globToRegexp converts an fnmatch-style glob to an anchored regexp.
// '*' matches any run of characters including '/', the way the rewrite tool's
// --path-glob does.
func globToRegexp(glob string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch c {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '[':
			end := strings.IndexByte(glob[i+1:], ']')
			if end < 0 {
				b.WriteString(`\[`)
				continue
			}
			class := glob[i+1 : i+1+end]
			if strings.HasPrefix(class, "!") {
				class = "^" + class[1:]
			}
			b.WriteString("[" + class + "]")
			i += end + 1
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}
