package config

import (
	"strings"
	"unicode"

	"github.com/NielsdaWheelz/backpack/internal/errors"
)

// Validate checks the merged configuration.
// Returns E_INVALID_CONFIG naming the offending key and the file that set it.
func Validate(cfg Config) error {
	if msg := validateSuffix(cfg.EmitSuffix); msg != "" {
		return invalid(cfg, "emit_suffix", msg)
	}
	if containsWhitespace(cfg.BaseBranch) {
		return invalid(cfg, "base_branch", "must not contain whitespace")
	}
	if containsWhitespace(cfg.Remote) {
		return invalid(cfg, "remote", "must not contain whitespace")
	}
	return nil
}

func validateSuffix(s string) string {
	switch {
	case s == "":
		return "must be non-empty"
	case containsWhitespace(s):
		return "must not contain whitespace"
	case strings.Contains(s, ".."):
		return "must not contain '..'"
	case strings.HasSuffix(s, "/") || strings.HasSuffix(s, ".lock"):
		return "must produce a valid branch name"
	}
	return ""
}

func invalid(cfg Config, key, msg string) error {
	source := cfg.Sources[key]
	return errors.NewWithDetails(errors.EInvalidConfig, key+" "+msg, map[string]string{
		"key":    key,
		"source": source,
	})
}

// containsWhitespace returns true if s contains any whitespace character.
func containsWhitespace(s string) bool {
	for _, r := range s {
		if unicode.IsSpace(r) {
			return true
		}
	}
	return false
}
