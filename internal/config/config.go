// Package config loads backpack's YAML configuration files.
//
// Two files are read, later overriding earlier:
//
//	<user config dir>/config.yaml
//	<repo root>/.backpack.yaml
//
// Both are optional.
package config

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/NielsdaWheelz/backpack/internal/core"
	"github.com/NielsdaWheelz/backpack/internal/errors"
	"github.com/NielsdaWheelz/backpack/internal/fs"
	"github.com/NielsdaWheelz/backpack/internal/paths"
)

// DefaultRemote is the remote consulted when auto-detecting the base branch.
const DefaultRemote = "origin"

// Source values recorded in Config.Sources.
const (
	SourceDefault = "default"
)

// File is the on-disk shape of a config file. Pointers distinguish unset
// keys from keys set to "".
type File struct {
	BaseBranch *string `yaml:"base_branch"`
	EmitSuffix *string `yaml:"emit_suffix"`
	Remote     *string `yaml:"remote"`
}

// Config is the merged, validated configuration.
type Config struct {
	BaseBranch string
	EmitSuffix string
	Remote     string

	// Sources maps each key to the file that set it, or "default".
	Sources map[string]string
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		EmitSuffix: core.DefaultEmitSuffix,
		Remote:     DefaultRemote,
		Sources: map[string]string{
			"base_branch": SourceDefault,
			"emit_suffix": SourceDefault,
			"remote":      SourceDefault,
		},
	}
}

// LoadFile reads and parses one config file.
// Returns (nil, nil) if the file does not exist.
// Returns E_INVALID_CONFIG if the file is unreadable, not YAML, has unknown
// keys, or has values of the wrong type.
func LoadFile(fsys fs.FS, path string) (*File, error) {
	data, err := fsys.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.WrapWithDetails(errors.EInvalidConfig, "failed to read config", err, map[string]string{
			"path": path,
		})
	}

	var f File
	if strings.TrimSpace(string(data)) == "" {
		return &f, nil
	}
	if err := yaml.UnmarshalWithOptions(data, &f, yaml.DisallowUnknownField()); err != nil {
		return nil, errors.NewWithDetails(errors.EInvalidConfig, "invalid config "+path+": "+yaml.FormatError(err, false, true), map[string]string{
			"path": path,
		})
	}
	return &f, nil
}

// Load merges the user config at userPath (may be "") with the repo config
// under repoRoot (may be "") over the defaults, then validates the result.
func Load(fsys fs.FS, userPath, repoRoot string) (Config, error) {
	cfg := Defaults()

	var layers []string
	if userPath != "" {
		layers = append(layers, userPath)
	}
	if repoRoot != "" {
		layers = append(layers, paths.RepoConfigPath(repoRoot))
	}

	for _, path := range layers {
		f, err := LoadFile(fsys, path)
		if err != nil {
			return Config{}, err
		}
		if f == nil {
			continue
		}
		cfg.apply(f, path)
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) apply(f *File, source string) {
	if f.BaseBranch != nil {
		c.BaseBranch = strings.TrimSpace(*f.BaseBranch)
		c.Sources["base_branch"] = source
	}
	if f.EmitSuffix != nil {
		c.EmitSuffix = *f.EmitSuffix
		c.Sources["emit_suffix"] = source
	}
	if f.Remote != nil {
		c.Remote = strings.TrimSpace(*f.Remote)
		c.Sources["remote"] = source
	}
}
