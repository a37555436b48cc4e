// Package paths resolves where backpack keeps user configuration and
// per-repository state.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is the user configuration file inside the config directory.
const ConfigFileName = "config.yaml"

// Env is the interface for environment variable lookups.
// Implementations must return "" for unset variables.
type Env interface {
	Get(key string) string
}

// OSEnv implements Env using os.Getenv.
type OSEnv struct{}

// Get returns the value of the environment variable key.
func (OSEnv) Get(key string) string { return os.Getenv(key) }

// IsDarwin returns true if the current OS is macOS.
// Exported for testing purposes.
func IsDarwin() bool {
	return runtime.GOOS == "darwin"
}

// ResolveConfigDir computes the user configuration directory.
//
// Resolution order:
//  1. BACKPACK_CONFIG_DIR env var (if set)
//  2. XDG_CONFIG_HOME/backpack (if set)
//  3. macOS: ~/Library/Preferences/backpack
//  4. ~/.config/backpack
//
// XDG_CONFIG_HOME wins over the macOS default so dotfile setups work on both.
// The homeDir parameter must be an absolute path to the user's home directory.
// This function does not touch the filesystem (no mkdir).
// ~ inside env vars is treated as literal (not expanded).
func ResolveConfigDir(env Env, homeDir string) string {
	return ResolveConfigDirWithOS(env, homeDir, IsDarwin())
}

// ResolveConfigDirWithOS is like ResolveConfigDir but accepts an explicit OS flag for testing.
func ResolveConfigDirWithOS(env Env, homeDir string, isDarwin bool) string {
	// 1. BACKPACK_CONFIG_DIR override
	if v := env.Get("BACKPACK_CONFIG_DIR"); v != "" {
		return v
	}
	// 2. XDG_CONFIG_HOME
	if v := env.Get("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "backpack")
	}
	// 3. macOS default
	if isDarwin {
		return filepath.Join(homeDir, "Library", "Preferences", "backpack")
	}
	// 4. Default fallback
	return filepath.Join(homeDir, ".config", "backpack")
}

// UserConfigPath returns the path of the user config file, or "" when the
// home directory cannot be determined and no override is set.
func UserConfigPath(env Env) string {
	if v := env.Get("BACKPACK_CONFIG_DIR"); v != "" {
		return filepath.Join(v, ConfigFileName)
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		if v := env.Get("XDG_CONFIG_HOME"); v != "" {
			return filepath.Join(v, "backpack", ConfigFileName)
		}
		return ""
	}
	return filepath.Join(ResolveConfigDir(env, home), ConfigFileName)
}
