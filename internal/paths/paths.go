// Package paths resolves the configuration and data directory locations
// used by the docwatch CLI, following the same XDG-style precedence chain
// the library this CLI wraps keeps out of its own Options.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	DefaultConfigDirName = ".docwatch"
	DefaultDataDirName   = ".docwatch-db"
)

const (
	EnvConfigDir = "DOCWATCH_CONFIG_DIR"
	EnvDataDir   = "DOCWATCH_DATA_DIR"
)

var platformDir = struct {
	homeDir       func() (string, error)
	userConfigDir func() (string, error)
}{
	homeDir:       os.UserHomeDir,
	userConfigDir: os.UserConfigDir,
}

// DefaultConfigDir returns the platform-specific default configuration
// directory: $XDG_CONFIG_HOME/docwatch (fallback ~/.config/docwatch) on
// Linux, the OS user-config directory elsewhere.
func DefaultConfigDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "docwatch"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config", "docwatch"), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "docwatch"), nil
	}
}

// DefaultDataDir returns the platform-specific default data directory.
func DefaultDataDir() (string, error) {
	switch runtime.GOOS {
	case "linux":
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			return filepath.Join(xdg, "docwatch"), nil
		}
		home, err := platformDir.homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "share", "docwatch"), nil
	default:
		dir, err := platformDir.userConfigDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, "docwatch"), nil
	}
}

// ResolveConfigDir follows: flag > DOCWATCH_CONFIG_DIR env > DefaultConfigDir().
func ResolveConfigDir(flag string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if env := os.Getenv(EnvConfigDir); env != "" {
		return filepath.Abs(env)
	}
	return DefaultConfigDir()
}

// ResolveDataDir follows: flag > configYAMLValue > DOCWATCH_DATA_DIR env >
// CWD-relative default.
func ResolveDataDir(flag, configYAMLValue string) (string, error) {
	if flag != "" {
		return filepath.Abs(flag)
	}
	if configYAMLValue != "" {
		return filepath.Abs(configYAMLValue)
	}
	if env := os.Getenv(EnvDataDir); env != "" {
		return filepath.Abs(env)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, DefaultDataDirName), nil
}
