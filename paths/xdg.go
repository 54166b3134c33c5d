// Package paths provides XDG-compliant path resolution for par.
//
// Resolution order:
// 1. PAR_HOME (portable root) → $PAR_HOME/{config,data,state,cache}
// 2. XDG env vars → $XDG_*_HOME/par
// 3. Platform defaults → ~/.config/par, ~/.local/share/par, etc.
package paths

import (
	"os"
	"path/filepath"
)

// getConfigHome returns the base config home directory.
func getConfigHome() string {
	if parHome := os.Getenv("PAR_HOME"); parHome != "" {
		return filepath.Join(parHome, "config")
	}
	if xdgConfigHome := os.Getenv("XDG_CONFIG_HOME"); xdgConfigHome != "" {
		return xdgConfigHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".config")
	}
	return ""
}

// getDataHome returns the base data home directory.
func getDataHome() string {
	if parHome := os.Getenv("PAR_HOME"); parHome != "" {
		return filepath.Join(parHome, "data")
	}
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		return xdgDataHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "share")
	}
	return ""
}

// getStateHome returns the base state home directory.
func getStateHome() string {
	if parHome := os.Getenv("PAR_HOME"); parHome != "" {
		return filepath.Join(parHome, "state")
	}
	if xdgStateHome := os.Getenv("XDG_STATE_HOME"); xdgStateHome != "" {
		return xdgStateHome
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".local", "state")
	}
	return ""
}

// ConfigDir returns the par configuration directory.
func ConfigDir() string {
	base := getConfigHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "par")
}

// DataDir returns the par data directory.
// Worktrees, workspaces, and the record stores live here.
func DataDir() string {
	base := getDataHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "par")
}

// StateDir returns the par state directory.
// Used for logs and other runtime artifacts.
func StateDir() string {
	base := getStateHome()
	if base == "" {
		return ""
	}
	return filepath.Join(base, "par")
}

// WorktreesDir returns the base directory for single-repo worktrees.
func WorktreesDir() string {
	data := DataDir()
	if data == "" {
		return ""
	}
	return filepath.Join(data, "worktrees")
}

// WorkspacesDir returns the base directory for multi-repo workspace worktrees.
func WorkspacesDir() string {
	data := DataDir()
	if data == "" {
		return ""
	}
	return filepath.Join(data, "workspaces")
}

// EnsureDirs creates all par directories if they don't exist.
func EnsureDirs() error {
	dirs := []string{
		ConfigDir(),
		DataDir(),
		StateDir(),
		WorktreesDir(),
		WorkspacesDir(),
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}
