// Package paths resolves tsa workspace locations under the .tsa directory.
package paths

import (
	"os"
	"path/filepath"
)

// DataDirName is the per-workspace directory that marks a tsa project root.
const DataDirName = ".tsa"

// StackupFileName is the declaration file read by `tsa sync`.
const StackupFileName = "STACKUP.toml"

// GetDataDir returns the workspace data directory (<root>/.tsa).
func GetDataDir(root string) string {
	return filepath.Join(root, DataDirName)
}

// GetDBPath returns the SQLite store path (<root>/.tsa/tsa.db).
func GetDBPath(root string) string {
	return filepath.Join(root, DataDirName, "tsa.db")
}

// GetConfigPath returns the workspace config path (<root>/.tsa/config.json).
func GetConfigPath(root string) string {
	return filepath.Join(root, DataDirName, "config.json")
}

// GetLogsDir returns the workspace log directory (<root>/.tsa/logs).
func GetLogsDir(root string) string {
	return filepath.Join(root, DataDirName, "logs")
}

// GetLogPath returns the invocation log path (<root>/.tsa/logs/tsa.log).
func GetLogPath(root string) string {
	return filepath.Join(root, DataDirName, "logs", "tsa.log")
}

// GetStackupFilePath returns the declaration file path (<root>/STACKUP.toml).
func GetStackupFilePath(root string) string {
	return filepath.Join(root, StackupFileName)
}

// EnsureDataDir creates the workspace data directory if missing.
func EnsureDataDir(root string) (string, error) {
	dir := GetDataDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// EnsureLogsDir creates the workspace log directory if missing.
func EnsureLogsDir(root string) (string, error) {
	dir := GetLogsDir(root)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// GetGlobalDefaultsPath returns the user-level defaults file (~/.tsa/defaults.toml).
func GetGlobalDefaultsPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DataDirName, "defaults.toml"), nil
}

// FindWorkspaceRoot walks up from start looking for a .tsa directory.
// Returns os.ErrNotExist when no workspace is found.
func FindWorkspaceRoot(start string) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}
	for {
		info, err := os.Stat(filepath.Join(dir, DataDirName))
		if err == nil && info.IsDir() {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
