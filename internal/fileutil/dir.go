package fileutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// stateDirName is the directory simguard keeps its journals in, below the
// user cache directory.
const stateDirName = "simguard"

// EnsureDir creates path and its parents with mode 0700. An existing
// directory is left untouched.
func EnsureDir(path string) error {
	if path == "" {
		return fmt.Errorf("create directory: empty path")
	}
	if err := os.MkdirAll(path, 0o700); err != nil {
		return fmt.Errorf("create directory %s: %w", path, err)
	}
	return nil
}

// StateDir returns the default directory for simguard state. It prefers
// the user cache directory and falls back to the system temp directory when
// no home is available.
func StateDir() string {
	if base, err := os.UserCacheDir(); err == nil && base != "" {
		return filepath.Join(base, stateDirName)
	}
	return filepath.Join(os.TempDir(), stateDirName)
}
