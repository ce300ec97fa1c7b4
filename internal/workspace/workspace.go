// Package workspace locates the hardware tree root by its marker file.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

var (
	// ErrRootNotFound is returned when the search depth is exhausted
	ErrRootNotFound = errors.New("tree root not found")
	// ErrFilesystemRootReached is returned when the search hits the filesystem root
	ErrFilesystemRootReached = errors.New("filesystem root reached")
)

// FindRoot walks upward from start and returns the first directory holding
// marker as a regular file. At most maxDepth parents above start are
// checked; maxDepth <= 0 checks only start.
func FindRoot(start, marker string, maxDepth int) (string, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", err
	}

	for depth := 0; ; depth++ {
		info, err := os.Stat(filepath.Join(dir, marker))
		if err == nil && info.Mode().IsRegular() {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s above %s", ErrFilesystemRootReached, marker, start)
		}
		if depth >= maxDepth {
			return "", fmt.Errorf("%w: no %s within %d levels of %s", ErrRootNotFound, marker, maxDepth, start)
		}
		dir = parent
	}
}

// Resolve returns explicit when set, otherwise the marker search from the
// working directory
func Resolve(explicit, marker string, maxDepth int) (string, error) {
	if explicit != "" {
		return filepath.Abs(explicit)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return FindRoot(wd, marker, maxDepth)
}
