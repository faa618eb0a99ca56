package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveDestinationPath validates destPath and reports whether it names a
// directory (an existing one, or one ending in a path separator) that received
// files should be placed in, or a single file to overwrite.
func ResolveDestinationPath(destPath string) (string, bool, error) {
	if destPath == "" {
		return "", false, fmt.Errorf("destination path is required")
	}

	// Check if the path exists and is a directory
	if info, err := os.Stat(destPath); err == nil {
		return destPath, info.IsDir(), nil
	} else if !os.IsNotExist(err) {
		return "", false, fmt.Errorf("cannot access destination path: %w", err)
	}

	if os.IsPathSeparator(destPath[len(destPath)-1]) {
		// Directory that does not exist yet - created when the first file arrives
		return filepath.Clean(destPath), true, nil
	}

	// Path doesn't exist - it names a file, so its parent must be a directory
	dir := filepath.Dir(destPath)
	info, err := os.Stat(dir)
	if err != nil {
		return "", false, fmt.Errorf("parent directory does not exist: %s", dir)
	}
	if !info.IsDir() {
		return "", false, fmt.Errorf("parent path '%s' is not a directory", dir)
	}
	return destPath, false, nil
}

// FormatFileSize formats file size in human readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
