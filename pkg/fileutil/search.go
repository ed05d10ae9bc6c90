// Package fileutil locates shipdeck's configuration file on disk.
package fileutil

import (
	"os"
	"path/filepath"
)

// ConfigSearchPaths returns the locations probed for a config file,
// in priority order: the working directory, its config/ subdirectory,
// the user's config directory, and the system-wide /etc/shipdeck.
// The home-directory entry is omitted when the home cannot be
// determined.
func ConfigSearchPaths(filename string) []string {
	paths := []string{
		filepath.Join(".", filename),
		filepath.Join(".", "config", filename),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "shipdeck", filename))
	}
	return append(paths, filepath.Join("/etc/shipdeck", filename))
}

// FirstExisting returns the first path that exists as a regular file,
// or the empty string when none do.
func FirstExisting(paths []string) string {
	for _, path := range paths {
		if FileExists(path) {
			return path
		}
	}
	return ""
}

// FileExists reports whether path exists and is not a directory.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
