package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigSearchPaths(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	paths := ConfigSearchPaths("shipdeck.yaml")
	if len(paths) != 4 {
		t.Fatalf("ConfigSearchPaths() returned %d paths, want 4", len(paths))
	}

	want := []string{
		filepath.Join(".", "shipdeck.yaml"),
		filepath.Join(".", "config", "shipdeck.yaml"),
		filepath.Join(home, ".config", "shipdeck", "shipdeck.yaml"),
		filepath.Join("/etc/shipdeck", "shipdeck.yaml"),
	}
	for i, p := range want {
		if paths[i] != p {
			t.Errorf("ConfigSearchPaths()[%d] = %v, want %v", i, paths[i], p)
		}
	}
}

func TestFirstExisting(t *testing.T) {
	tmpDir := t.TempDir()

	existing := filepath.Join(tmpDir, "shipdeck.yaml")
	if err := os.WriteFile(existing, []byte("api_url: x"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	missing := filepath.Join(tmpDir, "missing.yaml")

	tests := []struct {
		name  string
		paths []string
		want  string
	}{
		{"finds first existing file", []string{missing, existing}, existing},
		{"empty when no files exist", []string{missing}, ""},
		{"skips directories", []string{tmpDir, existing}, existing},
		{"handles nil path list", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FirstExisting(tt.paths); got != tt.want {
				t.Errorf("FirstExisting() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileExists(t *testing.T) {
	tmpDir := t.TempDir()

	testFile := filepath.Join(tmpDir, "test.txt")
	if err := os.WriteFile(testFile, []byte("test"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	if !FileExists(testFile) {
		t.Error("FileExists() = false for a regular file")
	}
	if FileExists(tmpDir) {
		t.Error("FileExists() = true for a directory")
	}
	if FileExists(filepath.Join(tmpDir, "nonexistent")) {
		t.Error("FileExists() = true for a missing path")
	}
}
