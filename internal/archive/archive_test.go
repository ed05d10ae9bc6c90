package archive

import (
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestExcludeMatcher(t *testing.T) {
	matcher := NewExcludeMatcher([]string{"node_modules/", "*.log", ".env"})

	testCases := []struct {
		name     string
		path     string
		excluded bool
	}{
		{name: "directory pattern nested", path: "app/node_modules/pkg/index.js", excluded: true},
		{name: "directory pattern at root", path: "node_modules/left-pad/index.js", excluded: true},
		{name: "similar filename not excluded", path: "app/my_node_modules_note.txt", excluded: false},
		{name: "suffix match", path: "logs/app.log", excluded: true},
		{name: "suffix no match", path: "logs/app.log.txt", excluded: false},
		{name: "exact match", path: ".env", excluded: true},
		{name: "exact pattern only matches full path", path: "config/.env", excluded: false},
		{name: "plain file kept", path: "src/main.go", excluded: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := matcher.Match(tc.path); got != tc.excluded {
				t.Errorf("Match(%q) = %v, expected %v", tc.path, got, tc.excluded)
			}
		})
	}
}

// writeTree creates files under dir from a map of relative path to
// content.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestBuild_SingleFolderAtRoot(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.go":        "package main",
		"lib/helpers.go": "package lib",
	})

	archiveBytes, err := Build(BuildInput{Folders: []Folder{{Name: "app", Path: dir}}})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	names, err := List(archiveBytes)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	sort.Strings(names)

	expected := []string{"lib/helpers.go", "main.go"}
	if len(names) != len(expected) {
		t.Fatalf("got entries %v, expected %v", names, expected)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("entry %d: got %q, expected %q", i, names[i], expected[i])
		}
	}
}

func TestBuild_MultiFolderWithDescriptor(t *testing.T) {
	apiDir := t.TempDir()
	webDir := t.TempDir()
	writeTree(t, apiDir, map[string]string{"server.py": "print('hi')"})
	writeTree(t, webDir, map[string]string{"index.html": "<html/>"})

	archiveBytes, err := Build(BuildInput{
		Folders: []Folder{
			{Name: "api", Path: apiDir},
			{Name: "web", Path: webDir},
		},
		Descriptor: "FROM python:3.12-slim\n",
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	names, err := List(archiveBytes)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}

	want := map[string]bool{
		"api/server.py":  false,
		"web/index.html": false,
		"Dockerfile":     false,
	}
	for _, name := range names {
		if _, ok := want[name]; !ok {
			t.Errorf("unexpected archive entry %q", name)
			continue
		}
		want[name] = true
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("missing archive entry %q", name)
		}
	}
}

func TestBuild_AppliesExcludesBeforeAdding(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"main.js":                    "code",
		"node_modules/pkg/index.js":  "dep",
		"node_modules/pkg2/index.js": "dep",
		"debug.log":                  "noise",
	})

	archiveBytes, err := Build(BuildInput{
		Folders:  []Folder{{Name: "app", Path: dir}},
		Excludes: []string{"node_modules/", "*.log"},
	})
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	names, err := List(archiveBytes)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(names) != 1 || names[0] != "main.js" {
		t.Errorf("got entries %v, expected only main.js", names)
	}
}

func TestBuild_NoFolders(t *testing.T) {
	if _, err := Build(BuildInput{}); err == nil {
		t.Error("expected error for empty folder list")
	}
}
