// Package archive packages code-source deployments into a single
// gzipped tarball for the multipart deploy upload.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"shipdeck/internal/security"
)

// DescriptorFilename is the name of the build descriptor placed at the
// archive root.
const DescriptorFilename = "Dockerfile"

// Folder is one build folder selected for packaging. Name is the
// archive subdirectory used for multi-folder builds.
type Folder struct {
	Name string
	Path string
}

// BuildInput describes one packaging run. For a single folder, files
// land at the archive root; for multiple folders, each folder's files
// land under its name, and Descriptor (when set) is inserted at the
// root so the combined build has one entry point.
type BuildInput struct {
	Folders    []Folder
	Excludes   []string
	Descriptor string
}

// Build produces the gzipped tarball. Exclusion patterns are applied
// to archive-relative paths before any file is added.
func Build(input BuildInput) ([]byte, error) {
	if len(input.Folders) == 0 {
		return nil, fmt.Errorf("no build folders selected")
	}

	matcher := NewExcludeMatcher(input.Excludes)
	multiFolder := len(input.Folders) > 1

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for _, folder := range input.Folders {
		prefix := ""
		if multiFolder {
			if err := security.ValidateName("folder", folder.Name); err != nil {
				return nil, err
			}
			prefix = folder.Name + "/"
		}
		if err := addFolder(tw, folder.Path, prefix, matcher); err != nil {
			return nil, fmt.Errorf("packaging folder %q: %w", folder.Name, err)
		}
	}

	if input.Descriptor != "" {
		if err := addFile(tw, DescriptorFilename, []byte(input.Descriptor)); err != nil {
			return nil, fmt.Errorf("adding build descriptor: %w", err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing tarball: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("finalizing gzip stream: %w", err)
	}

	return buf.Bytes(), nil
}

// addFolder walks one source folder and writes its regular files into
// the tarball under the given archive prefix.
func addFolder(tw *tar.Writer, root, prefix string, matcher *ExcludeMatcher) error {
	root = filepath.Clean(root)

	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)

		if entry.IsDir() {
			if matcher.MatchDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		// Symlinks and other irregular files are not packaged.
		if !entry.Type().IsRegular() {
			return nil
		}
		if matcher.Match(rel) {
			return nil
		}

		archivePath, err := security.SanitizeArchivePath(prefix + rel)
		if err != nil {
			return err
		}

		info, err := entry.Info()
		if err != nil {
			return err
		}

		header := &tar.Header{
			Name:    archivePath,
			Mode:    int64(info.Mode().Perm()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}
		if err := tw.WriteHeader(header); err != nil {
			return fmt.Errorf("writing tar header for %s: %w", archivePath, err)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if _, err := tw.Write(content); err != nil {
			return fmt.Errorf("writing %s: %w", archivePath, err)
		}
		return nil
	})
}

// addFile writes one in-memory file into the tarball.
func addFile(tw *tar.Writer, name string, content []byte) error {
	header := &tar.Header{
		Name:    name,
		Mode:    0644,
		Size:    int64(len(content)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// List returns the archive-relative paths inside a built tarball, in
// order. Used by tests and the deploy dry-run output.
func List(archiveBytes []byte) ([]string, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archiveBytes))
	if err != nil {
		return nil, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer gz.Close()

	var names []string
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading tarball: %w", err)
		}
		names = append(names, header.Name)
	}
	return names, nil
}
