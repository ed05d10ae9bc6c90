// Package security validates user-supplied identifiers and paths
// before they reach the control-plane API or the archive builder.
package security

import (
	"fmt"
	"net"
	"net/url"
	"path"
	"regexp"
	"strings"
)

var (
	namePattern   = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	branchPattern = regexp.MustCompile(`^[a-zA-Z0-9/_.-]+$`)
)

// ValidateName ensures a project, environment, or service name is safe
// for use in URLs, lock keys, and history records.
func ValidateName(kind, name string) error {
	if name == "" {
		return fmt.Errorf("%s name cannot be empty", kind)
	}
	if strings.HasPrefix(name, "-") || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%s name cannot start with '-' or '.'", kind)
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%s name contains invalid characters (only a-z, A-Z, 0-9, _, - allowed)", kind)
	}
	return nil
}

// ValidateGitURL ensures a repository URL is an HTTPS URL with a
// plausible host. Other schemes are rejected so tokens are never sent
// over cleartext transports.
func ValidateGitURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("only HTTPS repository URLs are allowed, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("repository URL has no host")
	}
	return nil
}

// ValidateBranchName ensures a branch name is safe to pass through to
// the backend.
func ValidateBranchName(branch string) error {
	if branch == "" {
		return fmt.Errorf("branch name cannot be empty")
	}
	if strings.HasPrefix(branch, "-") {
		return fmt.Errorf("branch name cannot start with '-'")
	}
	if !branchPattern.MatchString(branch) {
		return fmt.Errorf("branch name contains invalid characters")
	}
	return nil
}

// ValidateServerIP ensures a target server address is a literal IP.
func ValidateServerIP(ip string) error {
	if ip == "" {
		return fmt.Errorf("server IP cannot be empty")
	}
	if net.ParseIP(ip) == nil {
		return fmt.Errorf("invalid server IP address: %s", ip)
	}
	return nil
}

// SanitizeArchivePath normalizes a file's archive-relative path and
// rejects traversal outside the archive root.
func SanitizeArchivePath(rel string) (string, error) {
	cleaned := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	if path.IsAbs(cleaned) {
		return "", fmt.Errorf("archive path must be relative: %s", rel)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("archive path escapes the archive root: %s", rel)
	}
	return cleaned, nil
}
