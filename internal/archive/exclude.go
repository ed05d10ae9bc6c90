package archive

import "strings"

// ExcludeMatcher applies upload exclusion patterns to archive-relative
// paths. Three pattern forms are supported:
//
//   - trailing slash ("node_modules/"): matches any path containing
//     that directory as a path segment
//   - leading star ("*.log"): suffix match
//   - anything else: exact relative-path match
type ExcludeMatcher struct {
	dirs     []string
	suffixes []string
	exact    map[string]bool
}

// NewExcludeMatcher compiles a pattern list. Empty patterns are
// ignored.
func NewExcludeMatcher(patterns []string) *ExcludeMatcher {
	m := &ExcludeMatcher{exact: make(map[string]bool)}
	for _, pattern := range patterns {
		pattern = strings.TrimSpace(pattern)
		switch {
		case pattern == "":
		case strings.HasSuffix(pattern, "/"):
			m.dirs = append(m.dirs, strings.TrimSuffix(pattern, "/"))
		case strings.HasPrefix(pattern, "*"):
			m.suffixes = append(m.suffixes, strings.TrimPrefix(pattern, "*"))
		default:
			m.exact[pattern] = true
		}
	}
	return m
}

// Match reports whether the archive-relative path (slash-separated) is
// excluded.
func (m *ExcludeMatcher) Match(rel string) bool {
	if m.exact[rel] {
		return true
	}
	for _, suffix := range m.suffixes {
		if strings.HasSuffix(rel, suffix) {
			return true
		}
	}
	if len(m.dirs) > 0 {
		segments := strings.Split(rel, "/")
		for _, dir := range m.dirs {
			for _, segment := range segments {
				if segment == dir {
					return true
				}
			}
		}
	}
	return false
}

// MatchDir reports whether a directory (and so its entire subtree) is
// excluded, letting the builder prune the walk early.
func (m *ExcludeMatcher) MatchDir(rel string) bool {
	for _, dir := range m.dirs {
		for _, segment := range strings.Split(rel, "/") {
			if segment == dir {
				return true
			}
		}
	}
	return false
}
