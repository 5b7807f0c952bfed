// Package glob implements pattern expansion and the mtime-based
// staleness cache from spec.md §4.5.
package glob

import (
	"os"
	"path/filepath"
	"strings"
)

// IsPattern reports whether p contains glob metacharacters.
func IsPattern(p string) bool {
	return strings.ContainsAny(p, "*?[")
}

// Expand returns every path matching pattern, relative to the process's
// current working directory unless pattern is absolute. Plain
// filepath.Glob doesn't support "**", so a pattern containing it is
// expanded by walking the tree under the part before the first "**"
// (taken literally, not as a glob), at any depth, and matching the part
// after it against each file's base name. A remainder that names a
// directory ("**/b/*.zig") therefore matches nothing, and an empty
// remainder matches every file.
func Expand(pattern string) ([]string, error) {
	if !strings.Contains(pattern, "**") {
		return filepath.Glob(pattern)
	}

	parts := strings.SplitN(pattern, "**", 2)
	base := strings.TrimSuffix(parts[0], string(filepath.Separator))
	if base == "" {
		base = "."
	}
	rest := strings.TrimPrefix(parts[1], string(filepath.Separator))

	var matches []string
	err := filepath.WalkDir(base, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries rather than aborting the whole walk
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		if rest == "" {
			matches = append(matches, path)
			return nil
		}
		ok, err := filepath.Match(rest, filepath.Base(rel))
		if err == nil && ok {
			matches = append(matches, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return matches, nil
}
