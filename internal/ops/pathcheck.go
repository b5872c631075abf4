package ops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hpungsan/ctxpack/internal/errors"
	"github.com/hpungsan/ctxpack/internal/manifest"
)

// ValidateRelPath checks a user-supplied context path and returns it in
// project-relative, forward-slash form. It rejects:
// 1. Empty paths
// 2. Path traversal (.. components)
// 3. Absolute paths outside root
//
// Absolute paths under root are converted to relative form.
func ValidateRelPath(root, p string) (string, error) {
	p = strings.TrimSpace(p)
	if p == "" {
		return "", errors.NewInvalidRequest("path is required")
	}
	if containsTraversal(p) {
		return "", errors.NewInvalidRequest(fmt.Sprintf("path must not contain directory traversal (..): %s", p))
	}

	if filepath.IsAbs(p) {
		absRoot, err := filepath.Abs(root)
		if err != nil {
			return "", errors.NewInvalidRequest(fmt.Sprintf("invalid project root: %v", err))
		}
		rel, err := filepath.Rel(absRoot, filepath.Clean(p))
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", errors.NewInvalidRequest(fmt.Sprintf("path must be inside the project root: %s", p))
		}
		p = rel
	}

	rel := manifest.NormalizeKey(filepath.ToSlash(filepath.Clean(p)))
	if rel == "." || rel == "" {
		return "", errors.NewInvalidRequest("path must name a file")
	}
	return rel, nil
}

// ValidateRelPaths applies ValidateRelPath to each entry, dropping
// duplicates and keeping the first occurrence.
func ValidateRelPaths(root string, paths []string) ([]string, error) {
	out := make([]string, 0, len(paths))
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		rel, err := ValidateRelPath(root, p)
		if err != nil {
			return nil, err
		}
		if seen[rel] {
			continue
		}
		seen[rel] = true
		out = append(out, rel)
	}
	return out, nil
}

// checkNotSymlink rejects a final path component that is a symlink.
// O_NOFOLLOW at open time would catch this too, but rejecting early gives a
// clearer error.
func checkNotSymlink(abs string) error {
	if info, err := os.Lstat(abs); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("path must not be a symlink")
	}
	return nil
}

// containsTraversal checks if path contains ".." directory traversal.
func containsTraversal(path string) bool {
	for _, part := range strings.Split(path, string(filepath.Separator)) {
		if part == ".." {
			return true
		}
	}
	// Also check for forward slashes on all platforms (e.g., user input)
	if filepath.Separator != '/' {
		for _, part := range strings.Split(path, "/") {
			if part == ".." {
				return true
			}
		}
	}
	return false
}

// SanitizeForFilename sanitizes a string for safe use in a filename.
// Removes/replaces characters that could be used for path traversal or injection.
func SanitizeForFilename(s string) string {
	s = strings.ReplaceAll(s, "/", "-")
	s = strings.ReplaceAll(s, "\\", "-")
	s = strings.ReplaceAll(s, "..", "-")

	var result strings.Builder
	for _, r := range s {
		if r >= 32 && r != 127 {
			result.WriteRune(r)
		}
	}
	s = result.String()

	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	s = strings.Trim(s, "-")

	if s == "" {
		s = "unnamed"
	}
	return s
}
