package common

import (
	"path/filepath"
	"strings"
)

// Truncate shortens s to max runes for table output.
func Truncate(s string, max int) string {
	if max <= 3 {
		max = 3
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

// DisplayPath renders path relative to root when possible, for logs and
// summaries; paths that escape the root stay as given.
func DisplayPath(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
