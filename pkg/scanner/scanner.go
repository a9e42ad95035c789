// Package scanner walks a directory tree for markdown documents.
package scanner

import (
	"io/fs"
	"path/filepath"
	"strings"
)

// Scan returns the paths of all files under root whose name ends in ext
// (e.g. ".md"), recursively. No ordering is guaranteed beyond the walk
// order. Any filesystem error aborts the scan.
func Scan(root, ext string) ([]string, error) {
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ext) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
