// Package storage reads and writes the documents the localizer rewrites.
package storage

import (
	"fmt"
	"io/fs"
	"os"
)

// ReadDocument returns a document's contents and its file mode, so the
// write-back can preserve permissions.
func ReadDocument(path string) ([]byte, fs.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, 0, fmt.Errorf("error reading file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, fmt.Errorf("error reading file: %w", err)
	}
	return data, info.Mode().Perm(), nil
}

// WriteDocument overwrites a document in place.
func WriteDocument(path string, content []byte, perm fs.FileMode) error {
	if perm == 0 {
		perm = 0644
	}
	if err := os.WriteFile(path, content, perm); err != nil {
		return fmt.Errorf("error saving file: %w", err)
	}
	return nil
}
