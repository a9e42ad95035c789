// Package cache is the content-addressed image store kept next to each
// document. Entries are named <md5(url)>.<ext>; the key depends only on
// the URL string, never on the image bytes, so a URL always maps to the
// same slot.
package cache

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Key returns the cache key for a source URL: the hex MD5 of the URL
// string. Deterministic and pure; collisions are accepted for this use.
func Key(url string) string {
	sum := md5.Sum([]byte(url))
	return fmt.Sprintf("%x", sum)
}

// Dir is one local image directory.
type Dir struct {
	path string
}

// New opens the image directory at path, creating it if missing.
func New(path string) (*Dir, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &Dir{path: path}, nil
}

// Open wraps an image directory without creating it; lookups against a
// missing directory simply miss. Used by read-only operations.
func Open(path string) *Dir {
	return &Dir{path: path}
}

// Path returns the directory path.
func (d *Dir) Path() string {
	return d.path
}

// EntryBase returns the extension-less target path for a key. The
// downloader appends the inferred extension to it.
func (d *Dir) EntryBase(key string) string {
	return filepath.Join(d.path, key)
}

// Lookup reports whether any entry exists for the key, regardless of
// extension. A hit short-circuits the download entirely.
func (d *Dir) Lookup(key string) (string, bool) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return "", false
	}
	prefix := key + "."
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) {
			return filepath.Join(d.path, e.Name()), true
		}
	}
	return "", false
}
