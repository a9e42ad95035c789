// Package workcopy creates the isolated working copy the localizer
// mutates, so the original tree is never touched.
package workcopy

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// Create duplicates the tree at src into a sibling directory named
// <src>_processed_<timestamp> and returns the new root. On any copy
// error the partial copy is removed; a partial working directory is
// never safe to reuse.
func Create(src string) (string, error) {
	abs, err := filepath.Abs(src)
	if err != nil {
		return "", fmt.Errorf("failed to resolve source directory: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("failed to access source directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory: %s", abs)
	}

	dst := fmt.Sprintf("%s_processed_%s", abs, time.Now().Format("20060102-150405"))
	if err := copyTree(abs, dst); err != nil {
		_ = os.RemoveAll(dst)
		return "", fmt.Errorf("failed to create working copy: %w", err)
	}
	return dst, nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		info, err := d.Info()
		if err != nil {
			return err
		}

		switch {
		case d.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case d.Type()&fs.ModeSymlink != 0:
			linked, err := os.Readlink(path)
			if err != nil {
				return err
			}
			return os.Symlink(linked, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm fs.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
