// Package ioatomic provides atomic file persistence for the loose object
// store, the index, and ref files: WriteFile replaces a file in one rename,
// and WriteFileIfAbsent is its write-once variant.
package ioatomic

import (
	"os"
	"path/filepath"
)

// WriteFile writes data to path by writing to a temp file in the same
// directory and renaming it into place, so readers never observe a partial
// file. The parent directory is created if missing.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, perm); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// WriteFileIfAbsent is WriteFile but is a silent no-op when path already
// exists, matching the idempotent-write contract of the object store
// (spec §4.1, §7: "Object write when target exists: silent success").
func WriteFileIfAbsent(path string, data []byte, perm os.FileMode) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return WriteFile(path, data, perm)
}
