// Package workdir reconciles the on-disk working tree with a target Tree
// object (spec.md §4.4): compute the target's flat path map, then write
// or delete files to match it, refusing when that would clobber a
// workdir change the caller never recorded.
//
// Grounded on go-git's worktree_status.go Checkout path, which walks a
// target tree and a "current" status map side by side; biogit's version
// is narrower (no billy.Filesystem abstraction — plain os calls, the way
// dolthub/dolt's filesys package also just wraps os directly for local
// work).
package workdir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/objstore"
	"github.com/biogit/biogit/treebuilder"
)

// Workdir reconciles files under root against tree snapshots in store.
type Workdir struct {
	root  string
	store *objstore.Store
}

// Open returns a Workdir rooted at root, reading blobs from store.
func Open(root string, store *objstore.Store) *Workdir {
	return &Workdir{root: root, store: store}
}

func (w *Workdir) abs(path string) string {
	return filepath.Join(w.root, filepath.FromSlash(path))
}

// fileMatches reports whether the on-disk file at path has content hash h.
// A missing file never "matches" — it can neither be dirty nor safely
// skipped, so callers must check existence separately.
func (w *Workdir) fileMatches(path string, h hash.Hash) (bool, error) {
	data, err := os.ReadFile(w.abs(path))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: reading %s: %v", errs.ErrIO, path, err)
	}
	return hash.Sum(object.Frame(object.BlobObject, data)) == h, nil
}

// Reconcile transforms the working directory to match targetTree, given
// baseline — the path→(blob,mode) map of what HEAD currently records.
// Per spec.md §4.4, it refuses entirely (ErrWorkingDirectoryDirty) if any
// write or delete it would need to perform would clobber a workdir file
// that has diverged from baseline; no files are touched once a dirty path
// is detected partway through (checked up front, in a dry-run pass).
func (w *Workdir) Reconcile(baseline map[string]treebuilder.FileRef, targetTree hash.Hash) error {
	target, err := treebuilder.Flatten(w.store, targetTree)
	if err != nil {
		return err
	}

	// Dry run: find every path whose workdir content would need to change
	// and confirm none of them have diverged from baseline first.
	for path, baseRef := range baseline {
		targetRef, stillPresent := target[path]
		if stillPresent && targetRef == baseRef {
			continue // unchanged, no write needed
		}
		matches, err := w.fileMatches(path, baseRef.Hash)
		if err != nil {
			return err
		}
		if !matches {
			if _, err := os.Stat(w.abs(path)); err == nil {
				return fmt.Errorf("%w: %s", errs.ErrWorkingDirectoryDirty, path)
			}
		}
	}
	for path, targetRef := range target {
		if _, tracked := baseline[path]; tracked {
			continue
		}
		if _, err := os.Stat(w.abs(path)); err != nil {
			continue // absent: nothing to clobber
		}
		matches, err := w.fileMatches(path, targetRef.Hash)
		if err != nil {
			return err
		}
		if !matches {
			return fmt.Errorf("%w: %s", errs.ErrWorkingDirectoryDirty, path)
		}
	}

	// Apply: delete baseline-only paths, write everything in target.
	for path, baseRef := range baseline {
		if _, stillPresent := target[path]; stillPresent {
			continue
		}
		matches, err := w.fileMatches(path, baseRef.Hash)
		if err != nil {
			return err
		}
		if matches {
			if err := os.Remove(w.abs(path)); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("%w: removing %s: %v", errs.ErrIO, path, err)
			}
			removeEmptyParents(w.root, filepath.Dir(path))
		}
	}

	for path, ref := range target {
		if baseRef, ok := baseline[path]; ok && baseRef == ref {
			if ok, _ := w.fileMatches(path, ref.Hash); ok {
				continue // already correct on disk
			}
		}
		if err := w.writeBlob(path, ref); err != nil {
			return err
		}
	}
	return nil
}

func (w *Workdir) writeBlob(path string, ref treebuilder.FileRef) error {
	blob, err := w.store.ReadBlob(ref.Hash)
	if err != nil {
		return err
	}
	dest := w.abs(path)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("%w: creating parent dirs for %s: %v", errs.ErrIO, path, err)
	}
	perm := os.FileMode(0o644)
	if ref.Mode == object.ModeExecutable {
		perm = 0o755
	}
	if err := os.WriteFile(dest, blob.Content, perm); err != nil {
		return fmt.Errorf("%w: writing %s: %v", errs.ErrIO, path, err)
	}
	return nil
}

// removeEmptyParents removes dir and its ancestors under root while they
// are empty, a tidiness step analogous to git's own post-checkout
// directory pruning. Errors are ignored: leaving a stray empty directory
// is harmless.
func removeEmptyParents(root, dir string) {
	if dir == "." || dir == "" {
		return
	}
	for {
		abs := filepath.Join(root, dir)
		if abs == root {
			return
		}
		if err := os.Remove(abs); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}

// Clean reports the untracked files under root without deleting anything:
// it walks the workdir, skipping .biogit, and reports every regular file
// whose path is not present in tracked.
func Clean(root string, tracked map[string]treebuilder.FileRef) ([]string, error) {
	var untracked []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == ".biogit" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if _, ok := tracked[rel]; !ok {
			untracked = append(untracked, rel)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walking workdir: %v", errs.ErrIO, err)
	}
	return untracked, nil
}
