package repo

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/index"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/treebuilder"
)

// FileStatus classifies one path's state (spec.md §4.5).
type FileStatus int

const (
	Unmodified FileStatus = iota
	StagedNew
	StagedModified
	StagedDeleted
	WorkdirModified
	WorkdirUntracked
)

func (s FileStatus) String() string {
	switch s {
	case Unmodified:
		return "unmodified"
	case StagedNew:
		return "staged-new"
	case StagedModified:
		return "staged-modified"
	case StagedDeleted:
		return "staged-deleted"
	case WorkdirModified:
		return "workdir-modified"
	case WorkdirUntracked:
		return "workdir-untracked"
	default:
		return "unknown"
	}
}

// StatusEntry is one path's classification.
type StatusEntry struct {
	Path   string
	Status FileStatus
}

// Status classifies every path touched by HEAD, the index, or the
// workdir, using (size, mtime) as a cheap first filter before re-hashing
// a suspected change (spec.md §4.5).
func (r *Repository) Status() ([]StatusEntry, error) {
	baseline, err := r.baselineMap()
	if err != nil {
		return nil, err
	}
	ix, err := r.loadIndex()
	if err != nil {
		return nil, err
	}

	var entries []StatusEntry
	seen := map[string]bool{}

	for _, e := range ix.Entries() {
		seen[e.Path] = true
		base, inHead := baseline[e.Path]
		switch {
		case !inHead:
			entries = append(entries, StatusEntry{e.Path, StagedNew})
		case base.Hash != e.Hash || base.Mode != e.Mode:
			entries = append(entries, StatusEntry{e.Path, StagedModified})
		default:
			st, err := r.workdirStatus(e)
			if err != nil {
				return nil, err
			}
			entries = append(entries, StatusEntry{e.Path, st})
		}
	}

	for path := range baseline {
		if seen[path] {
			continue
		}
		entries = append(entries, StatusEntry{path, StagedDeleted})
	}

	untracked, err := r.untrackedPaths(ix, seen)
	if err != nil {
		return nil, err
	}
	for _, path := range untracked {
		entries = append(entries, StatusEntry{path, WorkdirUntracked})
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// workdirStatus compares the workdir file for an index entry that is
// unchanged relative to HEAD, using (size, mtime) as a cheap filter
// before re-hashing.
func (r *Repository) workdirStatus(e index.Entry) (FileStatus, error) {
	abs := filepath.Join(r.Root, filepath.FromSlash(e.Path))
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return WorkdirModified, nil // tracked file deleted from disk
		}
		return 0, err
	}
	if info.Size() == e.Size && info.ModTime().Unix() == e.MtimeSec &&
		int64(info.ModTime().Nanosecond()) == e.MtimeNsec {
		return Unmodified, nil
	}
	content, err := os.ReadFile(abs)
	if err != nil {
		return 0, err
	}
	h := hash.Sum(object.Frame(object.BlobObject, content))
	if h == e.Hash {
		return Unmodified, nil
	}
	return WorkdirModified, nil
}

func (r *Repository) untrackedPaths(ix *index.Index, tracked map[string]bool) ([]string, error) {
	var out []string
	err := filepath.Walk(r.Root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if info.Name() == DotDir {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(r.Root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if !tracked[rel] {
			out = append(out, rel)
		}
		return nil
	})
	return out, err
}

// LogEntry is one commit visited by Log.
type LogEntry struct {
	Hash   hash.Hash
	Commit *object.Commit
}

// Log walks parents from start in depth-first order, visiting each
// commit once (spec.md §4.5).
func (r *Repository) Log(start hash.Hash) ([]LogEntry, error) {
	var out []LogEntry
	visited := map[hash.Hash]bool{}

	var walk func(h hash.Hash) error
	walk = func(h hash.Hash) error {
		if h.IsZero() || visited[h] {
			return nil
		}
		visited[h] = true
		c, err := r.Objects.ReadCommit(h)
		if err != nil {
			return err
		}
		out = append(out, LogEntry{Hash: h, Commit: c})
		for _, p := range c.ParentHashes {
			if err := walk(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(start); err != nil {
		return nil, err
	}
	return out, nil
}

// flattenTreeOf is a tiny convenience used by Diff to go from a commit
// hash to its flattened file map.
func (r *Repository) flattenTreeOf(commitHash hash.Hash) (map[string]treebuilder.FileRef, error) {
	if commitHash.IsZero() {
		return map[string]treebuilder.FileRef{}, nil
	}
	c, err := r.Objects.ReadCommit(commitHash)
	if err != nil {
		return nil, err
	}
	return treebuilder.Flatten(r.Objects, c.TreeHash)
}
