// Package repo implements the porcelain repository operations (spec.md
// §4.5): init, add, rm, commit, status, log, diff, branch, tag, switch,
// merge, and remote add/remove, wiring together object store, index,
// refstore, treebuilder, workdir, merge, and diffmyers.
//
// Grounded on go-git's Repository/Worktree split — a thin Repository
// handle over Storer plus a Worktree that mutates the index and the
// filesystem — adapted to biogit's narrower, non-pluggable storage
// (plain directories instead of go-billy filesystems; see DESIGN.md).
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/biogit/biogit/bioconfig"
	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/index"
	"github.com/biogit/biogit/merge"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/objstore"
	"github.com/biogit/biogit/refstore"
	"github.com/biogit/biogit/treebuilder"
	"github.com/biogit/biogit/workdir"
)

// DotDir is the repository metadata directory name, analogous to ".git".
const DotDir = ".biogit"

const (
	DefaultBranch = "main"
	mergeHeadFile = "MERGE_HEAD"
	conflictsFile = "BIOGIT_CONFLICTS"
	indexFile     = "index"
	configFile    = "config"
)

// Repository is an open biogit working copy.
type Repository struct {
	Root    string // working directory root
	dotDir  string
	Objects *objstore.Store
	Refs    *refstore.Store
	Config  *bioconfig.Config
	wd      *workdir.Workdir
}

func dotDirFor(root string) string { return filepath.Join(root, DotDir) }

// Init creates a new repository at root: the .biogit layout, an empty
// index, and HEAD pointing symbolically at refs/heads/main (spec.md §6).
func Init(root string) (*Repository, error) {
	dot := dotDirFor(root)
	if _, err := os.Stat(dot); err == nil {
		return nil, fmt.Errorf("%w: %s already exists", errs.ErrIO, dot)
	}

	for _, dir := range []string{"objects", "refs/heads", "refs/tags", "refs/remotes"} {
		if err := os.MkdirAll(filepath.Join(dot, filepath.FromSlash(dir)), 0o755); err != nil {
			return nil, fmt.Errorf("%w: creating %s: %v", errs.ErrIO, dir, err)
		}
	}

	refs := refstore.Open(dot)
	if err := refs.SetHEADSymbolic(refstore.HeadsPrefix + DefaultBranch); err != nil {
		return nil, err
	}

	ix := index.New()
	if err := ix.Save(filepath.Join(dot, indexFile)); err != nil {
		return nil, err
	}

	cfg := &bioconfig.Config{Remotes: map[string]bioconfig.Remote{}}
	if err := cfg.Save(filepath.Join(dot, configFile)); err != nil {
		return nil, err
	}

	return Open(root)
}

// Open opens an existing repository rooted at root.
func Open(root string) (*Repository, error) {
	dot := dotDirFor(root)
	if _, err := os.Stat(dot); err != nil {
		return nil, fmt.Errorf("%w: %s is not a biogit repository", errs.ErrRepoNotSelected, root)
	}
	objects := objstore.Open(filepath.Join(dot, "objects"))
	cfg, err := bioconfig.Load(filepath.Join(dot, configFile))
	if err != nil {
		return nil, err
	}
	return &Repository{
		Root:    root,
		dotDir:  dot,
		Objects: objects,
		Refs:    refstore.Open(dot),
		Config:  cfg,
		wd:      workdir.Open(root, objects),
	}, nil
}

func (r *Repository) indexPath() string { return filepath.Join(r.dotDir, indexFile) }

func (r *Repository) loadIndex() (*index.Index, error) {
	return index.Load(r.indexPath())
}

// --- add / rm ---

// Add stages paths (workdir-relative), hashing and storing each as a blob.
func (r *Repository) Add(paths []string) error {
	ix, err := r.loadIndex()
	if err != nil {
		return err
	}
	for _, p := range paths {
		norm, err := index.NormalizePath(p)
		if err != nil {
			return err
		}
		abs := filepath.Join(r.Root, filepath.FromSlash(norm))
		info, err := os.Stat(abs)
		if err != nil {
			return fmt.Errorf("%w: stat %s: %v", errs.ErrIO, norm, err)
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", errs.ErrIO, norm, err)
		}
		h, err := r.Objects.Write(object.BlobObject, content)
		if err != nil {
			return err
		}
		mode := object.ModeRegular
		if info.Mode()&0o111 != 0 {
			mode = object.ModeExecutable
		}
		mtime := info.ModTime()
		ix.AddOrUpdate(index.Entry{
			Mode:      mode,
			Hash:      h,
			MtimeSec:  mtime.Unix(),
			MtimeNsec: int64(mtime.Nanosecond()),
			Size:      info.Size(),
			Path:      norm,
		})
	}
	return ix.Save(r.indexPath())
}

// Remove unstages paths and deletes them from the workdir.
func (r *Repository) Remove(paths []string) error {
	ix, err := r.loadIndex()
	if err != nil {
		return err
	}
	for _, p := range paths {
		norm, err := index.NormalizePath(p)
		if err != nil {
			return err
		}
		if !ix.Remove(norm) {
			return fmt.Errorf("%w: %s is not staged", errs.ErrNotFound, norm)
		}
		abs := filepath.Join(r.Root, filepath.FromSlash(norm))
		if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: removing %s: %v", errs.ErrIO, norm, err)
		}
	}
	return ix.Save(r.indexPath())
}

// --- commit ---

// currentBranchHash returns HEAD's resolved commit hash, or hash.Zero if
// HEAD has no commits yet (a fresh repository).
func (r *Repository) currentBranchHash() (hash.Hash, error) {
	h, err := r.Refs.ResolveHEAD()
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return hash.Zero, nil
		}
		return hash.Zero, err
	}
	return h, nil
}

// mergeHeadPath / conflictsPath are the merge-in-progress marker files
// (spec.md §4.7 step 4 / §6).
func (r *Repository) mergeHeadPath() string { return filepath.Join(r.dotDir, mergeHeadFile) }
func (r *Repository) conflictsPath() string { return filepath.Join(r.dotDir, conflictsFile) }

// Commit builds a tree from the current index and creates a commit with
// message msg. If a merge is in progress (MERGE_HEAD present), the new
// commit gets two parents: the current HEAD and MERGE_HEAD, and the
// merge markers are cleared (spec.md §4.7 step 4's "subsequent commit").
func (r *Repository) Commit(author object.Signature, msg string) (hash.Hash, error) {
	ix, err := r.loadIndex()
	if err != nil {
		return hash.Zero, err
	}
	treeHash, err := treebuilder.Build(ix.Entries(), r.Objects)
	if err != nil {
		return hash.Zero, err
	}

	head, err := r.currentBranchHash()
	if err != nil {
		return hash.Zero, err
	}

	var parents []hash.Hash
	if !head.IsZero() {
		parents = append(parents, head)
	}

	mergeHead, mergeInProgress, err := r.readMergeHead()
	if err != nil {
		return hash.Zero, err
	}
	if mergeInProgress {
		parents = append(parents, mergeHead)
	}

	c := &object.Commit{TreeHash: treeHash, ParentHashes: parents, Author: author, Committer: author, Message: msg}
	commitHash, err := r.Objects.WriteCommit(c)
	if err != nil {
		return hash.Zero, err
	}

	if err := r.Refs.UpdateCurrentBranch(commitHash); err != nil {
		return hash.Zero, err
	}
	if mergeInProgress {
		if err := r.clearMergeState(); err != nil {
			return hash.Zero, err
		}
	}
	return commitHash, nil
}

func (r *Repository) readMergeHead() (hash.Hash, bool, error) {
	data, err := os.ReadFile(r.mergeHeadPath())
	if err != nil {
		if os.IsNotExist(err) {
			return hash.Zero, false, nil
		}
		return hash.Zero, false, fmt.Errorf("%w: reading MERGE_HEAD: %v", errs.ErrIO, err)
	}
	h, err := hash.FromHex(trimNewline(string(data)))
	if err != nil {
		return hash.Zero, false, fmt.Errorf("%w: malformed MERGE_HEAD: %v", errs.ErrCorruptObject, err)
	}
	return h, true, nil
}

func (r *Repository) clearMergeState() error {
	if err := os.Remove(r.mergeHeadPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	if err := os.Remove(r.conflictsPath()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %v", errs.ErrIO, err)
	}
	return nil
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}

// --- branch / tag / switch ---

// Branch creates a new branch named name at the current HEAD commit.
func (r *Repository) Branch(name string) error {
	head, err := r.currentBranchHash()
	if err != nil {
		return err
	}
	if head.IsZero() {
		return fmt.Errorf("%w: cannot branch before the first commit", errs.ErrRepoNotSelected)
	}
	return r.Refs.CompareAndSwap(refstore.HeadsPrefix+name, head, nil)
}

// DeleteBranch removes branch name.
func (r *Repository) DeleteBranch(name string) error {
	return r.Refs.DeleteRef(refstore.HeadsPrefix + name)
}

// Tag creates a lightweight tag named name at the current HEAD commit.
func (r *Repository) Tag(name string) error {
	head, err := r.currentBranchHash()
	if err != nil {
		return err
	}
	return r.Refs.CompareAndSwap(refstore.TagsPrefix+name, head, nil)
}

// DeleteTag removes tag name.
func (r *Repository) DeleteTag(name string) error {
	return r.Refs.DeleteRef(refstore.TagsPrefix + name)
}

// Switch reconciles the workdir and index to branch, then moves HEAD to
// point at it (spec.md §8 scenario 2).
func (r *Repository) Switch(branch string) error {
	targetHash, err := r.Refs.ReadRef(refstore.HeadsPrefix + branch)
	if err != nil {
		return err
	}
	targetCommit, err := r.Objects.ReadCommit(targetHash)
	if err != nil {
		return err
	}

	baseline, err := r.baselineMap()
	if err != nil {
		return err
	}
	if err := r.wd.Reconcile(baseline, targetCommit.TreeHash); err != nil {
		return err
	}

	entries, err := treebuilder.Flatten(r.Objects, targetCommit.TreeHash)
	if err != nil {
		return err
	}
	ix := index.New()
	for path, ref := range entries {
		ix.AddOrUpdate(index.Entry{Mode: ref.Mode, Hash: ref.Hash, Path: path})
	}
	if err := ix.Save(r.indexPath()); err != nil {
		return err
	}

	return r.Refs.SetHEADSymbolic(refstore.HeadsPrefix + branch)
}

// baselineMap returns the path→(blob,mode) map HEAD currently records, or
// an empty map if there is no commit yet.
func (r *Repository) baselineMap() (map[string]treebuilder.FileRef, error) {
	head, err := r.currentBranchHash()
	if err != nil {
		return nil, err
	}
	if head.IsZero() {
		return map[string]treebuilder.FileRef{}, nil
	}
	commit, err := r.Objects.ReadCommit(head)
	if err != nil {
		return nil, err
	}
	return treebuilder.Flatten(r.Objects, commit.TreeHash)
}

// --- remote add/remove ---

// AddRemote adds or replaces a remote (SUPPLEMENTED FEATURES).
func (r *Repository) AddRemote(name, url string) error {
	r.Config.AddRemote(name, url)
	return r.SaveConfig()
}

// RemoveRemote deletes a remote.
func (r *Repository) RemoveRemote(name string) error {
	if !r.Config.RemoveRemote(name) {
		return fmt.Errorf("%w: remote %q", errs.ErrNotFound, name)
	}
	return r.SaveConfig()
}

// SaveConfig persists r.Config's current in-memory state, for callers
// that mutate it directly (e.g. Config.Set) instead of through a
// Repository method.
func (r *Repository) SaveConfig() error {
	return r.Config.Save(filepath.Join(r.dotDir, configFile))
}

// --- merge ---

// Merge merges commit theirs into the current branch (spec.md §4.7). A
// fast-forward moves the branch; a three-way merge updates only the
// workdir and index, leaving the branch where it is.
func (r *Repository) Merge(theirs hash.Hash) (merge.Result, error) {
	head, err := r.currentBranchHash()
	if err != nil {
		return 0, err
	}

	outcome, err := merge.Merge(r.Objects, head, theirs)
	if err != nil {
		return 0, err
	}

	switch outcome.Result {
	case merge.AlreadyUpToDate:
		return outcome.Result, nil
	case merge.FastForward:
		commit, err := r.Objects.ReadCommit(theirs)
		if err != nil {
			return 0, err
		}
		baseline, err := r.baselineMap()
		if err != nil {
			return 0, err
		}
		if err := r.wd.Reconcile(baseline, commit.TreeHash); err != nil {
			return 0, err
		}
		if err := r.Refs.UpdateCurrentBranch(theirs); err != nil {
			return 0, err
		}
		return outcome.Result, r.rebuildIndexFromTree(commit.TreeHash)
	}

	// Three-way: write the merged blobs/conflict markers to the workdir and
	// rebuild the index from the merge result. If conflicted, also record
	// MERGE_HEAD/BIOGIT_CONFLICTS. No merge commit is created in either
	// case, and a clean three-way merge writes no MERGE_HEAD.
	if err := r.applyThreeWay(outcome, theirs); err != nil {
		return 0, err
	}
	if outcome.Result == merge.ThreeWayConflicted {
		if err := os.WriteFile(r.mergeHeadPath(), []byte(theirs.String()+"\n"), 0o644); err != nil {
			return 0, fmt.Errorf("%w: writing MERGE_HEAD: %v", errs.ErrIO, err)
		}
		var body string
		for _, p := range merge.ConflictedPaths(outcome.Conflicts) {
			body += p + "\n"
		}
		if err := os.WriteFile(r.conflictsPath(), []byte(body), 0o644); err != nil {
			return 0, fmt.Errorf("%w: writing BIOGIT_CONFLICTS: %v", errs.ErrIO, err)
		}
		return outcome.Result, fmt.Errorf("%w", errs.ErrConflictsPresent)
	}
	return outcome.Result, nil
}

func (r *Repository) applyThreeWay(outcome merge.Outcome, theirs hash.Hash) error {
	ix := index.New()
	for path, fr := range outcome.Merged {
		dest := filepath.Join(r.Root, filepath.FromSlash(path))
		if fr.Deleted {
			os.Remove(dest)
			continue
		}
		if fr.Conflict {
			content, ok := outcome.Conflicts[path]
			if !ok {
				return fmt.Errorf("%w: conflict result missing content for %s", errs.ErrCorruptObject, path)
			}
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrIO, err)
			}
			if err := os.WriteFile(dest, content, 0o644); err != nil {
				return fmt.Errorf("%w: %v", errs.ErrIO, err)
			}
			// Index entry stays at the base blob (spec.md §4.7 step 3).
			ix.AddOrUpdate(index.Entry{Mode: fr.Ref.Mode, Hash: fr.Ref.Hash, Path: path})
			continue
		}
		blob, err := r.Objects.ReadBlob(fr.Ref.Hash)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}
		perm := os.FileMode(0o644)
		if fr.Ref.Mode == object.ModeExecutable {
			perm = 0o755
		}
		if err := os.WriteFile(dest, blob.Content, perm); err != nil {
			return fmt.Errorf("%w: %v", errs.ErrIO, err)
		}
		ix.AddOrUpdate(index.Entry{Mode: fr.Ref.Mode, Hash: fr.Ref.Hash, Path: path})
	}
	return ix.Save(r.indexPath())
}

func (r *Repository) rebuildIndexFromTree(treeHash hash.Hash) error {
	entries, err := treebuilder.Flatten(r.Objects, treeHash)
	if err != nil {
		return err
	}
	ix := index.New()
	for path, ref := range entries {
		ix.AddOrUpdate(index.Entry{Mode: ref.Mode, Hash: ref.Hash, Path: path})
	}
	return ix.Save(r.indexPath())
}

// Now is a seam so tests can freeze commit timestamps; production code
// always calls time.Now.
var Now = time.Now
