// Package merge implements lowest-common-ancestor discovery and the
// three-way merge engine (spec.md §4.7): fast-forward/up-to-date short
// circuits, per-path merge rules, and conflict-marker rendering for paths
// that diverged on both sides.
//
// Grounded on go-git's plumbing/object/commit_walker.go ancestor-iteration
// pattern (walk parents breadth-first, track a visited set) for LCA, and
// on dolthub/dolt's three-way cell-merge rule table (same == keep, one
// side == base means take the other, else conflict) for the per-path
// decision in ThreeWay.
package merge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/biogit/biogit/diffmyers"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/objstore"
	"github.com/biogit/biogit/treebuilder"
)

// Result classifies what Merge decided to do.
type Result int

const (
	AlreadyUpToDate Result = iota
	FastForward
	ThreeWayMerged
	ThreeWayConflicted
)

func (r Result) String() string {
	switch r {
	case AlreadyUpToDate:
		return "already up to date"
	case FastForward:
		return "fast-forward"
	case ThreeWayMerged:
		return "merged"
	case ThreeWayConflicted:
		return "conflicted"
	default:
		return "unknown"
	}
}

// FileResult is the outcome of the three-way rule for one path.
type FileResult struct {
	Ref      treebuilder.FileRef // zero Hash means "deleted"
	Deleted  bool
	Conflict bool
}

// LCA returns the lowest common ancestor of h and t: the commit, reachable
// from both, that is "closest" to h — the first ancestor-of-t hit while
// BFS-ing outward from h's own ancestor set in nearest-first order
// (spec.md §4.7 step 1, "pick the one with the greatest generation
// number, i.e. depth from H" — equivalently, the first match BFS from H
// finds). hash.Zero is returned if h and t share no ancestor (distinct
// root histories).
func LCA(store *objstore.Store, h, t hash.Hash) (hash.Hash, error) {
	tAncestors, err := ancestorSet(store, t)
	if err != nil {
		return hash.Zero, err
	}

	visited := map[hash.Hash]bool{}
	queue := []hash.Hash{h}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() || visited[cur] {
			continue
		}
		visited[cur] = true
		if tAncestors[cur] {
			return cur, nil
		}
		c, err := store.ReadCommit(cur)
		if err != nil {
			return hash.Zero, err
		}
		queue = append(queue, c.ParentHashes...)
	}
	return hash.Zero, nil
}

func ancestorSet(store *objstore.Store, start hash.Hash) (map[hash.Hash]bool, error) {
	set := map[hash.Hash]bool{}
	queue := []hash.Hash{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() || set[cur] {
			continue
		}
		set[cur] = true
		c, err := store.ReadCommit(cur)
		if err != nil {
			return nil, err
		}
		queue = append(queue, c.ParentHashes...)
	}
	return set, nil
}

// ThreeWay applies the per-path merge rule of spec.md §4.7 step 3 across
// base/ours/theirs, returning the merged path→FileResult map and the
// rendered conflict-marker content for every path it could not resolve.
func ThreeWay(store *objstore.Store, base, ours, theirs hash.Hash) (map[string]FileResult, map[string][]byte, error) {
	baseMap, err := flattenOrEmpty(store, base)
	if err != nil {
		return nil, nil, err
	}
	oursMap, err := flattenOrEmpty(store, ours)
	if err != nil {
		return nil, nil, err
	}
	theirsMap, err := flattenOrEmpty(store, theirs)
	if err != nil {
		return nil, nil, err
	}

	paths := map[string]bool{}
	for p := range baseMap {
		paths[p] = true
	}
	for p := range oursMap {
		paths[p] = true
	}
	for p := range theirsMap {
		paths[p] = true
	}

	merged := make(map[string]FileResult, len(paths))
	conflicts := map[string][]byte{}

	for p := range paths {
		b, hasB := baseMap[p]
		o, hasO := oursMap[p]
		t, hasT := theirsMap[p]

		if hasO == hasT && (!hasO || o == t) {
			// H[p] == T[p]: take either side (including "both absent").
			merged[p] = fileResultOf(o, hasO)
			continue
		}
		if hasO == hasB && (!hasO || o == b) {
			// H[p] == B[p]: take T[p], deletion included.
			merged[p] = fileResultOf(t, hasT)
			continue
		}
		if hasT == hasB && (!hasT || t == b) {
			// T[p] == B[p]: take H[p].
			merged[p] = fileResultOf(o, hasO)
			continue
		}

		content, err := renderConflict(store, b, hasB, o, hasO, t, hasT)
		if err != nil {
			return nil, nil, err
		}
		conflicts[p] = content
		merged[p] = FileResult{Conflict: true, Ref: b} // index stays at base blob
	}

	return merged, conflicts, nil
}

func fileResultOf(ref treebuilder.FileRef, present bool) FileResult {
	if !present {
		return FileResult{Deleted: true}
	}
	return FileResult{Ref: ref}
}

func flattenOrEmpty(store *objstore.Store, root hash.Hash) (map[string]treebuilder.FileRef, error) {
	if root.IsZero() {
		return map[string]treebuilder.FileRef{}, nil
	}
	return treebuilder.Flatten(store, root)
}

// renderConflict runs line-level Myers between ours and theirs content
// (base is the paths' common ancestor, resolved purely to decide this is
// a real conflict — ThreeWay's caller already did that) and brackets each
// contiguous divergent run of lines in "<<<<<<< ours" / "=======" /
// ">>>>>>> theirs" markers, copying matching lines through unchanged
// (spec.md §4.7 step 3).
func renderConflict(
	store *objstore.Store,
	base treebuilder.FileRef, hasBase bool,
	ours treebuilder.FileRef, hasOurs bool,
	theirs treebuilder.FileRef, hasTheirs bool,
) ([]byte, error) {
	_ = base
	_ = hasBase

	oursText, err := blobText(store, ours, hasOurs)
	if err != nil {
		return nil, err
	}
	theirsText, err := blobText(store, theirs, hasTheirs)
	if err != nil {
		return nil, err
	}

	ops := diffmyers.Diff(oursText, theirsText)

	var buf strings.Builder
	i := 0
	for i < len(ops) {
		if ops[i].Type == diffmyers.Match {
			buf.WriteString(ops[i].Text)
			i++
			continue
		}
		var oursPart, theirsPart strings.Builder
		for i < len(ops) && ops[i].Type != diffmyers.Match {
			switch ops[i].Type {
			case diffmyers.Delete:
				oursPart.WriteString(ops[i].Text)
			case diffmyers.Insert:
				theirsPart.WriteString(ops[i].Text)
			}
			i++
		}
		fmt.Fprintf(&buf, "<<<<<<< ours\n%s=======\n%s>>>>>>> theirs\n", oursPart.String(), theirsPart.String())
	}
	return []byte(buf.String()), nil
}

func blobText(store *objstore.Store, ref treebuilder.FileRef, present bool) (string, error) {
	if !present {
		return "", nil
	}
	blob, err := store.ReadBlob(ref.Hash)
	if err != nil {
		return "", err
	}
	return string(blob.Content), nil
}

// ConflictedPaths returns the sorted path list for BIOGIT_CONFLICTS.
func ConflictedPaths(conflicts map[string][]byte) []string {
	out := make([]string, 0, len(conflicts))
	for p := range conflicts {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Outcome bundles the result of deciding and (if applicable) running a
// three-way merge of target t into head h.
type Outcome struct {
	Result    Result
	Base      hash.Hash
	Merged    map[string]FileResult
	Conflicts map[string][]byte
}

// Merge implements spec.md §4.7 steps 1-3: find the LCA of h and t, then
// dispatch to the up-to-date/fast-forward/three-way case. It does not
// itself touch the index, workdir, or refs — callers (package repo) apply
// an Outcome's Merged map via treebuilder/workdir and decide how to
// record the result (fast-forward the branch, or write MERGE_HEAD and
// BIOGIT_CONFLICTS).
func Merge(store *objstore.Store, h, t hash.Hash) (Outcome, error) {
	base, err := LCA(store, h, t)
	if err != nil {
		return Outcome{}, err
	}

	switch {
	case base == t:
		return Outcome{Result: AlreadyUpToDate, Base: base}, nil
	case base == h:
		return Outcome{Result: FastForward, Base: base}, nil
	}

	merged, conflicts, err := ThreeWay(store, base, h, t)
	if err != nil {
		return Outcome{}, err
	}
	result := ThreeWayMerged
	if len(conflicts) > 0 {
		result = ThreeWayConflicted
	}
	return Outcome{Result: result, Base: base, Merged: merged, Conflicts: conflicts}, nil
}
