package repo

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/biogit/biogit/diffmyers"
	"github.com/biogit/biogit/hash"
)

// DiffMode selects which two snapshots Diff compares (spec.md §4.5).
type DiffMode int

const (
	DiffWorkdirVsIndex DiffMode = iota
	DiffStagedVsHEAD
	DiffCommitVsCommit
)

// defaultContext is diff's default unified-format context line count
// (spec.md §4.5).
const defaultContext = 3

// snapshot maps a path to its file content; a path absent from the map
// means the file does not exist on that side.
type snapshot map[string]string

// Diff renders a unified diff between two snapshots, restricted to paths
// (all paths if empty). commit1/commit2 are only consulted in
// DiffCommitVsCommit mode.
func (r *Repository) Diff(mode DiffMode, commit1, commit2 hash.Hash, paths []string) (string, error) {
	var fromLabel, toLabel string
	var from, to snapshot
	var err error

	switch mode {
	case DiffWorkdirVsIndex:
		fromLabel, toLabel = "index", "workdir"
		from, err = r.indexSnapshot()
		if err != nil {
			return "", err
		}
		to, err = r.workdirSnapshot(from)
	case DiffStagedVsHEAD:
		fromLabel, toLabel = "HEAD", "index"
		from, err = r.headSnapshot()
		if err != nil {
			return "", err
		}
		to, err = r.indexSnapshot()
	case DiffCommitVsCommit:
		fromLabel, toLabel = commit1.String()[:7], commit2.String()[:7]
		from, err = r.commitSnapshot(commit1)
		if err != nil {
			return "", err
		}
		to, err = r.commitSnapshot(commit2)
	}
	if err != nil {
		return "", err
	}

	allow := map[string]bool{}
	for _, p := range paths {
		allow[p] = true
	}
	restricted := len(paths) > 0

	pathSet := map[string]bool{}
	for p := range from {
		pathSet[p] = true
	}
	for p := range to {
		pathSet[p] = true
	}
	var sortedPaths []string
	for p := range pathSet {
		if !restricted || allow[p] {
			sortedPaths = append(sortedPaths, p)
		}
	}
	sort.Strings(sortedPaths)

	var out strings.Builder
	for _, p := range sortedPaths {
		section := diffOneFile(p, from[p], to[p], fromLabel, toLabel)
		out.WriteString(section)
	}
	return out.String(), nil
}

func diffOneFile(path, fromText, toText, fromLabel, toLabel string) string {
	if fromText == toText {
		return ""
	}
	ops := diffmyers.Diff(fromText, toText)
	hunks := diffmyers.BuildHunks(ops, defaultContext)
	if len(hunks) == 0 {
		return ""
	}
	return diffmyers.FormatUnified(fromLabel+"/"+path, toLabel+"/"+path, hunks)
}

// indexSnapshot reads the content of every staged file from the object
// store.
func (r *Repository) indexSnapshot() (snapshot, error) {
	ix, err := r.loadIndex()
	if err != nil {
		return nil, err
	}
	out := snapshot{}
	for _, e := range ix.Entries() {
		blob, err := r.Objects.ReadBlob(e.Hash)
		if err != nil {
			return nil, err
		}
		out[e.Path] = string(blob.Content)
	}
	return out, nil
}

// headSnapshot reads the content of every file in HEAD's tree.
func (r *Repository) headSnapshot() (snapshot, error) {
	head, err := r.currentBranchHash()
	if err != nil {
		return nil, err
	}
	return r.commitSnapshot(head)
}

// commitSnapshot reads the content of every file in commitHash's tree. A
// zero commitHash (no commits yet) yields an empty snapshot.
func (r *Repository) commitSnapshot(commitHash hash.Hash) (snapshot, error) {
	if commitHash.IsZero() {
		return snapshot{}, nil
	}
	flat, err := r.flattenTreeOf(commitHash)
	if err != nil {
		return nil, err
	}
	out := make(snapshot, len(flat))
	for path, ref := range flat {
		blob, err := r.Objects.ReadBlob(ref.Hash)
		if err != nil {
			return nil, err
		}
		out[path] = string(blob.Content)
	}
	return out, nil
}

// workdirSnapshot reads the current on-disk content for every path
// tracked by the index, for the default workdir-vs-index diff mode.
func (r *Repository) workdirSnapshot(tracked snapshot) (snapshot, error) {
	out := snapshot{}
	for path := range tracked {
		abs := filepath.Join(r.Root, filepath.FromSlash(path))
		content, err := os.ReadFile(abs)
		if err != nil {
			if os.IsNotExist(err) {
				continue // deleted from workdir, absent from "to" side
			}
			return nil, err
		}
		out[path] = string(content)
	}
	return out, nil
}
