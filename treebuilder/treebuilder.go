// Package treebuilder converts the flat, sorted index into the nested
// tree-of-trees object graph Build a commit, and back (spec.md §4.3).
//
// Grounded on go-git's merkletrie-based tree walking in spirit (a trie
// over path segments visited once per leaf), simplified to biogit's
// narrower need: no diffing here, just index→tree and tree→flat map.
package treebuilder

import (
	"sort"
	"strings"

	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/index"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/objstore"
)

// FileRef is a blob's mode and hash at some path, the unit both the index
// and a flattened tree reduce to.
type FileRef struct {
	Mode object.Mode
	Hash hash.Hash
}

type node struct {
	files map[string]FileRef
	dirs  map[string]*node
}

func newNode() *node {
	return &node{files: make(map[string]FileRef), dirs: make(map[string]*node)}
}

func (n *node) insert(path string, ref FileRef) {
	parts := strings.Split(path, "/")
	cur := n
	for i, part := range parts {
		if i == len(parts)-1 {
			cur.files[part] = ref
			return
		}
		child, ok := cur.dirs[part]
		if !ok {
			child = newNode()
			cur.dirs[part] = child
		}
		cur = child
	}
}

// write recursively materializes n (and its sub-trees) into the object
// store and returns the hash of the resulting Tree. Each index entry is
// visited exactly once, across all of Build; internal nodes visited here
// are bounded by directory depth, matching the O(paths × depth) bound
// spec.md §4.3 requires.
func (n *node) write(store *objstore.Store) (hash.Hash, error) {
	entries := make([]object.TreeEntry, 0, len(n.files)+len(n.dirs))
	for name, ref := range n.files {
		entries = append(entries, object.TreeEntry{Mode: ref.Mode, Name: name, Hash: ref.Hash})
	}

	dirNames := make([]string, 0, len(n.dirs))
	for name := range n.dirs {
		dirNames = append(dirNames, name)
	}
	sort.Strings(dirNames) // deterministic child build order, independent of map iteration

	for _, name := range dirNames {
		h, err := n.dirs[name].write(store)
		if err != nil {
			return hash.Zero, err
		}
		entries = append(entries, object.TreeEntry{Mode: object.ModeDirectory, Name: name, Hash: h})
	}

	tree := object.NewTree(entries)
	return store.WriteTree(tree)
}

// Build turns a flat list of index entries into the corresponding nested
// Tree graph, writes every produced Tree to store, and returns the root
// Tree's hash (spec.md §4.3). An empty entries list yields the hash of an
// empty tree.
func Build(entries []index.Entry, store *objstore.Store) (hash.Hash, error) {
	root := newNode()
	for _, e := range entries {
		root.insert(e.Path, FileRef{Mode: e.Mode, Hash: e.Hash})
	}
	return root.write(store)
}

// Flatten recursively walks the Tree named root and returns every file
// path it contains, mapped to its blob mode and hash (spec.md §4.4 step
// "Compute the target's path → (blob_hash, mode) map").
func Flatten(store *objstore.Store, root hash.Hash) (map[string]FileRef, error) {
	out := make(map[string]FileRef)
	if err := flattenInto(store, root, "", out); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(store *objstore.Store, treeHash hash.Hash, prefix string, out map[string]FileRef) error {
	tree, err := store.ReadTree(treeHash)
	if err != nil {
		return err
	}
	for _, e := range tree.Entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		if e.Mode.IsDir() {
			if err := flattenInto(store, e.Hash, p, out); err != nil {
				return err
			}
			continue
		}
		out[p] = FileRef{Mode: e.Mode, Hash: e.Hash}
	}
	return nil
}
