package object

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/biogit/biogit/hash"
)

// TreeEntry is one (mode, name, hash) line of a Tree (spec.md §3).
type TreeEntry struct {
	Mode Mode
	Name string
	Hash hash.Hash
}

// Tree is an ordered directory snapshot.
type Tree struct {
	Entries []TreeEntry
}

// sortKey implements the directory-slash ordering rule: directory entries
// sort as if a "/" were appended to their name. A file "foo" sorts before
// "foo.txt", while a directory "foo" compares as "foo/" and so sorts after
// "foo.txt" ('.' < '/'). This matches canonical git tree order, which
// applies the same rule to raw entry names (spec.md §3).
func sortKey(e TreeEntry) string {
	if e.Mode.IsDir() {
		return e.Name + "/"
	}
	return e.Name
}

// SortEntries sorts entries in place under the directory-slash rule.
func SortEntries(entries []TreeEntry) {
	sort.Slice(entries, func(i, j int) bool {
		return sortKey(entries[i]) < sortKey(entries[j])
	})
}

// NewTree builds a Tree from entries, sorting them per the directory-slash
// rule. It does not deduplicate — callers (the tree builder) are
// responsible for the "no duplicate names" invariant.
func NewTree(entries []TreeEntry) *Tree {
	out := make([]TreeEntry, len(entries))
	copy(out, entries)
	SortEntries(out)
	return &Tree{Entries: out}
}

// Encode serializes the tree body: each entry as "<mode> <name>\0<40-hex>"
// concatenated in sorted order (spec.md §3). Entries must already be
// sorted; Encode does not re-sort, so a caller that mutated Entries
// directly should go through NewTree or call SortEntries first.
func (t *Tree) Encode() []byte {
	var buf bytes.Buffer
	for _, e := range t.Entries {
		fmt.Fprintf(&buf, "%s %s\x00%s", e.Mode, e.Name, e.Hash.String())
	}
	return buf.Bytes()
}

// Hash returns the SHA-1 of the tree's framed payload.
func (t *Tree) Hash() hash.Hash { return HashOf(TreeObject, t.Encode()) }

// DecodeTree parses a Tree body (post-Unframe) back into entries.
func DecodeTree(body []byte) (*Tree, error) {
	var entries []TreeEntry
	for len(body) > 0 {
		sp := bytes.IndexByte(body, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("object: malformed tree entry: missing space")
		}
		mode := Mode(body[:sp])
		rest := body[sp+1:]

		nul := bytes.IndexByte(rest, 0)
		if nul < 0 {
			return nil, fmt.Errorf("object: malformed tree entry: missing name terminator")
		}
		name := string(rest[:nul])
		rest = rest[nul+1:]

		if len(rest) < hash.HexSize {
			return nil, fmt.Errorf("object: malformed tree entry: short hash")
		}
		h, err := hash.FromHex(string(rest[:hash.HexSize]))
		if err != nil {
			return nil, fmt.Errorf("object: malformed tree entry hash: %w", err)
		}

		entries = append(entries, TreeEntry{Mode: mode, Name: name, Hash: h})
		body = rest[hash.HexSize:]
	}
	return &Tree{Entries: entries}, nil
}

// Find returns the entry named name, if present.
func (t *Tree) Find(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}
