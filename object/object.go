// Package object implements biogit's three object kinds — Blob, Tree, and
// Commit — and the type-header framing they share (spec.md §3).
//
// Grounded on go-git's plumbing/object package: a small Type enum, a
// header "<type> <size>\0" prefix shared by every object kind, and
// per-kind Encode/Decode pairs that round-trip byte-for-byte. Unlike
// go-git, biogit has no pack/delta representation (spec.md §1 Non-goals),
// so there is no EncodedObject storer abstraction here — objects are
// encoded straight to the bytes the store persists.
package object

import (
	"bytes"
	"fmt"

	"github.com/biogit/biogit/hash"
)

// Type identifies which of the three object kinds a payload holds.
type Type int8

const (
	BlobObject Type = iota
	TreeObject
	CommitObject
)

func (t Type) String() string {
	switch t {
	case BlobObject:
		return "blob"
	case TreeObject:
		return "tree"
	case CommitObject:
		return "commit"
	default:
		return "invalid"
	}
}

// ParseType maps a type-header word back to a Type.
func ParseType(s string) (Type, error) {
	switch s {
	case "blob":
		return BlobObject, nil
	case "tree":
		return TreeObject, nil
	case "commit":
		return CommitObject, nil
	default:
		return 0, fmt.Errorf("object: unknown type %q", s)
	}
}

// Frame prefixes body with the "<type> <len>\0" header spec.md §3 defines
// for all three object kinds. This is the raw, uncompressed serialized
// form — the object store deflates it for on-disk persistence (§4.1), and
// PUT_OBJECT ships it as-is over the wire (§4.9 step 5).
func Frame(t Type, body []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", t, len(body))
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	out = append(out, body...)
	return out
}

// HashOf returns the object hash of the raw framed payload.
func HashOf(t Type, body []byte) hash.Hash {
	return hash.Sum(Frame(t, body))
}

// Unframe splits a raw "<type> <len>\0<body>" payload into its parts and
// verifies the declared length matches, per spec.md §4.1 read contract.
func Unframe(raw []byte) (Type, []byte, error) {
	nul := bytes.IndexByte(raw, 0)
	if nul < 0 {
		return 0, nil, fmt.Errorf("object: missing header terminator")
	}
	header := string(raw[:nul])
	body := raw[nul+1:]

	var typeWord string
	var size int
	if _, err := fmt.Sscanf(header, "%s %d", &typeWord, &size); err != nil {
		return 0, nil, fmt.Errorf("object: malformed header %q: %w", header, err)
	}
	t, err := ParseType(typeWord)
	if err != nil {
		return 0, nil, err
	}
	if size != len(body) {
		return 0, nil, fmt.Errorf("object: declared size %d does not match body length %d", size, len(body))
	}
	return t, body, nil
}
