// Package hash wraps the object-naming hash function used across biogit.
//
// biogit uses a single algorithm, SHA-1, the same way go-git's
// plumbing/hash package pins crypto.SHA1 by default: through
// github.com/pjbgf/sha1cd, a collision-detecting drop-in for crypto/sha1
// that behaves identically on non-adversarial input but refuses to let a
// forged collision silently alias two different objects.
package hash

import (
	"encoding/hex"
	"fmt"
	"hash"
	"sort"

	"github.com/pjbgf/sha1cd"
)

// Size is the length in bytes of a Hash. HexSize is its hex-encoded length.
const (
	Size    = 20
	HexSize = Size * 2
)

// Hash is a 20-byte SHA-1 object name.
type Hash [Size]byte

// Zero is the all-zero Hash, used as the "absent" sentinel for refs that
// don't yet exist and for the base side of a three-way merge with no
// common ancestor.
var Zero Hash

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool { return h == Zero }

// String returns the 40-character lowercase hex encoding of h.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// FromHex parses a 40-character hex string into a Hash.
func FromHex(s string) (Hash, error) {
	if len(s) != HexSize {
		return Zero, fmt.Errorf("hash: invalid length %d, want %d", len(s), HexSize)
	}
	var h Hash
	if _, err := hex.Decode(h[:], []byte(s)); err != nil {
		return Zero, fmt.Errorf("hash: invalid hex: %w", err)
	}
	return h, nil
}

// FromBytes copies b (which must be Size bytes) into a Hash.
func FromBytes(b []byte) (Hash, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("hash: invalid length %d, want %d", len(b), Size)
	}
	var h Hash
	copy(h[:], b)
	return h, nil
}

// Sum returns the Hash of b.
func Sum(b []byte) Hash {
	w := New()
	w.Write(b)
	return w.Sum()
}

// Hasher is a streaming SHA-1 writer, for callers building up the hashed
// payload incrementally (e.g. the object encoders in package object).
type Hasher struct {
	h hash.Hash
}

// New returns a Hasher ready to accept Write calls.
func New() *Hasher {
	return &Hasher{h: sha1cd.New()}
}

func (w *Hasher) Write(p []byte) (int, error) { return w.h.Write(p) }

// Sum returns the Hash of everything written so far.
func (w *Hasher) Sum() Hash {
	var out Hash
	copy(out[:], w.h.Sum(nil))
	return out
}

// Sort sorts hs in place by hex value, ascending, for callers that need a
// deterministic object-set ordering.
func Sort(hs []Hash) {
	sort.Slice(hs, func(i, j int) bool {
		return hs[i].String() < hs[j].String()
	})
}
