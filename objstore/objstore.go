// Package objstore implements the loose, content-addressed object store
// (spec.md §4.1): disk layout objects/<aa>/<bbb...>, zlib-deflated
// payloads, idempotent writes, and hash-prefix resolution.
//
// Grounded on go-git's plumbing/format/objfile writer/reader pair, which
// wraps compress/zlib around the same "<type> <len>\0<body>" framing
// package object produces — go-git reaches for the standard library's
// zlib here too (there is no third-party zlib-compatible codec anywhere
// in the retrieval pack worth swapping in; see DESIGN.md).
package objstore

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/internal/ioatomic"
	"github.com/biogit/biogit/object"
)

// Store is a loose object store rooted at a directory (".biogit/objects").
type Store struct {
	root string
}

// Open returns a Store rooted at root. root need not exist yet; it is
// created lazily on first write.
func Open(root string) *Store {
	return &Store{root: root}
}

// Root returns the store's root directory.
func (s *Store) Root() string { return s.root }

func (s *Store) path(h hash.Hash) string {
	hex := h.String()
	return filepath.Join(s.root, hex[:2], hex[2:])
}

// Exists reports whether h is present in the store.
func (s *Store) Exists(h hash.Hash) bool {
	_, err := os.Stat(s.path(h))
	return err == nil
}

// Write deflates and persists t/body under its content hash. Per
// spec.md §4.1 and §7, writing an object whose hash already exists is a
// silent no-op — loose objects are immutable once written.
func (s *Store) Write(t object.Type, body []byte) (hash.Hash, error) {
	raw := object.Frame(t, body)
	h := hash.Sum(raw)

	if s.Exists(h) {
		return h, nil
	}

	var deflated bytes.Buffer
	zw := zlib.NewWriter(&deflated)
	if _, err := zw.Write(raw); err != nil {
		return hash.Zero, fmt.Errorf("%w: deflating object %s: %v", errs.ErrIO, h, err)
	}
	if err := zw.Close(); err != nil {
		return hash.Zero, fmt.Errorf("%w: closing deflate stream for %s: %v", errs.ErrIO, h, err)
	}

	if err := ioatomic.WriteFileIfAbsent(s.path(h), deflated.Bytes(), 0o444); err != nil {
		return hash.Zero, fmt.Errorf("%w: writing object %s: %v", errs.ErrIO, h, err)
	}
	return h, nil
}

// WriteRaw stores a pre-framed "<type> <len>\0<body>" payload as received
// verbatim over the wire (PUT_OBJECT, spec.md §4.9 step 5 / §6), verifying
// its hash and structure first.
func (s *Store) WriteRaw(h hash.Hash, raw []byte) error {
	if got := hash.Sum(raw); got != h {
		return fmt.Errorf("%w: declared hash %s does not match sha1(raw)=%s", errs.ErrCorruptObject, h, got)
	}
	t, body, err := object.Unframe(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrCorruptObject, err)
	}
	_, err = s.Write(t, body)
	return err
}

// Read inflates and parses the object named h, verifying the declared
// size against the body length (spec.md §4.1).
func (s *Store) Read(h hash.Hash) (object.Type, []byte, error) {
	f, err := os.Open(s.path(h))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, fmt.Errorf("%w: object %s", errs.ErrNotFound, h)
		}
		return 0, nil, fmt.Errorf("%w: opening object %s: %v", errs.ErrIO, h, err)
	}
	defer f.Close()

	zr, err := zlib.NewReader(f)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: inflating object %s: %v", errs.ErrCorruptObject, h, err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading object %s: %v", errs.ErrCorruptObject, h, err)
	}

	t, body, err := object.Unframe(raw)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: object %s: %v", errs.ErrCorruptObject, h, err)
	}
	return t, body, nil
}

// ReadRaw returns the object's raw "<type> <len>\0<body>" payload, for
// shipping over the wire via GET_OBJECT (spec.md §6) without recompressing.
func (s *Store) ReadRaw(h hash.Hash) ([]byte, error) {
	t, body, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	return object.Frame(t, body), nil
}

// ReadBlob reads and decodes h as a Blob, failing if it is a different kind.
func (s *Store) ReadBlob(h hash.Hash) (*object.Blob, error) {
	t, body, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if t != object.BlobObject {
		return nil, fmt.Errorf("%w: %s is a %s, not a blob", errs.ErrCorruptObject, h, t)
	}
	return object.DecodeBlob(body), nil
}

// ReadTree reads and decodes h as a Tree.
func (s *Store) ReadTree(h hash.Hash) (*object.Tree, error) {
	t, body, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if t != object.TreeObject {
		return nil, fmt.Errorf("%w: %s is a %s, not a tree", errs.ErrCorruptObject, h, t)
	}
	return object.DecodeTree(body)
}

// ReadCommit reads and decodes h as a Commit.
func (s *Store) ReadCommit(h hash.Hash) (*object.Commit, error) {
	t, body, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if t != object.CommitObject {
		return nil, fmt.Errorf("%w: %s is a %s, not a commit", errs.ErrCorruptObject, h, t)
	}
	return object.DecodeCommit(body)
}

// WriteBlob/WriteTree/WriteCommit are typed conveniences over Write.
func (s *Store) WriteBlob(b *object.Blob) (hash.Hash, error) {
	return s.Write(object.BlobObject, b.Content)
}

func (s *Store) WriteTree(t *object.Tree) (hash.Hash, error) {
	return s.Write(object.TreeObject, t.Encode())
}

func (s *Store) WriteCommit(c *object.Commit) (hash.Hash, error) {
	return s.Write(object.CommitObject, c.Encode())
}

// ResolvePrefix resolves a hex prefix (≥6 chars, spec.md §4.1) to the
// unique hash it matches.
func (s *Store) ResolvePrefix(prefix string) (hash.Hash, error) {
	if len(prefix) < 6 {
		return hash.Zero, fmt.Errorf("%w: prefix %q shorter than 6 hex chars", errs.ErrNotFound, prefix)
	}
	if len(prefix) == hash.HexSize {
		return hash.FromHex(prefix)
	}

	shardDir := filepath.Join(s.root, prefix[:2])
	entries, err := os.ReadDir(shardDir)
	if err != nil {
		if os.IsNotExist(err) {
			return hash.Zero, fmt.Errorf("%w: prefix %q", errs.ErrNotFound, prefix)
		}
		return hash.Zero, fmt.Errorf("%w: listing %s: %v", errs.ErrIO, shardDir, err)
	}

	rest := prefix[2:]
	var match hash.Hash
	found := false
	for _, ent := range entries {
		if !strings.HasPrefix(ent.Name(), rest) {
			continue
		}
		h, err := hash.FromHex(prefix[:2] + ent.Name())
		if err != nil {
			continue
		}
		if found {
			return hash.Zero, fmt.Errorf("%w: prefix %q", errs.ErrAmbiguous, prefix)
		}
		match = h
		found = true
	}
	if !found {
		return hash.Zero, fmt.Errorf("%w: prefix %q", errs.ErrNotFound, prefix)
	}
	return match, nil
}
