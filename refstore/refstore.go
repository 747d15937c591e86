// Package refstore implements HEAD and the refs/ namespace (spec.md §3):
// refs/heads/*, refs/tags/*, refs/remotes/*/*, each a file whose body is
// either a 40-hex hash or, for HEAD only, a "ref: refs/heads/<name>\n"
// symbolic line.
//
// Grounded on go-git's plumbing.Reference (ReferenceType Symbolic vs.
// Hash) and the atomic-rename file storage its storage/filesystem backend
// uses for every ref write — adapted here to plain os/path-based I/O
// (package ioatomic) since biogit's workdir layer talks to the real
// filesystem directly rather than through go-billy's abstraction (see
// DESIGN.md for why go-billy itself was not wired in).
package refstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/internal/ioatomic"
)

// HeadName is the name of the HEAD pseudo-ref.
const HeadName = "HEAD"

const (
	HeadsPrefix   = "refs/heads/"
	TagsPrefix    = "refs/tags/"
	RemotesPrefix = "refs/remotes/"
)

// Store is the ref store rooted at a repository's ".biogit" directory.
type Store struct {
	root string
}

// Open returns a Store rooted at root (the ".biogit" directory).
func Open(root string) *Store {
	return &Store{root: root}
}

// ValidateName rejects empty, absolute, or dot-segment ref names.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty ref name", errs.ErrInvalidRefName)
	}
	if strings.HasPrefix(name, "/") || strings.Contains(name, "..") || strings.ContainsAny(name, " \t\n\x00") {
		return fmt.Errorf("%w: %q", errs.ErrInvalidRefName, name)
	}
	return nil
}

func (s *Store) refPath(name string) string {
	return filepath.Join(append([]string{s.root}, strings.Split(name, "/")...)...)
}

// ReadRef reads the 40-hex hash stored at a direct ref such as
// "refs/heads/main". It does not follow symbolic refs (only HEAD can be
// symbolic, spec.md §3).
func (s *Store) ReadRef(name string) (hash.Hash, error) {
	if err := ValidateName(name); err != nil {
		return hash.Zero, err
	}
	data, err := os.ReadFile(s.refPath(name))
	if err != nil {
		if os.IsNotExist(err) {
			return hash.Zero, fmt.Errorf("%w: ref %q", errs.ErrNotFound, name)
		}
		return hash.Zero, fmt.Errorf("%w: reading ref %q: %v", errs.ErrIO, name, err)
	}
	h, err := hash.FromHex(strings.TrimSpace(string(data)))
	if err != nil {
		return hash.Zero, fmt.Errorf("%w: ref %q: %v", errs.ErrInvalidRefName, name, err)
	}
	return h, nil
}

// WriteRef unconditionally sets a direct ref to h.
func (s *Store) WriteRef(name string, h hash.Hash) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	body := []byte(h.String() + "\n")
	if err := ioatomic.WriteFile(s.refPath(name), body, 0o644); err != nil {
		return fmt.Errorf("%w: writing ref %q: %v", errs.ErrIO, name, err)
	}
	return nil
}

// CompareAndSwap sets name to newHash only if its current value equals
// expectedOld (nil meaning "ref must not currently exist"). This is the
// sole concurrency anchor spec.md §5 specifies for update-ref.
func (s *Store) CompareAndSwap(name string, newHash hash.Hash, expectedOld *hash.Hash) error {
	current, err := s.ReadRef(name)
	exists := true
	if err != nil {
		if !errors.Is(err, errs.ErrNotFound) {
			return err
		}
		exists = false
	}

	switch {
	case expectedOld == nil && exists:
		return fmt.Errorf("%w: ref %q already exists at %s", errs.ErrRefMismatch, name, current)
	case expectedOld != nil && !exists:
		return fmt.Errorf("%w: ref %q does not exist, expected %s", errs.ErrRefMismatch, name, *expectedOld)
	case expectedOld != nil && exists && current != *expectedOld:
		return fmt.Errorf("%w: ref %q is %s, expected %s", errs.ErrRefMismatch, name, current, *expectedOld)
	}

	return s.WriteRef(name, newHash)
}

// DeleteRef removes a direct ref.
func (s *Store) DeleteRef(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(s.refPath(name)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: ref %q", errs.ErrNotFound, name)
		}
		return fmt.Errorf("%w: deleting ref %q: %v", errs.ErrIO, name, err)
	}
	return nil
}

// List returns every ref under prefix (e.g. HeadsPrefix), keyed by full ref
// name; the map is unordered, and SortedNames gives its names in order.
func (s *Store) List(prefix string) (map[string]hash.Hash, error) {
	root := s.refPath(prefix)
	out := make(map[string]hash.Hash)

	err := filepath.Walk(root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) && p == root {
				return nil
			}
			return err
		}
		if info.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		h, err := s.ReadRef(name)
		if err != nil {
			return err
		}
		out[name] = h
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: listing refs under %q: %v", errs.ErrIO, prefix, err)
	}
	return out, nil
}

// SortedNames returns the keys of m sorted lexically, a small helper for deterministic
// iteration order (LIST_REFS responses, `branch`/`tag` listings).
func SortedNames(m map[string]hash.Hash) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// --- HEAD ---

// Head describes HEAD's current state: either symbolic (Target set,
// pointing at a branch ref name) or detached (Hash set directly).
type Head struct {
	Symbolic bool
	Target   string // e.g. "refs/heads/main", valid iff Symbolic
	Hash     hash.Hash
}

// ReadHEAD reads and classifies HEAD without resolving a symbolic target.
func (s *Store) ReadHEAD() (Head, error) {
	data, err := os.ReadFile(filepath.Join(s.root, HeadName))
	if err != nil {
		if os.IsNotExist(err) {
			return Head{}, fmt.Errorf("%w: HEAD", errs.ErrNotFound)
		}
		return Head{}, fmt.Errorf("%w: reading HEAD: %v", errs.ErrIO, err)
	}
	line := strings.TrimSpace(string(data))
	if strings.HasPrefix(line, "ref: ") {
		return Head{Symbolic: true, Target: strings.TrimPrefix(line, "ref: ")}, nil
	}
	h, err := hash.FromHex(line)
	if err != nil {
		return Head{}, fmt.Errorf("%w: malformed HEAD %q: %v", errs.ErrInvalidRefName, line, err)
	}
	return Head{Symbolic: false, Hash: h}, nil
}

// ResolveHEAD returns the commit hash HEAD currently points to, following
// one level of symbolic indirection (HEAD is never itself a chain of
// symbolic refs in biogit).
func (s *Store) ResolveHEAD() (hash.Hash, error) {
	head, err := s.ReadHEAD()
	if err != nil {
		return hash.Zero, err
	}
	if !head.Symbolic {
		return head.Hash, nil
	}
	return s.ReadRef(head.Target)
}

// SetHEADSymbolic points HEAD at a branch ref name (attached state).
func (s *Store) SetHEADSymbolic(refName string) error {
	if err := ValidateName(refName); err != nil {
		return err
	}
	body := []byte("ref: " + refName + "\n")
	if err := ioatomic.WriteFile(filepath.Join(s.root, HeadName), body, 0o644); err != nil {
		return fmt.Errorf("%w: writing HEAD: %v", errs.ErrIO, err)
	}
	return nil
}

// SetHEADDetached points HEAD directly at a commit hash (detached state).
func (s *Store) SetHEADDetached(h hash.Hash) error {
	body := []byte(h.String() + "\n")
	if err := ioatomic.WriteFile(filepath.Join(s.root, HeadName), body, 0o644); err != nil {
		return fmt.Errorf("%w: writing HEAD: %v", errs.ErrIO, err)
	}
	return nil
}

// UpdateCurrentBranch moves the branch HEAD points to (if attached) to h.
// If HEAD is detached, it updates HEAD directly instead.
func (s *Store) UpdateCurrentBranch(h hash.Hash) error {
	head, err := s.ReadHEAD()
	if err != nil {
		return err
	}
	if head.Symbolic {
		return s.WriteRef(head.Target, h)
	}
	return s.SetHEADDetached(h)
}
