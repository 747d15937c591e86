// Package index implements the staging area (spec.md §3, §4.2): a flat,
// path-sorted list of staged file entries that the tree builder turns
// into a tree-of-trees at commit time.
//
// Grounded on go-git's plumbing/object/commitgraph package, which keeps
// its node set in a github.com/emirpasic/gods/lists/arraylist ordered by
// a gods/utils.Comparator instead of hand-rolling insertion sort; biogit's
// index does the same for its path ordering.
package index

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/internal/ioatomic"
	"github.com/biogit/biogit/object"
	"github.com/emirpasic/gods/lists/arraylist"
	godsutils "github.com/emirpasic/gods/utils"
)

// Entry is one staged file (spec.md §3).
type Entry struct {
	Mode       object.Mode
	Hash       hash.Hash
	MtimeSec   int64
	MtimeNsec  int64
	Size       int64
	Path string
}

// byPath orders entries by their normalized path, the sort invariant
// spec.md §4.2 and the "Index sort invariant" testable property (§8)
// require after every mutation.
func byPath(a, b interface{}) int {
	return godsutils.StringComparator(a.(Entry).Path, b.(Entry).Path)
}

// Index is the sorted staged-entry list.
type Index struct {
	list *arraylist.List
}

// New returns an empty Index.
func New() *Index {
	return &Index{list: arraylist.New()}
}

// Load reads the index file at path. A missing file is not an error — it
// yields an empty index (spec.md §4.2).
func Load(path string) (*Index, error) {
	ix := New()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ix, nil
		}
		return nil, fmt.Errorf("%w: opening index: %v", errs.ErrIO, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		e, err := parseEntryLine(line)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrCorruptIndex, err)
		}
		ix.list.Add(e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading index: %v", errs.ErrIO, err)
	}

	ix.list.Sort(byPath)
	return ix, nil
}

func parseEntryLine(line string) (Entry, error) {
	fields := strings.SplitN(line, " ", 6)
	if len(fields) != 6 {
		return Entry{}, fmt.Errorf("malformed index line %q", line)
	}
	mode := object.Mode(fields[0])
	h, err := hash.FromHex(fields[1])
	if err != nil {
		return Entry{}, fmt.Errorf("malformed index hash: %w", err)
	}
	mtimeSec, err1 := strconv.ParseInt(fields[2], 10, 64)
	mtimeNsec, err2 := strconv.ParseInt(fields[3], 10, 64)
	size, err3 := strconv.ParseInt(fields[4], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return Entry{}, fmt.Errorf("malformed index numeric field in %q", line)
	}
	return Entry{
		Mode:      mode,
		Hash:      h,
		MtimeSec:  mtimeSec,
		MtimeNsec: mtimeNsec,
		Size:      size,
		Path:      fields[5],
	}, nil
}

func (e Entry) line() string {
	return fmt.Sprintf("%s %s %d %d %d %s", e.Mode, e.Hash, e.MtimeSec, e.MtimeNsec, e.Size, e.Path)
}

// Save sorts and writes the index atomically.
func (ix *Index) Save(path string) error {
	ix.list.Sort(byPath)

	var buf strings.Builder
	for _, v := range ix.list.Values() {
		buf.WriteString(v.(Entry).line())
		buf.WriteByte('\n')
	}
	if err := ioatomic.WriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("%w: writing index: %v", errs.ErrIO, err)
	}
	return nil
}

// AddOrUpdate inserts e, replacing any existing entry with the same path.
func (ix *Index) AddOrUpdate(e Entry) {
	ix.removeNoSort(e.Path)
	ix.list.Add(e)
	ix.list.Sort(byPath)
}

// Remove deletes the entry at path, reporting whether one was present.
func (ix *Index) Remove(path string) bool {
	removed := ix.removeNoSort(path)
	ix.list.Sort(byPath)
	return removed
}

func (ix *Index) removeNoSort(path string) bool {
	removed := false
	kept := arraylist.New()
	for _, v := range ix.list.Values() {
		e := v.(Entry)
		if e.Path == path {
			removed = true
			continue
		}
		kept.Add(e)
	}
	ix.list = kept
	return removed
}

// Find returns the entry at path, if staged.
func (ix *Index) Find(path string) (Entry, bool) {
	for _, v := range ix.list.Values() {
		e := v.(Entry)
		if e.Path == path {
			return e, true
		}
	}
	return Entry{}, false
}

// Entries returns a sorted snapshot of all staged entries.
func (ix *Index) Entries() []Entry {
	values := ix.list.Values()
	out := make([]Entry, len(values))
	for i, v := range values {
		out[i] = v.(Entry)
	}
	return out
}

// Len returns the number of staged entries.
func (ix *Index) Len() int { return ix.list.Size() }
