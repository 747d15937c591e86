package merge_test

import (
	"testing"
	"time"

	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/merge"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/objstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeBlob(t *testing.T, store *objstore.Store, content string) hash.Hash {
	t.Helper()
	h, err := store.Write(object.BlobObject, []byte(content))
	require.NoError(t, err)
	return h
}

func writeTree(t *testing.T, store *objstore.Store, entries ...object.TreeEntry) hash.Hash {
	t.Helper()
	h, err := store.WriteTree(object.NewTree(entries))
	require.NoError(t, err)
	return h
}

func sig(name string) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: time.Unix(1000, 0).UTC()}
}

func writeCommit(t *testing.T, store *objstore.Store, tree hash.Hash, msg string, parents ...hash.Hash) hash.Hash {
	t.Helper()
	c := &object.Commit{TreeHash: tree, ParentHashes: parents, Author: sig("a"), Committer: sig("a"), Message: msg}
	h, err := store.WriteCommit(c)
	require.NoError(t, err)
	return h
}

func TestLCALinearHistory(t *testing.T) {
	store := objstore.Open(t.TempDir())
	blob := writeBlob(t, store, "x\n")
	tree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "f", Hash: blob})

	c1 := writeCommit(t, store, tree, "c1")
	c2 := writeCommit(t, store, tree, "c2", c1)
	c3 := writeCommit(t, store, tree, "c3", c2)

	base, err := merge.LCA(store, c3, c1)
	require.NoError(t, err)
	assert.Equal(t, c1, base)
}

func TestMergeAlreadyUpToDate(t *testing.T) {
	store := objstore.Open(t.TempDir())
	blob := writeBlob(t, store, "x\n")
	tree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "f", Hash: blob})
	c1 := writeCommit(t, store, tree, "c1")
	c2 := writeCommit(t, store, tree, "c2", c1)

	out, err := merge.Merge(store, c2, c1)
	require.NoError(t, err)
	assert.Equal(t, merge.AlreadyUpToDate, out.Result)
}

func TestMergeFastForward(t *testing.T) {
	store := objstore.Open(t.TempDir())
	blob := writeBlob(t, store, "x\n")
	tree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "f", Hash: blob})
	c1 := writeCommit(t, store, tree, "c1")
	c2 := writeCommit(t, store, tree, "c2", c1)

	out, err := merge.Merge(store, c1, c2)
	require.NoError(t, err)
	assert.Equal(t, merge.FastForward, out.Result)
}

func TestThreeWayNonConflictingChangesBothApply(t *testing.T) {
	store := objstore.Open(t.TempDir())
	baseBlob := writeBlob(t, store, "base\n")
	baseTree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "shared", Hash: baseBlob})
	base := writeCommit(t, store, baseTree, "base")

	oursBlob := writeBlob(t, store, "ours-new\n")
	oursTree := writeTree(t, store,
		object.TreeEntry{Mode: object.ModeRegular, Name: "shared", Hash: baseBlob},
		object.TreeEntry{Mode: object.ModeRegular, Name: "ours-file", Hash: oursBlob},
	)
	ours := writeCommit(t, store, oursTree, "ours", base)

	theirsBlob := writeBlob(t, store, "theirs-new\n")
	theirsTree := writeTree(t, store,
		object.TreeEntry{Mode: object.ModeRegular, Name: "shared", Hash: baseBlob},
		object.TreeEntry{Mode: object.ModeRegular, Name: "theirs-file", Hash: theirsBlob},
	)
	theirs := writeCommit(t, store, theirsTree, "theirs", base)

	out, err := merge.Merge(store, ours, theirs)
	require.NoError(t, err)
	require.Equal(t, merge.ThreeWayMerged, out.Result)
	assert.Len(t, out.Conflicts, 0)
	assert.Contains(t, out.Merged, "ours-file")
	assert.Contains(t, out.Merged, "theirs-file")
	assert.Equal(t, baseBlob, out.Merged["shared"].Ref.Hash)
}

func TestThreeWayConflictingChangesProduceMarkers(t *testing.T) {
	store := objstore.Open(t.TempDir())
	baseBlob := writeBlob(t, store, "line1\nline2\nline3\n")
	baseTree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "a", Hash: baseBlob})
	base := writeCommit(t, store, baseTree, "base")

	oursBlob := writeBlob(t, store, "line1\nOURS\nline3\n")
	oursTree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "a", Hash: oursBlob})
	ours := writeCommit(t, store, oursTree, "ours", base)

	theirsBlob := writeBlob(t, store, "line1\nTHEIRS\nline3\n")
	theirsTree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "a", Hash: theirsBlob})
	theirs := writeCommit(t, store, theirsTree, "theirs", base)

	out, err := merge.Merge(store, ours, theirs)
	require.NoError(t, err)
	require.Equal(t, merge.ThreeWayConflicted, out.Result)
	require.Contains(t, out.Conflicts, "a")

	content := string(out.Conflicts["a"])
	assert.Contains(t, content, "<<<<<<< ours")
	assert.Contains(t, content, "OURS\n")
	assert.Contains(t, content, "=======")
	assert.Contains(t, content, "THEIRS\n")
	assert.Contains(t, content, ">>>>>>> theirs")
	assert.Equal(t, []string{"a"}, merge.ConflictedPaths(out.Conflicts))
}

func TestThreeWayDeletionOnOneSideTakesEffect(t *testing.T) {
	store := objstore.Open(t.TempDir())
	baseBlob := writeBlob(t, store, "keep\n")
	baseTree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "gone", Hash: baseBlob})
	base := writeCommit(t, store, baseTree, "base")

	// ours deletes the file, theirs leaves it unchanged.
	oursTree := writeTree(t, store)
	ours := writeCommit(t, store, oursTree, "ours", base)

	theirsTree := writeTree(t, store, object.TreeEntry{Mode: object.ModeRegular, Name: "gone", Hash: baseBlob})
	theirs := writeCommit(t, store, theirsTree, "theirs", base)

	out, err := merge.Merge(store, ours, theirs)
	require.NoError(t, err)
	require.Equal(t, merge.ThreeWayMerged, out.Result)
	result, ok := out.Merged["gone"]
	require.True(t, ok)
	assert.True(t, result.Deleted)
}
