package treebuilder_test

import (
	"testing"

	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/index"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/objstore"
	"github.com/biogit/biogit/treebuilder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobHash(store *objstore.Store, content string) hash.Hash {
	h, err := store.Write(object.BlobObject, []byte(content))
	if err != nil {
		panic(err)
	}
	return h
}

func TestBuildEmptyIndexYieldsEmptyTree(t *testing.T) {
	store := objstore.Open(t.TempDir())
	root, err := treebuilder.Build(nil, store)
	require.NoError(t, err)

	tree, err := store.ReadTree(root)
	require.NoError(t, err)
	assert.Empty(t, tree.Entries)
}

func TestBuildFlatFiles(t *testing.T) {
	store := objstore.Open(t.TempDir())
	entries := []index.Entry{
		{Mode: object.ModeRegular, Hash: blobHash(store, "a"), Path: "a.txt"},
		{Mode: object.ModeRegular, Hash: blobHash(store, "b"), Path: "b.txt"},
	}

	root, err := treebuilder.Build(entries, store)
	require.NoError(t, err)

	tree, err := store.ReadTree(root)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 2)
	assert.Equal(t, "a.txt", tree.Entries[0].Name)
	assert.Equal(t, "b.txt", tree.Entries[1].Name)
}

func TestBuildNestedDirectories(t *testing.T) {
	store := objstore.Open(t.TempDir())
	entries := []index.Entry{
		{Mode: object.ModeRegular, Hash: blobHash(store, "readme"), Path: "README.md"},
		{Mode: object.ModeRegular, Hash: blobHash(store, "main"), Path: "src/main.go"},
		{Mode: object.ModeRegular, Hash: blobHash(store, "util"), Path: "src/util/helpers.go"},
	}

	root, err := treebuilder.Build(entries, store)
	require.NoError(t, err)

	top, err := store.ReadTree(root)
	require.NoError(t, err)
	require.Len(t, top.Entries, 2)

	srcEntry, ok := top.Find("src")
	require.True(t, ok)
	assert.True(t, srcEntry.Mode.IsDir())

	src, err := store.ReadTree(srcEntry.Hash)
	require.NoError(t, err)
	require.Len(t, src.Entries, 2)

	utilEntry, ok := src.Find("util")
	require.True(t, ok)
	assert.True(t, utilEntry.Mode.IsDir())
}

func TestBuildThenFlattenRoundTrips(t *testing.T) {
	store := objstore.Open(t.TempDir())
	entries := []index.Entry{
		{Mode: object.ModeRegular, Hash: blobHash(store, "one"), Path: "dir/one.txt"},
		{Mode: object.ModeExecutable, Hash: blobHash(store, "two"), Path: "dir/sub/two.sh"},
		{Mode: object.ModeRegular, Hash: blobHash(store, "three"), Path: "top.txt"},
	}

	root, err := treebuilder.Build(entries, store)
	require.NoError(t, err)

	flat, err := treebuilder.Flatten(store, root)
	require.NoError(t, err)
	require.Len(t, flat, 3)

	for _, e := range entries {
		ref, ok := flat[e.Path]
		require.True(t, ok, "missing path %s", e.Path)
		assert.Equal(t, e.Mode, ref.Mode)
		assert.Equal(t, e.Hash, ref.Hash)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	store := objstore.Open(t.TempDir())
	entries := []index.Entry{
		{Mode: object.ModeRegular, Hash: blobHash(store, "a"), Path: "z/a.txt"},
		{Mode: object.ModeRegular, Hash: blobHash(store, "b"), Path: "a/b.txt"},
	}

	root1, err := treebuilder.Build(entries, store)
	require.NoError(t, err)
	root2, err := treebuilder.Build(entries, store)
	require.NoError(t, err)
	assert.Equal(t, root1, root2)
}
