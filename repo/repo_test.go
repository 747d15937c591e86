package repo_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/biogit/biogit/merge"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSig(name string) object.Signature {
	return object.Signature{Name: name, Email: name + "@example.com", When: time.Unix(1700000000, 0).UTC()}
}

func writeFile(t *testing.T, root, path, content string) {
	t.Helper()
	abs := filepath.Join(root, path)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
}

func TestInitCreatesLayout(t *testing.T) {
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)

	for _, dir := range []string{"objects", "refs/heads", "refs/tags", "refs/remotes"} {
		_, err := os.Stat(filepath.Join(root, repo.DotDir, filepath.FromSlash(dir)))
		assert.NoError(t, err)
	}
	head, err := r.Refs.ReadHEAD()
	require.NoError(t, err)
	assert.True(t, head.Symbolic)
	assert.Equal(t, "refs/heads/main", head.Target)
}

func TestAddCommitScenario(t *testing.T) {
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)

	writeFile(t, root, "hello.txt", "hi\n")
	require.NoError(t, r.Add([]string{"hello.txt"}))

	commitHash, err := r.Commit(testSig("tester"), "m")
	require.NoError(t, err)

	blobHash := object.HashOf(object.BlobObject, []byte("hi\n"))
	expectedBlobHash := "45b983be36b73c0788dc9cbcb76cbb80fc7bb057" // sha1("blob 3\x00hi\n")
	assert.Equal(t, expectedBlobHash, blobHash.String())

	c, err := r.Objects.ReadCommit(commitHash)
	require.NoError(t, err)
	require.Empty(t, c.ParentHashes)

	tree, err := r.Objects.ReadTree(c.TreeHash)
	require.NoError(t, err)
	require.Len(t, tree.Entries, 1)
	assert.Equal(t, "hello.txt", tree.Entries[0].Name)
	assert.Equal(t, blobHash, tree.Entries[0].Hash)

	headHash, err := r.Refs.ReadRef("refs/heads/main")
	require.NoError(t, err)
	assert.Equal(t, commitHash, headHash)
}

func TestBranchAndSwitch(t *testing.T) {
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)

	writeFile(t, root, "hello.txt", "hi\n")
	require.NoError(t, r.Add([]string{"hello.txt"}))
	_, err = r.Commit(testSig("t"), "first")
	require.NoError(t, err)

	require.NoError(t, r.Branch("dev"))
	require.NoError(t, r.Switch("dev"))

	writeFile(t, root, "hello.txt", "hi there\n")
	require.NoError(t, r.Add([]string{"hello.txt"}))
	_, err = r.Commit(testSig("t"), "second")
	require.NoError(t, err)

	require.NoError(t, r.Switch("main"))
	content, err := os.ReadFile(filepath.Join(root, "hello.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(content))
}

func TestThreeWayMergeNoConflict(t *testing.T) {
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)

	writeFile(t, root, "a", "1\n2\n3\n")
	require.NoError(t, r.Add([]string{"a"}))
	_, err = r.Commit(testSig("t"), "base")
	require.NoError(t, err)
	require.NoError(t, r.Branch("ours"))
	require.NoError(t, r.Branch("theirs"))

	require.NoError(t, r.Switch("ours"))
	writeFile(t, root, "a", "1\n2\n3\n4\n")
	require.NoError(t, r.Add([]string{"a"}))
	_, err = r.Commit(testSig("t"), "ours appends")
	require.NoError(t, err)

	require.NoError(t, r.Switch("theirs"))
	writeFile(t, root, "a", "0\n1\n2\n3\n")
	require.NoError(t, r.Add([]string{"a"}))
	theirsCommit, err := r.Commit(testSig("t"), "theirs prepends")
	require.NoError(t, err)

	require.NoError(t, r.Switch("ours"))
	result, err := r.Merge(theirsCommit)
	require.NoError(t, err)
	assert.Equal(t, merge.ThreeWayMerged, result)

	content, err := os.ReadFile(filepath.Join(root, "a"))
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n2\n3\n4\n", string(content))
}

func TestStatusClassifiesPaths(t *testing.T) {
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)

	writeFile(t, root, "tracked.txt", "v1\n")
	require.NoError(t, r.Add([]string{"tracked.txt"}))
	_, err = r.Commit(testSig("t"), "c1")
	require.NoError(t, err)

	writeFile(t, root, "tracked.txt", "v2\n")
	writeFile(t, root, "untracked.txt", "new\n")

	statuses, err := r.Status()
	require.NoError(t, err)

	byPath := map[string]repo.FileStatus{}
	for _, s := range statuses {
		byPath[s.Path] = s.Status
	}
	assert.Equal(t, repo.WorkdirModified, byPath["tracked.txt"])
	assert.Equal(t, repo.WorkdirUntracked, byPath["untracked.txt"])
}

func TestDiffStagedVsHEAD(t *testing.T) {
	root := t.TempDir()
	r, err := repo.Init(root)
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "one\n")
	require.NoError(t, r.Add([]string{"a.txt"}))
	_, err = r.Commit(testSig("t"), "c1")
	require.NoError(t, err)

	writeFile(t, root, "a.txt", "one\ntwo\n")
	require.NoError(t, r.Add([]string{"a.txt"}))

	out, err := r.Diff(repo.DiffStagedVsHEAD, [20]byte{}, [20]byte{}, nil)
	require.NoError(t, err)
	assert.Contains(t, out, "+two\n")
}
