package object_test

import (
	"testing"
	"time"

	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobRoundTrip(t *testing.T) {
	b := object.NewBlob([]byte("hi\n"))
	framed := b.Encode()

	typ, body, err := object.Unframe(framed)
	require.NoError(t, err)
	assert.Equal(t, object.BlobObject, typ)

	decoded := object.DecodeBlob(body)
	assert.Equal(t, b.Content, decoded.Content)
	assert.Equal(t, b.Hash(), hash.Sum(framed))
}

func TestBlobKnownHash(t *testing.T) {
	// "blob 3\0hi\n" is the fixture cited in spec.md §8 scenario 1.
	b := object.NewBlob([]byte("hi\n"))
	assert.Equal(t, "blob 3\x00hi\n", string(b.Encode()))
	assert.Equal(t, "45b983be36b73c0788dc9cbcb76cbb80fc7bb057", b.Hash().String())
}

func TestTreeOrderingDirectorySlashRule(t *testing.T) {
	h1 := hash.Sum([]byte("a"))
	h2 := hash.Sum([]byte("b"))
	h3 := hash.Sum([]byte("c"))

	tr := object.NewTree([]object.TreeEntry{
		{Mode: object.ModeRegular, Name: "foo.txt", Hash: h1},
		{Mode: object.ModeDirectory, Name: "foo", Hash: h2},
		{Mode: object.ModeRegular, Name: "bar", Hash: h3},
	})

	var names []string
	for _, e := range tr.Entries {
		names = append(names, e.Name)
	}
	// "bar" < "foo.txt" < "foo" (dir, compares as "foo/"; '.' < '/')
	assert.Equal(t, []string{"bar", "foo.txt", "foo"}, names)
}

func TestTreeRoundTrip(t *testing.T) {
	h1 := hash.Sum([]byte("a"))
	tr := object.NewTree([]object.TreeEntry{
		{Mode: object.ModeRegular, Name: "hello.txt", Hash: h1},
	})
	body := tr.Encode()

	decoded, err := object.DecodeTree(body)
	require.NoError(t, err)
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, tr.Entries[0], decoded.Entries[0])
}

func TestCommitRoundTrip(t *testing.T) {
	loc := time.FixedZone("", -5*3600)
	sig := object.Signature{Name: "A U Thor", Email: "a@example.com", When: time.Unix(1700000000, 0).In(loc)}

	c := &object.Commit{
		TreeHash:     hash.Sum([]byte("tree")),
		ParentHashes: []hash.Hash{hash.Sum([]byte("p1")), hash.Sum([]byte("p2"))},
		Author:       sig,
		Committer:    sig,
		Message:      "a commit message\n",
	}

	body := c.Encode()
	decoded, err := object.DecodeCommit(body)
	require.NoError(t, err)

	assert.Equal(t, c.TreeHash, decoded.TreeHash)
	assert.Equal(t, c.ParentHashes, decoded.ParentHashes)
	assert.Equal(t, c.Message, decoded.Message)
	assert.Equal(t, c.Author.String(), decoded.Author.String())
	assert.Equal(t, c.Hash(), hash.Sum(object.Frame(object.CommitObject, body)))
}

func TestCommitRootHasNoParents(t *testing.T) {
	sig := object.Signature{Name: "x", Email: "x@x", When: time.Unix(0, 0).UTC()}
	c := &object.Commit{TreeHash: hash.Zero, Author: sig, Committer: sig, Message: "root\n"}
	assert.Equal(t, 0, c.NumParents())

	decoded, err := object.DecodeCommit(c.Encode())
	require.NoError(t, err)
	assert.Empty(t, decoded.ParentHashes)
}

func TestSignatureRoundTrip(t *testing.T) {
	loc := time.FixedZone("", 9*3600+30*60)
	sig := object.Signature{Name: "Jane Doe", Email: "jane@example.com", When: time.Unix(1234567890, 0).In(loc)}

	parsed, err := object.ParseSignature(sig.String())
	require.NoError(t, err)
	assert.Equal(t, sig.Name, parsed.Name)
	assert.Equal(t, sig.Email, parsed.Email)
	assert.Equal(t, sig.When.Unix(), parsed.When.Unix())
	assert.Equal(t, sig.String(), parsed.String())
}
