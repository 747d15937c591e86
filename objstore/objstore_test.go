package objstore_test

import (
	"testing"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/object"
	"github.com/biogit/biogit/objstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRoundTrip(t *testing.T) {
	s := objstore.Open(t.TempDir())

	h, err := s.Write(object.BlobObject, []byte("hi\n"))
	require.NoError(t, err)
	assert.True(t, s.Exists(h))

	typ, body, err := s.Read(h)
	require.NoError(t, err)
	assert.Equal(t, object.BlobObject, typ)
	assert.Equal(t, "hi\n", string(body))
}

func TestWriteIdempotent(t *testing.T) {
	s := objstore.Open(t.TempDir())

	h1, err := s.Write(object.BlobObject, []byte("same content"))
	require.NoError(t, err)
	h2, err := s.Write(object.BlobObject, []byte("same content"))
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	_, body, err := s.Read(h1)
	require.NoError(t, err)
	assert.Equal(t, "same content", string(body))
}

func TestReadMissingIsNotFound(t *testing.T) {
	s := objstore.Open(t.TempDir())
	_, _, err := s.Read(object.HashOf(object.BlobObject, []byte("nope")))
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestResolvePrefixRequiresSixChars(t *testing.T) {
	s := objstore.Open(t.TempDir())
	_, err := s.ResolvePrefix("abc")
	assert.ErrorIs(t, err, errs.ErrNotFound)
}

func TestResolvePrefixUnique(t *testing.T) {
	s := objstore.Open(t.TempDir())
	h, err := s.Write(object.BlobObject, []byte("unique content"))
	require.NoError(t, err)

	resolved, err := s.ResolvePrefix(h.String()[:8])
	require.NoError(t, err)
	assert.Equal(t, h, resolved)
}

func TestResolvePrefixFullHash(t *testing.T) {
	s := objstore.Open(t.TempDir())

	// A full 40-character hash resolves to itself. Building a truly
	// ambiguous prefix would need two objects sharing a long hash prefix,
	// so the ambiguous branch is not exercised here.
	h, err := s.Write(object.BlobObject, []byte("a"))
	require.NoError(t, err)
	full, err := s.ResolvePrefix(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, full)
}

func TestWriteRawVerifiesHash(t *testing.T) {
	s := objstore.Open(t.TempDir())
	raw := object.Frame(object.BlobObject, []byte("payload"))
	realHash := object.HashOf(object.BlobObject, []byte("payload"))

	err := s.WriteRaw(realHash, raw)
	require.NoError(t, err)
	assert.True(t, s.Exists(realHash))

	wrongHash := object.HashOf(object.BlobObject, []byte("other"))
	err = s.WriteRaw(wrongHash, raw)
	assert.ErrorIs(t, err, errs.ErrCorruptObject)
}

func TestTypedReadRejectsWrongKind(t *testing.T) {
	s := objstore.Open(t.TempDir())
	h, err := s.Write(object.BlobObject, []byte("x"))
	require.NoError(t, err)

	_, err = s.ReadTree(h)
	assert.ErrorIs(t, err, errs.ErrCorruptObject)
}
