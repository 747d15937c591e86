package hash_test

import (
	"testing"

	"github.com/biogit/biogit/hash"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSumAndString(t *testing.T) {
	h := hash.Sum([]byte("blob 3\x00hi\n"))
	assert.Equal(t, hash.HexSize, len(h.String()))

	h2 := hash.Sum([]byte("blob 3\x00hi\n"))
	assert.Equal(t, h, h2, "hashing is deterministic")
}

func TestFromHexRoundTrip(t *testing.T) {
	h := hash.Sum([]byte("hello"))
	parsed, err := hash.FromHex(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, parsed)
}

func TestFromHexInvalidLength(t *testing.T) {
	_, err := hash.FromHex("abcd")
	assert.Error(t, err)
}

func TestFromHexInvalidChars(t *testing.T) {
	_, err := hash.FromHex("zz" + "00000000000000000000000000000000000000")
	assert.Error(t, err)
}

func TestZero(t *testing.T) {
	assert.True(t, hash.Zero.IsZero())
	assert.False(t, hash.Sum([]byte("x")).IsZero())
}

func TestSort(t *testing.T) {
	a := hash.Sum([]byte("a"))
	b := hash.Sum([]byte("b"))
	c := hash.Sum([]byte("c"))
	hs := []hash.Hash{c, a, b}
	hash.Sort(hs)
	for i := 1; i < len(hs); i++ {
		assert.LessOrEqual(t, hs[i-1].String(), hs[i].String())
	}
}
