package bioconfig_test

import (
	"path/filepath"
	"testing"

	"github.com/biogit/biogit/bioconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsEmptyConfig(t *testing.T) {
	c, err := bioconfig.Load(filepath.Join(t.TempDir(), "config"))
	require.NoError(t, err)
	assert.Empty(t, c.User.Name)
	assert.Empty(t, c.Remotes)
}

func TestSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config")
	c := &bioconfig.Config{
		User:    bioconfig.User{Name: "Ada Lovelace", Email: "ada@example.com"},
		Remotes: map[string]bioconfig.Remote{},
	}
	c.AddRemote("origin", "biogit://example.com/repo")
	require.NoError(t, c.Save(path))

	got, err := bioconfig.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.User.Name)
	assert.Equal(t, "ada@example.com", got.User.Email)
	require.Contains(t, got.Remotes, "origin")
	assert.Equal(t, "biogit://example.com/repo", got.Remotes["origin"].URL)
}

func TestGetFlatKeys(t *testing.T) {
	c := &bioconfig.Config{User: bioconfig.User{Name: "Bob"}, Remotes: map[string]bioconfig.Remote{}}
	c.AddRemote("origin", "url-here")

	v, ok := c.Get("user.name")
	require.True(t, ok)
	assert.Equal(t, "Bob", v)

	v, ok = c.Get("remote.origin.url")
	require.True(t, ok)
	assert.Equal(t, "url-here", v)

	_, ok = c.Get("user.missing")
	assert.False(t, ok)
}

func TestAddAndRemoveRemote(t *testing.T) {
	c := &bioconfig.Config{Remotes: map[string]bioconfig.Remote{}}
	c.AddRemote("origin", "u")
	assert.True(t, c.RemoveRemote("origin"))
	assert.False(t, c.RemoveRemote("origin"))
}
