// Package bioconfig implements the repository's INI config file
// (".biogit/config", spec.md §6): sections like [user] and
// [remote "origin"], with a flat-key accessor surface (user.name,
// remote.origin.url) over the structured form.
//
// Grounded directly on go-git's config package, which parses the same
// git-style INI dialect via github.com/go-git/gcfg; biogit narrows the
// schema to just the sections it needs (user, remote) and keeps gcfg as
// the parser rather than hand-rolling one.
package bioconfig

import (
	"fmt"
	"os"
	"sort"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/internal/ioatomic"
	"github.com/go-git/gcfg"
)

// Remote is one [remote "<name>"] section.
type Remote struct {
	URL   string
	Fetch string
}

// User is the [user] section.
type User struct {
	Name  string
	Email string
}

// raw mirrors the gcfg-decodable INI shape; gcfg needs exported struct
// tags matching section/variable names case-insensitively.
type raw struct {
	User struct {
		Name  string
		Email string
	}
	Remote map[string]*struct {
		URL   string
		Fetch string
	}
}

// Config is a parsed .biogit/config file.
type Config struct {
	User    User
	Remotes map[string]Remote
}

// Load parses the config file at path. A missing file yields an empty
// Config, matching git's own "no config yet" behavior.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{Remotes: map[string]Remote{}}, nil
		}
		return nil, fmt.Errorf("%w: reading config: %v", errs.ErrIO, err)
	}

	var r raw
	if err := gcfg.ReadStringInto(&r, string(data)); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %v", errs.ErrIO, err)
	}

	c := &Config{
		User:    User{Name: r.User.Name, Email: r.User.Email},
		Remotes: make(map[string]Remote, len(r.Remote)),
	}
	for name, section := range r.Remote {
		if section == nil {
			continue
		}
		c.Remotes[name] = Remote{URL: section.URL, Fetch: section.Fetch}
	}
	return c, nil
}

// Save serializes c back to the git-INI dialect and writes it atomically
// to path.
func (c *Config) Save(path string) error {
	out := fmt.Sprintf("[user]\n\tname = %s\n\temail = %s\n", c.User.Name, c.User.Email)
	for _, name := range sortedRemoteNames(c.Remotes) {
		r := c.Remotes[name]
		out += fmt.Sprintf("[remote %q]\n\turl = %s\n\tfetch = %s\n", name, r.URL, r.Fetch)
	}
	if err := ioatomic.WriteFile(path, []byte(out), 0o644); err != nil {
		return fmt.Errorf("%w: writing config: %v", errs.ErrIO, err)
	}
	return nil
}

func sortedRemoteNames(remotes map[string]Remote) []string {
	names := make([]string, 0, len(remotes))
	for name := range remotes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get reads a flat dotted key (user.name, remote.origin.url,
// remote.origin.fetch) per spec.md §6's external config surface.
func (c *Config) Get(key string) (string, bool) {
	switch key {
	case "user.name":
		return c.User.Name, c.User.Name != ""
	case "user.email":
		return c.User.Email, c.User.Email != ""
	}
	for name, r := range c.Remotes {
		switch key {
		case "remote." + name + ".url":
			return r.URL, true
		case "remote." + name + ".fetch":
			return r.Fetch, true
		}
	}
	return "", false
}

// Set writes a flat dotted key, currently supporting only user.name and
// user.email (remotes go through AddRemote/RemoveRemote instead).
func (c *Config) Set(key, value string) error {
	switch key {
	case "user.name":
		c.User.Name = value
	case "user.email":
		c.User.Email = value
	default:
		return fmt.Errorf("%w: config key %q is not settable", errs.ErrInvalidPath, key)
	}
	return nil
}

// AddRemote adds or replaces the [remote "name"] section (SUPPLEMENTED
// FEATURES: remote add/remove).
func (c *Config) AddRemote(name, url string) {
	if c.Remotes == nil {
		c.Remotes = map[string]Remote{}
	}
	c.Remotes[name] = Remote{URL: url, Fetch: fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", name)}
}

// RemoveRemote deletes the [remote "name"] section, reporting whether it
// was present.
func (c *Config) RemoveRemote(name string) bool {
	if _, ok := c.Remotes[name]; !ok {
		return false
	}
	delete(c.Remotes, name)
	return true
}
