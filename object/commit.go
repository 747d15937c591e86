package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/biogit/biogit/hash"
)

// Commit is a snapshot pointer with metadata (spec.md §3).
type Commit struct {
	TreeHash     hash.Hash
	ParentHashes []hash.Hash
	Author       Signature
	Committer    Signature
	Message      string
}

// NumParents reports how many parents c has (0 for a root commit, 1 for a
// normal commit, ≥2 for a merge).
func (c *Commit) NumParents() int { return len(c.ParentHashes) }

// Encode serializes the commit's text body (spec.md §3):
//
//	tree <hash>
//	parent <hash>      (0..k times)
//	author <person-line>
//	committer <person-line>
//
//	<message>
func (c *Commit) Encode() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", c.TreeHash)
	for _, p := range c.ParentHashes {
		fmt.Fprintf(&buf, "parent %s\n", p)
	}
	fmt.Fprintf(&buf, "author %s\n", c.Author)
	fmt.Fprintf(&buf, "committer %s\n", c.Committer)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// Hash returns the SHA-1 of the commit's framed payload.
func (c *Commit) Hash() hash.Hash { return HashOf(CommitObject, c.Encode()) }

// DecodeCommit parses a Commit body (post-Unframe).
func DecodeCommit(body []byte) (*Commit, error) {
	c := &Commit{}
	r := bufio.NewReader(bytes.NewReader(body))

	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("object: truncated commit header")
		}
		trimmed := strings.TrimSuffix(line, "\n")
		if trimmed == "" {
			break
		}

		sp := strings.IndexByte(trimmed, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("object: malformed commit header line %q", trimmed)
		}
		key, val := trimmed[:sp], trimmed[sp+1:]

		switch key {
		case "tree":
			h, err := hash.FromHex(val)
			if err != nil {
				return nil, fmt.Errorf("object: malformed commit tree hash: %w", err)
			}
			c.TreeHash = h
		case "parent":
			h, err := hash.FromHex(val)
			if err != nil {
				return nil, fmt.Errorf("object: malformed commit parent hash: %w", err)
			}
			c.ParentHashes = append(c.ParentHashes, h)
		case "author":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, err
			}
			c.Author = sig
		case "committer":
			sig, err := ParseSignature(val)
			if err != nil {
				return nil, err
			}
			c.Committer = sig
		default:
			return nil, fmt.Errorf("object: unknown commit header key %q", key)
		}
	}

	rest, _ := io.ReadAll(r)
	c.Message = string(rest)
	return c, nil
}
