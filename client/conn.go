// Package client implements push/fetch/clone/pull against a biogit
// server (spec.md §4.9): connection setup, object negotiation, and ref
// update sequencing over the wire protocol.
//
// Grounded on go-git's plumbing/transport client/session split (a
// connection-level handle plus higher-level FetchPack/PushPack
// operations built on it) adapted to biogit's own framed protocol
// instead of git's pkt-line + pack-protocol, and on dolthub/dolt and
// antgroup/hugescm's use of golang.org/x/sync/errgroup to bound
// concurrent round trips during transfer instead of an unbounded
// goroutine fan-out.
package client

import (
	"fmt"
	"net"
	"time"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
	"github.com/biogit/biogit/wire"
)

// Conn is a single authenticated connection to a biogit server, bound to
// a repository after TargetRepo succeeds. The wire protocol allows at
// most one in-flight request per connection (spec.md §4.8), so a Conn
// is not safe for concurrent use — callers that want concurrent object
// transfer open a pool of Conns (see pool.go).
type Conn struct {
	nc    net.Conn
	token string
	repo  string // relative repo path, set once TargetRepo succeeds
}

// DialTimeout opens a raw, unauthenticated connection to addr.
func DialTimeout(addr string, timeout time.Duration) (*Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Conn{nc: nc}, nil
}

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.nc.Close() }

// Register creates a new user account on the server.
func (c *Conn) Register(username, password string) error {
	if err := wire.WriteFrame(c.nc, wire.MsgRegisterUser, wire.EncodeCredentials(wire.Credentials{Username: username, Password: password})); err != nil {
		return err
	}
	f, err := wire.ReadFrame(c.nc)
	if err != nil {
		return err
	}
	if f.MsgID != wire.MsgRegisterOK {
		reason, _ := wire.DecodeError(f.Body)
		return fmt.Errorf("client: register rejected: %s", reason)
	}
	return nil
}

// Login authenticates and stores the resulting token on c for use by
// every subsequent request this connection sends.
func (c *Conn) Login(username, password string) error {
	if err := wire.WriteFrame(c.nc, wire.MsgLoginUser, wire.EncodeCredentials(wire.Credentials{Username: username, Password: password})); err != nil {
		return err
	}
	f, err := wire.ReadFrame(c.nc)
	if err != nil {
		return err
	}
	if f.MsgID != wire.MsgLoginOK {
		reason, _ := wire.DecodeError(f.Body)
		return fmt.Errorf("%w: %s", errs.ErrInvalidCredentials, reason)
	}
	token, err := wire.DecodeLoginOK(f.Body)
	if err != nil {
		return err
	}
	c.token = token
	return nil
}

// WithToken builds a Conn that reuses an already-issued token, for
// opening additional pool connections without re-authenticating
// (spec.md §4.11: tokens are stateless and carry their own validity).
func WithToken(addr, token string, timeout time.Duration) (*Conn, error) {
	nc, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("client: dial %s: %w", addr, err)
	}
	return &Conn{nc: nc, token: token}, nil
}

// Token returns the connection's current session token.
func (c *Conn) Token() string { return c.token }

// TargetRepo selects repoPath as this connection's bound repository.
func (c *Conn) TargetRepo(repoPath string) error {
	if err := wire.WriteFrame(c.nc, wire.MsgTargetRepo, wire.EncodeTargetRepo(c.token, repoPath)); err != nil {
		return err
	}
	f, err := wire.ReadFrame(c.nc)
	if err != nil {
		return err
	}
	if f.MsgID != wire.MsgTargetRepoAck {
		reason, _ := wire.DecodeError(f.Body)
		return fmt.Errorf("client: target repo %q rejected: %s", repoPath, reason)
	}
	c.repo = repoPath
	return nil
}

// request sends one token-prefixed request and returns its single
// response frame.
func (c *Conn) request(msgID uint16, payload []byte) (wire.Frame, error) {
	body := wire.EncodeTokenPrefixed(c.token, payload)
	if err := wire.WriteFrame(c.nc, msgID, body); err != nil {
		return wire.Frame{}, err
	}
	return wire.ReadFrame(c.nc)
}

// ListRefs returns every ref the server reports (including HEAD), keyed
// by name, value as the server sent it: a 40-hex hash, or "ref: <target>"
// for a symbolic HEAD.
func (c *Conn) ListRefs() (map[string]string, error) {
	body := wire.EncodeTokenPrefixed(c.token, nil)
	if err := wire.WriteFrame(c.nc, wire.MsgListRefs, body); err != nil {
		return nil, err
	}
	f, err := wire.ReadFrame(c.nc)
	if err != nil {
		return nil, err
	}
	if f.MsgID != wire.MsgRefsListBegin {
		return nil, fmt.Errorf("%w: expected REFS_LIST_BEGIN, got msg %d", errs.ErrProtocolError, f.MsgID)
	}

	out := map[string]string{}
	for {
		f, err := wire.ReadFrame(c.nc)
		if err != nil {
			return nil, err
		}
		if f.MsgID == wire.MsgRefsListEnd {
			return out, nil
		}
		if f.MsgID != wire.MsgRefsEntry {
			return nil, fmt.Errorf("%w: expected REFS_ENTRY, got msg %d", errs.ErrProtocolError, f.MsgID)
		}
		e, err := wire.DecodeRefEntry(f.Body)
		if err != nil {
			return nil, err
		}
		out[e.Name] = e.Value
	}
}

// CheckObjects reports, in request order, which of hashes the server
// already has.
func (c *Conn) CheckObjects(hashes []hash.Hash) ([]bool, error) {
	f, err := c.request(wire.MsgCheckObjects, wire.EncodeCheckObjects(hashes))
	if err != nil {
		return nil, err
	}
	if f.MsgID != wire.MsgCheckObjectsResult {
		return nil, fmt.Errorf("%w: expected CHECK_OBJECTS_RESULT, got msg %d", errs.ErrProtocolError, f.MsgID)
	}
	return wire.DecodeCheckObjectsResult(f.Body)
}

// PutObject uploads one object's raw "type size\0content" bytes.
func (c *Conn) PutObject(h hash.Hash, raw []byte) error {
	f, err := c.request(wire.MsgPutObject, wire.EncodePutObject(h, raw))
	if err != nil {
		return err
	}
	if f.MsgID != wire.MsgAckOK {
		reason, _ := wire.DecodeError(f.Body)
		return fmt.Errorf("client: put-object %s rejected: %s", h, reason)
	}
	return nil
}

// GetObject fetches one object's raw bytes, reporting found=false on
// OBJECT_NOT_FOUND rather than an error.
func (c *Conn) GetObject(h hash.Hash) (raw []byte, found bool, err error) {
	f, err := c.request(wire.MsgGetObject, wire.EncodeGetObject(h))
	if err != nil {
		return nil, false, err
	}
	switch f.MsgID {
	case wire.MsgObjectContent:
		_, raw, err := wire.DecodeObjectContent(f.Body)
		return raw, true, err
	case wire.MsgObjectNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("%w: unexpected response msg %d to GET_OBJECT", errs.ErrProtocolError, f.MsgID)
	}
}

// UpdateRef asks the server to move ref to req.New.
func (c *Conn) UpdateRef(req wire.UpdateRefRequest) error {
	f, err := c.request(wire.MsgUpdateRef, wire.EncodeUpdateRef(req))
	if err != nil {
		return err
	}
	if f.MsgID == wire.MsgRefUpdated {
		return nil
	}
	reason, _ := wire.DecodeRefUpdateDenied(f.Body)
	return fmt.Errorf("%w: %s", errs.ErrNotFastForward, reason)
}
