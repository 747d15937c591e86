// Package server implements the per-connection session state machine and
// worker pool that dispatch wire protocol requests onto repository
// operations (spec.md §4.10, §5).
//
// Grounded on go-git's transport/server session handling for the shape of
// a stateful per-connection handler, and on the pack's server-shaped
// members (antgroup/hugescm, dolthub/dolt) for structured logrus logging
// of connection lifecycle and a semaphore-bounded worker pool instead of
// an unbounded goroutine-per-connection model.
package server

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/biogit/biogit/auth"
	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/merge"
	"github.com/biogit/biogit/refstore"
	"github.com/biogit/biogit/repo"
	"github.com/biogit/biogit/wire"
	"github.com/sirupsen/logrus"
)

// state is a session's position in the Unauthenticated -> Authenticated ->
// RepoBound state machine (spec.md §4.10).
type state int

const (
	stateUnauthenticated state = iota
	stateAuthenticated
	stateRepoBound
)

// maxAuthFailures closes the connection after this many invalid-token or
// bad-credential requests in a row (spec.md §7: "repeated auth failure"
// is a fatal condition).
const maxAuthFailures = 5

// Session holds per-connection state. All of it is touched only from the
// goroutine running Serve, so it needs no locking (spec.md §5: "accessed
// from a single thread").
type Session struct {
	conn        net.Conn
	reposRoot   string
	signer      *auth.Signer
	registry    *auth.Registry
	log         *logrus.Entry
	state       state
	username    string
	repo        *repo.Repository
	authFailure int
}

// newSession constructs a session bound to a freshly accepted connection.
func newSession(conn net.Conn, reposRoot string, signer *auth.Signer, registry *auth.Registry, log *logrus.Entry) *Session {
	return &Session{
		conn:      conn,
		reposRoot: reposRoot,
		signer:    signer,
		registry:  registry,
		log:       log.WithField("remote", conn.RemoteAddr().String()),
		state:     stateUnauthenticated,
	}
}

// Serve reads and dispatches frames until the connection closes, a
// protocol error occurs, or authentication fails too many times in a
// row (spec.md §5 "Cancellation & timeouts").
func (s *Session) Serve() {
	defer s.conn.Close()
	s.log.Info("session started")
	for {
		frame, err := wire.ReadFrame(s.conn)
		if err != nil {
			s.log.WithError(err).Info("session ended")
			return
		}
		if err := s.dispatch(frame); err != nil {
			s.log.WithError(err).Warn("fatal session error, closing")
			return
		}
		if s.authFailure >= maxAuthFailures {
			s.log.Warn("too many authentication failures, closing session")
			return
		}
	}
}

// dispatch handles one request frame, writing exactly one response frame
// (or a sequence, for LIST_REFS) unless the error returned is fatal.
func (s *Session) dispatch(frame wire.Frame) error {
	switch frame.MsgID {
	case wire.MsgRegisterUser:
		return s.handleRegister(frame.Body)
	case wire.MsgLoginUser:
		return s.handleLogin(frame.Body)
	case wire.MsgTargetRepo:
		return s.handleTargetRepo(frame.Body)
	case wire.MsgListRefs:
		return s.withRepo(frame.Body, s.handleListRefs)
	case wire.MsgGetObject:
		return s.withRepo(frame.Body, s.handleGetObject)
	case wire.MsgCheckObjects:
		return s.withRepo(frame.Body, s.handleCheckObjects)
	case wire.MsgPutObject:
		return s.withRepo(frame.Body, s.handlePutObject)
	case wire.MsgUpdateRef:
		return s.withRepo(frame.Body, s.handleUpdateRef)
	default:
		s.log.WithField("msg_id", frame.MsgID).Warn("illegal message id")
		return fmt.Errorf("%w: unknown message id %d", errs.ErrProtocolError, frame.MsgID)
	}
}

func (s *Session) handleRegister(body []byte) error {
	creds, err := wire.DecodeCredentials(body)
	if err != nil {
		return err
	}
	if err := s.registry.Register(creds.Username, creds.Password); err != nil {
		s.log.WithField("user", creds.Username).WithError(err).Info("registration rejected")
		return wire.WriteFrame(s.conn, wire.MsgError, wire.EncodeError(err.Error()))
	}
	s.log.WithField("user", creds.Username).Info("user registered")
	return wire.WriteFrame(s.conn, wire.MsgRegisterOK, nil)
}

// handleLogin accepts LOGIN_USER in stateUnauthenticated or
// stateAuthenticated (spec.md §4.10); success issues a token and moves
// the session to stateAuthenticated.
func (s *Session) handleLogin(body []byte) error {
	if s.state == stateRepoBound {
		return wire.WriteFrame(s.conn, wire.MsgError, wire.EncodeError("already repo-bound"))
	}
	creds, err := wire.DecodeCredentials(body)
	if err != nil {
		return err
	}
	if err := s.registry.Authenticate(creds.Username, creds.Password); err != nil {
		s.authFailure++
		s.log.WithField("user", creds.Username).Info("login failed")
		return wire.WriteFrame(s.conn, wire.MsgError, wire.EncodeError("invalid credentials"))
	}
	token := s.signer.Issue(creds.Username, auth.DefaultTTL)
	s.username = creds.Username
	s.state = stateAuthenticated
	s.authFailure = 0
	s.log.WithField("user", creds.Username).Info("login succeeded")
	return wire.WriteFrame(s.conn, wire.MsgLoginOK, wire.EncodeLoginOK(token))
}

// handleTargetRepo validates the token itself (its body carries its own
// token prefix, spec.md §6) and, on success, opens the named repository
// under reposRoot and moves the session to stateRepoBound.
func (s *Session) handleTargetRepo(body []byte) error {
	token, repoPath, err := wire.DecodeTargetRepo(body)
	if err != nil {
		return err
	}
	if _, err := s.validateToken(token); err != nil {
		return wire.WriteFrame(s.conn, wire.MsgAuthRequired, wire.EncodeError(err.Error()))
	}

	clean := filepath.Clean("/" + repoPath)
	full := filepath.Join(s.reposRoot, clean)
	r, err := repo.Open(full)
	if err != nil {
		s.log.WithField("repo", repoPath).WithError(err).Info("target repo rejected")
		return wire.WriteFrame(s.conn, wire.MsgTargetRepoError, wire.EncodeError(err.Error()))
	}
	s.repo = r
	s.state = stateRepoBound
	s.log.WithField("repo", repoPath).Info("repo bound")
	return wire.WriteFrame(s.conn, wire.MsgTargetRepoAck, nil)
}

// validateToken checks a token and counts failures toward maxAuthFailures.
func (s *Session) validateToken(token string) (string, error) {
	username, err := s.signer.Validate(token)
	if err != nil {
		s.authFailure++
		return "", err
	}
	s.authFailure = 0
	return username, nil
}

// withRepo validates the leading token prefix every 2001-2005 body
// carries, requires stateRepoBound, then calls fn with the remaining
// payload (spec.md §4.10).
func (s *Session) withRepo(body []byte, fn func(payload []byte) error) error {
	token, payload, err := wire.DecodeTokenPrefixed(body)
	if err != nil {
		return err
	}
	if _, err := s.validateToken(token); err != nil {
		return wire.WriteFrame(s.conn, wire.MsgAuthRequired, wire.EncodeError(err.Error()))
	}
	if s.state != stateRepoBound {
		return wire.WriteFrame(s.conn, wire.MsgError, wire.EncodeError("no repository selected"))
	}
	return fn(payload)
}

func (s *Session) handleListRefs(_ []byte) error {
	if err := wire.WriteFrame(s.conn, wire.MsgRefsListBegin, nil); err != nil {
		return err
	}

	head, err := s.repo.Refs.ReadHEAD()
	if err == nil {
		value := head.Target
		if !head.Symbolic {
			value = head.Hash.String()
		} else {
			value = "ref: " + value
		}
		if err := wire.WriteFrame(s.conn, wire.MsgRefsEntry, wire.EncodeRefEntry(wire.RefEntry{Name: refstore.HeadName, Value: value})); err != nil {
			return err
		}
	}

	for _, prefix := range []string{refstore.HeadsPrefix, refstore.TagsPrefix} {
		refs, err := s.repo.Refs.List(prefix)
		if err != nil {
			return err
		}
		for _, name := range refstore.SortedNames(refs) {
			entry := wire.RefEntry{Name: name, Value: refs[name].String()}
			if err := wire.WriteFrame(s.conn, wire.MsgRefsEntry, wire.EncodeRefEntry(entry)); err != nil {
				return err
			}
		}
	}
	return wire.WriteFrame(s.conn, wire.MsgRefsListEnd, nil)
}

func (s *Session) handleGetObject(payload []byte) error {
	h, err := wire.DecodeGetObject(payload)
	if err != nil {
		return err
	}
	raw, err := s.repo.Objects.ReadRaw(h)
	if err != nil {
		return wire.WriteFrame(s.conn, wire.MsgObjectNotFound, wire.EncodeObjectNotFound(h))
	}
	return wire.WriteFrame(s.conn, wire.MsgObjectContent, wire.EncodeObjectContent(h, raw))
}

func (s *Session) handleCheckObjects(payload []byte) error {
	hashes, err := wire.DecodeCheckObjects(payload)
	if err != nil {
		return err
	}
	present := make([]bool, len(hashes))
	for i, h := range hashes {
		present[i] = s.repo.Objects.Exists(h)
	}
	return wire.WriteFrame(s.conn, wire.MsgCheckObjectsResult, wire.EncodeCheckObjectsResult(present))
}

func (s *Session) handlePutObject(payload []byte) error {
	h, raw, err := wire.DecodePutObject(payload)
	if err != nil {
		return err
	}
	if err := s.repo.Objects.WriteRaw(h, raw); err != nil {
		s.log.WithField("hash", h.String()).WithError(err).Warn("put-object rejected")
		return wire.WriteFrame(s.conn, wire.MsgError, wire.EncodeError(err.Error()))
	}
	return wire.WriteFrame(s.conn, wire.MsgAckOK, []byte(h.String()))
}

func (s *Session) handleUpdateRef(payload []byte) error {
	req, err := wire.DecodeUpdateRef(payload)
	if err != nil {
		return err
	}
	if err := s.applyUpdateRef(req); err != nil {
		var reason string
		switch {
		case errors.Is(err, errs.ErrNotFastForward):
			reason = "not a fast-forward update"
		case errors.Is(err, errs.ErrRefMismatch):
			reason = "expected_old_hash does not match current value"
		default:
			reason = err.Error()
		}
		s.log.WithField("ref", req.RefName).WithError(err).Info("update-ref denied")
		return wire.WriteFrame(s.conn, wire.MsgRefUpdateDenied, wire.EncodeRefUpdateDenied(reason))
	}
	s.log.WithField("ref", req.RefName).WithField("new", req.New.String()).Info("ref updated")
	return wire.WriteFrame(s.conn, wire.MsgRefUpdated, nil)
}

// applyUpdateRef is the sole consistency anchor spec.md §5 requires:
// expected_old_hash compare-and-swap, or (absent that) a fast-forward
// check unless force is set.
func (s *Session) applyUpdateRef(req wire.UpdateRefRequest) error {
	if !strings.HasPrefix(req.RefName, refstore.HeadsPrefix) && !strings.HasPrefix(req.RefName, refstore.TagsPrefix) {
		return fmt.Errorf("%w: %q is not under refs/heads or refs/tags", errs.ErrInvalidRefName, req.RefName)
	}

	if req.ExpectedOld != nil {
		return s.repo.Refs.CompareAndSwap(req.RefName, req.New, req.ExpectedOld)
	}
	if req.Force {
		return s.repo.Refs.WriteRef(req.RefName, req.New)
	}

	current, err := s.repo.Refs.ReadRef(req.RefName)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return s.repo.Refs.WriteRef(req.RefName, req.New)
		}
		return err
	}
	base, err := merge.LCA(s.repo.Objects, current, req.New)
	if err != nil {
		return err
	}
	if base != current {
		return fmt.Errorf("%w: %s is not an ancestor of %s", errs.ErrNotFastForward, current, req.New)
	}
	return s.repo.Refs.WriteRef(req.RefName, req.New)
}
