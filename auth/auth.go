// Package auth implements the stateless token manager (spec.md §4.11):
// self-describing tokens signed with a server secret, no session table.
//
// The signing algorithm (SHA-1 over payload+secret) is pinned by the
// spec itself rather than left to implementation choice, so this package
// uses crypto/sha1 directly rather than reaching for a pack dependency —
// there is no HMAC/signing library in the retrieval pack this would be
// grounded on, and substituting one would change the wire-visible token
// format spec.md §4.11 fixes (see DESIGN.md).
package auth

import (
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/biogit/biogit/errs"
)

// DefaultTTL is the default token lifetime (spec.md §4.11).
const DefaultTTL = 3600 * time.Second

// Signer issues and validates tokens using a shared server secret.
type Signer struct {
	secret []byte
}

// NewSigner returns a Signer using secret to sign and verify tokens.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret}
}

// Issue returns a token for username valid for ttl from now. A zero ttl
// selects DefaultTTL; a negative ttl yields an already-expired token.
func (s *Signer) Issue(username string, ttl time.Duration) string {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	expiry := time.Now().Add(ttl).Unix()
	return s.issueAt(username, expiry)
}

func (s *Signer) issueAt(username string, expiryUnix int64) string {
	payload := fmt.Sprintf("%s.%d", username, expiryUnix)
	encoded := base64.StdEncoding.EncodeToString([]byte(payload))
	sig := s.sign(payload)
	return encoded + "." + sig
}

func (s *Signer) sign(payload string) string {
	h := sha1.New()
	h.Write([]byte(payload))
	h.Write(s.secret)
	return fmt.Sprintf("%x", h.Sum(nil))
}

// Validate recomputes the signature and checks expiry, returning the
// embedded username on success.
func (s *Signer) Validate(token string) (string, error) {
	dot := strings.LastIndexByte(token, '.')
	if dot < 0 {
		return "", fmt.Errorf("%w: malformed token", errs.ErrInvalidCredentials)
	}
	encoded, sig := token[:dot], token[dot+1:]

	payloadBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: malformed token encoding", errs.ErrInvalidCredentials)
	}
	payload := string(payloadBytes)

	if s.sign(payload) != sig {
		return "", fmt.Errorf("%w: signature mismatch", errs.ErrInvalidCredentials)
	}

	sep := strings.LastIndexByte(payload, '.')
	if sep < 0 {
		return "", fmt.Errorf("%w: malformed token payload", errs.ErrInvalidCredentials)
	}
	username := payload[:sep]
	expiry, err := strconv.ParseInt(payload[sep+1:], 10, 64)
	if err != nil {
		return "", fmt.Errorf("%w: malformed token expiry", errs.ErrInvalidCredentials)
	}
	if time.Now().Unix() > expiry {
		return "", fmt.Errorf("%w: token expired", errs.ErrAuthRequired)
	}
	return username, nil
}
