package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/biogit/biogit/errs"
	"github.com/biogit/biogit/hash"
)

// splitNUL splits body at the first NUL byte, returning the part before
// it and the remainder after. Every textual payload in spec.md §6 is
// NUL-delimited fields ("<token>\0<payload>", "<name>\0<value>\0", ...).
func splitNUL(body []byte) (head, rest []byte, ok bool) {
	i := bytes.IndexByte(body, 0)
	if i < 0 {
		return nil, nil, false
	}
	return body[:i], body[i+1:], true
}

// EncodeTokenPrefixed prepends "<token>\0" to payload, the envelope every
// 2001-2005/2010 request body carries (spec.md §4.10).
func EncodeTokenPrefixed(token string, payload []byte) []byte {
	return append([]byte(token+"\x00"), payload...)
}

// DecodeTokenPrefixed splits a token-prefixed request body.
func DecodeTokenPrefixed(body []byte) (token string, payload []byte, err error) {
	head, rest, ok := splitNUL(body)
	if !ok {
		return "", nil, fmt.Errorf("%w: missing token terminator", errs.ErrProtocolError)
	}
	return string(head), rest, nil
}

// EncodeTargetRepo builds a TARGET_REPO (2010) request body:
// <token>\0<repo_relative_path>\0.
func EncodeTargetRepo(token, repoPath string) []byte {
	return []byte(token + "\x00" + repoPath + "\x00")
}

// DecodeTargetRepo parses a TARGET_REPO request body.
func DecodeTargetRepo(body []byte) (token, repoPath string, err error) {
	token, rest, err := DecodeTokenPrefixed(body)
	if err != nil {
		return "", "", err
	}
	path, _, ok := splitNUL(rest)
	if !ok {
		return "", "", fmt.Errorf("%w: missing repo path terminator", errs.ErrProtocolError)
	}
	return token, string(path), nil
}

// RefEntry is one ref reported by LIST_REFS: Value is "ref: <target>" for
// a symbolic HEAD, else a 40-hex hash.
type RefEntry struct {
	Name  string
	Value string
}

// EncodeRefEntry builds a REFS_ENTRY (3002) body: <name>\0<value>\0.
func EncodeRefEntry(e RefEntry) []byte {
	return []byte(e.Name + "\x00" + e.Value + "\x00")
}

// DecodeRefEntry parses a REFS_ENTRY body.
func DecodeRefEntry(body []byte) (RefEntry, error) {
	name, rest, ok := splitNUL(body)
	if !ok {
		return RefEntry{}, fmt.Errorf("%w: missing ref name terminator", errs.ErrProtocolError)
	}
	value, _, ok := splitNUL(rest)
	if !ok {
		return RefEntry{}, fmt.Errorf("%w: missing ref value terminator", errs.ErrProtocolError)
	}
	return RefEntry{Name: string(name), Value: string(value)}, nil
}

// EncodeGetObject builds a GET_OBJECT (2002) request body (after the
// token prefix is stripped/added by the caller): the bare 40-hex hash.
func EncodeGetObject(h hash.Hash) []byte {
	return []byte(h.String())
}

// DecodeGetObject parses a GET_OBJECT request body.
func DecodeGetObject(body []byte) (hash.Hash, error) {
	if len(body) != hash.HexSize {
		return hash.Zero, fmt.Errorf("%w: GET_OBJECT body length %d, want %d", errs.ErrProtocolError, len(body), hash.HexSize)
	}
	return hash.FromHex(string(body))
}

// EncodeObjectContent builds an OBJECT_CONTENT (3004) response body:
// <40-hex><raw object bytes>.
func EncodeObjectContent(h hash.Hash, raw []byte) []byte {
	out := make([]byte, 0, hash.HexSize+len(raw))
	out = append(out, []byte(h.String())...)
	return append(out, raw...)
}

// DecodeObjectContent parses an OBJECT_CONTENT response body.
func DecodeObjectContent(body []byte) (hash.Hash, []byte, error) {
	if len(body) < hash.HexSize {
		return hash.Zero, nil, fmt.Errorf("%w: OBJECT_CONTENT body too short", errs.ErrProtocolError)
	}
	h, err := hash.FromHex(string(body[:hash.HexSize]))
	if err != nil {
		return hash.Zero, nil, fmt.Errorf("%w: %v", errs.ErrProtocolError, err)
	}
	return h, body[hash.HexSize:], nil
}

// EncodeObjectNotFound builds an OBJECT_NOT_FOUND (3005) body: the
// missing object's 40-hex hash.
func EncodeObjectNotFound(h hash.Hash) []byte { return []byte(h.String()) }

// DecodeObjectNotFound parses an OBJECT_NOT_FOUND body.
func DecodeObjectNotFound(body []byte) (hash.Hash, error) {
	return hash.FromHex(string(body))
}

// EncodeCheckObjects builds a CHECK_OBJECTS (2003) request body:
// <u32_be count><40-hex>×count.
func EncodeCheckObjects(hashes []hash.Hash) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(hashes)))
	buf.Write(countBuf[:])
	for _, h := range hashes {
		buf.WriteString(h.String())
	}
	return buf.Bytes()
}

// DecodeCheckObjects parses a CHECK_OBJECTS request body.
func DecodeCheckObjects(body []byte) ([]hash.Hash, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: CHECK_OBJECTS body too short", errs.ErrProtocolError)
	}
	count := binary.BigEndian.Uint32(body[:4])
	body = body[4:]
	if uint64(len(body)) != uint64(count)*hash.HexSize {
		return nil, fmt.Errorf("%w: CHECK_OBJECTS body length mismatch for count %d", errs.ErrProtocolError, count)
	}
	hashes := make([]hash.Hash, count)
	for i := range hashes {
		h, err := hash.FromHex(string(body[i*hash.HexSize : (i+1)*hash.HexSize]))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errs.ErrProtocolError, err)
		}
		hashes[i] = h
	}
	return hashes, nil
}

// EncodeCheckObjectsResult builds a CHECK_OBJECTS_RESULT (3006) body:
// <u32_be count><byte×count>, 0x01 present / 0x00 absent, matching
// request order.
func EncodeCheckObjectsResult(present []bool) []byte {
	var buf bytes.Buffer
	var countBuf [4]byte
	binary.BigEndian.PutUint32(countBuf[:], uint32(len(present)))
	buf.Write(countBuf[:])
	for _, p := range present {
		if p {
			buf.WriteByte(0x01)
		} else {
			buf.WriteByte(0x00)
		}
	}
	return buf.Bytes()
}

// DecodeCheckObjectsResult parses a CHECK_OBJECTS_RESULT body.
func DecodeCheckObjectsResult(body []byte) ([]bool, error) {
	if len(body) < 4 {
		return nil, fmt.Errorf("%w: CHECK_OBJECTS_RESULT body too short", errs.ErrProtocolError)
	}
	count := binary.BigEndian.Uint32(body[:4])
	body = body[4:]
	if uint64(len(body)) != uint64(count) {
		return nil, fmt.Errorf("%w: CHECK_OBJECTS_RESULT body length mismatch", errs.ErrProtocolError)
	}
	out := make([]bool, count)
	for i, b := range body {
		out[i] = b == 0x01
	}
	return out, nil
}

// EncodePutObject builds a PUT_OBJECT (2004) request body: <40-hex><raw
// object bytes>.
func EncodePutObject(h hash.Hash, raw []byte) []byte {
	return EncodeObjectContent(h, raw) // identical wire shape
}

// DecodePutObject parses a PUT_OBJECT request body.
func DecodePutObject(body []byte) (hash.Hash, []byte, error) {
	return DecodeObjectContent(body)
}

// UpdateRefRequest is an UPDATE_REF (2005) request.
type UpdateRefRequest struct {
	Force       bool
	RefName     string
	New         hash.Hash
	ExpectedOld *hash.Hash // nil when absent
}

// EncodeUpdateRef builds an UPDATE_REF request body:
// <force:u8><ref_name>\0<new:40-hex>[<expected_old:40-hex>].
func EncodeUpdateRef(r UpdateRefRequest) []byte {
	var buf bytes.Buffer
	if r.Force {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	buf.WriteString(r.RefName)
	buf.WriteByte(0)
	buf.WriteString(r.New.String())
	if r.ExpectedOld != nil {
		buf.WriteString(r.ExpectedOld.String())
	}
	return buf.Bytes()
}

// DecodeUpdateRef parses an UPDATE_REF request body.
func DecodeUpdateRef(body []byte) (UpdateRefRequest, error) {
	if len(body) < 1 {
		return UpdateRefRequest{}, fmt.Errorf("%w: UPDATE_REF body too short", errs.ErrProtocolError)
	}
	force := body[0] != 0
	rest := body[1:]

	name, rest, ok := splitNUL(rest)
	if !ok {
		return UpdateRefRequest{}, fmt.Errorf("%w: missing ref name terminator", errs.ErrProtocolError)
	}
	if len(rest) < hash.HexSize {
		return UpdateRefRequest{}, fmt.Errorf("%w: UPDATE_REF missing new hash", errs.ErrProtocolError)
	}
	newHash, err := hash.FromHex(string(rest[:hash.HexSize]))
	if err != nil {
		return UpdateRefRequest{}, fmt.Errorf("%w: %v", errs.ErrProtocolError, err)
	}
	rest = rest[hash.HexSize:]

	req := UpdateRefRequest{Force: force, RefName: string(name), New: newHash}
	if len(rest) > 0 {
		if len(rest) != hash.HexSize {
			return UpdateRefRequest{}, fmt.Errorf("%w: UPDATE_REF malformed expected_old", errs.ErrProtocolError)
		}
		old, err := hash.FromHex(string(rest))
		if err != nil {
			return UpdateRefRequest{}, fmt.Errorf("%w: %v", errs.ErrProtocolError, err)
		}
		req.ExpectedOld = &old
	}
	return req, nil
}

// EncodeRefUpdateDenied builds a REF_UPDATE_DENIED (3009) body:
// <reason>\0.
func EncodeRefUpdateDenied(reason string) []byte {
	return []byte(reason + "\x00")
}

// DecodeRefUpdateDenied parses a REF_UPDATE_DENIED body.
func DecodeRefUpdateDenied(body []byte) (string, error) {
	reason, _, ok := splitNUL(body)
	if !ok {
		return "", fmt.Errorf("%w: missing reason terminator", errs.ErrProtocolError)
	}
	return string(reason), nil
}

// Credentials is a REGISTER_USER (2020) or LOGIN_USER (2021) request body:
// <username>\0<password>\0.
type Credentials struct {
	Username string
	Password string
}

// EncodeCredentials builds a REGISTER_USER/LOGIN_USER request body.
func EncodeCredentials(c Credentials) []byte {
	return []byte(c.Username + "\x00" + c.Password + "\x00")
}

// DecodeCredentials parses a REGISTER_USER/LOGIN_USER request body.
func DecodeCredentials(body []byte) (Credentials, error) {
	username, rest, ok := splitNUL(body)
	if !ok {
		return Credentials{}, fmt.Errorf("%w: missing username terminator", errs.ErrProtocolError)
	}
	password, _, ok := splitNUL(rest)
	if !ok {
		return Credentials{}, fmt.Errorf("%w: missing password terminator", errs.ErrProtocolError)
	}
	return Credentials{Username: string(username), Password: string(password)}, nil
}

// EncodeLoginOK builds a LOGIN_OK (3014) response body: <token>\0.
func EncodeLoginOK(token string) []byte {
	return []byte(token + "\x00")
}

// DecodeLoginOK parses a LOGIN_OK body.
func DecodeLoginOK(body []byte) (string, error) {
	token, _, ok := splitNUL(body)
	if !ok {
		return "", fmt.Errorf("%w: missing token terminator", errs.ErrProtocolError)
	}
	return string(token), nil
}

// EncodeError builds an ERROR (3013) / TARGET_REPO_ERROR (3011) body:
// <reason>\0.
func EncodeError(reason string) []byte {
	return []byte(reason + "\x00")
}

// DecodeError parses an ERROR/TARGET_REPO_ERROR body.
func DecodeError(body []byte) (string, error) {
	reason, _, ok := splitNUL(body)
	if !ok {
		return "", fmt.Errorf("%w: missing reason terminator", errs.ErrProtocolError)
	}
	return string(reason), nil
}
