// Package wire implements the biogit network protocol framing and
// message codecs (spec.md §4.8, §6, §9): a 6-byte header followed by a
// body, read and written over plain TCP connections.
//
// Grounded on go-git's plumbing/format/pktline package — another
// length-prefixed line protocol reader/writer pair built directly over
// io.Reader/io.Writer with no external framing library — adapted here to
// biogit's fixed 6-byte binary header instead of pktline's 4-hex-digit
// text length prefix.
package wire

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/biogit/biogit/errs"
)

// Message IDs (spec.md §4.8, §6).
const (
	MsgListRefs      uint16 = 2001
	MsgGetObject     uint16 = 2002
	MsgCheckObjects  uint16 = 2003
	MsgPutObject     uint16 = 2004
	MsgUpdateRef     uint16 = 2005
	MsgTargetRepo    uint16 = 2010
	MsgRegisterUser  uint16 = 2020
	MsgLoginUser     uint16 = 2021

	MsgRefsListBegin       uint16 = 3001
	MsgRefsEntry           uint16 = 3002
	MsgRefsListEnd         uint16 = 3003
	MsgObjectContent       uint16 = 3004
	MsgObjectNotFound      uint16 = 3005
	MsgCheckObjectsResult  uint16 = 3006
	MsgAckOK               uint16 = 3007
	MsgRefUpdated          uint16 = 3008
	MsgRefUpdateDenied     uint16 = 3009
	MsgTargetRepoAck       uint16 = 3010
	MsgTargetRepoError     uint16 = 3011
	MsgAuthRequired        uint16 = 3012
	MsgError               uint16 = 3013
	MsgLoginOK             uint16 = 3014
	MsgRegisterOK          uint16 = 3015
)

// HeaderSize is the fixed "<u16 msg_id><u32 body_length>" header length.
const HeaderSize = 2 + 4

// MaxBodyLength is the recommended cap on a declared body length
// (spec.md §5); a frame declaring more closes the connection.
const MaxBodyLength = 64 << 20

// Frame is one decoded protocol message.
type Frame struct {
	MsgID uint16
	Body  []byte
}

// ReadFrame reads one complete frame from r, handling a header or body
// split across multiple TCP reads (spec.md §9) via io.ReadFull. A
// declared body length over MaxBodyLength is a protocol error that the
// caller must treat as fatal (close the connection, spec.md §7).
func ReadFrame(r io.Reader) (Frame, error) {
	var header [HeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, fmt.Errorf("%w: reading frame header: %v", errs.ErrProtocolError, err)
	}

	msgID := binary.BigEndian.Uint16(header[0:2])
	bodyLen := binary.BigEndian.Uint32(header[2:6])
	if bodyLen > MaxBodyLength {
		return Frame{}, fmt.Errorf("%w: declared body length %d exceeds cap %d", errs.ErrProtocolError, bodyLen, MaxBodyLength)
	}

	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return Frame{}, fmt.Errorf("%w: reading frame body: %v", errs.ErrProtocolError, err)
	}
	return Frame{MsgID: msgID, Body: body}, nil
}

// WriteFrame writes msgID/body as one frame to w.
func WriteFrame(w io.Writer, msgID uint16, body []byte) error {
	if len(body) > MaxBodyLength {
		return fmt.Errorf("%w: body length %d exceeds cap %d", errs.ErrProtocolError, len(body), MaxBodyLength)
	}
	var header [HeaderSize]byte
	binary.BigEndian.PutUint16(header[0:2], msgID)
	binary.BigEndian.PutUint32(header[2:6], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("%w: writing frame header: %v", errs.ErrIO, err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("%w: writing frame body: %v", errs.ErrIO, err)
	}
	return nil
}
