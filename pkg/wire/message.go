// Package wire implements the MongoDB wire-protocol frame codec: parsing
// OP_MSG/OP_QUERY requests from a byte stream, serializing OP_MSG/OP_REPLY
// responses, and extracting the command document, target database, and
// document sequences a handler needs.
//
// The decode side follows the same wiremessage/bsoncore-based approach the
// teacher's outgoing-proxy mongo integration uses to decode traffic it is
// intercepting (pkg/core/proxy/integrations/mongo/operation.go in the
// reference corpus); this package adapts that approach to the inbound,
// authoritative server direction and adds response serialization, which an
// intercepting proxy never needed to do itself.
package wire

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/wiremessage"
)

// HeaderSize is the fixed 16-byte MongoDB wire message header.
const HeaderSize = 16

// Reply-only opcode; OP_QUERY/OP_MSG are provided by wiremessage.OpQuery/OpMsg.
const opReply = wiremessage.OpReply

// ErrMalformedHeader indicates the leading 16 bytes didn't parse, or the
// declared length didn't match reality closely enough to trust framing at
// all; when Stream.Feed returns it the connection is closed, since there is
// no way to resync. Extract also wraps it for a malformed body or command
// document inside a well-framed message, which the server answers with an
// error reply while keeping the connection open.
var ErrMalformedHeader = errors.New("wire: malformed message header")

// ErrUnsupportedOpCode is returned for any opcode other than OP_MSG/OP_QUERY.
var ErrUnsupportedOpCode = errors.New("wire: unsupported opcode")

// Header is the 16-byte little-endian MongoDB message header.
type Header struct {
	Length     int32
	RequestID  int32
	ResponseTo int32
	OpCode     wiremessage.OpCode
}

// Message is a single framed wire message: its header and the raw body
// bytes that follow it (not including the header itself).
type Message struct {
	Header Header
	Body   []byte
}

// DocumentSequence is a decoded OP_MSG kind-1 section: an identifier
// ("documents", "updates", "deletes", ...) and the documents it carries.
type DocumentSequence struct {
	Identifier string
	Documents  []bsoncore.Document
}

// Extracted is what a router needs from a parsed message: the target
// database, the command document, its normalized command name, and any
// document sequences merged in by identifier.
type Extracted struct {
	DB                string
	CommandName       string
	Command           bsoncore.Document
	DocumentSequences map[string][]bsoncore.Document
}

// Parse decodes a single, complete wire message (header + body) from raw.
// It does not accept partial messages; use Stream for byte-stream framing.
func Parse(raw []byte) (*Message, error) {
	length, reqID, responseTo, opCode, body, ok := wiremessage.ReadHeader(raw)
	if !ok {
		return nil, ErrMalformedHeader
	}
	if length < HeaderSize || int(length) != len(raw) {
		return nil, fmt.Errorf("%w: declared length %d, actual %d", ErrMalformedHeader, length, len(raw))
	}
	switch opCode {
	case wiremessage.OpMsg, wiremessage.OpQuery:
	default:
		return nil, fmt.Errorf("%w: opcode %d", ErrUnsupportedOpCode, opCode)
	}
	return &Message{
		Header: Header{Length: length, RequestID: reqID, ResponseTo: responseTo, OpCode: opCode},
		Body:   body,
	}, nil
}

// Raw re-serializes a Message back into its wire bytes; used for round-trip
// testing (parse(serialize(m)) == m).
func (m *Message) Raw() []byte {
	var buf []byte
	idx, buf := wiremessage.AppendHeaderStart(buf, m.Header.RequestID, m.Header.ResponseTo, m.Header.OpCode)
	buf = append(buf, m.Body...)
	buf = bsoncore.UpdateLength(buf, idx, int32(len(buf[idx:])))
	return buf
}
