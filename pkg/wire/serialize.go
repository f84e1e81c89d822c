package wire

import (
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/wiremessage"
)

// SerializeReply picks OP_MSG vs OP_REPLY based on the opcode of the
// request it answers, and sets responseTo to that request's requestID,
// per spec §4.1.
func SerializeReply(requestOpCode wiremessage.OpCode, requestID, responseID int32, responseDoc bsoncore.Document) []byte {
	switch requestOpCode {
	case wiremessage.OpQuery:
		return SerializeOpReply(requestID, responseID, responseDoc)
	default:
		return SerializeOpMsgReply(requestID, responseID, responseDoc)
	}
}

// SerializeOpMsgReply builds a single-section (kind-0) OP_MSG carrying
// responseDoc, in reply to requestID.
func SerializeOpMsgReply(requestID, responseID int32, responseDoc bsoncore.Document) []byte {
	var buf []byte
	idx, buf := wiremessage.AppendHeaderStart(buf, responseID, requestID, wiremessage.OpMsg)
	buf = wiremessage.AppendMsgFlags(buf, 0)
	buf = wiremessage.AppendMsgSectionType(buf, wiremessage.SingleDocument)
	buf = append(buf, responseDoc...)
	buf = bsoncore.UpdateLength(buf, idx, int32(len(buf[idx:])))
	return buf
}

// SerializeOpReply builds a legacy OP_REPLY carrying a single document, for
// clients that spoke OP_QUERY.
func SerializeOpReply(requestID, responseID int32, responseDoc bsoncore.Document) []byte {
	var buf []byte
	idx, buf := wiremessage.AppendHeaderStart(buf, responseID, requestID, wiremessage.OpReply)
	buf = wiremessage.AppendReplyFlags(buf, 0)
	buf = wiremessage.AppendReplyCursorID(buf, 0)
	buf = wiremessage.AppendReplyStartingFrom(buf, 0)
	buf = wiremessage.AppendReplyNumberReturned(buf, 1)
	buf = append(buf, responseDoc...)
	buf = bsoncore.UpdateLength(buf, idx, int32(len(buf[idx:])))
	return buf
}
