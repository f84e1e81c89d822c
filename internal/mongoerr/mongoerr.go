// Package mongoerr builds the `{ ok:0, errmsg, code, codeName }` error
// envelopes spec §4.4/§7 requires, using MongoDB's published numeric
// codes where clients are known to rely on them.
package mongoerr

import (
	"errors"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
)

// Code is one of the taxonomy's MongoDB-compatible numeric error codes.
type Code struct {
	Number   int32
	Name     string
}

var (
	BadValue             = Code{2, "BadValue"}
	Unauthorized         = Code{13, "Unauthorized"}
	AuthenticationFailed = Code{18, "AuthenticationFailed"}
	CommandNotFound      = Code{59, "CommandNotFound"}
	NamespaceNotFound    = Code{26, "NamespaceNotFound"}
	CursorNotFound       = Code{43, "CursorNotFound"}
	InternalError        = Code{1, "InternalError"}
)

// CodedError pairs a Code with a human-readable message, so handlers can
// return a normal Go error while still controlling the wire code/codeName.
type CodedError struct {
	Code Code
	Msg  string
}

func (e *CodedError) Error() string { return e.Msg }

// New constructs a CodedError.
func New(code Code, msg string) error {
	return &CodedError{Code: code, Msg: msg}
}

// Response builds the `{ok:0, errmsg, code, codeName}` envelope directly.
func Response(code Code, msg string) bsoncore.Document {
	raw, _ := bson.Marshal(bson.M{
		"ok":       float64(0),
		"errmsg":   msg,
		"code":     code.Number,
		"codeName": code.Name,
	})
	return bsoncore.Document(raw)
}

// ResponseFromError converts any error into a response envelope: a
// *CodedError keeps its code/codeName; anything else becomes InternalError
// with the error's message preserved verbatim (spec §7: "reply carries the
// exception message").
func ResponseFromError(err error) bsoncore.Document {
	var coded *CodedError
	if errors.As(err, &coded) {
		return Response(coded.Code, coded.Msg)
	}
	return Response(InternalError, err.Error())
}
