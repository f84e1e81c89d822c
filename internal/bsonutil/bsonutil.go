// Package bsonutil carries small typed-lookup helpers, used by
// pkg/handlers, for pulling fields out of a
// bsoncore.Document, the BSON runtime used throughout
// (go.mongodb.org/mongo-driver/v2's x/bsonx/bsoncore), the same package
// the teacher's pkg/core/proxy/integrations/mongo uses for the outgoing
// direction — reused here for the inbound, server-authoritative side.
package bsonutil

import (
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
)

// LookupString returns doc[key] as a string.
func LookupString(doc bsoncore.Document, key string) (string, bool) {
	v := doc.Lookup(key)
	return v.StringValueOK()
}

// LookupDocument returns doc[key] as a nested document.
func LookupDocument(doc bsoncore.Document, key string) (bsoncore.Document, bool) {
	v := doc.Lookup(key)
	d, ok := v.DocumentOK()
	return bsoncore.Document(d), ok
}

// LookupArray returns doc[key]'s elements.
func LookupArray(doc bsoncore.Document, key string) ([]bsoncore.Value, bool) {
	v := doc.Lookup(key)
	arr, ok := v.ArrayOK()
	if !ok {
		return nil, false
	}
	values, err := bsoncore.Array(arr).Values()
	if err != nil {
		return nil, false
	}
	return values, true
}

// LookupInt64 returns doc[key] widened to int64, accepting int32, int64,
// or double representations (clients vary which they send), or def if
// the key is absent or not numeric.
func LookupInt64(doc bsoncore.Document, key string, def int64) int64 {
	v := doc.Lookup(key)
	if i, ok := v.Int64OK(); ok {
		return i
	}
	if i, ok := v.Int32OK(); ok {
		return int64(i)
	}
	if f, ok := v.DoubleOK(); ok {
		return int64(f)
	}
	return def
}

// LookupBool returns doc[key] as a bool, or def if absent or not boolean.
func LookupBool(doc bsoncore.Document, key string, def bool) bool {
	v := doc.Lookup(key)
	if b, ok := v.BooleanOK(); ok {
		return b
	}
	return def
}

// DocumentsFromArray filters values down to the ones holding a nested
// document, discarding anything else.
func DocumentsFromArray(values []bsoncore.Value) []bsoncore.Document {
	out := make([]bsoncore.Document, 0, len(values))
	for _, v := range values {
		if d, ok := v.DocumentOK(); ok {
			out = append(out, bsoncore.Document(d))
		}
	}
	return out
}

// PayloadBytes extracts a binary or string-typed payload field — SASL
// messages arrive as BSON binary over the wire, but some client drivers
// send base64-decoded raw strings instead.
func PayloadBytes(doc bsoncore.Document, key string) []byte {
	v := doc.Lookup(key)
	if b, _, ok := v.BinaryOK(); ok {
		return b
	}
	if s, ok := v.StringValueOK(); ok {
		return []byte(s)
	}
	return nil
}
