package bsonutil_test

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/bsonutil"
)

func marshal(t *testing.T, v bson.M) bsoncore.Document {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	return bsoncore.Document(raw)
}

func TestLookupInt64WidensInt32AndDouble(t *testing.T) {
	doc := marshal(t, bson.M{"a": int32(5), "b": float64(7), "c": int64(9)})
	require.EqualValues(t, 5, bsonutil.LookupInt64(doc, "a", -1))
	require.EqualValues(t, 7, bsonutil.LookupInt64(doc, "b", -1))
	require.EqualValues(t, 9, bsonutil.LookupInt64(doc, "c", -1))
	require.EqualValues(t, -1, bsonutil.LookupInt64(doc, "missing", -1))
}

func TestLookupArrayAndDocumentsFromArray(t *testing.T) {
	doc := marshal(t, bson.M{"items": bson.A{bson.M{"x": 1}, "not-a-doc", bson.M{"x": 2}}})
	values, ok := bsonutil.LookupArray(doc, "items")
	require.True(t, ok)
	require.Len(t, values, 3)

	docs := bsonutil.DocumentsFromArray(values)
	require.Len(t, docs, 2)
}

func TestPayloadBytesAcceptsBinaryOrString(t *testing.T) {
	binDoc := marshal(t, bson.M{"payload": bson.Binary{Subtype: 0x00, Data: []byte("hello")}})
	require.Equal(t, []byte("hello"), bsonutil.PayloadBytes(binDoc, "payload"))

	strDoc := marshal(t, bson.M{"payload": "world"})
	require.Equal(t, []byte("world"), bsonutil.PayloadBytes(strDoc, "payload"))
}
