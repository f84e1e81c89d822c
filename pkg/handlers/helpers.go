// Package handlers implements the command handlers spec §4.4 names, one
// file per command family, each a thin adapter from a bsoncore.Document
// to a backend.Backend call — in the style of the teacher's thin
// per-command files under pkg/core/proxy/integrations/mongo.
package handlers

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/bsonutil"
	"github.com/mongobridge/mongosrv/internal/mongoerr"
)

func okResponse(fields bson.M) bsoncore.Document {
	if fields == nil {
		fields = bson.M{}
	}
	fields["ok"] = float64(1)
	raw, err := bson.Marshal(fields)
	if err != nil {
		return mongoerr.Response(mongoerr.InternalError, err.Error())
	}
	return bsoncore.Document(raw)
}

func lookupString(doc bsoncore.Document, key string) (string, bool) {
	return bsonutil.LookupString(doc, key)
}

func lookupDocument(doc bsoncore.Document, key string) (bsoncore.Document, bool) {
	return bsonutil.LookupDocument(doc, key)
}

func lookupArray(doc bsoncore.Document, key string) ([]bsoncore.Value, bool) {
	return bsonutil.LookupArray(doc, key)
}

func lookupInt64(doc bsoncore.Document, key string, def int64) int64 {
	return bsonutil.LookupInt64(doc, key, def)
}

func lookupBool(doc bsoncore.Document, key string, def bool) bool {
	return bsonutil.LookupBool(doc, key, def)
}

func documentsFromArray(values []bsoncore.Value) []bsoncore.Document {
	return bsonutil.DocumentsFromArray(values)
}
