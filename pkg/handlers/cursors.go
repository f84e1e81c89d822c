package handlers

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/mongoerr"
	"github.com/mongobridge/mongosrv/pkg/cursor"
	"github.com/mongobridge/mongosrv/pkg/router"
)

// GetMore implements the getMore command (spec §4.4): advance the named
// cursor by batchSize, closing it when exhausted.
func GetMore(cursors *cursor.Manager) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		id := uint64(lookupInt64(cmd, "getMore", 0))
		coll, _ := lookupString(cmd, "collection")
		batchSize := lookupInt64(cmd, "batchSize", 101)

		docs, nextID, ok := cursors.Advance(id, int(batchSize))
		if !ok {
			return nil, mongoerr.New(mongoerr.CursorNotFound, "cursor not found")
		}
		if nextID == 0 {
			ctx.Session.RemoveCursor(id)
		}

		raw := make([]bsoncore.Document, len(docs))
		for i, d := range docs {
			raw[i] = bsoncore.Document(d)
		}

		ns := ctx.DB + "." + coll
		return cursorBatchResponse(raw, ns, nextID, "nextBatch"), nil
	}
}

// KillCursors implements killCursors (spec §4.4): classify each id into
// cursorsKilled or cursorsNotFound.
func KillCursors(cursors *cursor.Manager) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		ids, _ := lookupArray(cmd, "cursors")

		var killed, notFound bson.A
		for _, v := range ids {
			var id uint64
			if i64, ok := v.Int64OK(); ok {
				id = uint64(i64)
			} else if i32, ok := v.Int32OK(); ok {
				id = uint64(i32)
			}
			if cursors.Close(id) {
				ctx.Session.RemoveCursor(id)
				killed = append(killed, int64(id))
			} else {
				notFound = append(notFound, int64(id))
			}
		}
		return okResponse(bson.M{"cursorsKilled": killed, "cursorsNotFound": notFound, "cursorsAlive": bson.A{}, "cursorsUnknown": bson.A{}}), nil
	}
}
