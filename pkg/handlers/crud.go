package handlers

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/mongoerr"
	"github.com/mongobridge/mongosrv/pkg/backend"
	"github.com/mongobridge/mongosrv/pkg/cursor"
	"github.com/mongobridge/mongosrv/pkg/router"
)

func findOptionsFrom(cmd bsoncore.Document) backend.FindOptions {
	filter, _ := lookupDocument(cmd, "filter")
	projection, _ := lookupDocument(cmd, "projection")
	sortDoc, _ := lookupDocument(cmd, "sort")
	collation, _ := lookupDocument(cmd, "collation")
	return backend.FindOptions{
		Filter:       filter,
		Projection:   projection,
		Sort:         sortDoc,
		Limit:        lookupInt64(cmd, "limit", 0),
		Skip:         lookupInt64(cmd, "skip", 0),
		BatchSize:    lookupInt64(cmd, "batchSize", 101),
		Collation:    collation,
		AllowDiskUse: lookupBool(cmd, "allowDiskUse", false),
		SingleBatch:  lookupBool(cmd, "singleBatch", false),
	}
}

func cursorBatchResponse(docs []bsoncore.Document, ns string, cursorID uint64, firstKey string) bsoncore.Document {
	batch := make(bson.A, 0, len(docs))
	for _, d := range docs {
		batch = append(batch, d)
	}
	return okResponse(bson.M{
		"cursor": bson.M{
			"id":     int64(cursorID),
			"ns":     ns,
			firstKey: batch,
		},
	})
}

// Find implements the find command (spec §4.4): translate the command to
// a Backend.Find call; if more documents remain than the first batch
// holds, register a cursor with the cursor manager so getMore can resume.
func Find(b backend.Backend, cursors *cursor.Manager) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "find")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "find requires a collection name")
		}
		ns := ctx.DB + "." + coll

		opts := findOptionsFrom(cmd)
		docs, hasMore, err := b.Find(ctx, ctx.DB, coll, opts)
		if err != nil {
			return nil, err
		}

		batchSize := int(opts.BatchSize)
		if batchSize <= 0 {
			batchSize = 101
		}
		firstBatch := docs
		var cursorID uint64
		if len(docs) > batchSize || hasMore {
			if len(docs) > batchSize {
				firstBatch = docs[:batchSize]
			}
			rest := toRawDocs(docs[len(firstBatch):])
			if len(rest) > 0 {
				cursorID = cursors.Create(rest, ns, batchSize, ctx.ConnectionID)
				ctx.Session.AddCursor(cursorID)
			}
		}

		return cursorBatchResponse(firstBatch, ns, cursorID, "firstBatch"), nil
	}
}

func toRawDocs(docs []bsoncore.Document) [][]byte {
	out := make([][]byte, len(docs))
	for i, d := range docs {
		out[i] = []byte(d)
	}
	return out
}

// Insert implements the insert command (spec §4.4). Documents come from
// the command's `documents` array, falling back to the kind-1 document
// sequence of the same name. Ordered mode (the default, and the only mode
// the core implements per spec.md's open question) stops at the first
// failure and reports n inserted so far.
func Insert(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "insert")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "insert requires a collection name")
		}

		var docs []bsoncore.Document
		if arr, ok := lookupArray(cmd, "documents"); ok {
			docs = documentsFromArray(arr)
		} else if seq, ok := ctx.DocumentSequences["documents"]; ok {
			docs = seq
		}

		n := 0
		for _, doc := range docs {
			if err := b.InsertOne(ctx, ctx.DB, coll, doc); err != nil {
				return okResponse(bson.M{"n": int32(n), "writeErrors": bson.A{bson.M{"index": n, "errmsg": err.Error()}}}), nil
			}
			n++
		}
		return okResponse(bson.M{"n": int32(n)}), nil
	}
}

// Update implements the update command (spec §4.4): iterate `updates`,
// aggregate n (matched), nModified, and upserted entries.
func Update(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "update")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "update requires a collection name")
		}

		var updateDocs []bsoncore.Document
		if arr, ok := lookupArray(cmd, "updates"); ok {
			updateDocs = documentsFromArray(arr)
		} else if seq, ok := ctx.DocumentSequences["updates"]; ok {
			updateDocs = seq
		}

		var matched, modified int64
		upserted := bson.A{}
		for i, u := range updateDocs {
			filter, _ := lookupDocument(u, "q")
			update, _ := lookupDocument(u, "u")
			spec := backend.UpdateSpec{
				Filter: filter,
				Update: update,
				Multi:  lookupBool(u, "multi", false),
				Upsert: lookupBool(u, "upsert", false),
			}

			var (
				result backend.UpdateResult
				err    error
			)
			if spec.Multi {
				result, err = b.UpdateMany(ctx, ctx.DB, coll, spec)
			} else {
				result, err = b.UpdateOne(ctx, ctx.DB, coll, spec)
			}
			if err != nil {
				return nil, err
			}
			matched += result.Matched
			modified += result.Modified
			if result.Upserted {
				upserted = append(upserted, bson.M{"index": i, "_id": result.UpsertedID})
			}
		}

		resp := bson.M{"n": matched, "nModified": modified}
		if len(upserted) > 0 {
			resp["upserted"] = upserted
		}
		return okResponse(resp), nil
	}
}

// Delete implements the delete command (spec §4.4): `limit:0` means
// deleteMany, anything else means deleteOne.
func Delete(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "delete")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "delete requires a collection name")
		}

		var deleteDocs []bsoncore.Document
		if arr, ok := lookupArray(cmd, "deletes"); ok {
			deleteDocs = documentsFromArray(arr)
		} else if seq, ok := ctx.DocumentSequences["deletes"]; ok {
			deleteDocs = seq
		}

		var n int64
		for _, d := range deleteDocs {
			filter, _ := lookupDocument(d, "q")
			limit := lookupInt64(d, "limit", 1)
			var (
				deleted int64
				err     error
			)
			if limit == 0 {
				deleted, err = b.DeleteMany(ctx, ctx.DB, coll, filter)
			} else {
				deleted, err = b.DeleteOne(ctx, ctx.DB, coll, filter)
			}
			if err != nil {
				return nil, err
			}
			n += deleted
		}
		return okResponse(bson.M{"n": n}), nil
	}
}

// Count implements the count command (spec §4.4): backend count then
// clamp by skip/limit.
func Count(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "count")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "count requires a collection name")
		}
		filter, _ := lookupDocument(cmd, "query")

		n, err := b.Count(ctx, ctx.DB, coll, filter)
		if err != nil {
			return nil, err
		}

		skip := lookupInt64(cmd, "skip", 0)
		if skip > 0 {
			n -= skip
			if n < 0 {
				n = 0
			}
		}
		if limit := lookupInt64(cmd, "limit", 0); limit > 0 && n > limit {
			n = limit
		}
		return okResponse(bson.M{"n": n}), nil
	}
}

// Distinct forwards directly to the backend (spec §4.4).
func Distinct(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "distinct")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "distinct requires a collection name")
		}
		field, _ := lookupString(cmd, "key")
		filter, _ := lookupDocument(cmd, "query")

		values, err := b.Distinct(ctx, ctx.DB, coll, field, filter)
		if err != nil {
			return nil, err
		}
		out := make(bson.A, len(values))
		for i, v := range values {
			var raw bson.RawValue
			raw.Type = v.Type
			raw.Value = v.Data
			out[i] = raw
		}
		return okResponse(bson.M{"values": out}), nil
	}
}
