package handlers

import (
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/mongoerr"
	"github.com/mongobridge/mongosrv/pkg/backend"
	"github.com/mongobridge/mongosrv/pkg/cursor"
	"github.com/mongobridge/mongosrv/pkg/router"
)

// Aggregate forwards the pipeline to the backend; its result is shaped
// identically to find (spec §4.4).
func Aggregate(b backend.Backend, cursors *cursor.Manager) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "aggregate")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "aggregate requires a collection name")
		}
		ns := ctx.DB + "." + coll

		pipelineArr, _ := lookupArray(cmd, "pipeline")
		pipeline := documentsFromArray(pipelineArr)

		opts := findOptionsFrom(cmd)
		docs, hasMore, err := b.Aggregate(ctx, ctx.DB, coll, pipeline, opts)
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
