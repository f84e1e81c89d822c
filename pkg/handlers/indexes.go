package handlers

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/mongoerr"
	"github.com/mongobridge/mongosrv/pkg/backend"
	"github.com/mongobridge/mongosrv/pkg/router"
)

// ListIndexes is a thin passthrough (spec §4.4).
func ListIndexes(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "listIndexes")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "listIndexes requires a collection name")
		}
		specs, err := b.ListIndexes(ctx, ctx.DB, coll)
		if err != nil {
			return nil, err
		}
		firstBatch := make(bson.A, 0, len(specs))
		for _, s := range specs {
			firstBatch = append(firstBatch, bson.M{"key": s.Keys, "name": s.Name, "unique": s.Unique, "sparse": s.Sparse})
		}
		return okResponse(bson.M{
			"cursor": bson.M{"id": int64(0), "ns": ctx.DB + "." + coll + ".$cmd.listIndexes", "firstBatch": firstBatch},
		}), nil
	}
}

// CreateIndexes is a thin passthrough (spec §4.4).
func CreateIndexes(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "createIndexes")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "createIndexes requires a collection name")
		}
		indexArr, _ := lookupArray(cmd, "indexes")

		specs := make([]backend.IndexSpec, 0, len(indexArr))
		for _, v := range indexArr {
			d, ok := v.DocumentOK()
			if !ok {
				continue
			}
			doc := bsoncore.Document(d)
			keys, _ := lookupDocument(doc, "key")
			name, _ := lookupString(doc, "name")
			specs = append(specs, backend.IndexSpec{
				Keys:   keys,
				Name:   name,
				Unique: lookupBool(doc, "unique", false),
				Sparse: lookupBool(doc, "sparse", false),
			})
		}

		if err := b.CreateIndexes(ctx, ctx.DB, coll, specs); err != nil {
			return nil, err
		}
		return okResponse(bson.M{"numIndexesBefore": int32(0), "numIndexesAfter": int32(len(specs))}), nil
	}
}

// DropIndexes is a thin passthrough (spec §4.4).
func DropIndexes(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, ok := lookupString(cmd, "dropIndexes")
		if !ok {
			return nil, mongoerr.New(mongoerr.BadValue, "dropIndexes requires a collection name")
		}

		var names []string
		if name, ok := lookupString(cmd, "index"); ok {
			names = []string{name}
		} else if arr, ok := lookupArray(cmd, "index"); ok {
			for _, v := range arr {
				if s, ok := v.StringValueOK(); ok {
					names = append(names, s)
				}
			}
		}

		if err := b.DropIndexes(ctx, ctx.DB, coll, names); err != nil {
			return nil, err
		}
		return okResponse(nil), nil
	}
}
