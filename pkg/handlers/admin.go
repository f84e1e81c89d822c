package handlers

import (
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/pkg/backend"
	"github.com/mongobridge/mongosrv/pkg/router"
)

// MinWireVersion/MaxWireVersion are advertised in hello/isMaster so
// clients negotiate a protocol this server actually speaks (spec §8 S1
// requires maxWireVersion >= 17).
const (
	MinWireVersion = 0
	MaxWireVersion = 17
)

// Hello answers hello/isMaster/ismaster (spec §6.2).
func Hello(serverVersion string) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(bson.M{
			"isWritablePrimary": true,
			"maxWireVersion":    int32(MaxWireVersion),
			"minWireVersion":    int32(MinWireVersion),
			"maxBsonObjectSize": int32(16 * 1024 * 1024),
			"maxMessageSizeBytes": int32(48 * 1000 * 1000),
			"maxWriteBatchSize": int32(100000),
			"localTime":         bson.DateTime(0),
			"readOnly":          false,
		}), nil
	}
}

// Ping answers the ping command: `{ ok:1 }`.
func Ping() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(nil), nil
	}
}

// BuildInfo, HostInfo, WhatsMyURI, GetLog, GetParameter, GetCmdLineOpts are
// informational stubs (spec §6.2); clients only need a shape-compatible
// response, not accurate operational data.
func BuildInfo(version string) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(bson.M{
			"version":      version,
			"versionArray": bson.A{int32(7), int32(0), int32(0), int32(0)},
			"bits":         int32(64),
			"maxBsonObjectSize": int32(16 * 1024 * 1024),
		}), nil
	}
}

func HostInfo() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(bson.M{"system": bson.M{}, "os": bson.M{}}), nil
	}
}

func WhatsMyURI() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(bson.M{"you": ""}), nil
	}
}

func GetLog() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(bson.M{"totalLinesWritten": int64(0), "log": bson.A{}}), nil
	}
}

func GetParameter() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(nil), nil
	}
}

func GetCmdLineOpts() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(bson.M{"argv": bson.A{}, "parsed": bson.M{}}), nil
	}
}

// ServerStatus returns a fixed stub document without consulting the
// Backend. ListDatabases, ListCollections, CollStats, DBStats, Create,
// Drop, DropDatabase are admin passthroughs to the Backend (spec §6.2).

func ServerStatus() router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		return okResponse(bson.M{"host": "", "uptime": float64(0)}), nil
	}
}

func ListDatabases(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		dbs, err := b.ListDatabases(ctx)
		if err != nil {
			return nil, err
		}
		entries := make(bson.A, 0, len(dbs))
		for _, db := range dbs {
			entries = append(entries, bson.M{"name": db})
		}
		return okResponse(bson.M{"databases": entries}), nil
	}
}

func ListCollections(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		colls, err := b.ListCollections(ctx, ctx.DB)
		if err != nil {
			return nil, err
		}
		firstBatch := make(bson.A, 0, len(colls))
		for _, c := range colls {
			firstBatch = append(firstBatch, bson.M{"name": c, "type": "collection"})
		}
		return okResponse(bson.M{
			"cursor": bson.M{"id": int64(0), "ns": ctx.DB + ".$cmd.listCollections", "firstBatch": firstBatch},
		}), nil
	}
}

func CollStats(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, _ := lookupString(cmd, "collStats")
		stats, err := b.CollStats(ctx, ctx.DB, coll)
		if err != nil {
			return nil, err
		}
		return okResponse(bson.M{"ns": stats.Namespace, "count": stats.Count, "size": stats.SizeBytes}), nil
	}
}

func DBStats(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		stats, err := b.DBStats(ctx, ctx.DB)
		if err != nil {
			return nil, err
		}
		return okResponse(bson.M{"db": stats.Database, "collections": stats.Collections, "objects": stats.Objects, "dataSize": stats.DataSize}), nil
	}
}

func Create(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, _ := lookupString(cmd, "create")
		if err := b.CreateCollection(ctx, ctx.DB, coll); err != nil {
			return nil, err
		}
		return okResponse(nil), nil
	}
}

func Drop(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		coll, _ := lookupString(cmd, "drop")
		if err := b.DropCollection(ctx, ctx.DB, coll); err != nil {
			return nil, err
		}
		return okResponse(nil), nil
	}
}

func DropDatabase(b backend.Backend) router.Handler {
	return func(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
		if err := b.DropDatabase(ctx, ctx.DB); err != nil {
			return nil, err
		}
		return okResponse(nil), nil
	}
}
