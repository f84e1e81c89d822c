// Package backend defines the storage collaborator command handlers
// delegate to (spec §6.3). The storage engine itself is explicitly out of
// scope (spec.md §1 Non-goals); this package only pins the contract and,
// in ./memory, a reference implementation good enough to exercise the
// handlers and the seed scenarios end to end.
package backend

import (
	"context"

	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
)

// FindOptions carries the subset of find/aggregate-shaped options the
// core handlers forward (spec §4.4).
type FindOptions struct {
	Filter        bsoncore.Document
	Projection    bsoncore.Document
	Sort          bsoncore.Document
	Limit         int64
	Skip          int64
	BatchSize     int64
	Hint          bsoncore.Value
	Collation     bsoncore.Document
	AllowDiskUse  bool
	SingleBatch   bool
}

// UpdateSpec is one element of an update command's `updates` array.
type UpdateSpec struct {
	Filter       bsoncore.Document
	Update       bsoncore.Document
	Multi        bool
	Upsert       bool
	ArrayFilters []bsoncore.Document
}

// UpdateResult reports the effect of applying one UpdateSpec.
type UpdateResult struct {
	Matched  int64
	Modified int64
	UpsertedID bsoncore.Value
	Upserted bool
}

// DeleteSpec is one element of a delete command's `deletes` array.
type DeleteSpec struct {
	Filter bsoncore.Document
	Limit  int64 // 0 means deleteMany
}

// IndexSpec describes one index to create.
type IndexSpec struct {
	Keys    bsoncore.Document
	Name    string
	Unique  bool
	Sparse  bool
}

// CollStats / DBStats are intentionally loose: stub-shaped responses are
// all the core promises (spec §6.2).
type CollStats struct {
	Namespace string
	Count     int64
	SizeBytes int64
}

type DBStats struct {
	Database    string
	Collections int64
	Objects     int64
	DataSize    int64
}

// Backend is the storage collaborator. Implementations must be safe for
// concurrent calls on disjoint (db, coll) pairs (spec §5); the router and
// handlers never serialize around it themselves.
type Backend interface {
	ListDatabases(ctx context.Context) ([]string, error)
	CreateDatabase(ctx context.Context, db string) error
	DropDatabase(ctx context.Context, db string) error
	DatabaseExists(ctx context.Context, db string) (bool, error)

	ListCollections(ctx context.Context, db string) ([]string, error)
	CreateCollection(ctx context.Context, db, coll string) error
	DropCollection(ctx context.Context, db, coll string) error
	CollectionExists(ctx context.Context, db, coll string) (bool, error)

	CollStats(ctx context.Context, db, coll string) (CollStats, error)
	DBStats(ctx context.Context, db string) (DBStats, error)

	Find(ctx context.Context, db, coll string, opts FindOptions) (docs []bsoncore.Document, hasMore bool, err error)
	InsertOne(ctx context.Context, db, coll string, doc bsoncore.Document) error
	InsertMany(ctx context.Context, db, coll string, docs []bsoncore.Document) (inserted int, err error)
	UpdateOne(ctx context.Context, db, coll string, spec UpdateSpec) (UpdateResult, error)
	UpdateMany(ctx context.Context, db, coll string, spec UpdateSpec) (UpdateResult, error)
	DeleteOne(ctx context.Context, db, coll string, filter bsoncore.Document) (deleted int64, err error)
	DeleteMany(ctx context.Context, db, coll string, filter bsoncore.Document) (deleted int64, err error)
	Count(ctx context.Context, db, coll string, filter bsoncore.Document) (int64, error)
	Distinct(ctx context.Context, db, coll, field string, filter bsoncore.Document) ([]bsoncore.Value, error)

	Aggregate(ctx context.Context, db, coll string, pipeline []bsoncore.Document, opts FindOptions) (docs []bsoncore.Document, hasMore bool, err error)

	ListIndexes(ctx context.Context, db, coll string) ([]IndexSpec, error)
	CreateIndexes(ctx context.Context, db, coll string, specs []IndexSpec) error
	DropIndexes(ctx context.Context, db, coll string, names []string) error
}
