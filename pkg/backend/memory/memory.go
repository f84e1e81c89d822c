// Package memory is a reference backend.Backend good enough to exercise
// the command handlers and the spec's seed scenarios (S1, S4) end to end.
// It is explicitly not a durable store: everything lives in process
// memory and is lost on restart, by design — a real storage engine is out
// of scope (spec.md §1).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/pkg/backend"
)

type namespace struct {
	db, coll string
}

// Backend is a mutex-guarded, map-of-slices implementation of
// backend.Backend.
type Backend struct {
	mu   sync.RWMutex
	data map[namespace][]bson.M
}

// New returns an empty Backend.
func New() *Backend {
	return &Backend{data: make(map[namespace][]bson.M)}
}

func (b *Backend) ListDatabases(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]struct{})
	for ns := range b.data {
		seen[ns.db] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for db := range seen {
		out = append(out, db)
	}
	sort.Strings(out)
	return out, nil
}

func (b *Backend) CreateDatabase(ctx context.Context, db string) error { return nil }

func (b *Backend) DropDatabase(ctx context.Context, db string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ns := range b.data {
		if ns.db == db {
			delete(b.data, ns)
		}
	}
	return nil
}

func (b *Backend) DatabaseExists(ctx context.Context, db string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ns := range b.data {
		if ns.db == db {
			return true, nil
		}
	}
	return false, nil
}

func (b *Backend) ListCollections(ctx context.Context, db string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []string
	for ns := range b.data {
		if ns.db == db {
			out = append(out, ns.coll)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (b *Backend) CreateCollection(ctx context.Context, db, coll string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	ns := namespace{db, coll}
	if _, ok := b.data[ns]; !ok {
		b.data[ns] = []bson.M{}
	}
	return nil
}

func (b *Backend) DropCollection(ctx context.Context, db, coll string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.data, namespace{db, coll})
	return nil
}

func (b *Backend) CollectionExists(ctx context.Context, db, coll string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.data[namespace{db, coll}]
	return ok, nil
}

func (b *Backend) CollStats(ctx context.Context, db, coll string) (backend.CollStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	docs := b.data[namespace{db, coll}]
	return backend.CollStats{Namespace: db + "." + coll, Count: int64(len(docs))}, nil
}

func (b *Backend) DBStats(ctx context.Context, db string) (backend.DBStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var colls, objs int64
	for ns, docs := range b.data {
		if ns.db == db {
			colls++
			objs += int64(len(docs))
		}
	}
	return backend.DBStats{Database: db, Collections: colls, Objects: objs}, nil
}

func matches(doc bson.M, filter bsoncore.Document) bool {
	if len(filter) == 0 {
		return true
	}
	elems, err := filter.Elements()
	if err != nil {
		return false
	}
	for _, elem := range elems {
		key := elem.Key()
		val, ok := doc[key]
		if !ok {
			return false
		}
		if !valueEquals(elem.Value(), val) {
			return false
		}
	}
	return true
}

func valueEquals(v bsoncore.Value, want interface{}) bool {
	switch v.Type {
	case bsoncore.TypeString:
		s, ok := v.StringValueOK()
		return ok && s == want
	case bsoncore.TypeInt32:
		i, ok := v.Int32OK()
		return ok && int64(i) == toInt64(want)
	case bsoncore.TypeInt64:
		i, ok := v.Int64OK()
		return ok && i == toInt64(want)
	case bsoncore.TypeBoolean:
		bv, ok := v.BooleanOK()
		return ok && bv == want
	default:
		return false
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case int:
		return int64(n)
	default:
		return -1
	}
}

func (b *Backend) Find(ctx context.Context, db, coll string, opts backend.FindOptions) ([]bsoncore.Document, bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matched []bson.M
	for _, doc := range b.data[namespace{db, coll}] {
		if matches(doc, opts.Filter) {
			matched = append(matched, doc)
		}
	}
	if opts.Skip > 0 && opts.Skip < int64(len(matched)) {
		matched = matched[opts.Skip:]
	} else if opts.Skip >= int64(len(matched)) {
		matched = nil
	}
	if opts.Limit > 0 && int64(len(matched)) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	out := make([]bsoncore.Document, 0, len(matched))
	for _, doc := range matched {
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, false, fmt.Errorf("memory backend: marshal document: %w", err)
		}
		out = append(out, bsoncore.Document(raw))
	}
	return out, false, nil
}

func (b *Backend) InsertOne(ctx context.Context, db, coll string, doc bsoncore.Document) error {
	var m bson.M
	if err := bson.Unmarshal(doc, &m); err != nil {
		return fmt.Errorf("memory backend: unmarshal document: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ns := namespace{db, coll}
	b.data[ns] = append(b.data[ns], m)
	return nil
}

func (b *Backend) InsertMany(ctx context.Context, db, coll string, docs []bsoncore.Document) (int, error) {
	for i, doc := range docs {
		if err := b.InsertOne(ctx, db, coll, doc); err != nil {
			return i, err
		}
	}
	return len(docs), nil
}

func (b *Backend) applyUpdate(db, coll string, spec backend.UpdateSpec, many bool) (backend.UpdateResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns := namespace{db, coll}
	docs := b.data[ns]

	var setFields bson.M
	if err := bson.Unmarshal(spec.Update, &setFields); err != nil {
		return backend.UpdateResult{}, fmt.Errorf("memory backend: unmarshal update: %w", err)
	}
	if set, ok := setFields["$set"].(bson.M); ok {
		setFields = set
	}

	var result backend.UpdateResult
	for i, doc := range docs {
		if !matches(doc, spec.Filter) {
			continue
		}
		result.Matched++
		for k, v := range setFields {
			doc[k] = v
		}
		docs[i] = doc
		result.Modified++
		if !many {
			break
		}
	}
	b.data[ns] = docs

	if result.Matched == 0 && spec.Upsert {
		var doc bson.M
		if err := bson.Unmarshal(spec.Filter, &doc); err != nil {
			doc = bson.M{}
		}
		for k, v := range setFields {
			doc[k] = v
		}
		b.data[ns] = append(b.data[ns], doc)
		result.Upserted = true
	}
	return result, nil
}

func (b *Backend) UpdateOne(ctx context.Context, db, coll string, spec backend.UpdateSpec) (backend.UpdateResult, error) {
	return b.applyUpdate(db, coll, spec, false)
}

func (b *Backend) UpdateMany(ctx context.Context, db, coll string, spec backend.UpdateSpec) (backend.UpdateResult, error) {
	return b.applyUpdate(db, coll, spec, true)
}

func (b *Backend) deleteMatching(db, coll string, filter bsoncore.Document, limit int) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	ns := namespace{db, coll}
	docs := b.data[ns]
	kept := docs[:0]
	var deleted int64
	for _, doc := range docs {
		if matches(doc, filter) && (limit == 0 || int(deleted) < limit) {
			deleted++
			continue
		}
		kept = append(kept, doc)
	}
	b.data[ns] = kept
	return deleted
}

func (b *Backend) DeleteOne(ctx context.Context, db, coll string, filter bsoncore.Document) (int64, error) {
	return b.deleteMatching(db, coll, filter, 1), nil
}

func (b *Backend) DeleteMany(ctx context.Context, db, coll string, filter bsoncore.Document) (int64, error) {
	return b.deleteMatching(db, coll, filter, 0), nil
}

func (b *Backend) Count(ctx context.Context, db, coll string, filter bsoncore.Document) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int64
	for _, doc := range b.data[namespace{db, coll}] {
		if matches(doc, filter) {
			n++
		}
	}
	return n, nil
}

func (b *Backend) Distinct(ctx context.Context, db, coll, field string, filter bsoncore.Document) ([]bsoncore.Value, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	seen := make(map[string]bsoncore.Value)
	var order []string
	for _, doc := range b.data[namespace{db, coll}] {
		if !matches(doc, filter) {
			continue
		}
		v, ok := doc[field]
		if !ok {
			continue
		}
		raw, _ := bson.Marshal(bson.M{"v": v})
		val := bsoncore.Document(raw).Lookup("v")
		key := fmt.Sprintf("%v", v)
		if _, dup := seen[key]; !dup {
			seen[key] = val
			order = append(order, key)
		}
	}
	out := make([]bsoncore.Value, 0, len(order))
	for _, k := range order {
		out = append(out, seen[k])
	}
	return out, nil
}

func (b *Backend) Aggregate(ctx context.Context, db, coll string, pipeline []bsoncore.Document, opts backend.FindOptions) ([]bsoncore.Document, bool, error) {
	// The reference backend applies only $match, $limit and $skip stages,
	// wherever they appear: a later stage of the same kind replaces an
	// earlier one, skip is applied before limit, and every other stage is
	// ignored.
	filter := opts.Filter
	limit := opts.Limit
	skip := opts.Skip
	for _, stage := range pipeline {
		elems, err := stage.Elements()
		if err != nil || len(elems) == 0 {
			continue
		}
		switch elems[0].Key() {
		case "$match":
			if d, ok := elems[0].Value().DocumentOK(); ok {
				filter = bsoncore.Document(d)
			}
		case "$limit":
			if n, ok := elems[0].Value().Int64OK(); ok {
				limit = n
			} else if n32, ok := elems[0].Value().Int32OK(); ok {
				limit = int64(n32)
			}
		case "$skip":
			if n, ok := elems[0].Value().Int64OK(); ok {
				skip = n
			} else if n32, ok := elems[0].Value().Int32OK(); ok {
				skip = int64(n32)
			}
		}
	}
	return b.Find(ctx, db, coll, backend.FindOptions{Filter: filter, Limit: limit, Skip: skip})
}

func (b *Backend) ListIndexes(ctx context.Context, db, coll string) ([]backend.IndexSpec, error) {
	return nil, nil
}

func (b *Backend) CreateIndexes(ctx context.Context, db, coll string, specs []backend.IndexSpec) error {
	return nil
}

func (b *Backend) DropIndexes(ctx context.Context, db, coll string, names []string) error {
	return nil
}
