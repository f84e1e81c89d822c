package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/pkg/backend"
	"github.com/mongobridge/mongosrv/pkg/backend/memory"
)

func marshal(t *testing.T, v bson.M) bsoncore.Document {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	return bsoncore.Document(raw)
}

func TestInsertAndFind(t *testing.T) {
	ctx := context.Background()
	b := memory.New()

	require.NoError(t, b.InsertOne(ctx, "test", "users", marshal(t, bson.M{"name": "alice"})))
	require.NoError(t, b.InsertOne(ctx, "test", "users", marshal(t, bson.M{"name": "bob"})))

	docs, hasMore, err := b.Find(ctx, "test", "users", backend.FindOptions{})
	require.NoError(t, err)
	require.False(t, hasMore)
	require.Len(t, docs, 2)
}

func TestFindFilterMatchesByField(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.InsertOne(ctx, "test", "users", marshal(t, bson.M{"name": "alice"})))
	require.NoError(t, b.InsertOne(ctx, "test", "users", marshal(t, bson.M{"name": "bob"})))

	docs, _, err := b.Find(ctx, "test", "users", backend.FindOptions{Filter: marshal(t, bson.M{"name": "bob"})})
	require.NoError(t, err)
	require.Len(t, docs, 1)
}

func TestDeleteOneVsDeleteMany(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	for i := 0; i < 3; i++ {
		require.NoError(t, b.InsertOne(ctx, "test", "items", marshal(t, bson.M{"kind": "a"})))
	}

	deleted, err := b.DeleteOne(ctx, "test", "items", marshal(t, bson.M{"kind": "a"}))
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)

	count, err := b.Count(ctx, "test", "items", bsoncore.Document{})
	require.NoError(t, err)
	require.Equal(t, int64(2), count)

	deleted, err = b.DeleteMany(ctx, "test", "items", marshal(t, bson.M{"kind": "a"}))
	require.NoError(t, err)
	require.Equal(t, int64(2), deleted)
}

func TestListDatabasesAndCollections(t *testing.T) {
	ctx := context.Background()
	b := memory.New()
	require.NoError(t, b.CreateCollection(ctx, "test", "users"))

	dbs, err := b.ListDatabases(ctx)
	require.NoError(t, err)
	require.Contains(t, dbs, "test")

	colls, err := b.ListCollections(ctx, "test")
	require.NoError(t, err)
	require.Contains(t, colls, "users")
}
