package handlers_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/pkg/backend/memory"
	"github.com/mongobridge/mongosrv/pkg/cursor"
	"github.com/mongobridge/mongosrv/pkg/handlers"
	"github.com/mongobridge/mongosrv/pkg/router"
	"github.com/mongobridge/mongosrv/pkg/session"
)

func newCtx(db string, sess *session.Session) router.Context {
	return router.Context{Context: context.Background(), DB: db, ConnectionID: 1, Session: sess}
}

func marshalDoc(t *testing.T, v bson.M) bsoncore.Document {
	t.Helper()
	raw, err := bson.Marshal(v)
	require.NoError(t, err)
	return bsoncore.Document(raw)
}

func TestInsertThenFindRoundTrips(t *testing.T) {
	b := memory.New()
	cursors := cursor.New()
	sess := session.New(1)

	insertCmd := marshalDoc(t, bson.M{
		"insert":    "users",
		"documents": bson.A{bson.M{"name": "a"}, bson.M{"name": "b"}},
	})
	resp, err := handlers.Insert(b)(newCtx("test", sess), insertCmd)
	require.NoError(t, err)
	n, ok := resp.Lookup("n").Int32OK()
	require.True(t, ok)
	require.Equal(t, int32(2), n)

	findCmd := marshalDoc(t, bson.M{"find": "users", "filter": bson.M{}, "batchSize": int32(1)})
	resp, err = handlers.Find(b, cursors)(newCtx("test", sess), findCmd)
	require.NoError(t, err)

	cursorDoc, ok := resp.Lookup("cursor").DocumentOK()
	require.True(t, ok)
	firstBatch, ok := bsoncore.Document(cursorDoc).Lookup("firstBatch").ArrayOK()
	require.True(t, ok)
	vals, err := bsoncore.Array(firstBatch).Values()
	require.NoError(t, err)
	require.Len(t, vals, 1)

	id, ok := bsoncore.Document(cursorDoc).Lookup("id").Int64OK()
	require.True(t, ok)
	require.NotZero(t, id, "two documents with batchSize 1 must leave a cursor open")
}

func TestGetMoreDrainsCursorToCompletion(t *testing.T) {
	b := memory.New()
	cursors := cursor.New()
	sess := session.New(1)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.InsertOne(context.Background(), "test", "users", marshalDoc(t, bson.M{"n": int32(i)})))
	}

	findCmd := marshalDoc(t, bson.M{"find": "users", "filter": bson.M{}, "batchSize": int32(1)})
	resp, err := handlers.Find(b, cursors)(newCtx("test", sess), findCmd)
	require.NoError(t, err)
	cursorDoc, _ := resp.Lookup("cursor").DocumentOK()
	cursorID, _ := bsoncore.Document(cursorDoc).Lookup("id").Int64OK()
	require.NotZero(t, cursorID)

	getMoreCmd := marshalDoc(t, bson.M{"getMore": cursorID, "collection": "users", "batchSize": int32(1)})
	resp, err = handlers.GetMore(cursors)(newCtx("test", sess), getMoreCmd)
	require.NoError(t, err)
	cursorDoc, _ = resp.Lookup("cursor").DocumentOK()
	nextID, _ := bsoncore.Document(cursorDoc).Lookup("id").Int64OK()
	require.NotZero(t, nextID)

	resp, err = handlers.GetMore(cursors)(newCtx("test", sess), getMoreCmd)
	require.NoError(t, err)
	cursorDoc, _ = resp.Lookup("cursor").DocumentOK()
	finalID, _ := bsoncore.Document(cursorDoc).Lookup("id").Int64OK()
	require.Zero(t, finalID, "cursor must report id 0 once exhausted")
}

func TestGetMoreUnknownCursorReportsCursorNotFound(t *testing.T) {
	cursors := cursor.New()
	sess := session.New(1)
	getMoreCmd := marshalDoc(t, bson.M{"getMore": int64(999), "collection": "users"})

	_, err := handlers.GetMore(cursors)(newCtx("test", sess), getMoreCmd)
	require.Error(t, err)
}

func TestDeleteWithZeroLimitDeletesMany(t *testing.T) {
	b := memory.New()
	sess := session.New(1)
	ctx := newCtx("test", sess)

	for i := 0; i < 3; i++ {
		require.NoError(t, b.InsertOne(context.Background(), "test", "items", marshalDoc(t, bson.M{"kind": "a"})))
	}

	deleteCmd := marshalDoc(t, bson.M{
		"delete":  "items",
		"deletes": bson.A{bson.M{"q": bson.M{"kind": "a"}, "limit": int32(0)}},
	})
	resp, err := handlers.Delete(b)(ctx, deleteCmd)
	require.NoError(t, err)
	n, ok := resp.Lookup("n").Int64OK()
	require.True(t, ok)
	require.Equal(t, int64(3), n)
}
