package router_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/pkg/router"
	"github.com/mongobridge/mongosrv/pkg/session"
	"github.com/mongobridge/mongosrv/pkg/wire"
)

func extractedFor(t *testing.T, name, db string, cmd bsoncore.Document) *wire.Extracted {
	t.Helper()
	return &wire.Extracted{DB: db, CommandName: name, Command: cmd}
}

func okHandler(ctx router.Context, cmd bsoncore.Document) (bsoncore.Document, error) {
	raw, _ := bson.Marshal(bson.M{"ok": float64(1)})
	return bsoncore.Document(raw), nil
}

func TestUnauthenticatedCommandRejectedWhenAuthEnabled(t *testing.T) {
	r := router.New(true)
	r.Register("find", okHandler)

	sess := session.New(1)
	cmd, _ := bson.Marshal(bson.M{"find": "x"})

	resp := router.Dispatch(context.Background(), r, 1, 1, extractedFor(t, "find", "test", bsoncore.Document(cmd)), sess)
	requireErrorCode(t, resp, 13, "Unauthorized")
}

func TestAllowSetPassesWithoutAuth(t *testing.T) {
	r := router.New(true)
	r.Register("ping", okHandler)

	sess := session.New(1)
	cmd, _ := bson.Marshal(bson.M{"ping": int32(1)})

	resp := router.Dispatch(context.Background(), r, 1, 1, extractedFor(t, "ping", "admin", bsoncore.Document(cmd)), sess)
	requireOK(t, resp)
}

func TestAuthenticatedSessionPassesGatedCommand(t *testing.T) {
	r := router.New(true)
	r.Register("find", okHandler)

	sess := session.New(1)
	sess.SetAuthenticated("alice", "admin")
	cmd, _ := bson.Marshal(bson.M{"find": "x"})

	resp := router.Dispatch(context.Background(), r, 1, 1, extractedFor(t, "find", "test", bsoncore.Document(cmd)), sess)
	requireOK(t, resp)
}

func TestCaseInsensitiveFallback(t *testing.T) {
	r := router.New(false)
	r.Register("isMaster", okHandler)

	sess := session.New(1)
	cmd, _ := bson.Marshal(bson.M{"ismaster": int32(1)})

	resp := router.Dispatch(context.Background(), r, 1, 1, extractedFor(t, "ismaster", "admin", bsoncore.Document(cmd)), sess)
	requireOK(t, resp)
}

func TestUnknownCommandNotFound(t *testing.T) {
	r := router.New(false)
	sess := session.New(1)
	cmd, _ := bson.Marshal(bson.M{"frobnicate": int32(1)})

	resp := router.Dispatch(context.Background(), r, 1, 1, extractedFor(t, "frobnicate", "admin", bsoncore.Document(cmd)), sess)
	requireErrorCode(t, resp, 59, "CommandNotFound")
}

func requireOK(t *testing.T, resp bsoncore.Document) {
	t.Helper()
	ok, okPresent := resp.Lookup("ok").DoubleOK()
	require.True(t, okPresent)
	require.Equal(t, float64(1), ok)
}

func requireErrorCode(t *testing.T, resp bsoncore.Document, code int32, codeName string) {
	t.Helper()
	c, ok := resp.Lookup("code").Int32OK()
	require.True(t, ok)
	require.Equal(t, code, c)
	name, ok := resp.Lookup("codeName").StringValueOK()
	require.True(t, ok)
	require.Equal(t, codeName, name)
}
