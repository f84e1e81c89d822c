package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/wiremessage"
	"go.uber.org/zap"

	"github.com/mongobridge/mongosrv/pkg/backend/memory"
	"github.com/mongobridge/mongosrv/pkg/credentials"
	credmem "github.com/mongobridge/mongosrv/pkg/credentials/memory"
	"github.com/mongobridge/mongosrv/pkg/cursor"
	"github.com/mongobridge/mongosrv/pkg/handlers"
	"github.com/mongobridge/mongosrv/pkg/router"
	"github.com/mongobridge/mongosrv/pkg/scram"
	"github.com/mongobridge/mongosrv/pkg/server"
)

func buildOpMsg(t *testing.T, requestID int32, doc bsoncore.Document) []byte {
	t.Helper()
	var buf []byte
	idx, buf := wiremessage.AppendHeaderStart(buf, requestID, 0, wiremessage.OpMsg)
	buf = wiremessage.AppendMsgFlags(buf, 0)
	buf = wiremessage.AppendMsgSectionType(buf, wiremessage.SingleDocument)
	buf = append(buf, doc...)
	buf = bsoncore.UpdateLength(buf, idx, int32(len(buf[idx:])))
	return buf
}

func readOneReply(t *testing.T, conn net.Conn) bsoncore.Document {
	t.Helper()
	header := make([]byte, 4)
	_, err := io_ReadFull(conn, header)
	require.NoError(t, err)
	length := int32(header[0]) | int32(header[1])<<8 | int32(header[2])<<16 | int32(header[3])<<24
	rest := make([]byte, length-4)
	_, err = io_ReadFull(conn, rest)
	require.NoError(t, err)

	full := append(header, rest...)
	// skip 16-byte header + 4-byte flags + 1-byte section type to reach the document
	doc := bsoncore.Document(full[21:])
	return doc
}

func io_ReadFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func startTestServer(t *testing.T, authEnabled bool) (addr string, creds credentials.Provider, stop func()) {
	t.Helper()
	logger := zap.NewNop()
	b := memory.New()
	cursors := cursor.New()
	credStore := credmem.New()
	auth, err := scram.NewAuthenticator(credStore)
	require.NoError(t, err)

	r := router.New(authEnabled)
	r.Register("hello", handlers.Hello("mongosrv-test"))
	r.Register("ping", handlers.Ping())
	r.Register("find", handlers.Find(b, cursors))
	r.Register("saslStart", handlers.SaslStart(auth))
	r.Register("saslContinue", handlers.SaslContinue(auth))

	opts := server.Options{Host: "127.0.0.1", Port: 0, AuthEnabled: authEnabled}
	srv := server.New(opts, logger, r, cursors, auth, credStore)

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan string, 1)
	go func() {
		// Start binds synchronously before serving; poll until Address()
		// reflects a real listener.
		go func() {
			for i := 0; i < 100; i++ {
				if a := srv.Address(); a != "127.0.0.1:0" && a != "" {
					ready <- a
					return
				}
				time.Sleep(5 * time.Millisecond)
			}
			ready <- ""
		}()
		_ = srv.Start(ctx)
	}()

	addr = <-ready
	require.NotEmpty(t, addr, "server did not start listening in time")
	return addr, credStore, cancel
}

func TestHelloHandshakeOverRealConnection(t *testing.T) {
	addr, _, stop := startTestServer(t, false)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	cmd, _ := bson.Marshal(bson.M{"hello": int32(1), "$db": "admin"})
	_, err = conn.Write(buildOpMsg(t, 1, bsoncore.Document(cmd)))
	require.NoError(t, err)

	resp := readOneReply(t, conn)
	maxWireVersion, ok := resp.Lookup("maxWireVersion").Int32OK()
	require.True(t, ok)
	require.GreaterOrEqual(t, maxWireVersion, int32(17))
	writable, ok := resp.Lookup("isWritablePrimary").BooleanOK()
	require.True(t, ok)
	require.True(t, writable)
}

// TestUnauthenticatedFindRejected is scenario S2.
func TestUnauthenticatedFindRejected(t *testing.T) {
	addr, _, stop := startTestServer(t, true)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	cmd, _ := bson.Marshal(bson.M{"find": "x", "$db": "test"})
	_, err = conn.Write(buildOpMsg(t, 1, bsoncore.Document(cmd)))
	require.NoError(t, err)

	resp := readOneReply(t, conn)
	code, ok := resp.Lookup("code").Int32OK()
	require.True(t, ok)
	require.Equal(t, int32(13), code)
}

// TestFragmentedFrameDispatchedExactlyOnce is scenario S6, driven over a
// real socket rather than a Stream unit test.
func TestFragmentedFrameDispatchedExactlyOnce(t *testing.T) {
	addr, _, stop := startTestServer(t, false)
	defer stop()

	conn, err := net.DialTimeout("tcp", addr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	cmd, _ := bson.Marshal(bson.M{"ping": int32(1), "$db": "admin"})
	raw := buildOpMsg(t, 7, bsoncore.Document(cmd))

	for _, chunkLen := range []int{3, 7, 1} {
		if chunkLen > len(raw) {
			chunkLen = len(raw)
		}
		_, err := conn.Write(raw[:chunkLen])
		require.NoError(t, err)
		raw = raw[chunkLen:]
		time.Sleep(5 * time.Millisecond)
	}
	_, err = conn.Write(raw)
	require.NoError(t, err)

	resp := readOneReply(t, conn)
	ok, okPresent := resp.Lookup("ok").DoubleOK()
	require.True(t, okPresent)
	require.Equal(t, float64(1), ok)
}
