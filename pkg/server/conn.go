package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/errs"
	"github.com/mongobridge/mongosrv/internal/metrics"
	"github.com/mongobridge/mongosrv/pkg/router"
	"github.com/mongobridge/mongosrv/pkg/session"
	"github.com/mongobridge/mongosrv/pkg/wire"
)

const readBufferSize = 32 * 1024

// handleConnection is one accepted connection's lifetime: allocate a
// session, drive the streaming frame extractor, dispatch each extracted
// message synchronously (spec §4.6 step 4: "preserves per-connection
// ordering"), and on close release every cursor the session owned.
func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	connID := s.allocateConnID()
	sess := session.New(connID)
	s.registerSession(sess)
	s.registerConn(connID, conn)
	metrics.ConnectionsTotal.Inc()
	metrics.ConnectionsActive.Inc()

	defer func() {
		s.unregisterConn(connID)
		s.unregisterSession(connID)
		s.cursors.CloseAllOwnedBy(connID)
		metrics.ConnectionsActive.Dec()
	}()

	var stream wire.Stream
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := conn.Read(buf)
		if n > 0 {
			messages, extractErr := stream.Feed(buf[:n])
			if extractErr != nil {
				errs.LogError(s.logger, extractErr, "malformed frame, closing connection", zap.Int64("connID", connID))
				return
			}
			for _, msg := range messages {
				s.dispatchMessage(ctx, conn, connID, sess, msg)
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				errs.LogError(s.logger, err, "connection read error", zap.Int64("connID", connID))
			}
			return
		}
	}
}

// dispatchMessage extracts and routes a single complete wire message,
// writing a best-effort error reply on failure rather than tearing down
// the connection (spec §4.6 step 5, §7's protocol-error class).
func (s *Server) dispatchMessage(ctx context.Context, conn net.Conn, connID int64, sess *session.Session, msg *wire.Message) {
	extracted, err := wire.Extract(msg)
	if err != nil {
		errDoc := errorResponse(err)
		s.writeReply(conn, msg, errDoc)
		return
	}

	start := time.Now()
	resp := router.Dispatch(ctx, s.router, connID, msg.Header.RequestID, extracted, sess)
	metrics.CommandDuration.WithLabelValues(extracted.CommandName).Observe(time.Since(start).Seconds())
	metrics.CommandsTotal.WithLabelValues(extracted.CommandName, outcomeOf(resp)).Inc()

	s.writeReply(conn, msg, resp)
}

func outcomeOf(resp bsoncore.Document) string {
	if ok, _ := resp.Lookup("ok").DoubleOK(); ok == 1 {
		return "ok"
	}
	return "error"
}

func (s *Server) writeReply(conn net.Conn, req *wire.Message, respDoc bsoncore.Document) {
	raw := wire.SerializeReply(req.Header.OpCode, req.Header.RequestID, nextResponseID(), respDoc)
	if _, err := conn.Write(raw); err != nil {
		errs.LogError(s.logger, err, "failed to write reply")
	}
}

func errorResponse(err error) bsoncore.Document {
	raw, _ := bson.Marshal(bson.M{
		"ok":       float64(0),
		"errmsg":   err.Error(),
		"code":     int32(1),
		"codeName": "InternalError",
	})
	return bsoncore.Document(raw)
}

var responseIDCounter int32

// nextResponseID assigns the server's own outgoing requestID; MongoDB
// clients only care that responseTo echoes their request, not that this
// value is globally meaningful.
func nextResponseID() int32 {
	return atomic.AddInt32(&responseIDCounter, 1)
}
