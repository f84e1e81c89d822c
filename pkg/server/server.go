// Package server implements the connection loop (spec §4.6): one logical
// task per accepted connection, driving the streaming frame codec and the
// command router, plus the background sweep tasks the cursor manager and
// SCRAM authenticator need. Grounded on the teacher's Proxy.start
// accept-loop (pkg/core/proxy/proxy.go): net.Listen, a per-connection
// errgroup-tracked goroutine, deferred cleanup, panic containment.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mongobridge/mongosrv/internal/errs"
	"github.com/mongobridge/mongosrv/internal/metrics"
	"github.com/mongobridge/mongosrv/pkg/credentials"
	"github.com/mongobridge/mongosrv/pkg/cursor"
	"github.com/mongobridge/mongosrv/pkg/router"
	"github.com/mongobridge/mongosrv/pkg/scram"
	"github.com/mongobridge/mongosrv/pkg/session"
)

// Options configures a Server (spec §6.4's start(port, host, verbose,
// tls?, auth?)).
type Options struct {
	Host string
	Port int
	TLS  *TLSOptions

	AuthEnabled bool
	// Bootstrap admin user, seeded under authDb "admin" when AuthEnabled.
	BootstrapUsername string
	BootstrapPassword string

	CursorSweepInterval time.Duration // default time.Minute
	ScramSweepInterval  time.Duration // default 5 * time.Minute
}

// Server owns the listener, the session/cursor registries, and the
// background sweep tasks. It is the process-wide composition root (spec
// §9: "Two well-scoped registries (sessions, cursors) are process-wide.
// Both are created on server construction and torn down on stop").
type Server struct {
	opts   Options
	logger *zap.Logger

	router  *router.Router
	cursors *cursor.Manager
	auth    *scram.Authenticator
	creds   credentials.Provider

	listener   net.Listener
	nextConnID int64

	mu       sync.Mutex
	sessions map[int64]*session.Session
	conns    map[int64]net.Conn
}

// New constructs a Server. r must already have every command registered.
func New(opts Options, logger *zap.Logger, r *router.Router, cursors *cursor.Manager, auth *scram.Authenticator, creds credentials.Provider) *Server {
	if opts.CursorSweepInterval == 0 {
		opts.CursorSweepInterval = time.Minute
	}
	if opts.ScramSweepInterval == 0 {
		opts.ScramSweepInterval = scram.IdleTimeout
	}
	return &Server{
		opts:     opts,
		logger:   logger,
		router:   r,
		cursors:  cursors,
		auth:     auth,
		creds:    creds,
		sessions: make(map[int64]*session.Session),
		conns:    make(map[int64]net.Conn),
	}
}

// Address returns the bound host:port once Start has begun listening.
func (s *Server) Address() string {
	if s.listener == nil {
		return fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	}
	return s.listener.Addr().String()
}

// ConnectionString returns a URI string with the right scheme for TLS vs
// plain (spec §6.4).
func (s *Server) ConnectionString() string {
	scheme := "mongodb"
	if s.opts.TLS != nil {
		scheme = "mongodb+tls"
	}
	return fmt.Sprintf("%s://%s", scheme, s.Address())
}

// bootstrapAdmin seeds the admin user under authDb "admin" into the
// server's credentials provider, the way spec §6.4 describes
// start(...auth) doing.
func (s *Server) bootstrapAdmin() error {
	if s.opts.BootstrapUsername == "" || !s.opts.AuthEnabled {
		return nil
	}
	cred, err := scram.DeriveCredential(s.opts.BootstrapUsername, "admin", s.opts.BootstrapPassword, credentials.RecommendedIterations)
	if err != nil {
		return fmt.Errorf("server: derive bootstrap credential: %w", err)
	}
	return s.creds.Store(cred)
}

// Start listens and serves until ctx is cancelled (spec §5: "Server
// shutdown requests a cooperative stop"). It blocks until every task has
// wound down.
func (s *Server) Start(ctx context.Context) error {
	if err := s.bootstrapAdmin(); err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", s.opts.Host, s.opts.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		errs.LogError(s.logger, err, "failed to bind listener", zap.String("addr", addr))
		return fmt.Errorf("server: listen on %s: %w", addr, err)
	}

	if s.opts.TLS != nil {
		tlsCfg, err := buildTLSConfig(*s.opts.TLS)
		if err != nil {
			_ = listener.Close()
			return err
		}
		listener = tls.NewListener(listener, tlsCfg)
	}

	s.listener = listener
	s.logger.Info("mongosrv listening", zap.String("addr", listener.Addr().String()))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		err := listener.Close()
		// Closing the listener only stops future Accept calls. Connections
		// already accepted and idle in conn.Read block past shutdown until
		// the peer sends data or disconnects, so every tracked connection
		// is force-closed too (grounded on the teacher's
		// StopProxyServer, pkg/core/proxy/proxy.go:633-652).
		s.closeAllConns()
		return err
	})

	g.Go(func() error { return s.sweepCursors(ctx) })
	g.Go(func() error { return s.sweepScram(ctx) })
	g.Go(func() error { return s.acceptLoop(ctx, listener) })

	return g.Wait()
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) error {
	connGrp, connCtx := errgroup.WithContext(ctx)
	defer func() {
		_ = connGrp.Wait()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			errs.LogError(s.logger, err, "accept failed")
			return err
		}

		connGrp.Go(func() error {
			defer s.recoverPanic(conn)
			s.handleConnection(connCtx, conn)
			return nil
		})
	}
}

func (s *Server) recoverPanic(conn net.Conn) {
	if r := recover(); r != nil {
		s.logger.Error("recovered from panic in connection handler", zap.Any("panic", r))
	}
	_ = conn.Close()
}

func (s *Server) sweepCursors(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.CursorSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.cursors.CleanupExpired()
			metrics.CursorsOpen.Set(float64(s.cursors.Len()))
		}
	}
}

func (s *Server) sweepScram(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.ScramSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.auth.CleanupExpired()
		}
	}
}

func (s *Server) registerSession(sess *session.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
}

func (s *Server) unregisterSession(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

func (s *Server) registerConn(id int64, conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conns[id] = conn
}

func (s *Server) unregisterConn(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, id)
}

// closeAllConns force-closes every accepted connection still registered,
// unblocking any handleConnection goroutine parked in conn.Read so
// acceptLoop's connGrp.Wait() can return during shutdown.
func (s *Server) closeAllConns() {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for _, conn := range s.conns {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		_ = conn.Close()
	}
}

func (s *Server) allocateConnID() int64 {
	return atomic.AddInt64(&s.nextConnID, 1)
}
