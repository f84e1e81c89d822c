// Package router implements the command dispatcher (spec §4.3): it gates
// commands on session authentication, normalizes command names, and
// invokes the registered Handler. Its map-plus-lookup shape mirrors the teacher's integrations.Registered/ParserPriority
// dispatch in pkg/core/proxy/proxy.go, generalized from "pick a protocol
// parser" to "pick a BSON command handler".
package router

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/x/bsonx/bsoncore"

	"github.com/mongobridge/mongosrv/internal/mongoerr"
	"github.com/mongobridge/mongosrv/pkg/session"
	"github.com/mongobridge/mongosrv/pkg/wire"
)

// SetAuthenticatedFunc is the extended-context callback passed to the
// saslStart/saslContinue handlers; the saslContinue handler calls it once
// the proof verifies and the conversation is done (spec §4.3).
type SetAuthenticatedFunc func(username, authDB string)

// Context is the per-call context a Handler receives.
type Context struct {
	context.Context

	DB                string
	ConnectionID      int64
	RequestID         int32
	DocumentSequences map[string][]bsoncore.Document
	Session           *session.Session

	// SetAuthenticated is non-nil only for saslStart/saslContinue.
	SetAuthenticated SetAuthenticatedFunc
}

// Handler executes one command and returns its response document.
type Handler func(ctx Context, cmd bsoncore.Document) (bsoncore.Document, error)

// unauthenticatedAllowSet is spec §4.3's allow-list: commands that pass
// even when the session has not completed SCRAM.
var unauthenticatedAllowSet = map[string]struct{}{
	"hello":           {},
	"ismaster":        {},
	"isMaster":        {},
	"buildInfo":       {},
	"ping":            {},
	"whatsmyuri":      {},
	"saslStart":       {},
	"saslContinue":    {},
	"authenticate":    {},
	"logout":          {},
	"getParameter":    {},
	"getCmdLineOpts":  {},
}

// Router is the command dispatch table.
type Router struct {
	handlers map[string]Handler
	authOn   bool
}

// New returns a Router with authentication gating enabled or disabled per
// authEnabled (spec §6.4's start(...auth?)).
func New(authEnabled bool) *Router {
	return &Router{
		handlers: make(map[string]Handler),
		authOn:   authEnabled,
	}
}

// Register binds name to handler. Two names, saslStart and saslContinue,
// are expected to close over a SetAuthenticatedFunc at invocation time;
// Register itself does not distinguish them.
func (r *Router) Register(name string, handler Handler) {
	r.handlers[name] = handler
}

// commandsWithSetAuthenticated are the two names that receive the
// extended saslStart/saslContinue context (spec §4.3).
var commandsWithSetAuthenticated = map[string]struct{}{
	"saslStart":    {},
	"saslContinue": {},
}

// Route dispatches cmd, applying the auth gate and name normalization
// before invoking the resolved handler. ctx.SetAuthenticated is populated
// for saslStart/saslContinue with sess.SetAuthenticated itself, so the
// handler that verifies a done proof flips the session directly.
func (r *Router) Route(parent context.Context, name, db string, connectionID int64, requestID int32, cmd bsoncore.Document, sequences map[string][]bsoncore.Document, sess *session.Session) bsoncore.Document {
	handler, resolvedName, found := r.resolve(name)
	if !found {
		return mongoerr.Response(mongoerr.CommandNotFound, "no such command: '"+name+"'")
	}

	if r.authOn && !sess.Authenticated() {
		if _, allowed := unauthenticatedAllowSet[resolvedName]; !allowed {
			return mongoerr.Response(mongoerr.Unauthorized, "command "+resolvedName+" requires authentication")
		}
	}

	rctx := Context{
		Context:           parent,
		DB:                db,
		ConnectionID:      connectionID,
		RequestID:         requestID,
		DocumentSequences: sequences,
		Session:           sess,
	}
	if _, ok := commandsWithSetAuthenticated[resolvedName]; ok {
		rctx.SetAuthenticated = sess.SetAuthenticated
	}

	resp, err := handler(rctx, cmd)
	if err != nil {
		return mongoerr.ResponseFromError(err)
	}
	return resp
}

// resolve implements spec §4.3's name-normalization rule: exact match
// first, then a case-insensitive fallback.
func (r *Router) resolve(name string) (Handler, string, bool) {
	if h, ok := r.handlers[name]; ok {
		return h, name, true
	}
	lower := strings.ToLower(name)
	for registered, h := range r.handlers {
		if strings.ToLower(registered) == lower {
			return h, registered, true
		}
	}
	return nil, "", false
}

// Dispatch is the entry point pkg/server calls once per extracted wire
// message: it derives the command name from the extracted message and
// routes it.
func Dispatch(parent context.Context, r *Router, connectionID int64, requestID int32, extracted *wire.Extracted, sess *session.Session) bsoncore.Document {
	return r.Route(parent, extracted.CommandName, extracted.DB, connectionID, requestID, extracted.Command, extracted.DocumentSequences, sess)
}
