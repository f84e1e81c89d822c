// Package session holds per-connection state (spec §3.2): identity,
// authentication status, and the set of cursors a connection owns so they
// can be released together when the connection closes.
package session

import "sync"

// Principal identifies an authenticated SCRAM user.
type Principal struct {
	Username string
	AuthDB   string
}

// Session is one accepted connection's state. The zero value is not
// useful; construct with New.
type Session struct {
	mu sync.Mutex

	ID                  int64
	authenticated       bool
	principal           Principal
	cursors             map[uint64]struct{}
	CompressionEnabled  bool // reserved; always false in the core
}

// New returns a fresh, unauthenticated session with the given id.
func New(id int64) *Session {
	return &Session{
		ID:      id,
		cursors: make(map[uint64]struct{}),
	}
}

// Authenticated reports whether SCRAM has completed successfully.
func (s *Session) Authenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// SetAuthenticated flips the session into the authenticated state. The
// router hands it to the saslContinue handler, which calls it on the
// transition where the proof verifies and the conversation is done.
func (s *Session) SetAuthenticated(username, authDB string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = true
	s.principal = Principal{Username: username, AuthDB: authDB}
}

// Logout clears authenticated state, as the logout command requires.
func (s *Session) Logout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authenticated = false
	s.principal = Principal{}
}

// Principal returns the authenticated principal, if any.
func (s *Session) Principal() (Principal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.authenticated {
		return Principal{}, false
	}
	return s.principal, true
}

// AddCursor records a cursor as owned by this session.
func (s *Session) AddCursor(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[id] = struct{}{}
}

// RemoveCursor forgets a cursor, e.g. once exhausted or explicitly killed.
func (s *Session) RemoveCursor(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, id)
}

// OwnedCursors returns a snapshot of cursor ids owned by this session.
func (s *Session) OwnedCursors() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(s.cursors))
	for id := range s.cursors {
		ids = append(ids, id)
	}
	return ids
}
