// Package memory provides a process-local, in-memory implementation of
// credentials.Provider, sufficient for the bootstrap admin user (spec
// §6.4 start(...auth)) and for exercising the SCRAM authenticator in tests
// without a real backing credentials store.
package memory

import (
	"sync"

	"github.com/mongobridge/mongosrv/pkg/credentials"
)

type key struct {
	username string
	authDB   string
}

// Store is a concurrency-safe, map-backed credentials.Provider.
type Store struct {
	mu    sync.RWMutex
	creds map[key]credentials.StoredCredential
}

// New returns an empty Store.
func New() *Store {
	return &Store{creds: make(map[key]credentials.StoredCredential)}
}

// Lookup implements credentials.Provider.
func (s *Store) Lookup(username, authDB string) (credentials.StoredCredential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[key{username, authDB}]
	return cred, ok
}

// Store implements credentials.Provider.
func (s *Store) Store(cred credentials.StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[key{cred.Username, cred.AuthDB}] = cred
	return nil
}
