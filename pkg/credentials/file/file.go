// Package file provides a JSON-file-backed credentials.Provider, durable
// across separate process invocations — unlike pkg/credentials/memory,
// whose store dies with the process. It backs both the long-running server
// (pkg/server) and the mongosrvd createuser CLI, so a user created by one
// invocation is authenticatable by the next.
package file

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/mongobridge/mongosrv/pkg/credentials"
)

type key struct {
	Username string
	AuthDB   string
}

// Store is a concurrency-safe, JSON-file-backed credentials.Provider. Every
// Store call rewrites the whole file; this package targets the
// low-write-volume user-management path, not a hot SCRAM lookup table.
type Store struct {
	mu    sync.RWMutex
	path  string
	creds map[key]credentials.StoredCredential
}

type record struct {
	Username       string   `json:"username"`
	AuthDB         string   `json:"authDb"`
	Salt           []byte   `json:"salt"`
	StoredKey      []byte   `json:"storedKey"`
	ServerKey      []byte   `json:"serverKey"`
	IterationCount int      `json:"iterationCount"`
	Roles          []string `json:"roles,omitempty"`
}

// New loads path's existing credential records, if the file exists, into a
// Store ready for Lookup/Store. A missing file is not an error: it is
// treated as an empty store, created on the first Store call.
func New(path string) (*Store, error) {
	s := &Store{path: path, creds: make(map[key]credentials.StoredCredential)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("credentials/file: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("credentials/file: parse %s: %w", path, err)
	}
	for _, r := range records {
		s.creds[key{r.Username, r.AuthDB}] = credentials.StoredCredential{
			Username:       r.Username,
			AuthDB:         r.AuthDB,
			Salt:           r.Salt,
			StoredKey:      r.StoredKey,
			ServerKey:      r.ServerKey,
			IterationCount: r.IterationCount,
			Roles:          r.Roles,
		}
	}
	return s, nil
}

// Lookup implements credentials.Provider.
func (s *Store) Lookup(username, authDB string) (credentials.StoredCredential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.creds[key{username, authDB}]
	return cred, ok
}

// Store implements credentials.Provider: it updates the in-memory map and
// durably rewrites the backing file before returning, so a caller that
// gets a nil error can rely on the credential surviving a restart.
func (s *Store) Store(cred credentials.StoredCredential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[key{cred.Username, cred.AuthDB}] = cred
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	records := make([]record, 0, len(s.creds))
	for _, cred := range s.creds {
		records = append(records, record{
			Username:       cred.Username,
			AuthDB:         cred.AuthDB,
			Salt:           cred.Salt,
			StoredKey:      cred.StoredKey,
			ServerKey:      cred.ServerKey,
			IterationCount: cred.IterationCount,
			Roles:          cred.Roles,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("credentials/file: marshal: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("credentials/file: create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("credentials/file: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credentials/file: close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		return fmt.Errorf("credentials/file: chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("credentials/file: rename into place: %w", err)
	}
	return nil
}
