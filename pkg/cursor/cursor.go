// Package cursor implements the server-side cursor manager (spec §4.5):
// the single point of truth for in-flight query result iteration.
// Handlers never hold cursor state directly.
package cursor

import (
	"math/rand/v2"
	"sync"
	"time"
)

// DefaultIdleTimeout is spec §5's 10-minute cursor idle threshold.
const DefaultIdleTimeout = 10 * time.Minute

// Cursor is a server-side iteration handle over a materialized result set
// (spec §3.5). id==0 is reserved to mean "exhausted, no cursor".
type Cursor struct {
	ID                uint64
	Namespace         string
	Documents         [][]byte // each a serialized BSON document
	Position          int
	BatchSize         int
	CreatedAt         time.Time
	LastAccessed      time.Time
	OwnerConnectionID int64
}

// Exhausted reports whether every document has been delivered.
func (c *Cursor) Exhausted() bool {
	return c.Position >= len(c.Documents)
}

// Manager is the exclusive-lock cursor table.
type Manager struct {
	mu          sync.Mutex
	cursors     map[uint64]*Cursor
	idleTimeout time.Duration
	now         func() time.Time
}

// New returns an empty Manager with the default idle timeout.
func New() *Manager {
	return &Manager{
		cursors:     make(map[uint64]*Cursor),
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
}

// Create allocates a fresh, unguessable, non-zero cursor id and registers
// a cursor over documents.
func (m *Manager) Create(documents [][]byte, namespace string, batchSize int, ownerConnectionID int64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.freshIDLocked()
	now := m.now()
	m.cursors[id] = &Cursor{
		ID:                id,
		Namespace:         namespace,
		Documents:         documents,
		BatchSize:         batchSize,
		CreatedAt:         now,
		LastAccessed:      now,
		OwnerConnectionID: ownerConnectionID,
	}
	return id
}

func (m *Manager) freshIDLocked() uint64 {
	for {
		id := rand.Uint64()
		if id == 0 {
			continue
		}
		if _, exists := m.cursors[id]; !exists {
			return id
		}
	}
}

// Get returns the cursor for id, or nil if it does not exist.
func (m *Manager) Get(id uint64) *Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursors[id]
}

// Advance returns up to n documents starting at the cursor's current
// position and advances it. It closes and removes the cursor once
// exhausted, returning nextID==0 in that case.
func (m *Manager) Advance(id uint64, n int) (batch [][]byte, nextID uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, exists := m.cursors[id]
	if !exists {
		return nil, 0, false
	}

	end := c.Position + n
	if end > len(c.Documents) {
		end = len(c.Documents)
	}
	batch = c.Documents[c.Position:end]
	c.Position = end
	c.LastAccessed = m.now()

	if c.Exhausted() {
		delete(m.cursors, id)
		return batch, 0, true
	}
	return batch, id, true
}

// Close removes a cursor, returning whether it existed. Idempotent: a
// second call returns false.
func (m *Manager) Close(id uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.cursors[id]; !exists {
		return false
	}
	delete(m.cursors, id)
	return true
}

// CleanupExpired closes cursors idle longer than the manager's idle
// timeout.
func (m *Manager) CleanupExpired() {
	cutoff := m.now().Add(-m.idleTimeout)
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.cursors {
		if c.LastAccessed.Before(cutoff) {
			delete(m.cursors, id)
		}
	}
}

// CloseAllOwnedBy closes every cursor owned by connectionID, called on
// connection close (spec §3.2: "cursors owned by a closing connection are
// killed").
func (m *Manager) CloseAllOwnedBy(connectionID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, c := range m.cursors {
		if c.OwnerConnectionID == connectionID {
			delete(m.cursors, id)
		}
	}
}

// Len reports the number of live cursors, mostly useful for tests and
// serverStatus-style introspection.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.cursors)
}
