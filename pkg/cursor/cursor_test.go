package cursor_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/pkg/cursor"
)

func docs(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func TestCreateIDsAreNeverZeroOrRepeated(t *testing.T) {
	m := cursor.New()
	seen := make(map[uint64]bool)
	for i := 0; i < 1000; i++ {
		id := m.Create(docs(1), "test.coll", 1, 1)
		require.NotZero(t, id)
		require.False(t, seen[id], "cursor id repeated within a process")
		seen[id] = true
	}
}

func TestAdvanceReturnsAtMostN(t *testing.T) {
	m := cursor.New()
	id := m.Create(docs(5), "test.coll", 2, 1)

	batch, next, ok := m.Advance(id, 2)
	require.True(t, ok)
	require.Len(t, batch, 2)
	require.Equal(t, id, next)

	batch, next, ok = m.Advance(id, 2)
	require.True(t, ok)
	require.Len(t, batch, 2)
	require.Equal(t, id, next)

	batch, next, ok = m.Advance(id, 2)
	require.True(t, ok)
	require.Len(t, batch, 1)
	require.Zero(t, next, "cursor must report id 0 once exhausted")

	require.Nil(t, m.Get(id), "exhausted cursor must no longer be retrievable")
	require.False(t, m.Close(id), "closing an already-exhausted cursor is idempotent")
}

func TestCloseIsIdempotent(t *testing.T) {
	m := cursor.New()
	id := m.Create(docs(3), "test.coll", 1, 1)
	require.True(t, m.Close(id))
	require.False(t, m.Close(id))
	require.Nil(t, m.Get(id))
}

func TestCloseAllOwnedByOnDisconnect(t *testing.T) {
	m := cursor.New()
	a := m.Create(docs(10), "test.coll", 1, 1)
	b := m.Create(docs(10), "test.coll", 1, 1)
	c := m.Create(docs(10), "test.coll", 1, 2)

	m.CloseAllOwnedBy(1)

	require.Nil(t, m.Get(a))
	require.Nil(t, m.Get(b))
	require.NotNil(t, m.Get(c))
}

func TestCleanupExpiredLeavesFreshCursorsAlone(t *testing.T) {
	m := cursor.New()
	id := m.Create(docs(10), "test.coll", 1, 1)

	m.CleanupExpired()
	require.NotNil(t, m.Get(id), "a cursor created moments ago must survive an immediate sweep")
}
