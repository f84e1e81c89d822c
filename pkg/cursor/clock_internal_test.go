package cursor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestCleanupExpiredClosesStaleCursors exercises the idle-timeout sweep
// with an injected clock, since Manager.now is unexported.
func TestCleanupExpiredClosesStaleCursors(t *testing.T) {
	m := New()
	current := time.Now()
	m.now = func() time.Time { return current }

	id := m.Create(docs(1), "test.coll", 1, 1)

	current = current.Add(DefaultIdleTimeout + time.Second)
	m.CleanupExpired()

	require.Nil(t, m.Get(id), "cursor idle past the timeout must be swept")
}

func docs(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}
