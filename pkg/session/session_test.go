package session_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/pkg/session"
)

func TestNewSessionIsUnauthenticated(t *testing.T) {
	s := session.New(1)
	require.False(t, s.Authenticated())
	_, ok := s.Principal()
	require.False(t, ok)
}

func TestSetAuthenticatedTransitionsOnce(t *testing.T) {
	s := session.New(1)
	s.SetAuthenticated("alice", "admin")
	require.True(t, s.Authenticated())

	p, ok := s.Principal()
	require.True(t, ok)
	require.Equal(t, "alice", p.Username)
	require.Equal(t, "admin", p.AuthDB)
}

func TestLogoutClearsAuthentication(t *testing.T) {
	s := session.New(1)
	s.SetAuthenticated("alice", "admin")
	s.Logout()
	require.False(t, s.Authenticated())
}

func TestCursorOwnership(t *testing.T) {
	s := session.New(1)
	s.AddCursor(10)
	s.AddCursor(20)
	require.ElementsMatch(t, []uint64{10, 20}, s.OwnedCursors())

	s.RemoveCursor(10)
	require.ElementsMatch(t, []uint64{20}, s.OwnedCursors())
}
