package file_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/pkg/credentials"
	"github.com/mongobridge/mongosrv/pkg/credentials/file"
)

func TestNewOnMissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	s, err := file.New(path)
	require.NoError(t, err)

	_, ok := s.Lookup("alice", "admin")
	assert.False(t, ok)
}

func TestStorePersistsAcrossNewInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	s, err := file.New(path)
	require.NoError(t, err)

	cred := credentials.StoredCredential{
		Username:       "alice",
		AuthDB:         "admin",
		Salt:           []byte("salt"),
		StoredKey:      []byte("stored"),
		ServerKey:      []byte("server"),
		IterationCount: 15000,
		Roles:          []string{"root"},
	}
	require.NoError(t, s.Store(cred))

	reloaded, err := file.New(path)
	require.NoError(t, err)

	got, ok := reloaded.Lookup("alice", "admin")
	require.True(t, ok)
	assert.Equal(t, cred, got)

	_, ok = reloaded.Lookup("alice", "other-db")
	assert.False(t, ok)
}

func TestStoreOverwritesExistingUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")

	s, err := file.New(path)
	require.NoError(t, err)

	require.NoError(t, s.Store(credentials.StoredCredential{Username: "alice", AuthDB: "admin", IterationCount: 1}))
	require.NoError(t, s.Store(credentials.StoredCredential{Username: "alice", AuthDB: "admin", IterationCount: 2}))

	got, ok := s.Lookup("alice", "admin")
	require.True(t, ok)
	assert.Equal(t, 2, got.IterationCount)
}
