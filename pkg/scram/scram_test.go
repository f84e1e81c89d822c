package scram_test

import (
	"testing"

	xdgscram "github.com/xdg-go/scram"
	"github.com/stretchr/testify/require"

	"github.com/mongobridge/mongosrv/pkg/credentials"
	"github.com/mongobridge/mongosrv/pkg/credentials/memory"
	"github.com/mongobridge/mongosrv/pkg/scram"
)

func seedUser(t *testing.T, store *memory.Store, username, authDB, password string) {
	t.Helper()
	cred, err := scram.DeriveCredential(username, authDB, password, credentials.RecommendedIterations)
	require.NoError(t, err)
	require.NoError(t, store.Store(cred))
}

// runClient drives a genuine xdg-go/scram client conversation against the
// Authenticator, returning whether the exchange completed successfully.
func runClient(t *testing.T, auth *scram.Authenticator, authDB, username, password string) bool {
	t.Helper()
	client, err := xdgscram.SHA256.NewClient(username, password, "")
	require.NoError(t, err)
	conv := client.NewConversation()

	clientFirst, err := conv.Step("")
	require.NoError(t, err)

	start, err := auth.SaslStart(scram.MechanismSHA256, authDB, []byte(clientFirst))
	if err != nil {
		return false
	}

	clientFinal, err := conv.Step(string(start.ServerFirstMessage))
	if err != nil {
		return false
	}

	cont, err := auth.SaslContinue(start.ConversationID, []byte(clientFinal))
	if err != nil {
		return false
	}

	if _, err := conv.Step(string(cont.ServerFinalMessage)); err != nil {
		return false
	}
	return cont.Done && conv.Valid()
}

func TestGenuineClientCompletesAuthentication(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "alice", "admin", "correct horse battery staple")
	auth, err := scram.NewAuthenticator(store)
	require.NoError(t, err)

	ok := runClient(t, auth, "admin", "alice", "correct horse battery staple")
	require.True(t, ok)

	username, authDB, ok := auth.ConversationPrincipal(1)
	require.True(t, ok)
	require.Equal(t, "alice", username)
	require.Equal(t, "admin", authDB)
}

func TestImpostorWithWrongPasswordIsRejected(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "alice", "admin", "correct horse battery staple")
	auth, err := scram.NewAuthenticator(store)
	require.NoError(t, err)

	ok := runClient(t, auth, "admin", "alice", "wrong password")
	require.False(t, ok)

	_, _, principalOK := auth.ConversationPrincipal(1)
	require.False(t, principalOK, "a failed conversation must not yield a principal")
}

// TestUnknownUsernameFollowsSameShapeAsRealUser is scenario S3: an unknown
// username must fail the exact same way a wrong password does, both in
// the error returned and in the fact the server walks the entire
// saslStart/saslContinue round trip rather than short-circuiting.
func TestUnknownUsernameFollowsSameShapeAsRealUser(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "alice", "admin", "correct horse battery staple")
	auth, err := scram.NewAuthenticator(store)
	require.NoError(t, err)

	client, err := xdgscram.SHA256.NewClient("ghost", "whatever", "")
	require.NoError(t, err)
	conv := client.NewConversation()
	clientFirst, err := conv.Step("")
	require.NoError(t, err)

	start, err := auth.SaslStart(scram.MechanismSHA256, "admin", []byte(clientFirst))
	require.NoError(t, err, "saslStart must succeed for an unknown user, just as for a real one")
	require.NotEmpty(t, start.ServerFirstMessage)

	clientFinal, err := conv.Step(string(start.ServerFirstMessage))
	require.NoError(t, err)

	_, err = auth.SaslContinue(start.ConversationID, []byte(clientFinal))
	require.ErrorIs(t, err, scram.ErrAuthenticationFailed)

	_, _, ok := auth.ConversationPrincipal(start.ConversationID)
	require.False(t, ok)
}

func TestSaslContinueRejectsUnknownConversation(t *testing.T) {
	store := memory.New()
	auth, err := scram.NewAuthenticator(store)
	require.NoError(t, err)

	_, err = auth.SaslContinue(999, []byte("c=biws,r=x,p=y"))
	require.ErrorIs(t, err, scram.ErrAuthenticationFailed)
}

func TestSaslContinueRejectsReplayAfterCompletion(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "alice", "admin", "correct horse battery staple")
	auth, err := scram.NewAuthenticator(store)
	require.NoError(t, err)
	require.True(t, runClient(t, auth, "admin", "alice", "correct horse battery staple"))

	// conversation 1 completed and should no longer accept another step
	_, err = auth.SaslContinue(1, []byte("c=biws,r=x,p=y"))
	require.ErrorIs(t, err, scram.ErrAuthenticationFailed)
}

func TestDiscardRemovesPrincipal(t *testing.T) {
	store := memory.New()
	seedUser(t, store, "alice", "admin", "correct horse battery staple")
	auth, err := scram.NewAuthenticator(store)
	require.NoError(t, err)
	require.True(t, runClient(t, auth, "admin", "alice", "correct horse battery staple"))

	auth.Discard(1)
	_, _, ok := auth.ConversationPrincipal(1)
	require.False(t, ok)
}

func TestUnsupportedMechanismRejected(t *testing.T) {
	store := memory.New()
	auth, err := scram.NewAuthenticator(store)
	require.NoError(t, err)

	_, err = auth.SaslStart("SCRAM-SHA-1", "admin", []byte("n,,n=alice,r=x"))
	require.ErrorIs(t, err, scram.ErrAuthenticationFailed)
}
