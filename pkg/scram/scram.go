// Package scram implements the server side of SCRAM-SHA-256 authentication
// (RFC 5802/7677) for incoming wire connections: conversation lifecycle,
// conversationId bookkeeping, idle expiry, and the user-enumeration-
// resistant fake-salt flow from spec §4.2.
//
// The RFC mechanics themselves — message parsing, nonce handling,
// HMAC/H comparisons, constant-time proof verification — are delegated to
// github.com/xdg-go/scram, the same SCRAM engine the 10gen mongo-go-driver
// pulls in for its own client-side SCRAM support. The teacher project only
// ever *replays* recorded SCRAM exchanges (it never derives or verifies a
// proof); this package is where the real authenticating logic lives.
package scram

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	xdgscram "github.com/xdg-go/scram"

	"github.com/mongobridge/mongosrv/pkg/credentials"
)

// MechanismSHA256 is the only SASL mechanism this authenticator accepts.
// Channel binding (SCRAM-SHA-256-PLUS) is never offered, so a client's GS2
// header always carries the "n" (no channel binding) flag and no
// tls-server-end-point token reaches this server to verify.
const MechanismSHA256 = "SCRAM-SHA-256"

// ErrAuthenticationFailed is the single generic error every failure path
// returns. Per spec §4.2/§7, the reason is never distinguishable from the
// outside, whether the cause is a bad password, an unknown user, a
// malformed message, or a protocol-state violation.
var ErrAuthenticationFailed = errors.New("authentication failed")

// IdleTimeout is spec §5's SCRAM conversation idle timeout.
const IdleTimeout = 5 * time.Minute

type conversationStep int

const (
	stepChallenge conversationStep = iota
	stepComplete
)

type conversation struct {
	id        int32
	authDB    string
	username  string
	step      conversationStep
	engine    *xdgscram.ServerConversation
	createdAt time.Time
}

// StartResult is saslStart's outcome.
type StartResult struct {
	ConversationID     int32
	ServerFirstMessage []byte
}

// ContinueResult is saslContinue's outcome.
type ContinueResult struct {
	ServerFinalMessage []byte
	Done               bool
}

// Authenticator runs server-side SCRAM-SHA-256 conversations against a
// credentials.Provider. It is safe for concurrent use.
type Authenticator struct {
	mu            sync.Mutex
	creds         credentials.Provider
	conversations map[int32]*conversation
	nextID        int32

	fakeStoredKey  []byte
	fakeServerKey  []byte
	fakeIterations int

	now func() time.Time
}

// NewAuthenticator builds an Authenticator backed by creds. It derives one
// fixed fake credential at construction time (never recomputed per
// request) so the unknown-user path costs the same HMAC/compare work as a
// genuine lookup, without repeating PBKDF2 per attempt.
func NewAuthenticator(creds credentials.Provider) (*Authenticator, error) {
	fakePassword := make([]byte, 32)
	if _, err := rand.Read(fakePassword); err != nil {
		return nil, fmt.Errorf("scram: failed to seed fake credential: %w", err)
	}
	fake, err := DeriveCredential("", "", string(fakePassword), credentials.RecommendedIterations)
	if err != nil {
		return nil, fmt.Errorf("scram: failed to derive fake credential: %w", err)
	}
	return &Authenticator{
		creds:          creds,
		conversations:  make(map[int32]*conversation),
		fakeStoredKey:  fake.StoredKey,
		fakeServerKey:  fake.ServerKey,
		fakeIterations: fake.IterationCount,
		now:            time.Now,
	}, nil
}

// lookupFor returns the xdg-go/scram CredentialLookup for a single
// conversation's authDB, implementing spec §4.2's fake-salt defense: an
// unknown username gets a freshly random salt paired with the fixed fake
// StoredKey/ServerKey, and the conversation proceeds exactly as it would
// for a real user until the proof fails verification in saslContinue.
func (a *Authenticator) lookupFor(authDB string) xdgscram.CredentialLookup {
	return func(username string) (xdgscram.StoredCredentials, error) {
		if cred, ok := a.creds.Lookup(username, authDB); ok {
			return xdgscram.StoredCredentials{
				KeyFactors: xdgscram.KeyFactors{Salt: string(cred.Salt), Iters: cred.IterationCount},
				StoredKey:  cred.StoredKey,
				ServerKey:  cred.ServerKey,
			}, nil
		}
		salt := make([]byte, saltSize)
		_, _ = rand.Read(salt) // fresh per attempt; failure just yields an all-zero salt, still unverifiable
		return xdgscram.StoredCredentials{
			KeyFactors: xdgscram.KeyFactors{Salt: string(salt), Iters: a.fakeIterations},
			StoredKey:  a.fakeStoredKey,
			ServerKey:  a.fakeServerKey,
		}, nil
	}
}

func (a *Authenticator) allocateID() int32 {
	a.nextID++
	return a.nextID
}

// SaslStart begins a conversation for the given mechanism/payload/authDB.
func (a *Authenticator) SaslStart(mechanism, authDB string, payload []byte) (StartResult, error) {
	if mechanism != MechanismSHA256 {
		return StartResult{}, fmt.Errorf("%w: unsupported mechanism %q", ErrAuthenticationFailed, mechanism)
	}

	server, err := xdgscram.SHA256.NewServer(a.lookupFor(authDB))
	if err != nil {
		return StartResult{}, fmt.Errorf("%w", ErrAuthenticationFailed)
	}
	engine := server.NewConversation()

	serverFirst, err := engine.Step(string(payload))
	if err != nil {
		return StartResult{}, fmt.Errorf("%w", ErrAuthenticationFailed)
	}

	a.mu.Lock()
	id := a.allocateID()
	a.conversations[id] = &conversation{
		id:        id,
		authDB:    authDB,
		engine:    engine,
		step:      stepChallenge,
		createdAt: a.now(),
	}
	a.mu.Unlock()

	return StartResult{ConversationID: id, ServerFirstMessage: []byte(serverFirst)}, nil
}

// SaslContinue advances an existing conversation with the client's final
// message. Any protocol deviation — unknown conversationId, a conversation
// already complete, a failed proof — discards the conversation and returns
// ErrAuthenticationFailed with no further detail.
func (a *Authenticator) SaslContinue(conversationID int32, payload []byte) (ContinueResult, error) {
	a.mu.Lock()
	c, ok := a.conversations[conversationID]
	if !ok || c.step != stepChallenge {
		a.mu.Unlock()
		if ok {
			a.Discard(conversationID)
		}
		return ContinueResult{}, ErrAuthenticationFailed
	}
	a.mu.Unlock()

	serverFinal, err := c.engine.Step(string(payload))
	if err != nil || !c.engine.Valid() || !c.engine.Done() {
		a.Discard(conversationID)
		return ContinueResult{}, ErrAuthenticationFailed
	}

	a.mu.Lock()
	c.step = stepComplete
	c.username = c.engine.Username()
	a.mu.Unlock()

	return ContinueResult{ServerFinalMessage: []byte(serverFinal), Done: true}, nil
}

// ConversationPrincipal returns the authenticated (username, authDB) for a
// completed conversation.
func (a *Authenticator) ConversationPrincipal(conversationID int32) (username, authDB string, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, found := a.conversations[conversationID]
	if !found || c.step != stepComplete {
		return "", "", false
	}
	return c.username, c.authDB, true
}

// Discard removes a conversation, regardless of its step.
func (a *Authenticator) Discard(conversationID int32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.conversations, conversationID)
}

// CleanupExpired discards conversations idle longer than IdleTimeout.
func (a *Authenticator) CleanupExpired() {
	cutoff := a.now().Add(-IdleTimeout)
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, c := range a.conversations {
		if c.createdAt.Before(cutoff) {
			delete(a.conversations, id)
		}
	}
}
