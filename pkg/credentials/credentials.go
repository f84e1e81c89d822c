// Package credentials defines the persistent-credential-store interface
// SCRAM authentication consumes (spec §4.2's CredentialsProvider) and the
// StoredCredential shape it stores (spec §3.4). The store itself — a real
// database, a config file, whatever an operator wires up — is an external
// collaborator; this package only pins the contract.
package credentials

// StoredCredential is the SCRAM-SHA-256 verifier persisted per user, never
// the password itself. StoredKey/ServerKey are base64-free raw bytes here;
// wire/storage encodings are the provider implementation's concern.
type StoredCredential struct {
	Username       string
	AuthDB         string
	Salt           []byte
	StoredKey      []byte
	ServerKey      []byte
	IterationCount int
	Roles          []string
}

// MinIterationCount is the RFC 5802 floor; Recommended is what DeriveCredential
// uses by default when creating new users through the bootstrap/CLI tooling.
const (
	MinIterationCount   = 4096
	RecommendedIterations = 15000
)

// Provider is the external collaborator spec §4.2 calls the
// CredentialsProvider: a persistent store of SCRAM credentials, looked up
// during every SASL conversation and written to by user-management tooling.
// Implementations must be safe for concurrent Lookup calls (spec §5).
type Provider interface {
	Lookup(username, authDB string) (StoredCredential, bool)
	Store(cred StoredCredential) error
}
