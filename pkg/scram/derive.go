package scram

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mongobridge/mongosrv/pkg/credentials"
)

const saltSize = 24

// DeriveCredential implements spec §4.2's credential-derivation formula,
// used by user-management tooling when creating a user:
//
//	SaltedPassword = PBKDF2-HMAC-SHA256(password, salt, iterations, 32)
//	ClientKey      = HMAC(SaltedPassword, "Client Key")
//	StoredKey      = H(ClientKey)
//	ServerKey      = HMAC(SaltedPassword, "Server Key")
func DeriveCredential(username, authDB, password string, iterations int) (credentials.StoredCredential, error) {
	if iterations < credentials.MinIterationCount {
		iterations = credentials.RecommendedIterations
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return credentials.StoredCredential{}, err
	}
	storedKey, serverKey := deriveKeys(password, salt, iterations)
	return credentials.StoredCredential{
		Username:       username,
		AuthDB:         authDB,
		Salt:           salt,
		StoredKey:      storedKey,
		ServerKey:      serverKey,
		IterationCount: iterations,
	}, nil
}

func deriveKeys(password string, salt []byte, iterations int) (storedKey, serverKey []byte) {
	saltedPassword := pbkdf2.Key([]byte(password), salt, iterations, sha256.Size, sha256.New)

	clientKeyMAC := hmac.New(sha256.New, saltedPassword)
	clientKeyMAC.Write([]byte("Client Key"))
	clientKey := clientKeyMAC.Sum(nil)

	h := sha256.Sum256(clientKey)
	storedKey = h[:]

	serverKeyMAC := hmac.New(sha256.New, saltedPassword)
	serverKeyMAC.Write([]byte("Server Key"))
	serverKey = serverKeyMAC.Sum(nil)
	return storedKey, serverKey
}
