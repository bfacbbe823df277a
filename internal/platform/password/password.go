// Package password wraps bcrypt hashing for principal credentials.
package password

import (
	"golang.org/x/crypto/bcrypt"
)

// Cost is the bcrypt work factor used for new hashes.
const Cost = 12

// Hash returns the bcrypt hash of a plaintext password.
func Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify compares a presented password against a stored bcrypt hash.
// bcrypt's comparison is constant-time per hash. Any decoding failure
// (malformed hash, wrong format) yields false; the reason is never
// surfaced to the caller.
func Verify(hash, presented string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(presented)) == nil
}
