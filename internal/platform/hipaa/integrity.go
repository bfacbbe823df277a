package hipaa

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashPayload produces a SHA-256 hex digest over an opaque payload for
// tamper evidence on stored audit records.
func HashPayload(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// VerifyPayload reports whether the payload matches the given hex digest.
// The comparison is constant-time.
func VerifyPayload(payload []byte, digest string) bool {
	expected, err := hex.DecodeString(digest)
	if err != nil || len(expected) != sha256.Size {
		return false
	}
	sum := sha256.Sum256(payload)
	return subtle.ConstantTimeCompare(sum[:], expected) == 1
}
