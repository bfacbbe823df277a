package password

import (
	"strings"
	"testing"
)

func TestHashAndVerify(t *testing.T) {
	hash, err := Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$2a$") && !strings.HasPrefix(hash, "$2b$") {
		t.Errorf("unexpected hash format: %s", hash)
	}

	if !Verify(hash, "correct horse battery staple") {
		t.Error("correct password rejected")
	}
	if Verify(hash, "wrong password") {
		t.Error("wrong password accepted")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	if Verify("not-a-bcrypt-hash", "anything") {
		t.Error("malformed hash verified")
	}
	if Verify("", "anything") {
		t.Error("empty hash verified")
	}
}

func TestHashesAreSalted(t *testing.T) {
	a, err := Hash("same password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	b, err := Hash("same password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if a == b {
		t.Error("two hashes of the same password are identical")
	}
}
