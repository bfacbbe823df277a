package hipaa

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestEncryptorRoundTrip(t *testing.T) {
	enc, err := NewEncryptor(testKey())
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}

	for _, plain := range []string{"", "doc@clinic.test", "Jane Roe", strings.Repeat("x", 4096)} {
		ct, err := enc.Encrypt(plain)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plain, err)
		}
		if ct == plain && plain != "" {
			t.Errorf("ciphertext equals plaintext for %q", plain)
		}
		got, err := enc.Decrypt(ct)
		if err != nil {
			t.Fatalf("decrypt: %v", err)
		}
		if got != plain {
			t.Errorf("round trip: got %q, want %q", got, plain)
		}
	}
}

func TestEncryptorNoncesAreRandom(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	a, _ := enc.Encrypt("same value")
	b, _ := enc.Encrypt("same value")
	if a == b {
		t.Error("two encryptions of the same value produced identical ciphertext")
	}
}

func TestDecryptFailsClosedOnTamper(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	ct, err := enc.Encrypt("sensitive value")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	raw, err := base64.StdEncoding.DecodeString(ct)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	if _, err := enc.Decrypt(tampered); err == nil {
		t.Error("tampered ciphertext decrypted")
	}
}

func TestDecryptRejectsMalformedInput(t *testing.T) {
	enc, _ := NewEncryptor(testKey())

	if _, err := enc.Decrypt("not-base64!!"); err == nil {
		t.Error("invalid base64 accepted")
	}
	short := base64.StdEncoding.EncodeToString([]byte("short"))
	if _, err := enc.Decrypt(short); err == nil {
		t.Error("truncated frame accepted")
	}
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	enc, _ := NewEncryptor(testKey())
	other, _ := NewEncryptor(bytes.Repeat([]byte{0x07}, 32))

	ct, _ := enc.Encrypt("cross-key value")
	if _, err := other.Decrypt(ct); err == nil {
		t.Error("ciphertext decrypted under a different key")
	}
}

func TestNewEncryptorKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33} {
		if _, err := NewEncryptor(make([]byte, n)); err == nil {
			t.Errorf("%d-byte key accepted", n)
		}
	}
}

func TestServiceDisabledPassesThrough(t *testing.T) {
	svc, err := NewEncryptionService(nil, zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if svc.IsEnabled() {
		t.Error("service enabled without a key")
	}

	out, err := svc.EncryptField("plain")
	if err != nil || out != "plain" {
		t.Errorf("EncryptField = %q, %v", out, err)
	}
	out, err = svc.DecryptField("plain")
	if err != nil || out != "plain" {
		t.Errorf("DecryptField = %q, %v", out, err)
	}
}

func TestServiceEnabledRoundTrip(t *testing.T) {
	svc, err := NewEncryptionService(testKey(), zerolog.Nop())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	if !svc.IsEnabled() {
		t.Fatal("service disabled with a valid key")
	}

	ct, err := svc.EncryptField("10.0.0.9")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if ct == "10.0.0.9" {
		t.Error("field not encrypted")
	}
	got, err := svc.DecryptField(ct)
	if err != nil || got != "10.0.0.9" {
		t.Errorf("decrypt = %q, %v", got, err)
	}
}

func TestServiceRejectsBadKey(t *testing.T) {
	if _, err := NewEncryptionService(make([]byte, 16), zerolog.Nop()); err == nil {
		t.Error("16-byte key accepted")
	}
}

func TestPayloadIntegrity(t *testing.T) {
	payload := []byte(`{"eventType":"PATIENT_VIEW"}`)
	digest := HashPayload(payload)

	if !VerifyPayload(payload, digest) {
		t.Error("digest does not verify its own payload")
	}
	if VerifyPayload([]byte(`{"eventType":"TAMPERED"}`), digest) {
		t.Error("modified payload verified")
	}
	if VerifyPayload(payload, "not-hex") {
		t.Error("malformed digest verified")
	}
	if VerifyPayload(payload, "deadbeef") {
		t.Error("short digest verified")
	}
}
