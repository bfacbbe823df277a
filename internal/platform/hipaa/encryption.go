package hipaa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// AssociatedData is bound to every audit-field ciphertext so that a value
// lifted from one context cannot be replayed in another.
const AssociatedData = "healthcare-audit-log"

const (
	nonceSize = 12
	tagSize   = 16
)

// FieldEncryptor encrypts and decrypts individual field values.
type FieldEncryptor interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// Encryptor provides AES-256-GCM field-level encryption for sensitive audit
// attributes. The wire framing is base64(nonce || tag || ciphertext) with a
// 96-bit random nonce and a 128-bit auth tag.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor with the given 32-byte AES-256 key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryptor: key must be 32 bytes, got %d", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("encryptor: create cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("encryptor: create GCM: %w", err)
	}

	return &Encryptor{aead: aead}, nil
}

// Encrypt encrypts a field value and returns the framed, base64-encoded
// ciphertext.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("encrypt: generate nonce: %w", err)
	}

	// Seal returns ciphertext || tag; the frame wants nonce || tag || ciphertext.
	sealed := e.aead.Seal(nil, nonce, []byte(plaintext), []byte(AssociatedData))
	if len(sealed) < tagSize {
		return "", fmt.Errorf("encrypt: sealed output too short")
	}
	ct, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	framed := make([]byte, 0, nonceSize+tagSize+len(ct))
	framed = append(framed, nonce...)
	framed = append(framed, tag...)
	framed = append(framed, ct...)

	return base64.StdEncoding.EncodeToString(framed), nil
}

// Decrypt decodes the frame, verifies the auth tag, and returns the
// plaintext. Any tampering with the ciphertext fails closed.
func (e *Encryptor) Decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decrypt: base64 decode: %w", err)
	}
	if len(data) < nonceSize+tagSize {
		return "", fmt.Errorf("decrypt: ciphertext too short")
	}

	nonce := data[:nonceSize]
	tag := data[nonceSize : nonceSize+tagSize]
	ct := data[nonceSize+tagSize:]

	sealed := make([]byte, 0, len(ct)+tagSize)
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, nonce, sealed, []byte(AssociatedData))
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}
