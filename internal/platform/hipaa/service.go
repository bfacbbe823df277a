package hipaa

import (
	"fmt"

	"github.com/rs/zerolog"
)

// EncryptionService provides field-level encryption for the audit pipeline.
// It wraps a FieldEncryptor and adds a disabled mode for development
// environments where no encryption key is configured. Production refuses to
// start without a key (config.Validate), so the disabled mode never reaches
// a production deployment.
type EncryptionService struct {
	encryptor FieldEncryptor
	enabled   bool
}

// NewEncryptionService creates a new encryption service. An empty key
// disables encryption with a logged warning; a present but invalid key is an
// error so the application refuses to start misconfigured.
func NewEncryptionService(key []byte, logger zerolog.Logger) (*EncryptionService, error) {
	if len(key) == 0 {
		logger.Warn().Msg("audit field encryption disabled: ENCRYPTION_KEY is not set")
		return &EncryptionService{enabled: false}, nil
	}

	enc, err := NewEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("create encryptor: %w", err)
	}

	logger.Info().Msg("audit field-level encryption enabled")
	return &EncryptionService{encryptor: enc, enabled: true}, nil
}

// EncryptField encrypts a single field value. Returns the original value
// unchanged if encryption is disabled.
func (s *EncryptionService) EncryptField(value string) (string, error) {
	if !s.enabled {
		return value, nil
	}
	return s.encryptor.Encrypt(value)
}

// DecryptField decrypts a single field value. Returns the original value
// unchanged if encryption is disabled.
func (s *EncryptionService) DecryptField(value string) (string, error) {
	if !s.enabled {
		return value, nil
	}
	return s.encryptor.Decrypt(value)
}

// IsEnabled returns true if encryption is active.
func (s *EncryptionService) IsEnabled() bool {
	return s.enabled
}
