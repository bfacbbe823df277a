package otp

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

// Purpose scopes a code to one workflow. Verification never crosses
// purposes even for the same email.
type Purpose string

const (
	PurposeLogin             Purpose = "login"
	PurposeRegistration      Purpose = "registration"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeEmailVerification Purpose = "email_verification"
)

func (p Purpose) Valid() bool {
	switch p {
	case PurposeLogin, PurposeRegistration, PurposePasswordReset, PurposeEmailVerification:
		return true
	}
	return false
}

// TTL is the validity window for a freshly issued code of this purpose.
func (p Purpose) TTL() time.Duration {
	if p == PurposePasswordReset {
		return 5 * time.Minute
	}
	return 10 * time.Minute
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusVerified Status = "verified"
	StatusUsed     Status = "used"
	StatusExpired  Status = "expired"
)

// MaxAttempts is the per-code failed-verification budget. The code dies on
// the fifth wrong guess.
const MaxAttempts = 5

// ResendCooldown is the minimum gap between issuing two codes to the same
// email and purpose.
const ResendCooldown = 60 * time.Second

// Code is a stored one-time code record. The code value itself is kept in
// plain text; the row is short-lived and swept after expiry.
type Code struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Code      string    `json:"-"`
	Purpose   Purpose   `json:"purpose"`
	Status    Status    `json:"status"`
	Attempts  int       `json:"attempts"`
	UserID    uuid.UUID `json:"userId,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (c *Code) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// Verification failure modes. Handlers map each to its own message but the
// same 400 status.
var (
	ErrNoActiveCode      = errors.New("no active code for this email")
	ErrExpired           = errors.New("code has expired")
	ErrAttemptsExhausted = errors.New("too many failed attempts")
	ErrMismatch          = errors.New("incorrect code")
	ErrRateLimited       = errors.New("code requested too recently")
	ErrNotVerified       = errors.New("code has not been verified")
)

// GenerateCode returns a uniformly random 6-digit numeric code. Leading
// zeros are preserved.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
