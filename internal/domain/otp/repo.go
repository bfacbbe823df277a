package otp

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository persists one-time codes. Mutations that depend on the current
// status carry the expected status as a precondition so concurrent
// verifications cannot double-spend a code.
type Repository interface {
	// Create inserts a fresh pending code. Any prior pending code for the
	// same email and purpose is superseded (marked expired) in the same call.
	Create(ctx context.Context, c *Code) error

	// GetPending returns the single pending code for the email and purpose,
	// or ErrNoActiveCode.
	GetPending(ctx context.Context, email string, purpose Purpose) (*Code, error)

	// GetLatest returns the most recently created code regardless of status,
	// or ErrNoActiveCode. Used for the resend cooldown check.
	GetLatest(ctx context.Context, email string, purpose Purpose) (*Code, error)

	// IncrementAttempts bumps the attempt counter on a still-pending code.
	IncrementAttempts(ctx context.Context, id uuid.UUID) error

	// TransitionStatus moves a code from one status to another. Returns
	// ErrNoActiveCode when the row is absent or no longer in `from`.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) error

	// Delete removes a code outright. Used to roll back issuance when the
	// email send fails.
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteExpiredBefore sweeps rows whose expiry is older than the cutoff.
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
