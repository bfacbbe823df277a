package otp

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medicore/medicore/internal/platform/mailer"
)

// Service owns the one-time-code lifecycle: issuance with delivery,
// verification, consumption, and the background sweep.
type Service struct {
	repo   Repository
	sender mailer.EmailSender
	log    zerolog.Logger
	now    func() time.Time
}

func NewService(repo Repository, sender mailer.EmailSender, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		sender: sender,
		log:    log.With().Str("component", "otp").Logger(),
		now:    time.Now,
	}
}

// Issue creates a pending code and emails it. Issuing again within the
// resend cooldown returns ErrRateLimited without touching the store. When
// the email cannot be sent the code row is deleted so the caller sees a
// clean failure rather than an unusable pending code.
func (s *Service) Issue(ctx context.Context, email string, purpose Purpose, userID uuid.UUID) (*Code, error) {
	if !purpose.Valid() {
		return nil, fmt.Errorf("issue otp: invalid purpose %q", purpose)
	}

	now := s.now()
	last, err := s.repo.GetLatest(ctx, email, purpose)
	if err == nil && now.Sub(last.CreatedAt) < ResendCooldown {
		return nil, ErrRateLimited
	}
	if err != nil && !errors.Is(err, ErrNoActiveCode) {
		return nil, err
	}

	value, err := GenerateCode()
	if err != nil {
		return nil, err
	}

	c := &Code{
		Email:     email,
		Code:      value,
		Purpose:   purpose,
		UserID:    userID,
		ExpiresAt: now.Add(purpose.TTL()),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	subject := mailer.OTPSubject(string(purpose))
	body := mailer.OTPBody(string(purpose), value, int(purpose.TTL().Minutes()))
	if err := s.sender.SendEmail(ctx, email, subject, body); err != nil {
		if delErr := s.repo.Delete(ctx, c.ID); delErr != nil {
			s.log.Error().Err(delErr).Str("otp_id", c.ID.String()).
				Msg("failed to roll back code after send failure")
		}
		return nil, fmt.Errorf("send otp email: %w", err)
	}

	s.log.Info().Str("purpose", string(purpose)).
		Time("expires_at", c.ExpiresAt).Msg("otp issued")
	return c, nil
}

// Verify checks a presented code against the single pending code for the
// email and purpose. The attempt counter is bumped before the comparison so
// a wrong guess always consumes budget. On success the code moves to
// verified and awaits MarkUsed.
func (s *Service) Verify(ctx context.Context, email string, purpose Purpose, presented string) (*Code, error) {
	c, err := s.repo.GetPending(ctx, email, purpose)
	if err != nil {
		return nil, err
	}

	if c.ExpiredAt(s.now()) {
		if terr := s.repo.TransitionStatus(ctx, c.ID, StatusPending, StatusExpired); terr != nil && !errors.Is(terr, ErrNoActiveCode) {
			return nil, terr
		}
		return nil, ErrExpired
	}

	if c.Attempts >= MaxAttempts {
		// An exhausted code is retired so the (email, purpose) slot frees
		// up; later verifies see no active code.
		if terr := s.repo.TransitionStatus(ctx, c.ID, StatusPending, StatusExpired); terr != nil && !errors.Is(terr, ErrNoActiveCode) {
			return nil, terr
		}
		return nil, ErrAttemptsExhausted
	}

	if err := s.repo.IncrementAttempts(ctx, c.ID); err != nil {
		// Lost a race with another verification or the sweeper.
		return nil, ErrNoActiveCode
	}

	if subtle.ConstantTimeCompare([]byte(c.Code), []byte(presented)) != 1 {
		return nil, ErrMismatch
	}

	if err := s.repo.TransitionStatus(ctx, c.ID, StatusPending, StatusVerified); err != nil {
		return nil, ErrNoActiveCode
	}
	c.Status = StatusVerified
	return c, nil
}

// MarkUsed consumes a verified code. A code that is not currently verified
// cannot be consumed, which makes verification single-use.
func (s *Service) MarkUsed(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.TransitionStatus(ctx, id, StatusVerified, StatusUsed); err != nil {
		if errors.Is(err, ErrNoActiveCode) {
			return ErrNotVerified
		}
		return err
	}
	return nil
}

// CancelPending retires any live code for the email and purpose. Absence is
// not an error.
func (s *Service) CancelPending(ctx context.Context, email string, purpose Purpose) error {
	c, err := s.repo.GetPending(ctx, email, purpose)
	if err != nil {
		if errors.Is(err, ErrNoActiveCode) {
			return nil
		}
		return err
	}
	err = s.repo.TransitionStatus(ctx, c.ID, StatusPending, StatusExpired)
	if errors.Is(err, ErrNoActiveCode) {
		return nil
	}
	return err
}

// StartSweeper deletes long-expired rows on the given interval until the
// context is cancelled. Rows are kept for an hour past expiry so support can
// inspect recent failures.
func (s *Service) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.repo.DeleteExpiredBefore(ctx, s.now().Add(-time.Hour))
				if err != nil {
					s.log.Error().Err(err).Msg("otp sweep failed")
					continue
				}
				if n > 0 {
					s.log.Debug().Int64("deleted", n).Msg("swept expired otp codes")
				}
			}
		}
	}()
}
