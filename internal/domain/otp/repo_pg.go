package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RepoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) *RepoPG {
	return &RepoPG{pool: pool}
}

const codeCols = `id, email, code, purpose, status, attempts,
	COALESCE(user_id, '00000000-0000-0000-0000-000000000000'::uuid),
	expires_at, created_at, updated_at`

func scanCode(row pgx.Row) (*Code, error) {
	c := &Code{}
	err := row.Scan(
		&c.ID, &c.Email, &c.Code, &c.Purpose, &c.Status, &c.Attempts,
		&c.UserID, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveCode
		}
		return nil, err
	}
	return c, nil
}

func (r *RepoPG) Create(ctx context.Context, c *Code) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("create otp: %w", err)
	}
	defer tx.Rollback(ctx)

	// Supersede any prior pending code so at most one is live per
	// (email, purpose).
	_, err = tx.Exec(ctx, `UPDATE otp_codes
		SET status = 'expired', updated_at = NOW()
		WHERE email = $1 AND purpose = $2 AND status = 'pending'`,
		c.Email, c.Purpose)
	if err != nil {
		return fmt.Errorf("supersede pending otp: %w", err)
	}

	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	err = tx.QueryRow(ctx, `INSERT INTO otp_codes
		(id, email, code, purpose, status, attempts, user_id, expires_at)
		VALUES ($1, $2, $3, $4, 'pending', 0,
			NULLIF($5, '00000000-0000-0000-0000-000000000000')::uuid, $6)
		RETURNING status, attempts, created_at, updated_at`,
		c.ID, c.Email, c.Code, c.Purpose, c.UserID, c.ExpiresAt,
	).Scan(&c.Status, &c.Attempts, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create otp: %w", err)
	}

	return tx.Commit(ctx)
}

func (r *RepoPG) GetPending(ctx context.Context, email string, purpose Purpose) (*Code, error) {
	q := fmt.Sprintf(`SELECT %s FROM otp_codes
		WHERE email = $1 AND purpose = $2 AND status = 'pending'
		ORDER BY created_at DESC LIMIT 1`, codeCols)
	return scanCode(r.pool.QueryRow(ctx, q, email, purpose))
}

func (r *RepoPG) GetLatest(ctx context.Context, email string, purpose Purpose) (*Code, error) {
	q := fmt.Sprintf(`SELECT %s FROM otp_codes
		WHERE email = $1 AND purpose = $2
		ORDER BY created_at DESC LIMIT 1`, codeCols)
	return scanCode(r.pool.QueryRow(ctx, q, email, purpose))
}

func (r *RepoPG) IncrementAttempts(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE otp_codes
		SET attempts = attempts + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("increment otp attempts: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoActiveCode
	}
	return nil
}

func (r *RepoPG) TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.pool.Exec(ctx, `UPDATE otp_codes
		SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, from, to)
	if err != nil {
		return fmt.Errorf("transition otp status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNoActiveCode
	}
	return nil
}

func (r *RepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM otp_codes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete otp: %w", err)
	}
	return nil
}

func (r *RepoPG) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("sweep otp: %w", err)
	}
	return tag.RowsAffected(), nil
}
