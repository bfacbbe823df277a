package principal

import (
	"context"
	"errors"
	"fmt"

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

const clinicianCols = `c.id, c.full_name, c.email, c.password_hash, c.role, c.specialty, c.phone,
	c.is_active, c.clinic_id, COALESCE(a.clinic_name, ''), c.created_at, c.updated_at`

const nurseCols = `n.id, n.full_name, n.email, n.password_hash, n.role,
	n.is_active, n.clinic_id, COALESCE(a.clinic_name, ''), n.created_at, n.updated_at`

const adminCols = `a.id, a.clinic_name, a.admin_name, a.admin_email, a.admin_username,
	a.admin_password, a.is_active, a.created_at, a.updated_at`

func scanClinician(row pgx.Row) (*Principal, error) {
	p := &Principal{Kind: KindClinician}
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.Hash, &p.Role, &p.Specialty, &p.Phone,
		&p.IsActive, &p.ClinicID, &p.ClinicName, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return p, nil
}

func scanNurse(row pgx.Row) (*Principal, error) {
	p := &Principal{Kind: KindNurse}
	err := row.Scan(
		&p.ID, &p.Name, &p.Email, &p.Hash, &p.Role,
		&p.IsActive, &p.ClinicID, &p.ClinicName, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return p, nil
}

func scanAdmin(row pgx.Row) (*Principal, error) {
	p := &Principal{Kind: KindClinicAdmin, Role: "clinic-admin"}
	err := row.Scan(
		&p.ID, &p.ClinicName, &p.Name, &p.Email, &p.LoginName,
		&p.Hash, &p.IsActive, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, mapNotFound(err)
	}
	// A clinic-admin's clinic is itself.
	p.ClinicID = p.ID
	return p, nil
}

func mapNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (r *RepoPG) GetClinicianByEmail(ctx context.Context, email string) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM clinicians c
		LEFT JOIN clinic_admins a ON a.id = c.clinic_id
		WHERE c.email = $1`, clinicianCols)
	return scanClinician(r.pool.QueryRow(ctx, q, NormalizeEmail(email)))
}

func (r *RepoPG) GetNurseByEmail(ctx context.Context, email string) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM nurses n
		LEFT JOIN clinic_admins a ON a.id = n.clinic_id
		WHERE n.email = $1`, nurseCols)
	return scanNurse(r.pool.QueryRow(ctx, q, NormalizeEmail(email)))
}

func (r *RepoPG) GetAdminByLogin(ctx context.Context, login string) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM clinic_admins a
		WHERE a.admin_email = $1 OR a.admin_username = $1`, adminCols)
	return scanAdmin(r.pool.QueryRow(ctx, q, NormalizeEmail(login)))
}

func (r *RepoPG) GetClinicianByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM clinicians c
		LEFT JOIN clinic_admins a ON a.id = c.clinic_id
		WHERE c.id = $1`, clinicianCols)
	return scanClinician(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) GetNurseByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM nurses n
		LEFT JOIN clinic_admins a ON a.id = n.clinic_id
		WHERE n.id = $1`, nurseCols)
	return scanNurse(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) GetAdminByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	q := fmt.Sprintf(`SELECT %s FROM clinic_admins a WHERE a.id = $1`, adminCols)
	return scanAdmin(r.pool.QueryRow(ctx, q, id))
}

func (r *RepoPG) CreateClinician(ctx context.Context, p *Principal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.Email = NormalizeEmail(p.Email)
	err := r.pool.QueryRow(ctx, `INSERT INTO clinicians
		(id, full_name, email, password_hash, role, specialty, phone, is_active, clinic_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, '00000000-0000-0000-0000-000000000000')::uuid)
		RETURNING created_at, updated_at`,
		p.ID, p.Name, p.Email, p.Hash, p.Role, p.Specialty, p.Phone, p.IsActive, p.ClinicID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create clinician: %w", err)
	}
	return nil
}

// UpdatePasswordHash branches on the principal kind because the admin store
// keeps its hash in admin_password rather than password_hash.
func (r *RepoPG) UpdatePasswordHash(ctx context.Context, p *Principal, hash string) error {
	var q string
	switch p.Kind {
	case KindClinician:
		q = `UPDATE clinicians SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	case KindNurse:
		q = `UPDATE nurses SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	case KindClinicAdmin:
		q = `UPDATE clinic_admins SET admin_password = $2, updated_at = NOW() WHERE id = $1`
	default:
		return fmt.Errorf("update password: unknown principal kind %q", p.Kind)
	}

	tag, err := r.pool.Exec(ctx, q, p.ID, hash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *RepoPG) SetActive(ctx context.Context, p *Principal, active bool) error {
	var q string
	switch p.Kind {
	case KindClinician:
		q = `UPDATE clinicians SET is_active = $2, updated_at = NOW() WHERE id = $1`
	case KindNurse:
		q = `UPDATE nurses SET is_active = $2, updated_at = NOW() WHERE id = $1`
	case KindClinicAdmin:
		q = `UPDATE clinic_admins SET is_active = $2, updated_at = NOW() WHERE id = $1`
	default:
		return fmt.Errorf("set active: unknown principal kind %q", p.Kind)
	}

	tag, err := r.pool.Exec(ctx, q, p.ID, active)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
