package principal

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Directory is the unified read facade over the three identity stores.
// Lookup order is fixed (clinician, then nurse, then clinic-admin) so that
// a cross-store email collision resolves deterministically.
type Directory struct {
	repo Repository
}

func NewDirectory(repo Repository) *Directory {
	return &Directory{repo: repo}
}

// LookupByEmail finds the principal for a login identifier. Clinicians and
// nurses match on email only; clinic-admins match on adminEmail or
// adminUsername.
func (d *Directory) LookupByEmail(ctx context.Context, email string) (*Principal, error) {
	email = NormalizeEmail(email)

	p, err := d.repo.GetClinicianByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p, err = d.repo.GetNurseByEmail(ctx, email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return d.repo.GetAdminByLogin(ctx, email)
}

// LookupByID finds a principal by ID with the same store priority,
// typically after an OTP verification returns a stored user ID.
func (d *Directory) LookupByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	p, err := d.repo.GetClinicianByID(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	p, err = d.repo.GetNurseByID(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	return d.repo.GetAdminByID(ctx, id)
}
