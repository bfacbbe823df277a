package principal

import (
	"context"

	"github.com/google/uuid"
)

// Repository is the persistence contract over the three identity stores.
// Read methods return ErrNotFound when no row matches.
type Repository interface {
	GetClinicianByEmail(ctx context.Context, email string) (*Principal, error)
	GetNurseByEmail(ctx context.Context, email string) (*Principal, error)
	// GetAdminByLogin matches a clinic-admin on adminEmail OR adminUsername.
	GetAdminByLogin(ctx context.Context, login string) (*Principal, error)

	GetClinicianByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetNurseByID(ctx context.Context, id uuid.UUID) (*Principal, error)
	GetAdminByID(ctx context.Context, id uuid.UUID) (*Principal, error)

	CreateClinician(ctx context.Context, p *Principal) error
	// UpdatePasswordHash writes the new hash into the store matching the
	// principal's kind (passwordHash vs adminPassword).
	UpdatePasswordHash(ctx context.Context, p *Principal, hash string) error
	SetActive(ctx context.Context, p *Principal, active bool) error
}
