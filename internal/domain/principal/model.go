package principal

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/platform/password"
)

// ErrNotFound is returned when no principal matches a lookup. A missing
// principal is an expected condition, never an internal error.
var ErrNotFound = errors.New("principal not found")

// Kind identifies the identity store a principal was drawn from.
type Kind string

const (
	KindClinician   Kind = "clinician"
	KindNurse       Kind = "nurse"
	KindClinicAdmin Kind = "clinic-admin"
)

// Principal is the normalized view over the three identity stores. The
// stores use divergent field names (email vs adminEmail, fullName vs
// adminName, passwordHash vs adminPassword); the repository maps each into
// this tagged shape with Kind set to the originating store.
type Principal struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Email     string    `json:"email"`
	LoginName string    `json:"loginName,omitempty"` // clinic-admin username
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	Hash      string    `json:"-"`
	IsActive  bool      `json:"isActive"`

	// ClinicID is the principal's own ID for clinic-admins and the parent
	// clinic otherwise.
	ClinicID   uuid.UUID `json:"clinicId"`
	ClinicName string    `json:"clinicName,omitempty"`

	Specialty string    `json:"specialty,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// VerifyPassword compares a presented password against the stored hash.
// False on any mismatch or decoding failure; the reason is never revealed.
func (p *Principal) VerifyPassword(presented string) bool {
	return password.Verify(p.Hash, presented)
}

// NormalizeEmail lowercases and trims an email for lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
