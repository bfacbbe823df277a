package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	// Issuer and Audience are fixed claims on every token the system mints.
	Issuer   = "healthcare-system"
	Audience = "healthcare-users"

	// TypeAccess and TypeRefresh distinguish the two token kinds via the
	// "type" claim. Each kind is signed with its own secret so one can
	// never be replayed as the other.
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims is the claim set carried by both token kinds. Access tokens carry
// the full principal profile; refresh tokens carry only subject, email and
// type.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role,omitempty"`
	Name      string `json:"name,omitempty"`
	ClinicID  string `json:"clinicId,omitempty"`
	TokenType string `json:"type"`
	jwt.RegisteredClaims
}

// TokenSubject identifies the principal a token pair is minted for.
type TokenSubject struct {
	ID       string
	Email    string
	Role     string
	Name     string
	ClinicID string
}

// TokenPair is the result of a login or refresh: a short-lived access token
// and a longer-lived rotating refresh token. ExpiresIn is the access token
// lifetime in seconds.
type TokenPair struct {
	AccessToken  string `json:"token"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int    `json:"expiresIn"`
}
