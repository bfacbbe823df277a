package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ManagerConfig holds the signing material and lifetimes for both token
// kinds. Access and refresh secrets must differ so that one token kind can
// never be replayed as the other.
type ManagerConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenManager mints and verifies the access/refresh token pairs and keeps
// the per-principal refresh sets and the revocation set via its SessionStore.
type TokenManager struct {
	cfg      ManagerConfig
	sessions SessionStore
}

// NewTokenManager validates the configuration and creates a manager.
func NewTokenManager(cfg ManagerConfig, sessions SessionStore) (*TokenManager, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token manager: access and refresh secrets are required")
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("token manager: access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = 7 * 24 * time.Hour
	}
	return &TokenManager{cfg: cfg, sessions: sessions}, nil
}

// AccessTTL returns the configured access token lifetime.
func (m *TokenManager) AccessTTL() time.Duration { return m.cfg.AccessTTL }

// Sessions exposes the underlying session store (for the stats endpoint).
func (m *TokenManager) Sessions() SessionStore { return m.sessions }

// GeneratePair mints a fresh access/refresh pair for the subject and
// registers both handles in the session store.
func (m *TokenManager) GeneratePair(ctx context.Context, sub TokenSubject) (*TokenPair, error) {
	now := time.Now()
	accessExp := now.Add(m.cfg.AccessTTL)
	refreshExp := now.Add(m.cfg.RefreshTTL)
	accessJTI := uuid.New().String()
	refreshJTI := uuid.New().String()

	accessClaims := Claims{
		Email:     sub.Email,
		Role:      sub.Role,
		Name:      sub.Name,
		ClinicID:  sub.ClinicID,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.ID,
			ID:        accessJTI,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExp),
		},
	}
	refreshClaims := Claims{
		Email:     sub.Email,
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sub.ID,
			ID:        refreshJTI,
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(refreshExp),
		},
	}

	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString(m.cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString(m.cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	if err := m.sessions.AddSession(ctx, sub.ID, accessJTI, accessExp, refreshJTI, refreshExp); err != nil {
		return nil, fmt.Errorf("register session: %w", err)
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(m.cfg.AccessTTL.Seconds()),
	}, nil
}

// VerifyAccess validates an access token: signature, expiry, issuer,
// audience, the type claim, and revocation-set membership.
func (m *TokenManager) VerifyAccess(ctx context.Context, token string) (*Claims, error) {
	return m.verify(ctx, token, TypeAccess, m.cfg.AccessSecret)
}

// VerifyRefresh validates a refresh token and additionally asserts that the
// handle is still a member of the principal's refresh set.
func (m *TokenManager) VerifyRefresh(ctx context.Context, token string) (*Claims, error) {
	claims, err := m.verify(ctx, token, TypeRefresh, m.cfg.RefreshSecret)
	if err != nil {
		return nil, err
	}

	ok, err := m.sessions.HasRefresh(ctx, claims.Subject, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check refresh set: %w", err)
	}
	if !ok {
		return nil, ErrTokenRevoked
	}
	return claims, nil
}

func (m *TokenManager) verify(ctx context.Context, token, wantType string, secret []byte) (*Claims, error) {
	if token == "" {
		return nil, ErrTokenMissing
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) { return secret, nil },
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid || claims.TokenType != wantType {
		return nil, ErrTokenInvalid
	}

	revoked, err := m.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	return claims, nil
}

// Rotate exchanges a verified refresh token for a new pair: the old handle
// is revoked and leaves the refresh set, then a fresh pair is minted for the
// subject. The caller resolves the subject (role, clinic) from its own
// store before rotating.
func (m *TokenManager) Rotate(ctx context.Context, old *Claims, sub TokenSubject) (*TokenPair, error) {
	if err := m.sessions.Revoke(ctx, old.ID, old.ExpiresAt.Time); err != nil {
		return nil, fmt.Errorf("revoke rotated token: %w", err)
	}
	if err := m.sessions.RemoveRefresh(ctx, old.Subject, old.ID); err != nil {
		return nil, fmt.Errorf("remove rotated token: %w", err)
	}
	return m.GeneratePair(ctx, sub)
}

// Revoke invalidates a single token of either kind. The signature is still
// checked (with relaxed claim validation, so an already-expired token is a
// harmless no-op) to avoid poisoning the revocation set with garbage.
func (m *TokenManager) Revoke(ctx context.Context, token string) error {
	claims, kind, ok := m.parseAnyKind(token)
	if !ok {
		return ErrTokenInvalid
	}

	exp := time.Now().Add(m.cfg.RefreshTTL)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	if !exp.After(time.Now()) {
		return nil
	}

	if err := m.sessions.Revoke(ctx, claims.ID, exp); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	if kind == TypeRefresh {
		if err := m.sessions.RemoveRefresh(ctx, claims.Subject, claims.ID); err != nil {
			return fmt.Errorf("remove refresh handle: %w", err)
		}
	}
	return nil
}

// RevokeAllForUser invalidates every tracked session for the principal.
func (m *TokenManager) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	return m.sessions.RevokeAllForUser(ctx, userID)
}

// parseAnyKind verifies the signature against both secrets without claim
// validation, returning the claims and the token kind.
func (m *TokenManager) parseAnyKind(token string) (*Claims, string, bool) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithoutClaimsValidation(),
	)
	for _, try := range []struct {
		kind   string
		secret []byte
	}{
		{TypeAccess, m.cfg.AccessSecret},
		{TypeRefresh, m.cfg.RefreshSecret},
	} {
		claims := &Claims{}
		parsed, err := parser.ParseWithClaims(token, claims,
			func(t *jwt.Token) (interface{}, error) { return try.secret, nil })
		if err == nil && parsed.Valid && claims.TokenType == try.kind {
			return claims, try.kind, true
		}
	}
	return nil, "", false
}

// ExtractBearer pulls the token out of an Authorization header. Returns ""
// when the header is absent or not a bearer credential.
func ExtractBearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
