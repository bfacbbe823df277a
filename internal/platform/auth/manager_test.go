package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestManager(t *testing.T, cfg ManagerConfig) (*TokenManager, *MemorySessionStore) {
	t.Helper()
	if cfg.AccessSecret == nil {
		cfg.AccessSecret = []byte("test-access-secret")
	}
	if cfg.RefreshSecret == nil {
		cfg.RefreshSecret = []byte("test-refresh-secret")
	}
	store := NewMemorySessionStore()
	t.Cleanup(store.Close)

	tm, err := NewTokenManager(cfg, store)
	if err != nil {
		t.Fatalf("new token manager: %v", err)
	}
	return tm, store
}

func testSubject() TokenSubject {
	return TokenSubject{
		ID:       "a2b1c3d4-0000-0000-0000-000000000001",
		Email:    "doc@clinic.test",
		Role:     "doctor",
		Name:     "Dr Test",
		ClinicID: "a2b1c3d4-0000-0000-0000-000000000002",
	}
}

func TestNewTokenManagerRejectsSharedSecret(t *testing.T) {
	store := NewMemorySessionStore()
	t.Cleanup(store.Close)
	_, err := NewTokenManager(ManagerConfig{
		AccessSecret:  []byte("same"),
		RefreshSecret: []byte("same"),
	}, store)
	if err == nil {
		t.Fatal("expected error for identical secrets")
	}
}

func TestGeneratePairAndVerify(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{AccessTTL: 15 * time.Minute})
	ctx := context.Background()

	pair, err := tm.GeneratePair(ctx, testSubject())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	if pair.ExpiresIn != 900 {
		t.Errorf("expiresIn = %d, want 900", pair.ExpiresIn)
	}

	claims, err := tm.VerifyAccess(ctx, pair.AccessToken)
	if err != nil {
		t.Fatalf("verify access: %v", err)
	}
	if claims.Subject != testSubject().ID || claims.Email != "doc@clinic.test" || claims.Role != "doctor" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.TokenType != TypeAccess {
		t.Errorf("token type = %q", claims.TokenType)
	}

	rc, err := tm.VerifyRefresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}
	if rc.TokenType != TypeRefresh || rc.Subject != testSubject().ID {
		t.Errorf("unexpected refresh claims: %+v", rc)
	}
	// Refresh tokens never carry the full profile.
	if rc.Role != "" || rc.ClinicID != "" {
		t.Errorf("refresh token leaked profile claims: %+v", rc)
	}
}

func TestTokenKindsAreNotInterchangeable(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{})
	ctx := context.Background()

	pair, err := tm.GeneratePair(ctx, testSubject())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	if _, err := tm.VerifyRefresh(ctx, pair.AccessToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("access token accepted as refresh: %v", err)
	}
	if _, err := tm.VerifyAccess(ctx, pair.RefreshToken); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh token accepted as access: %v", err)
	}
}

func TestVerifyEmptyAndGarbage(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{})
	ctx := context.Background()

	if _, err := tm.VerifyAccess(ctx, ""); !errors.Is(err, ErrTokenMissing) {
		t.Errorf("empty token: %v", err)
	}
	if _, err := tm.VerifyAccess(ctx, "not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage token: %v", err)
	}
}

func TestExpiredAccessToken(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{AccessTTL: time.Millisecond})
	ctx := context.Background()

	pair, err := tm.GeneratePair(ctx, testSubject())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	if _, err := tm.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected expired, got %v", err)
	}
}

func TestRevokeSingleToken(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{})
	ctx := context.Background()

	pair, err := tm.GeneratePair(ctx, testSubject())
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	if err := tm.Revoke(ctx, pair.AccessToken); err != nil {
		t.Fatalf("revoke access: %v", err)
	}
	if _, err := tm.VerifyAccess(ctx, pair.AccessToken); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("revoked access still verifies: %v", err)
	}
	// The refresh token is untouched.
	if _, err := tm.VerifyRefresh(ctx, pair.RefreshToken); err != nil {
		t.Errorf("refresh should survive access revocation: %v", err)
	}

	if err := tm.Revoke(ctx, pair.RefreshToken); err != nil {
		t.Fatalf("revoke refresh: %v", err)
	}
	if _, err := tm.VerifyRefresh(ctx, pair.RefreshToken); err == nil {
		t.Error("revoked refresh still verifies")
	}
}

func TestRevokeRejectsGarbage(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{})
	if err := tm.Revoke(context.Background(), "garbage"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("expected invalid, got %v", err)
	}
}

func TestRotateRevokesOldRefresh(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	sub := testSubject()

	pair, err := tm.GeneratePair(ctx, sub)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	old, err := tm.VerifyRefresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %v", err)
	}

	next, err := tm.Rotate(ctx, old, sub)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}

	if _, err := tm.VerifyRefresh(ctx, pair.RefreshToken); err == nil {
		t.Error("rotated-out refresh token still verifies")
	}
	if _, err := tm.VerifyRefresh(ctx, next.RefreshToken); err != nil {
		t.Errorf("new refresh token rejected: %v", err)
	}
}

func TestRefreshCapEvictsOldest(t *testing.T) {
	tm, store := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	sub := testSubject()

	pairs := make([]*TokenPair, 0, MaxRefreshTokens+1)
	for i := 0; i < MaxRefreshTokens+1; i++ {
		p, err := tm.GeneratePair(ctx, sub)
		if err != nil {
			t.Fatalf("generate pair %d: %v", i, err)
		}
		pairs = append(pairs, p)
	}

	// The oldest handle was evicted and revoked; the rest are live.
	if _, err := tm.VerifyRefresh(ctx, pairs[0].RefreshToken); err == nil {
		t.Error("evicted refresh token still verifies")
	}
	for i := 1; i < len(pairs); i++ {
		if _, err := tm.VerifyRefresh(ctx, pairs[i].RefreshToken); err != nil {
			t.Errorf("pair %d rejected: %v", i, err)
		}
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.RefreshTokens != MaxRefreshTokens {
		t.Errorf("refresh set size = %d, want %d", stats.RefreshTokens, MaxRefreshTokens)
	}
}

func TestRevokeAllForUser(t *testing.T) {
	tm, _ := newTestManager(t, ManagerConfig{})
	ctx := context.Background()
	sub := testSubject()

	a, err := tm.GeneratePair(ctx, sub)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}
	b, err := tm.GeneratePair(ctx, sub)
	if err != nil {
		t.Fatalf("generate pair: %v", err)
	}

	n, err := tm.RevokeAllForUser(ctx, sub.ID)
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 4 {
		t.Errorf("revoked %d handles, want 4", n)
	}

	for _, token := range []string{a.AccessToken, b.AccessToken} {
		if _, err := tm.VerifyAccess(ctx, token); !errors.Is(err, ErrTokenRevoked) {
			t.Errorf("access token survived revoke-all: %v", err)
		}
	}
	for _, token := range []string{a.RefreshToken, b.RefreshToken} {
		if _, err := tm.VerifyRefresh(ctx, token); err == nil {
			t.Error("refresh token survived revoke-all")
		}
	}
}

func TestExtractBearer(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi"},
		{"bearer abc", "abc"},
		{"BEARER  abc ", "abc"},
		{"Basic dXNlcjpwYXNz", ""},
		{"Bearer", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := ExtractBearer(tc.header); got != tc.want {
			t.Errorf("ExtractBearer(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
