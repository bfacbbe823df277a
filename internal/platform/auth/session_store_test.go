package auth

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func newMemoryStore(t *testing.T) *MemorySessionStore {
	t.Helper()
	s := NewMemorySessionStore()
	t.Cleanup(s.Close)
	return s
}

func addPair(t *testing.T, s SessionStore, userID string, n int) (accessJTI, refreshJTI string) {
	t.Helper()
	accessJTI = fmt.Sprintf("access-%s-%d", userID, n)
	refreshJTI = fmt.Sprintf("refresh-%s-%d", userID, n)
	exp := time.Now().Add(time.Hour)
	if err := s.AddSession(context.Background(), userID, accessJTI, exp, refreshJTI, exp); err != nil {
		t.Fatalf("add session: %v", err)
	}
	return accessJTI, refreshJTI
}

func TestMemoryHasRefresh(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	_, jti := addPair(t, s, "u1", 0)

	ok, err := s.HasRefresh(ctx, "u1", jti)
	if err != nil || !ok {
		t.Errorf("HasRefresh = %v, %v", ok, err)
	}
	ok, _ = s.HasRefresh(ctx, "u1", "other")
	if ok {
		t.Error("unknown handle reported present")
	}
	ok, _ = s.HasRefresh(ctx, "u2", jti)
	if ok {
		t.Error("handle visible under wrong user")
	}
}

func TestMemoryFIFOEvictionRevokes(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	var refreshJTIs []string
	for i := 0; i < MaxRefreshTokens+2; i++ {
		_, jti := addPair(t, s, "u1", i)
		refreshJTIs = append(refreshJTIs, jti)
	}

	// The two oldest handles were evicted and revoked.
	for i := 0; i < 2; i++ {
		if ok, _ := s.HasRefresh(ctx, "u1", refreshJTIs[i]); ok {
			t.Errorf("handle %d still in refresh set", i)
		}
		if revoked, _ := s.IsRevoked(ctx, refreshJTIs[i]); !revoked {
			t.Errorf("evicted handle %d not revoked", i)
		}
	}
	for i := 2; i < len(refreshJTIs); i++ {
		if ok, _ := s.HasRefresh(ctx, "u1", refreshJTIs[i]); !ok {
			t.Errorf("live handle %d missing", i)
		}
	}
}

func TestMemoryRemoveRefreshDoesNotRevoke(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	_, jti := addPair(t, s, "u1", 0)
	if err := s.RemoveRefresh(ctx, "u1", jti); err != nil {
		t.Fatalf("remove refresh: %v", err)
	}

	if ok, _ := s.HasRefresh(ctx, "u1", jti); ok {
		t.Error("removed handle still present")
	}
	if revoked, _ := s.IsRevoked(ctx, jti); revoked {
		t.Error("removed handle should not be revoked")
	}
}

func TestMemoryRevokeAllForUser(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	a1, r1 := addPair(t, s, "u1", 0)
	a2, r2 := addPair(t, s, "u1", 1)
	addPair(t, s, "u2", 0)

	n, err := s.RevokeAllForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("revoke all: %v", err)
	}
	if n != 4 {
		t.Errorf("revoked %d, want 4", n)
	}

	for _, jti := range []string{a1, r1, a2, r2} {
		if revoked, _ := s.IsRevoked(ctx, jti); !revoked {
			t.Errorf("handle %s not revoked", jti)
		}
	}
	// The other principal is untouched.
	if ok, _ := s.HasRefresh(ctx, "u2", "refresh-u2-0"); !ok {
		t.Error("unrelated principal's session was cleared")
	}
}

func TestMemoryStats(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	addPair(t, s, "u1", 0)
	addPair(t, s, "u1", 1)
	addPair(t, s, "u2", 0)
	if err := s.Revoke(ctx, "dead-jti", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Users != 2 {
		t.Errorf("users = %d", stats.Users)
	}
	if stats.RefreshTokens != 3 {
		t.Errorf("refresh tokens = %d", stats.RefreshTokens)
	}
	if stats.TrackedAccess != 3 {
		t.Errorf("tracked access = %d", stats.TrackedAccess)
	}
	if stats.RevokedTokens != 1 {
		t.Errorf("revoked = %d", stats.RevokedTokens)
	}
	if stats.MaxPerUser != MaxRefreshTokens {
		t.Errorf("max per user = %d", stats.MaxPerUser)
	}
}

func TestMemoryCleanupDropsExpired(t *testing.T) {
	s := newMemoryStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Minute)
	if err := s.AddSession(ctx, "u1", "a-old", past, "r-old", past); err != nil {
		t.Fatalf("add session: %v", err)
	}
	if err := s.Revoke(ctx, "jti-old", past); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	s.cleanup()

	stats, _ := s.Stats(ctx)
	if stats.Users != 0 || stats.RefreshTokens != 0 || stats.TrackedAccess != 0 || stats.RevokedTokens != 0 {
		t.Errorf("expired state survived cleanup: %+v", stats)
	}
}
