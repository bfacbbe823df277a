package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisSessionStore(client), mr
}

func TestRedisHasRefresh(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	_, jti := addPair(t, s, "u1", 0)

	ok, err := s.HasRefresh(ctx, "u1", jti)
	if err != nil || !ok {
		t.Errorf("HasRefresh = %v, %v", ok, err)
	}
	if ok, _ := s.HasRefresh(ctx, "u1", "other"); ok {
		t.Error("unknown handle reported present")
	}
	if ok, _ := s.HasRefresh(ctx, "u2", jti); ok {
		t.Error("handle visible under wrong user")
	}
}

func TestRedisFIFOEvictionRevokes(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	var refreshJTIs []string
	for i := 0; i < MaxRefreshTokens+2; i++ {
		_, jti := addPair(t, s, "u1", i)
		refreshJTIs = append(refreshJTIs, jti)
		// ZSET scores are insertion timestamps; keep them strictly ordered.
		time.Sleep(time.Millisecond)
	}

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

func TestRedisRemoveRefreshDoesNotRevoke(t *testing.T) {
	s, _ := newRedisStore(t)
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

func TestRedisRevocationExpires(t *testing.T) {
	s, mr := newRedisStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := s.IsRevoked(ctx, "jti-1"); !revoked {
		t.Error("handle not revoked")
	}

	mr.FastForward(2 * time.Minute)
	if revoked, _ := s.IsRevoked(ctx, "jti-1"); revoked {
		t.Error("revocation survived past natural expiry")
	}
}

func TestRedisRevokePastExpiryIsNoop(t *testing.T) {
	s, _ := newRedisStore(t)
	ctx := context.Background()

	if err := s.Revoke(ctx, "jti-old", time.Now().Add(-time.Minute)); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked, _ := s.IsRevoked(ctx, "jti-old"); revoked {
		t.Error("already-expired handle entered the revocation set")
	}
}

func TestRedisRevokeAllForUser(t *testing.T) {
	s, _ := newRedisStore(t)
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
	if ok, _ := s.HasRefresh(ctx, "u2", "refresh-u2-0"); !ok {
		t.Error("unrelated principal's session was cleared")
	}
}

func TestRedisStats(t *testing.T) {
	s, _ := newRedisStore(t)
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
	if stats.RevokedTokens != 1 {
		t.Errorf("revoked = %d", stats.RevokedTokens)
	}
}
