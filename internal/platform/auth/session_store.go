package auth

import (
	"context"
	"sync"
	"time"
)

// MaxRefreshTokens caps the number of live refresh tokens per principal.
// Inserting past the cap evicts the oldest handle and revokes it.
const MaxRefreshTokens = 5

// SessionStats are the token-system counters exposed on /auth/stats.
type SessionStats struct {
	Users         int `json:"users"`
	RefreshTokens int `json:"refreshTokens"`
	RevokedTokens int `json:"revokedTokens"`
	TrackedAccess int `json:"trackedAccessTokens"`
	MaxPerUser    int `json:"maxRefreshTokensPerUser"`
}

// SessionStore tracks per-principal refresh-token sets and the revocation
// set. The in-memory implementation serves a single-process deployment; the
// Redis implementation preserves the same invariants across processes.
type SessionStore interface {
	// AddSession registers a freshly minted pair: the refresh handle joins
	// the principal's refresh set (FIFO eviction past MaxRefreshTokens,
	// evicted handles are revoked) and the access handle is indexed for
	// bulk revocation.
	AddSession(ctx context.Context, userID, accessJTI string, accessExp time.Time, refreshJTI string, refreshExp time.Time) error

	// HasRefresh reports whether the handle is a live member of the
	// principal's refresh set.
	HasRefresh(ctx context.Context, userID, refreshJTI string) (bool, error)

	// RemoveRefresh drops one handle from the principal's refresh set
	// without revoking it (used after the caller has revoked it itself).
	RemoveRefresh(ctx context.Context, userID, refreshJTI string) error

	// Revoke adds a handle to the revocation set until its natural expiry.
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports revocation-set membership.
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// RevokeAllForUser revokes every tracked handle (refresh and access)
	// for the principal and clears its refresh set. Returns the number of
	// handles revoked.
	RevokeAllForUser(ctx context.Context, userID string) (int, error)

	// Stats returns current counters.
	Stats(ctx context.Context) (SessionStats, error)

	// Close releases background resources.
	Close()
}

type tokenHandle struct {
	jti       string
	expiresAt time.Time
}

// MemorySessionStore keeps all session state in process memory guarded by a
// single mutex. Entries self-prune: a background loop drops expired
// revocations and expired handles every 5 minutes.
type MemorySessionStore struct {
	mu       sync.Mutex
	refresh  map[string][]tokenHandle // userID -> ordered refresh handles
	access   map[string][]tokenHandle // userID -> tracked access handles
	revoked  map[string]time.Time     // jti -> natural expiry
	done     chan struct{}
	closeOne sync.Once
}

// NewMemorySessionStore creates the store and starts its cleanup loop.
func NewMemorySessionStore() *MemorySessionStore {
	s := &MemorySessionStore{
		refresh: make(map[string][]tokenHandle),
		access:  make(map[string][]tokenHandle),
		revoked: make(map[string]time.Time),
		done:    make(chan struct{}),
	}
	go s.cleanupLoop()
	return s
}

func (s *MemorySessionStore) AddSession(_ context.Context, userID, accessJTI string, accessExp time.Time, refreshJTI string, refreshExp time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := append(s.refresh[userID], tokenHandle{jti: refreshJTI, expiresAt: refreshExp})
	for len(handles) > MaxRefreshTokens {
		evicted := handles[0]
		handles = handles[1:]
		s.revoked[evicted.jti] = evicted.expiresAt
	}
	s.refresh[userID] = handles

	s.access[userID] = append(s.access[userID], tokenHandle{jti: accessJTI, expiresAt: accessExp})
	return nil
}

func (s *MemorySessionStore) HasRefresh(_ context.Context, userID, refreshJTI string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, h := range s.refresh[userID] {
		if h.jti == refreshJTI {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemorySessionStore) RemoveRefresh(_ context.Context, userID, refreshJTI string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handles := s.refresh[userID]
	for i, h := range handles {
		if h.jti == refreshJTI {
			s.refresh[userID] = append(handles[:i], handles[i+1:]...)
			break
		}
	}
	if len(s.refresh[userID]) == 0 {
		delete(s.refresh, userID)
	}
	return nil
}

func (s *MemorySessionStore) Revoke(_ context.Context, jti string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[jti] = expiresAt
	return nil
}

func (s *MemorySessionStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.revoked[jti]
	return ok, nil
}

func (s *MemorySessionStore) RevokeAllForUser(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, h := range s.refresh[userID] {
		s.revoked[h.jti] = h.expiresAt
		count++
	}
	delete(s.refresh, userID)

	now := time.Now()
	for _, h := range s.access[userID] {
		if h.expiresAt.After(now) {
			s.revoked[h.jti] = h.expiresAt
			count++
		}
	}
	delete(s.access, userID)

	return count, nil
}

func (s *MemorySessionStore) Stats(_ context.Context) (SessionStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := SessionStats{
		Users:         len(s.refresh),
		RevokedTokens: len(s.revoked),
		MaxPerUser:    MaxRefreshTokens,
	}
	for _, handles := range s.refresh {
		stats.RefreshTokens += len(handles)
	}
	for _, handles := range s.access {
		stats.TrackedAccess += len(handles)
	}
	return stats, nil
}

// Close stops the background cleanup goroutine. Safe to call multiple times.
func (s *MemorySessionStore) Close() {
	s.closeOne.Do(func() { close(s.done) })
}

func (s *MemorySessionStore) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

// cleanup removes handles and revocations whose tokens have expired. Once a
// token is past its natural expiry there is no need to keep tracking it.
func (s *MemorySessionStore) cleanup() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for jti, exp := range s.revoked {
		if now.After(exp) {
			delete(s.revoked, jti)
		}
	}
	for userID, handles := range s.refresh {
		live := handles[:0]
		for _, h := range handles {
			if h.expiresAt.After(now) {
				live = append(live, h)
			}
		}
		if len(live) == 0 {
			delete(s.refresh, userID)
		} else {
			s.refresh[userID] = live
		}
	}
	for userID, handles := range s.access {
		live := handles[:0]
		for _, h := range handles {
			if h.expiresAt.After(now) {
				live = append(live, h)
			}
		}
		if len(live) == 0 {
			delete(s.access, userID)
		} else {
			s.access[userID] = live
		}
	}
}
