package auth

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	refreshKeyPrefix = "session:refresh:" // ZSET jti -> insertion order
	rexpKeyPrefix    = "session:rexp:"    // HASH jti -> natural expiry (unix)
	accessKeyPrefix  = "session:access:"  // ZSET jti -> natural expiry (unix)
	revokedKeyPrefix = "session:revoked:" // STRING with TTL until expiry
)

// RedisSessionStore keeps refresh-token sets and the revocation set in
// Redis so that multiple processes share one view of session state. The
// FIFO-eviction invariant is enforced inside a WATCH transaction on the
// principal's refresh set.
type RedisSessionStore struct {
	client redis.UniversalClient
}

// NewRedisSessionStore creates a store backed by the given client.
func NewRedisSessionStore(client redis.UniversalClient) *RedisSessionStore {
	return &RedisSessionStore{client: client}
}

func (s *RedisSessionStore) AddSession(ctx context.Context, userID, accessJTI string, accessExp time.Time, refreshJTI string, refreshExp time.Time) error {
	refreshKey := refreshKeyPrefix + userID
	rexpKey := rexpKeyPrefix + userID
	accessKey := accessKeyPrefix + userID

	const maxRetries = 4
	for i := 0; i < maxRetries; i++ {
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			members, err := tx.ZRangeWithScores(ctx, refreshKey, 0, -1).Result()
			if err != nil && err != redis.Nil {
				return err
			}

			// Oldest handles beyond the cap move to the revocation set.
			var evicted []string
			if len(members)+1 > MaxRefreshTokens {
				over := len(members) + 1 - MaxRefreshTokens
				for _, m := range members[:over] {
					evicted = append(evicted, m.Member.(string))
				}
			}

			evictedExp := make(map[string]time.Time, len(evicted))
			for _, jti := range evicted {
				raw, err := tx.HGet(ctx, rexpKey, jti).Result()
				if err != nil && err != redis.Nil {
					return err
				}
				evictedExp[jti] = parseUnix(raw, refreshExp)
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, jti := range evicted {
					pipe.ZRem(ctx, refreshKey, jti)
					pipe.HDel(ctx, rexpKey, jti)
					revokeInPipe(ctx, pipe, jti, evictedExp[jti])
				}
				pipe.ZAdd(ctx, refreshKey, redis.Z{
					Score:  float64(time.Now().UnixNano()),
					Member: refreshJTI,
				})
				pipe.HSet(ctx, rexpKey, refreshJTI, refreshExp.Unix())
				pipe.ZAdd(ctx, accessKey, redis.Z{
					Score:  float64(accessExp.Unix()),
					Member: accessJTI,
				})
				pipe.ExpireAt(ctx, refreshKey, refreshExp.Add(time.Hour))
				pipe.ExpireAt(ctx, rexpKey, refreshExp.Add(time.Hour))
				pipe.ExpireAt(ctx, accessKey, refreshExp.Add(time.Hour))
				return nil
			})
			return err
		}, refreshKey)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			return fmt.Errorf("session store: add session: %w", err)
		}
		return nil
	}
	return fmt.Errorf("session store: add session: transaction contention")
}

func (s *RedisSessionStore) HasRefresh(ctx context.Context, userID, refreshJTI string) (bool, error) {
	_, err := s.client.ZScore(ctx, refreshKeyPrefix+userID, refreshJTI).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("session store: has refresh: %w", err)
	}
	return true, nil
}

func (s *RedisSessionStore) RemoveRefresh(ctx context.Context, userID, refreshJTI string) error {
	pipe := s.client.TxPipeline()
	pipe.ZRem(ctx, refreshKeyPrefix+userID, refreshJTI)
	pipe.HDel(ctx, rexpKeyPrefix+userID, refreshJTI)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session store: remove refresh: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, revokedKeyPrefix+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("session store: revoke: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKeyPrefix+jti).Result()
	if err != nil {
		return false, fmt.Errorf("session store: is revoked: %w", err)
	}
	return n > 0, nil
}

func (s *RedisSessionStore) RevokeAllForUser(ctx context.Context, userID string) (int, error) {
	refreshKey := refreshKeyPrefix + userID
	rexpKey := rexpKeyPrefix + userID
	accessKey := accessKeyPrefix + userID

	refreshJTIs, err := s.client.ZRange(ctx, refreshKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("session store: revoke all: %w", err)
	}
	expByJTI, err := s.client.HGetAll(ctx, rexpKey).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("session store: revoke all: %w", err)
	}
	accessMembers, err := s.client.ZRangeWithScores(ctx, accessKey, 0, -1).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("session store: revoke all: %w", err)
	}

	now := time.Now()
	count := 0
	pipe := s.client.TxPipeline()
	for _, jti := range refreshJTIs {
		exp := parseUnix(expByJTI[jti], now.Add(time.Hour))
		revokeInPipe(ctx, pipe, jti, exp)
		count++
	}
	for _, m := range accessMembers {
		exp := time.Unix(int64(m.Score), 0)
		if exp.After(now) {
			revokeInPipe(ctx, pipe, m.Member.(string), exp)
			count++
		}
	}
	pipe.Del(ctx, refreshKey, rexpKey, accessKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("session store: revoke all: %w", err)
	}
	return count, nil
}

func (s *RedisSessionStore) Stats(ctx context.Context) (SessionStats, error) {
	stats := SessionStats{MaxPerUser: MaxRefreshTokens}

	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, refreshKeyPrefix+"*", 100).Result()
		if err != nil {
			return stats, fmt.Errorf("session store: stats: %w", err)
		}
		for _, key := range keys {
			stats.Users++
			n, err := s.client.ZCard(ctx, key).Result()
			if err != nil {
				return stats, fmt.Errorf("session store: stats: %w", err)
			}
			stats.RefreshTokens += int(n)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	cursor = 0
	for {
		keys, next, err := s.client.Scan(ctx, cursor, revokedKeyPrefix+"*", 100).Result()
		if err != nil {
			return stats, fmt.Errorf("session store: stats: %w", err)
		}
		stats.RevokedTokens += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return stats, nil
}

// Close is a no-op; the Redis client's lifecycle belongs to the caller.
func (s *RedisSessionStore) Close() {}

func revokeInPipe(ctx context.Context, pipe redis.Pipeliner, jti string, expiresAt time.Time) {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return
	}
	pipe.Set(ctx, revokedKeyPrefix+jti, "1", ttl)
}

func parseUnix(raw string, fallback time.Time) time.Time {
	if raw == "" {
		return fallback
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return fallback
	}
	return time.Unix(sec, 0)
}
