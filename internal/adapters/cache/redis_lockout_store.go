package cache

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/ports"
)

const (
	lockoutKeyPrefix = "auth:2fa:lockout:"
	// failures older than this are forgotten when no lockout was reached
	lockoutIdleTTL = 24 * time.Hour
)

// RedisLockoutStore implements brute-force lockout storage in Redis.
type RedisLockoutStore struct {
	client redis.Cmdable
}

// NewRedisLockoutStore creates a lockout store backed by Redis hashes.
func NewRedisLockoutStore(client redis.Cmdable) *RedisLockoutStore {
	return &RedisLockoutStore{client: client}
}

func (s *RedisLockoutStore) Get(ctx context.Context, key string) (ports.LockoutState, error) {
	data, err := s.client.HGetAll(ctx, lockoutKeyPrefix+key).Result()
	if err != nil {
		return ports.LockoutState{}, err
	}
	return parseLockoutState(data), nil
}

func (s *RedisLockoutStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, lockoutWindow time.Duration) (ports.LockoutState, error) {
	redisKey := lockoutKeyPrefix + key

	var incr *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.HIncrBy(ctx, redisKey, "failed_count", 1)
		p.Expire(ctx, redisKey, lockoutIdleTTL)
		return nil
	})
	if err != nil {
		return ports.LockoutState{}, err
	}

	state := ports.LockoutState{FailedCount: int(incr.Val())}
	if state.FailedCount < threshold {
		return state, nil
	}

	lockedUntil := now.Add(lockoutWindow).UTC()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, redisKey, "locked_until", lockedUntil.Unix())
		p.Expire(ctx, redisKey, lockoutWindow)
		return nil
	})
	if err != nil {
		return ports.LockoutState{}, err
	}
	state.LockedUntil = &lockedUntil
	return state, nil
}

func (s *RedisLockoutStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, lockoutKeyPrefix+key).Err()
}

func parseLockoutState(data map[string]string) ports.LockoutState {
	state := ports.LockoutState{}
	if raw, ok := data["failed_count"]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			state.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			t := time.Unix(unix, 0).UTC()
			state.LockedUntil = &t
		}
	}
	return state
}
