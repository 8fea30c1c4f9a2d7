package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/mesh/services/core-platform/two-factor-auth-service/internal/domain"
)

const pendingTwoFactorKeyPrefix = "auth:2fa:pending:"

// incrementIfPresent bumps the attempt counter without resurrecting an expired key.
var incrementIfPresent = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
  return 0
end
return redis.call("HINCRBY", KEYS[1], "attempts", 1)
`)

// RedisPendingTwoFactorStore keeps pending second-factor sessions as Redis hashes with a TTL.
type RedisPendingTwoFactorStore struct {
	client redis.Cmdable
}

func NewRedisPendingTwoFactorStore(client redis.Cmdable) *RedisPendingTwoFactorStore {
	return &RedisPendingTwoFactorStore{client: client}
}

func (s *RedisPendingTwoFactorStore) Put(ctx context.Context, token string, session domain.PendingTwoFactorSession, ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("%w: pending session ttl must be positive", domain.ErrInvalidInput)
	}
	key := pendingTwoFactorKeyPrefix + token
	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key,
			"user_id", session.UserID.String(),
			"remember_machine", strconv.FormatBool(session.RememberMachine),
			"attempts", session.Attempts,
			"created_at", session.CreatedAt.UTC().UnixNano(),
			"expires_at", session.ExpiresAt.UTC().UnixNano(),
		)
		p.PExpire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisPendingTwoFactorStore) Get(ctx context.Context, token string) (*domain.PendingTwoFactorSession, error) {
	data, err := s.client.HGetAll(ctx, pendingTwoFactorKeyPrefix+token).Result()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}

	userID, err := uuid.Parse(data["user_id"])
	if err != nil {
		return nil, fmt.Errorf("decode pending session user_id: %w", err)
	}
	attempts, _ := strconv.Atoi(data["attempts"])
	remember, _ := strconv.ParseBool(data["remember_machine"])
	createdAt, _ := strconv.ParseInt(data["created_at"], 10, 64)
	expiresAt, _ := strconv.ParseInt(data["expires_at"], 10, 64)

	return &domain.PendingTwoFactorSession{
		UserID:          userID,
		RememberMachine: remember,
		Attempts:        attempts,
		CreatedAt:       time.Unix(0, createdAt).UTC(),
		ExpiresAt:       time.Unix(0, expiresAt).UTC(),
	}, nil
}

func (s *RedisPendingTwoFactorStore) RecordFailure(ctx context.Context, token string) (int, error) {
	n, err := incrementIfPresent.Run(ctx, s.client, []string{pendingTwoFactorKeyPrefix + token}).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Consume relies on DEL returning the number of keys removed, so exactly one caller sees 1.
func (s *RedisPendingTwoFactorStore) Consume(ctx context.Context, token string) (bool, error) {
	n, err := s.client.Del(ctx, pendingTwoFactorKeyPrefix+token).Result()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
