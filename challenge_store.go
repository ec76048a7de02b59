package authcore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const challengeKeyPrefix = "challenge"

type challengePurpose string

const (
	purposeRegistration   challengePurpose = "registration"
	purposeAuthentication challengePurpose = "authentication"
	purposeDiscoverable   challengePurpose = "discoverable"
)

// challengeStore keeps pending ceremony state in Redis. Consumption uses
// GETDEL so two concurrent requests racing on the same challenge cannot both
// validate it; TTL enforcement is store-side and survives process restarts.
type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newChallengeStore(redisClient redis.UniversalClient) *challengeStore {
	return &challengeStore{
		redis:  redisClient,
		prefix: challengeKeyPrefix,
	}
}

// Key space: challenge:{purpose}:{userID} for known-identity flows,
// challenge:discoverable:{challengeValue} when identity is not yet known.
func (s *challengeStore) key(purpose challengePurpose, bindingKey string) string {
	return s.prefix + ":" + string(purpose) + ":" + bindingKey
}

func (s *challengeStore) Put(ctx context.Context, purpose challengePurpose, bindingKey string, value []byte, ttl time.Duration) error {
	if s == nil || s.redis == nil {
		return ErrEngineNotReady
	}

	if err := s.redis.Set(ctx, s.key(purpose, bindingKey), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}

// Consume atomically reads and deletes the pending challenge. A second
// Consume for the same key always reports ErrChallengeNotFound.
func (s *challengeStore) Consume(ctx context.Context, purpose challengePurpose, bindingKey string) ([]byte, error) {
	if s == nil || s.redis == nil {
		return nil, ErrEngineNotReady
	}

	data, err := s.redis.GetDel(ctx, s.key(purpose, bindingKey)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrChallengeNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return data, nil
}

// Drop discards a pending challenge without reading it.
func (s *challengeStore) Drop(ctx context.Context, purpose challengePurpose, bindingKey string) error {
	if s == nil || s.redis == nil {
		return ErrEngineNotReady
	}
	if err := s.redis.Del(ctx, s.key(purpose, bindingKey)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}
