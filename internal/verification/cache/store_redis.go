package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"verigate/internal/verification/models"
)

const redisKeyPrefix = "verigate:verified:"

// RedisStore persists entries in Redis so every replica (and restarts) share the
// cache. Redis expiry mirrors the TTL; VerifiedAt is still checked on read so
// the store clock stays authoritative.
type RedisStore struct {
	client *redis.Client
	opts   options
}

func NewRedis(client *redis.Client, opts ...Option) *RedisStore {
	return &RedisStore{client: client, opts: newOptions(opts)}
}

func redisKey(subjectKey string) string {
	return redisKeyPrefix + subjectKey
}

func (s *RedisStore) Get(ctx context.Context, subjectKey string) (*models.VerifiedSession, error) {
	raw, err := s.client.Get(ctx, redisKey(subjectKey)).Bytes()
	if errors.Is(err, redis.Nil) {
		s.opts.metrics.IncCacheLookup("redis", "miss")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get verified session: %w", err)
	}

	var entry models.VerifiedSession
	if err := json.Unmarshal(raw, &entry); err != nil {
		// Unreadable entries are treated as absent.
		_ = s.Evict(ctx, subjectKey)
		s.opts.metrics.IncCacheLookup("redis", "miss")
		return nil, nil
	}

	if entry.Expired(s.opts.now(), s.opts.ttl) {
		if err := s.Evict(ctx, subjectKey); err != nil {
			return nil, err
		}
		s.opts.metrics.IncCacheLookup("redis", "expired")
		return nil, nil
	}

	s.opts.metrics.IncCacheLookup("redis", "hit")
	return &entry, nil
}

func (s *RedisStore) Put(ctx context.Context, subjectKey, sessionID string, status models.Status) error {
	if err := validatePut(subjectKey, sessionID, status); err != nil {
		return err
	}
	entry := models.VerifiedSession{
		SessionID:  sessionID,
		SubjectKey: subjectKey,
		VerifiedAt: s.opts.now(),
		Status:     status,
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal verified session: %w", err)
	}
	if err := s.client.Set(ctx, redisKey(subjectKey), raw, s.opts.ttl).Err(); err != nil {
		return fmt.Errorf("put verified session: %w", err)
	}
	return nil
}

func (s *RedisStore) Evict(ctx context.Context, subjectKey string) error {
	if err := s.client.Del(ctx, redisKey(subjectKey)).Err(); err != nil {
		return fmt.Errorf("evict verified session: %w", err)
	}
	return nil
}
