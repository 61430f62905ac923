package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/stocklens/stocklens/internal/config"
	"github.com/stocklens/stocklens/internal/models"
)

const redisKeyPrefix = "analysis:"

// RedisStore backs the analysis cache with Redis, for deployments that
// share one cache across replicas. Redis faults are logged and treated as
// misses; a write failure drops the entry rather than failing the request.
type RedisStore struct {
	client *redis.Client
	log    zerolog.Logger
}

// NewRedisStore creates a Redis-backed analysis cache.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		log:    config.NewLogger("cache"),
	}
}

// Get returns the cached record, or false on miss, expiry, or Redis fault.
func (s *RedisStore) Get(ctx context.Context, ticker string) (*models.AnalysisRecord, bool) {
	key := redisKeyPrefix + Key(ticker)

	data, err := s.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Redis error during cache lookup, treating as miss")
		return nil, false
	}

	var record models.AnalysisRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to unmarshal cached analysis, treating as miss")
		return nil, false
	}
	return &record, true
}

// Put stores the record with the given TTL. Failures are logged only.
func (s *RedisStore) Put(ctx context.Context, ticker string, record *models.AnalysisRecord, ttl time.Duration) {
	if record == nil || ttl <= 0 {
		return
	}
	key := redisKeyPrefix + Key(ticker)

	data, err := json.Marshal(record)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to marshal analysis for cache")
		return
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to cache analysis")
	}
}

// Invalidate drops the entry for one ticker.
func (s *RedisStore) Invalidate(ctx context.Context, ticker string) {
	key := redisKeyPrefix + Key(ticker)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Failed to delete cache key")
	}
}

// Clear drops all analysis entries.
func (s *RedisStore) Clear(ctx context.Context) {
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 0).Iterator()
	count := 0
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.log.Warn().Err(err).Str("key", iter.Val()).Msg("Failed to delete cache key")
		} else {
			count++
		}
	}
	if err := iter.Err(); err != nil {
		s.log.Warn().Err(err).Msg("Cache clear scan failed")
		return
	}
	s.log.Info().Int("keys_deleted", count).Msg("Analysis cache cleared")
}

var _ Store = (*RedisStore)(nil)
