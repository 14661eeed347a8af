package results

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"hopball-arena/internal/config"
	"hopball-arena/internal/game"
)

// recentKey holds the recent-results list, full JSON documents so a
// read is one round trip.
const recentKey = "hopball:results:recent"

const connectTimeout = 5 * time.Second

// RedisStore archives results in redis, shared across server restarts
// and across nodes pointing at the same instance.
type RedisStore struct {
	client *redis.Client
	limit  int
	log    *zap.Logger
}

// NewRedisStore connects and pings the configured instance.
func NewRedisStore(cfg config.RedisConfig, log *zap.Logger) (*RedisStore, error) {
	if log == nil {
		log = zap.NewNop()
	}
	limit := cfg.RecentLimit
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Addr, err)
	}

	log.Info("results store connected", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	return &RedisStore{client: client, limit: limit, log: log}, nil
}

// RecordMatch pushes the result onto the recent list and trims it to
// the retention limit, one pipelined round trip.
func (s *RedisStore) RecordMatch(ctx context.Context, result game.MatchResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result %s: %w", result.MatchID, err)
	}

	pipe := s.client.Pipeline()
	pipe.LPush(ctx, recentKey, data)
	pipe.LTrim(ctx, recentKey, 0, int64(s.limit-1))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("record result %s: %w", result.MatchID, err)
	}
	return nil
}

// RecentMatches returns up to n results, newest first. Documents that
// no longer unmarshal are skipped rather than failing the whole read.
func (s *RedisStore) RecentMatches(ctx context.Context, n int) ([]game.MatchResult, error) {
	if n <= 0 {
		return nil, nil
	}

	vals, err := s.client.LRange(ctx, recentKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("read recent results: %w", err)
	}

	out := make([]game.MatchResult, 0, len(vals))
	for _, v := range vals {
		var result game.MatchResult
		if err := json.Unmarshal([]byte(v), &result); err != nil {
			s.log.Warn("skipping unreadable result document", zap.Error(err))
			continue
		}
		out = append(out, result)
	}
	return out, nil
}

// Close releases the client's connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
