// Package cache memoizes derived views (analytics reports, group options)
// in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"flowmod/api/internal/metrics"
)

const defaultTTL = 2 * time.Minute

// RedisStore keeps JSON-encoded views under namespaced keys with a TTL.
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &RedisStore{
		client: client,
		prefix: "flowmod:view:",
		ttl:    ttl,
	}
}

// Key identifies one view for one scope and window. Bounds are truncated to
// the minute so requests within the same minute share an entry.
type Key struct {
	View        string
	CommunityID string
	Scope       string
	Preset      string
	Start       time.Time
	End         time.Time
}

func (k Key) String() string {
	parts := []string{k.View, k.CommunityID, k.Scope, k.Preset}
	if !k.Start.IsZero() || !k.End.IsZero() {
		parts = append(parts,
			k.Start.UTC().Truncate(time.Minute).Format("200601021504"),
			k.End.UTC().Truncate(time.Minute).Format("200601021504"),
		)
	}
	return strings.Join(parts, ":")
}

func (s *RedisStore) key(k Key) string {
	return s.prefix + k.String()
}

// Get decodes the cached view into dest. It reports false on a miss.
func (s *RedisStore) Get(ctx context.Context, k Key, dest any) (bool, error) {
	raw, err := s.client.Get(ctx, s.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		metrics.CacheLookups.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("lookup cached view: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		metrics.CacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("unmarshal cached view: %w", err)
	}
	metrics.CacheLookups.WithLabelValues("hit").Inc()
	return true, nil
}

// Set stores value under k for the configured TTL.
func (s *RedisStore) Set(ctx context.Context, k Key, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal view: %w", err)
	}
	if err := s.client.Set(ctx, s.key(k), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("save cached view: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
