package diagnostics

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Sink = (*RedisSink)(nil)

// RedisSink shares the seen-set between processes through Redis SETNX.
type RedisSink struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Addr     string        // Redis server address (e.g., "localhost:6379")
	Password string        // Redis password (if any)
	DB       int           // Redis database number
	Prefix   string        // Key prefix for namespacing
	TTL      time.Duration // Time-to-live for keys (0 means keep forever)
}

// DefaultRedisConfig returns the configuration used when none is supplied.
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:   "localhost:6379",
		Prefix: "batchsum:advisory:",
	}
}

// NewRedisSink creates a Redis-backed sink.
func NewRedisSink(config *RedisConfig) *RedisSink {
	if config == nil {
		config = DefaultRedisConfig()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     config.Addr,
		Password: config.Password,
		DB:       config.DB,
	})
	return NewRedisSinkWithClient(client, config.Prefix, config.TTL)
}

// NewRedisSinkWithClient wraps an existing client.
func NewRedisSinkWithClient(client *redis.Client, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSink) Record(ctx context.Context, message string) (bool, error) {
	first, err := s.client.SetNX(ctx, s.key(message), message, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("record advisory in Redis: %w", err)
	}
	return first, nil
}

// Forget removes message from the shared set.
func (s *RedisSink) Forget(ctx context.Context, message string) error {
	return s.client.Del(ctx, s.key(message)).Err()
}

func (s *RedisSink) key(message string) string {
	sum := sha1.Sum([]byte(message))
	return s.prefix + hex.EncodeToString(sum[:])
}

// Ping checks if Redis connection is alive
func (s *RedisSink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (s *RedisSink) Close() error {
	return s.client.Close()
}
