package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// RedisCounter is an implementation of the Counter interface using Redis.
type RedisCounter struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisCounterConfig contains options for creating a new RedisCounter.
type NewRedisCounterConfig struct {
	Address  string
	Password string
	DB       int
	// Prefix is prepended to every key.
	Prefix string
}

// NewRedisCounter connects to Redis and verifies the connection with PING.
func NewRedisCounter(ctx context.Context, cfg NewRedisCounterConfig, logger *zap.Logger) (*RedisCounter, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Address, err)
	}

	logger.Info("Successfully connected to Redis", zap.String("address", cfg.Address))
	return &RedisCounter{client: rdb, prefix: cfg.Prefix, logger: logger}, nil
}

// incrWithExpiry sets the TTL only on the first increment so the window is not extended.
var incrWithExpiry = redis.NewScript(`
local v = redis.call("INCR", KEYS[1])
if v == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return v
`)

// Increment atomically increments key and starts its TTL on creation.
func (r *RedisCounter) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	v, err := incrWithExpiry.Run(ctx, r.client, []string{r.prefix + key}, ttl.Milliseconds()).Int64()
	if err != nil {
		r.logger.Error("Error incrementing counter in Redis", zap.String("key", key), zap.Error(err))
		return 0, err
	}
	return v, nil
}

// Decrement subtracts one from key.
func (r *RedisCounter) Decrement(ctx context.Context, key string) error {
	if err := r.client.Decr(ctx, r.prefix+key).Err(); err != nil {
		r.logger.Error("Error decrementing counter in Redis", zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Get returns the counter value, zero when the key does not exist.
func (r *RedisCounter) Get(ctx context.Context, key string) (int64, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		r.logger.Error("Error getting counter from Redis", zap.String("key", key), zap.Error(err))
		return 0, err
	}
	return v, nil
}

// Close closes the Redis client.
func (r *RedisCounter) Close() error {
	return r.client.Close()
}
