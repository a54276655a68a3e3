package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tasawwur/rtc-signaling/internal/slogging"
)

// RedisConfig holds the configuration for Redis connection
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisDB represents a Redis coordination store connection shared by
// every router instance
type RedisDB struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedisDB creates a new Redis connection and verifies it with a ping
func NewRedisDB(cfg RedisConfig) (*RedisDB, error) {
	logger := slogging.Get()
	logger.Debug("Initializing Redis connection to %s DB=%d", cfg.Addr, cfg.DB)

	client := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     3 * time.Second,
		WriteTimeout:    3 * time.Second,
		PoolSize:        10,
		MinIdleConns:    2,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to ping Redis: %v", err)
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	logger.Debug("Redis connection established successfully")

	return &RedisDB{
		client: client,
		cfg:    cfg,
	}, nil
}

// NewRedisDBFromClient wraps an existing client. Used by tests to back
// the store with miniredis.
func NewRedisDBFromClient(client *redis.Client) *RedisDB {
	return &RedisDB{client: client}
}

// Close closes the Redis connection
func (db *RedisDB) Close() error {
	if db.client != nil {
		if err := db.client.Close(); err != nil {
			slogging.Get().Error("Error closing Redis connection: %v", err)
			return err
		}
	}
	return nil
}

// GetClient returns the underlying Redis client
func (db *RedisDB) GetClient() *redis.Client {
	return db.client
}

// Ping checks if the Redis connection is alive
func (db *RedisDB) Ping(ctx context.Context) error {
	return db.client.Ping(ctx).Err()
}

// Set sets a key-value pair with expiration
func (db *RedisDB) Set(ctx context.Context, key string, value any, expiration time.Duration) error {
	return db.client.Set(ctx, key, value, expiration).Err()
}

// Get gets a value by key. Returns redis.Nil if the key does not exist.
func (db *RedisDB) Get(ctx context.Context, key string) (string, error) {
	return db.client.Get(ctx, key).Result()
}

// Del deletes keys
func (db *RedisDB) Del(ctx context.Context, keys ...string) error {
	return db.client.Del(ctx, keys...).Err()
}

// Expire sets an expiration on a key
func (db *RedisDB) Expire(ctx context.Context, key string, expiration time.Duration) error {
	return db.client.Expire(ctx, key, expiration).Err()
}

// SAdd adds members to a set
func (db *RedisDB) SAdd(ctx context.Context, key string, members ...any) error {
	return db.client.SAdd(ctx, key, members...).Err()
}

// SRem removes members from a set
func (db *RedisDB) SRem(ctx context.Context, key string, members ...any) error {
	return db.client.SRem(ctx, key, members...).Err()
}

// SMembers returns all members of a set
func (db *RedisDB) SMembers(ctx context.Context, key string) ([]string, error) {
	return db.client.SMembers(ctx, key).Result()
}

// SCard returns the cardinality of a set
func (db *RedisDB) SCard(ctx context.Context, key string) (int64, error) {
	return db.client.SCard(ctx, key).Result()
}

// SIsMember reports whether member is in the set
func (db *RedisDB) SIsMember(ctx context.Context, key string, member any) (bool, error) {
	return db.client.SIsMember(ctx, key, member).Result()
}

// HSet sets hash fields
func (db *RedisDB) HSet(ctx context.Context, key string, values ...any) error {
	return db.client.HSet(ctx, key, values...).Err()
}

// HGet gets a hash field. Returns redis.Nil if the field does not exist.
func (db *RedisDB) HGet(ctx context.Context, key, field string) (string, error) {
	return db.client.HGet(ctx, key, field).Result()
}

// HGetAll gets all fields in a hash
func (db *RedisDB) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return db.client.HGetAll(ctx, key).Result()
}

// LogStats logs statistics about the Redis connection pool
func (db *RedisDB) LogStats() {
	poolStats := db.client.PoolStats()
	slogging.Get().Debug("Redis connection pool stats: hits=%d, misses=%d, timeouts=%d, totalConns=%d, idleConns=%d, staleConns=%d",
		poolStats.Hits,
		poolStats.Misses,
		poolStats.Timeouts,
		poolStats.TotalConns,
		poolStats.IdleConns,
		poolStats.StaleConns,
	)
}
