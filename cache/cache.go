package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	gocache "github.com/patrickmn/go-cache"

	"example.com/backstage/services/portal/config"
)

// CacheClient defines the interface for cache operations. Values are
// stored as JSON so every tier holds the same representation.
type CacheClient interface {
	// Get decodes the cached value into dest and reports whether it was found
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, key string) error

	// Clear all cache
	FlushAll(ctx context.Context) error
}

// RedisClient implements CacheClient using Redis
type RedisClient struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig) (*RedisClient, error) {
	if !cfg.Enabled {
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisClient{
		client:  client,
		enabled: true,
		ttl:     ttl,
	}, nil
}

// Enabled reports whether the client talks to a Redis server
func (c *RedisClient) Enabled() bool {
	return c.enabled
}

// Get retrieves a value from Redis
func (c *RedisClient) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.enabled {
		return false, nil
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set caches a value in Redis
func (c *RedisClient) Set(ctx context.Context, key string, value interface{}) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes a value from Redis
func (c *RedisClient) Delete(ctx context.Context, key string) error {
	if !c.enabled {
		return nil
	}

	return c.client.Del(ctx, key).Err()
}

// FlushAll clears all cache
func (c *RedisClient) FlushAll(ctx context.Context) error {
	if !c.enabled {
		return nil
	}

	return c.client.FlushAll(ctx).Err()
}

// Close releases the Redis connection pool
func (c *RedisClient) Close() error {
	if !c.enabled {
		return nil
	}
	return c.client.Close()
}

// LocalClient implements CacheClient with an in-process expiring map
type LocalClient struct {
	cache *gocache.Cache
}

// NewLocalClient creates an in-process cache
func NewLocalClient(ttl time.Duration) *LocalClient {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &LocalClient{cache: gocache.New(ttl, 2*ttl)}
}

// Get retrieves a value from the local cache
func (c *LocalClient) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	raw, found := c.cache.Get(key)
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(raw.([]byte), dest); err != nil {
		return false, err
	}
	return true, nil
}

// Set caches a value locally
func (c *LocalClient) Set(_ context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.cache.SetDefault(key, data)
	return nil
}

// Delete removes a value from the local cache
func (c *LocalClient) Delete(_ context.Context, key string) error {
	c.cache.Delete(key)
	return nil
}

// FlushAll clears the local cache
func (c *LocalClient) FlushAll(_ context.Context) error {
	c.cache.Flush()
	return nil
}

// TieredClient reads through a local cache in front of a shared one
type TieredClient struct {
	local  CacheClient
	remote CacheClient
}

// NewTieredClient combines a local cache with a shared remote cache
func NewTieredClient(local, remote CacheClient) *TieredClient {
	return &TieredClient{local: local, remote: remote}
}

// Get tries the local tier first and backfills it from the remote tier
func (c *TieredClient) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if found, err := c.local.Get(ctx, key, dest); err != nil || found {
		return found, err
	}

	found, err := c.remote.Get(ctx, key, dest)
	if err != nil || !found {
		return found, err
	}
	return true, c.local.Set(ctx, key, dest)
}

// Set writes both tiers
func (c *TieredClient) Set(ctx context.Context, key string, value interface{}) error {
	if err := c.local.Set(ctx, key, value); err != nil {
		return err
	}
	return c.remote.Set(ctx, key, value)
}

// Delete removes the key from both tiers
func (c *TieredClient) Delete(ctx context.Context, key string) error {
	if err := c.local.Delete(ctx, key); err != nil {
		return err
	}
	return c.remote.Delete(ctx, key)
}

// FlushAll clears both tiers
func (c *TieredClient) FlushAll(ctx context.Context) error {
	if err := c.local.FlushAll(ctx); err != nil {
		return err
	}
	return c.remote.FlushAll(ctx)
}

// NewFromConfig builds the cache used by the service: always a local tier,
// plus Redis when it is enabled
func NewFromConfig(cfg *config.RedisConfig) (CacheClient, error) {
	local := NewLocalClient(cfg.TTL)

	remote, err := NewRedisClient(cfg)
	if err != nil {
		return nil, err
	}
	if !remote.Enabled() {
		return local, nil
	}
	return NewTieredClient(local, remote), nil
}

var (
	_ CacheClient = (*RedisClient)(nil)
	_ CacheClient = (*LocalClient)(nil)
	_ CacheClient = (*TieredClient)(nil)
)
