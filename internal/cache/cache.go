package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// CacheConfig names one keyspace and how long its entries live
type CacheConfig struct {
	TTL    time.Duration
	Prefix string
}

var (
	// Course rows; invalidated on update and delete
	CourseCacheConfig = CacheConfig{TTL: 10 * time.Minute, Prefix: "course:"}

	// Enrollment rows per user, backing the "my courses" listing
	EnrollmentCacheConfig = CacheConfig{TTL: 5 * time.Minute, Prefix: "enrollment:"}

	// Identity-provider profiles; never invalidated, only expire
	UserCacheConfig = CacheConfig{TTL: 15 * time.Minute, Prefix: "user:"}
)

const scanBatch = 100

// CacheHelper is a JSON cache over one prefixed keyspace. A nil client turns
// every read into a miss and every write into a no-op.
type CacheHelper struct {
	client *redis.Client
	prefix string
}

func NewCacheHelper(client *redis.Client, prefix string) *CacheHelper {
	return &CacheHelper{client: client, prefix: prefix}
}

func (c *CacheHelper) key(k string) string {
	return c.prefix + k
}

func (c *CacheHelper) Get(ctx context.Context, key string, dest interface{}) error {
	if c.client == nil {
		return ErrCacheNotAvailable
	}

	raw, err := c.client.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return ErrCacheNotFound
	case err != nil:
		return fmt.Errorf("cache get: %w", err)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}

func (c *CacheHelper) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if c.client == nil {
		return nil
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	return c.client.Set(ctx, c.key(key), raw, ttl).Err()
}

func (c *CacheHelper) Delete(ctx context.Context, keys ...string) error {
	if c.client == nil || len(keys) == 0 {
		return nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// InvalidatePattern deletes every key of this keyspace matching pattern.
// All matches are collected before anything is deleted so the SCAN cursor stays valid.
func (c *CacheHelper) InvalidatePattern(ctx context.Context, pattern string) error {
	if c.client == nil {
		return nil
	}

	match := c.key(pattern)
	var keys []string
	var cursor uint64
	for {
		page, next, err := c.client.Scan(ctx, cursor, match, scanBatch).Result()
		if err != nil {
			return fmt.Errorf("cache scan %q: %w", pattern, err)
		}
		keys = append(keys, page...)
		if next == 0 {
			break
		}
		cursor = next
	}
	if len(keys) == 0 {
		return nil
	}

	pipe := c.client.Pipeline()
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		pipe.Del(ctx, keys[start:end]...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache delete %q: %w", pattern, err)
	}
	return nil
}

// CacheOrExecute fills dest from the cache, or from fetch on a miss, storing the
// fetched value. Cache failures degrade to a fetch; fetch failures are returned.
func (c *CacheHelper) CacheOrExecute(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() (interface{}, error)) error {
	err := c.Get(ctx, key, dest)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		slog.WarnContext(ctx, "Cache read failed, falling back to source", "error", err, "key", c.key(key))
	}

	value, err := fetch()
	if err != nil {
		return err
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if c.client != nil {
		if err := c.client.Set(ctx, c.key(key), raw, ttl).Err(); err != nil {
			slog.WarnContext(ctx, "Cache write failed", "error", err, "key", c.key(key))
		}
	}
	return json.Unmarshal(raw, dest)
}

// CacheManager groups the keyspaces of the learning service
type CacheManager struct {
	client     *redis.Client
	Course     *CacheHelper
	Enrollment *CacheHelper
	User       *CacheHelper
}

// NewCacheManager builds every keyspace; a nil client disables caching
func NewCacheManager(client *redis.Client) *CacheManager {
	return &CacheManager{
		client:     client,
		Course:     NewCacheHelper(client, CourseCacheConfig.Prefix),
		Enrollment: NewCacheHelper(client, EnrollmentCacheConfig.Prefix),
		User:       NewCacheHelper(client, UserCacheConfig.Prefix),
	}
}

func (cm *CacheManager) Enabled() bool {
	return cm.client != nil
}

func (cm *CacheManager) HealthCheck(ctx context.Context) error {
	if cm.client == nil {
		return ErrCacheNotAvailable
	}
	if err := cm.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}

// ClearAll removes every key under this service's prefixes and nothing else
func (cm *CacheManager) ClearAll(ctx context.Context) error {
	var errs []error
	for _, h := range []*CacheHelper{cm.Course, cm.Enrollment, cm.User} {
		if err := h.InvalidatePattern(ctx, "*"); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
