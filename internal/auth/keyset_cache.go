package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// KeySetCache は取得済みのJWKS（生のJSON）を保持する。
// 期限切れや未取得の場合、Getはnilを返す。
type KeySetCache interface {
	Get(ctx context.Context) ([]byte, error)
	Set(ctx context.Context, raw []byte, ttl time.Duration) error
}

// MemoryKeySetCache はプロセス内メモリに保持するKeySetCache。
// 単一インスタンス運用時に使用する。
type MemoryKeySetCache struct {
	mu        sync.RWMutex
	raw       []byte
	expiresAt time.Time
	now       func() time.Time
}

// NewMemoryKeySetCache はMemoryKeySetCacheを生成する。
func NewMemoryKeySetCache() *MemoryKeySetCache {
	return &MemoryKeySetCache{now: time.Now}
}

// Get は有効期限内のJWKSを返す。
func (c *MemoryKeySetCache) Get(_ context.Context) ([]byte, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.raw == nil || !c.now().Before(c.expiresAt) {
		return nil, nil
	}
	return c.raw, nil
}

// Set はJWKSをttlの間保持する。
func (c *MemoryKeySetCache) Set(_ context.Context, raw []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.raw = append([]byte(nil), raw...)
	c.expiresAt = c.now().Add(ttl)
	return nil
}

// DefaultKeySetCacheKey はRedis上でJWKSを保持するキー。
const DefaultKeySetCacheKey = "grosync:jwks"

// RedisKeySetCache はRedisに保持するKeySetCache。
// 複数インスタンスで鍵の取得を共有し、Googleへのリクエスト数を抑える。
type RedisKeySetCache struct {
	client *redis.Client
	key    string
}

// NewRedisKeySetCache はRedisの接続URLからRedisKeySetCacheを生成する。
// 起動時に疎通確認を行う。
func NewRedisKeySetCache(ctx context.Context, redisURL string) (*RedisKeySetCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisKeySetCacheWithClient(client, DefaultKeySetCacheKey), nil
}

// NewRedisKeySetCacheWithClient は既存のクライアントでRedisKeySetCacheを生成する。
func NewRedisKeySetCacheWithClient(client *redis.Client, key string) *RedisKeySetCache {
	return &RedisKeySetCache{client: client, key: key}
}

// Get は保持しているJWKSを返す。期限はRedisのTTLで管理する。
func (c *RedisKeySetCache) Get(ctx context.Context) ([]byte, error) {
	raw, err := c.client.Get(ctx, c.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read jwks from redis: %w", err)
	}
	return raw, nil
}

// Set はJWKSをttl付きで保存する。
func (c *RedisKeySetCache) Set(ctx context.Context, raw []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("failed to write jwks to redis: %w", err)
	}
	return nil
}

// Close はRedis接続を閉じる。
func (c *RedisKeySetCache) Close() error {
	return c.client.Close()
}

var (
	_ KeySetCache = (*MemoryKeySetCache)(nil)
	_ KeySetCache = (*RedisKeySetCache)(nil)
)
