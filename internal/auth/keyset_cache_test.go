package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type RedisKeySetCacheSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	cache *RedisKeySetCache
	ctx   context.Context
}

func TestRedisKeySetCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisKeySetCacheSuite))
}

func (s *RedisKeySetCacheSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})
	s.cache = NewRedisKeySetCacheWithClient(client, DefaultKeySetCacheKey)
	s.ctx = context.Background()
}

func (s *RedisKeySetCacheSuite) TearDownTest() {
	if s.cache != nil {
		_ = s.cache.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *RedisKeySetCacheSuite) TestGetEmpty() {
	raw, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Nil(raw)
}

func (s *RedisKeySetCacheSuite) TestSetAndGet() {
	err := s.cache.Set(s.ctx, []byte(`{"keys":[]}`), time.Hour)
	s.Require().NoError(err)

	raw, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Equal(`{"keys":[]}`, string(raw))
	s.Equal(time.Hour, s.mini.TTL(DefaultKeySetCacheKey))
}

func (s *RedisKeySetCacheSuite) TestExpires() {
	s.Require().NoError(s.cache.Set(s.ctx, []byte(`{"keys":[]}`), time.Minute))

	s.mini.FastForward(2 * time.Minute)

	raw, err := s.cache.Get(s.ctx)
	s.Require().NoError(err)
	s.Nil(raw)
}

func (s *RedisKeySetCacheSuite) TestGetWhenRedisDown() {
	s.mini.Close()

	_, err := s.cache.Get(s.ctx)
	s.Error(err)
}

func TestNewRedisKeySetCache_InvalidURL(t *testing.T) {
	_, err := NewRedisKeySetCache(context.Background(), "not a url")
	if err == nil {
		t.Fatal("expected error for invalid redis url, got nil")
	}
}

func TestNewRedisKeySetCache_Connects(t *testing.T) {
	mini := miniredis.RunT(t)

	cache, err := NewRedisKeySetCache(context.Background(), "redis://"+mini.Addr()+"/0")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer cache.Close()
}

func TestMemoryKeySetCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewMemoryKeySetCache()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	raw, err := c.Get(ctx)
	if err != nil || raw != nil {
		t.Fatalf("empty cache should return nil, got %q, %v", raw, err)
	}

	if err := c.Set(ctx, []byte("jwks"), time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if raw, _ := c.Get(ctx); string(raw) != "jwks" {
		t.Errorf("Get = %q, want %q", raw, "jwks")
	}

	now = now.Add(time.Minute)
	if raw, _ := c.Get(ctx); raw != nil {
		t.Errorf("expired cache should return nil, got %q", raw)
	}
}
