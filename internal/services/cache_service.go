package services

import (
	"context"
	"time"

	"fundilink/pkg/cache"
	"fundilink/pkg/logger"
)

type CacheService interface {
	// Basic cache operations
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)

	// Advanced operations
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)
	SetExpire(ctx context.Context, key string, expiration time.Duration) error

	// Set operations
	SAdd(ctx context.Context, key string, members ...interface{}) error
	SMembers(ctx context.Context, key string) ([]string, error)
	SRem(ctx context.Context, key string, members ...interface{}) error

	// Queue operations
	LPush(ctx context.Context, key string, values ...interface{}) error
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error)
	LLen(ctx context.Context, key string) (int64, error)

	// Fan-out backplane
	Publish(ctx context.Context, channel string, message interface{}) error

	Ping(ctx context.Context) error
}

type redisCacheService struct {
	cache  *cache.RedisCache
	logger *logger.Logger
}

func NewCacheService(redisCache *cache.RedisCache, log *logger.Logger) CacheService {
	return &redisCacheService{
		cache:  redisCache,
		logger: log,
	}
}

func (s *redisCacheService) Get(ctx context.Context, key string, dest interface{}) error {
	return s.cache.Get(ctx, key, dest)
}

func (s *redisCacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.cache.Set(ctx, key, value, expiration)
}

func (s *redisCacheService) Delete(ctx context.Context, keys ...string) error {
	return s.cache.Delete(ctx, keys...)
}

func (s *redisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	return s.cache.Exists(ctx, key)
}

func (s *redisCacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.cache.SetNX(ctx, key, value, expiration)
}

func (s *redisCacheService) Increment(ctx context.Context, key string) (int64, error) {
	return s.cache.Increment(ctx, key)
}

func (s *redisCacheService) SetExpire(ctx context.Context, key string, expiration time.Duration) error {
	return s.cache.SetExpire(ctx, key, expiration)
}

func (s *redisCacheService) SAdd(ctx context.Context, key string, members ...interface{}) error {
	return s.cache.SAdd(ctx, key, members...)
}

func (s *redisCacheService) SMembers(ctx context.Context, key string) ([]string, error) {
	return s.cache.SMembers(ctx, key)
}

func (s *redisCacheService) SRem(ctx context.Context, key string, members ...interface{}) error {
	return s.cache.SRem(ctx, key, members...)
}

func (s *redisCacheService) LPush(ctx context.Context, key string, values ...interface{}) error {
	return s.cache.LPush(ctx, key, values...)
}

func (s *redisCacheService) BRPop(ctx context.Context, timeout time.Duration, keys ...string) ([]string, error) {
	return s.cache.BRPop(ctx, timeout, keys...)
}

func (s *redisCacheService) LLen(ctx context.Context, key string) (int64, error) {
	return s.cache.LLen(ctx, key)
}

func (s *redisCacheService) Publish(ctx context.Context, channel string, message interface{}) error {
	return s.cache.Publish(ctx, channel, message)
}

func (s *redisCacheService) Ping(ctx context.Context) error {
	return s.cache.Ping(ctx)
}
