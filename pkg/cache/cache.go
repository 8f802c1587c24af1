package cache

import (
	"context"
	"errors"
	"time"

	"WxAIServer/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// Store 缓存存储的最小接口。
// Get 未命中返回 ("", false, nil)，错误只在存储异常时返回。
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// RedisStore 基于 Redis 字符串的缓存实现。
type RedisStore struct {
	client *goredis.Client
}

// NewRedisStore 创建 Redis 缓存存储。
func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.Set(ctx, key, value, ttl).Err()
}

// ReplyCache 内容寻址的回复缓存：同一发送方的同一条消息在 TTL 内直接复用回复。
// 条目只写一次、到期自然失效，不做主动淘汰。
type ReplyCache struct {
	store Store
	ttl   time.Duration
}

// NewReplyCache 创建回复缓存。
func NewReplyCache(store Store, ttl time.Duration) *ReplyCache {
	return &ReplyCache{store: store, ttl: ttl}
}

// Get 查询缓存。存储不可用按未命中处理（宁可重新计算，不能返回脏数据）。
func (c *ReplyCache) Get(ctx context.Context, key string) (string, bool) {
	value, found, err := c.store.Get(ctx, key)
	if err != nil {
		logger.Warn(ctx, "查询回复缓存失败，按未命中处理",
			logger.String("key", key),
			logger.ErrorField("error", err),
		)
		return "", false
	}
	return value, found
}

// Set 写入缓存。失败只记录，不影响主流程（下次请求会重新计算）。
func (c *ReplyCache) Set(ctx context.Context, key, value string) {
	if err := c.store.Set(ctx, key, value, c.ttl); err != nil {
		logger.Warn(ctx, "写入回复缓存失败",
			logger.String("key", key),
			logger.ErrorField("error", err),
		)
	}
}
