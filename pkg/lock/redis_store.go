package lock

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// releaseScript 比对 token 后删除，避免释放掉别人后续抢到的锁。
var releaseScript = goredis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`)

// RedisStore 基于 Redis SET NX PX 的锁存储实现。
type RedisStore struct {
	client *goredis.Client
}

// NewRedisStore 创建 Redis 锁存储。
func NewRedisStore(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// TryAcquire 以 SET NX PX 原子写入 token。
func (s *RedisStore) TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, token, ttl).Result()
}

// Release 仅当 value 仍为本次 token 时删除 key。
func (s *RedisStore) Release(ctx context.Context, key, token string) error {
	return releaseScript.Run(ctx, s.client, []string{key}, token).Err()
}
