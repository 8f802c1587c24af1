package limiter

import (
	"context"
	"time"

	"WxAIServer/pkg/logger"

	goredis "github.com/redis/go-redis/v9"
)

// Counter 计数存储的最小接口：原子自增，首次自增时设置窗口过期时间。
type Counter interface {
	IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error)
}

// incrScript INCR 与首次 EXPIRE 必须原子执行，
// 否则进程在两步之间退出会留下永不过期的计数器。
var incrScript = goredis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisCounter 基于 Redis 的计数实现。
type RedisCounter struct {
	client *goredis.Client
}

// NewRedisCounter 创建 Redis 计数器。
func NewRedisCounter(client *goredis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// IncrementWithExpiry 自增并在窗口首次自增时设置过期。
func (c *RedisCounter) IncrementWithExpiry(ctx context.Context, key string, window time.Duration) (int64, error) {
	return incrScript.Run(ctx, c.client, []string{key}, int(window.Seconds())).Int64()
}

// FixedWindowLimiter 固定窗口限流器。
// 窗口边界处最多放行 2*max 次请求，属于已接受的取舍（换取实现简单）。
type FixedWindowLimiter struct {
	counter Counter
	max     int
	window  time.Duration
}

// NewFixedWindowLimiter 创建固定窗口限流器。
func NewFixedWindowLimiter(counter Counter, max int, window time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{counter: counter, max: max, window: window}
}

// Allow 判断 key 在当前窗口内是否还有配额。
// 计数存储不可用时拒绝（fail closed）：计数和锁共用同一个 Redis，
// 放行会在存储故障时放大对 AI 服务的调用量。
func (l *FixedWindowLimiter) Allow(ctx context.Context, key string) bool {
	count, err := l.counter.IncrementWithExpiry(ctx, key, l.window)
	if err != nil {
		logger.Error(ctx, "限流计数失败，按拒绝处理",
			logger.String("key", key),
			logger.ErrorField("error", err),
		)
		return false
	}
	if count > int64(l.max) {
		logger.Warn(ctx, "触发限流",
			logger.String("key", key),
			logger.Int64("count", count),
			logger.Int("max", l.max),
		)
		return false
	}
	return true
}
