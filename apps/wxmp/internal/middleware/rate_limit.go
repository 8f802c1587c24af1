package middleware

import (
	"context"
	"errors"
	"sync"
	"time"

	"WxAIServer/consts"
	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/logger"
	"WxAIServer/pkg/result"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// ==================== Redis 令牌桶 Lua 脚本 ====================

// luaTokenBucket 原子性地更新令牌桶并判断是否允许通过
// 参数：
//
//	KEYS[1]: 限流 key (如: wx:admin:rate:ip:{ip})
//	ARGV[1]: 当前时间戳 (毫秒)
//	ARGV[2]: 令牌桶容量
//	ARGV[3]: 每秒产生的令牌数
//	ARGV[4]: 每次请求消耗的令牌数
//
// 返回值：1 允许，0 拒绝
const luaTokenBucket = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])

local info = redis.call('HMGET', key, 'tokens', 'last_time')
local current_tokens = tonumber(info[1])
local last_time = tonumber(info[2]) or now

if current_tokens == nil then
    current_tokens = capacity
    last_time = now
end

local time_diff = math.max(0, now - last_time)

-- 时间差为毫秒，补充令牌 = (时间差ms * 速率) / 1000
local new_tokens = math.floor((time_diff * rate) / 1000)

if new_tokens > 0 then
    current_tokens = math.min(capacity, current_tokens + new_tokens)
    last_time = now
end

local allowed = 0
if current_tokens >= requested then
    current_tokens = current_tokens - requested
    allowed = 1
end

redis.call('HMSET', key, 'tokens', current_tokens, 'last_time', last_time)

local fill_time = math.ceil(capacity / rate)
local ttl = math.max(60, fill_time * 2)
redis.call('EXPIRE', key, ttl)

return allowed
`

// ==================== IP 限流器 ====================

// IPRateLimiter 基于 Redis 令牌桶的 IP 级别限流器。
// Redis 不可用时降级到进程内 golang.org/x/time/rate 限流器，
// 保证限流能力不随 Redis 一起消失。
type IPRateLimiter struct {
	redisClient *redis.Client
	rate        float64 // 每秒产生的令牌数
	burst       int     // 令牌桶容量

	mu     sync.Mutex
	locals map[string]*rate.Limiter // 降级用的本地令牌桶，key 为 IP
}

// NewIPRateLimiter 创建 IP 限流器
// redisClient 可以为 nil，此时只用本地限流
func NewIPRateLimiter(redisClient *redis.Client, ratePerSecond float64, burst int) *IPRateLimiter {
	return &IPRateLimiter{
		redisClient: redisClient,
		rate:        ratePerSecond,
		burst:       burst,
		locals:      make(map[string]*rate.Limiter),
	}
}

// Allow 检查指定 IP 的请求是否允许通过
func (l *IPRateLimiter) Allow(ctx context.Context, ip, key string) bool {
	if l.redisClient == nil {
		return l.allowLocal(ip)
	}

	// Redis 响应慢不能拖死回调路径，单独给一个短超时
	redisCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	now := time.Now().UnixMilli()
	res, err := l.redisClient.Eval(redisCtx, luaTokenBucket, []string{key}, now, l.burst, l.rate, 1).Result()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			logger.Warn(ctx, "Redis 限流检查超时，降级本地限流",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		} else {
			logger.Error(ctx, "Redis 限流检查失败，降级本地限流",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		}
		return l.allowLocal(ip)
	}

	allowed, ok := res.(int64)
	if !ok {
		logger.Warn(ctx, "Redis 限流返回值类型错误，降级本地限流",
			logger.String("key", key),
			logger.Any("result", res),
		)
		return l.allowLocal(ip)
	}

	return allowed == 1
}

// allowLocal 进程内令牌桶，仅在 Redis 不可用时兜底。
// 多实例部署时各实例独立计数，限流会放宽，可接受。
func (l *IPRateLimiter) allowLocal(ip string) bool {
	l.mu.Lock()
	limiter, exists := l.locals[ip]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(l.rate), l.burst)
		l.locals[ip] = limiter
	}
	l.mu.Unlock()

	return limiter.Allow()
}

// CleanupLocal 清理令牌桶已满（长时间无请求）的本地限流器，释放内存
func (l *IPRateLimiter) CleanupLocal() {
	l.mu.Lock()
	defer l.mu.Unlock()

	for ip, limiter := range l.locals {
		if limiter.Tokens() >= float64(l.burst) {
			delete(l.locals, ip)
		}
	}
}

// ==================== 限流中间件 ====================

// IPRateLimitMiddleware IP 级别限流中间件，挂在管理后台路由组上
func IPRateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := ctxmeta.BuildContextFromGin(c)

		ip := c.ClientIP()
		if ip == "" {
			logger.Warn(ctx, "无法获取客户端 IP，跳过限流检查",
				logger.String("path", c.Request.URL.Path),
			)
			c.Next()
			return
		}

		key := consts.AdminRateLimitKeyPrefix + ip
		if !limiter.Allow(ctx, ip, key) {
			logger.Warn(ctx, "IP 请求被限流",
				logger.String("ip", ip),
				logger.String("path", c.Request.URL.Path),
				logger.String("method", c.Request.Method),
			)
			result.Fail(c, nil, consts.CodeTooManyRequests)
			c.Abort()
			return
		}

		c.Next()
	}
}
