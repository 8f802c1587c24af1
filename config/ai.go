package config

import "time"

// AIConfig AI 服务（OpenAI 兼容接口）调用参数。
type AIConfig struct {
	APIKey              string        `json:"-" yaml:"apiKey"`                                // API Key，仅从环境变量读取
	BaseURL             string        `json:"baseUrl" yaml:"baseUrl"`                         // 接口地址，可指向任意 OpenAI 兼容服务
	Model               string        `json:"model" yaml:"model"`                             // 模型名称
	Timeout             time.Duration `json:"timeout" yaml:"timeout"`                         // 单次调用超时（微信要求约 4 秒内响应）
	MaxConsecutiveFails uint32        `json:"maxConsecutiveFails" yaml:"maxConsecutiveFails"` // 熔断阈值：连续失败次数
}

// DefaultAIConfig 返回 AI 调用默认配置。
func DefaultAIConfig() AIConfig {
	return AIConfig{
		APIKey:              getenvString("AI_API_KEY", ""),
		BaseURL:             getenvString("AI_BASE_URL", "https://api.openai.com/v1"),
		Model:               getenvString("AI_MODEL", "gpt-4o-mini"),
		Timeout:             getenvDuration("AI_TIMEOUT", 4*time.Second),
		MaxConsecutiveFails: 5,
	}
}

// ReplyConfig 回复编排策略参数：限流窗口与回复缓存。
type ReplyConfig struct {
	RateLimitMax int           `json:"rateLimitMax" yaml:"rateLimitMax"` // 每窗口最大 AI 调用次数
	RateWindow   time.Duration `json:"rateWindow" yaml:"rateWindow"`     // 固定限流窗口长度
	CacheTTL     time.Duration `json:"cacheTtl" yaml:"cacheTtl"`         // 回复缓存过期时间
	LockTTL      time.Duration `json:"lockTtl" yaml:"lockTtl"`           // 分布式锁兜底过期时间
}

// DefaultReplyConfig 返回参考策略：每分钟 2 次 AI 调用，缓存 30 分钟。
func DefaultReplyConfig() ReplyConfig {
	return ReplyConfig{
		RateLimitMax: getenvInt("REPLY_RATE_LIMIT_MAX", 2),
		RateWindow:   getenvDuration("REPLY_RATE_WINDOW", 60*time.Second),
		CacheTTL:     getenvDuration("REPLY_CACHE_TTL", 30*time.Minute),
		// 锁正常随请求结束释放，TTL 仅兜底进程异常退出的场景
		LockTTL: getenvDuration("REPLY_LOCK_TTL", 30*time.Second),
	}
}

// AdminConfig 管理后台认证参数。
type AdminConfig struct {
	Username     string        `json:"username" yaml:"username"` // 管理员用户名
	PasswordHash string        `json:"-" yaml:"-"`               // bcrypt 哈希，仅从环境变量读取
	JWTSecret    string        `json:"-" yaml:"-"`               // JWT 签名密钥
	TokenTTL     time.Duration `json:"tokenTtl" yaml:"tokenTtl"` // Token 有效期
}

// DefaultAdminConfig 返回管理后台默认配置。
// ADMIN_PASSWORD_HASH / ADMIN_JWT_SECRET 未配置时管理接口不可登录（只读部署场景）。
func DefaultAdminConfig() AdminConfig {
	return AdminConfig{
		Username:     getenvString("ADMIN_USERNAME", "admin"),
		PasswordHash: getenvString("ADMIN_PASSWORD_HASH", ""),
		JWTSecret:    getenvString("ADMIN_JWT_SECRET", ""),
		TokenTTL:     getenvDuration("ADMIN_TOKEN_TTL", 12*time.Hour),
	}
}
