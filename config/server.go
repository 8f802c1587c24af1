package config

import "time"

// ServerConfig HTTP 服务基础参数。
type ServerConfig struct {
	Addr           string        `json:"addr" yaml:"addr"`                     // 监听地址，默认 0.0.0.0:8080
	ReadTimeout    time.Duration `json:"readTimeout" yaml:"readTimeout"`       // 读取超时
	WriteTimeout   time.Duration `json:"writeTimeout" yaml:"writeTimeout"`     // 写入超时
	MaxHeaderBytes int           `json:"maxHeaderBytes" yaml:"maxHeaderBytes"` // 最大请求头
	GinMode        string        `json:"ginMode" yaml:"ginMode"`               // gin 模式: release|debug|test
}

// DefaultServerConfig 返回默认的 HTTP 服务配置。
// 注意 WriteTimeout 要大于 AI 调用超时，否则微信侧会收到半截响应。
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:           getenvString("SERVER_ADDR", "0.0.0.0:8080"),
		ReadTimeout:    10 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
		GinMode:        getenvString("GIN_MODE", "release"),
	}
}
