package middleware

import (
	"time"

	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/logger"

	"github.com/gin-gonic/gin"
)

// GinLogger 记录 HTTP 访问日志。
// /health 的正常请求不打日志，避免健康检查刷屏。
func GinLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		status := c.Writer.Status()
		cost := time.Since(start)
		ctx := ctxmeta.BuildContextFromGin(c)

		if path == "/health" && status < 500 {
			return
		}

		switch {
		case status >= 500:
			logger.Error(ctx, "HTTP 请求失败",
				logger.String("method", method),
				logger.String("path", path),
				logger.String("query", query),
				logger.String("ip", c.ClientIP()),
				logger.Int("status", status),
				logger.Duration("cost", cost),
				logger.String("errors", c.Errors.ByType(gin.ErrorTypeAny).String()),
			)
		case cost > 5*time.Second:
			// 微信要求约 5 秒内响应，超过就是准故障
			logger.Warn(ctx, "HTTP 慢请求",
				logger.String("method", method),
				logger.String("path", path),
				logger.String("ip", c.ClientIP()),
				logger.Int("status", status),
				logger.Duration("cost", cost),
			)
		default:
			logger.Info(ctx, "HTTP 请求",
				logger.String("method", method),
				logger.String("path", path),
				logger.String("ip", c.ClientIP()),
				logger.Int("status", status),
				logger.Duration("cost", cost),
			)
		}
	}
}
