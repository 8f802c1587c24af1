package middleware

import (
	"WxAIServer/pkg/ctxmeta"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Trace 为每个请求生成 trace_id，写入 gin.Context 与响应头。
// 调用方带了 X-Request-ID 时沿用，方便与上游日志串联。
func Trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader("X-Request-ID")
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(ctxmeta.GinKeyTraceID, traceID)
		c.Set(ctxmeta.GinKeyClientIP, c.ClientIP())
		c.Header("X-Request-ID", traceID)
		c.Next()
	}
}
