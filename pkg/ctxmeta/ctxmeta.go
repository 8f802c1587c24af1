package ctxmeta

import (
	"context"

	"github.com/gin-gonic/gin"
)

type ctxKey string

// context key 常量
const (
	keyTraceID  ctxKey = "trace_id"
	keyClientIP ctxKey = "client_ip"

	// GinKeyTraceID gin.Context 中存放 trace_id 的 key
	GinKeyTraceID = "trace_id"
	// GinKeyClientIP gin.Context 中存放客户端 IP 的 key
	GinKeyClientIP = "client_ip"
)

// WithTraceID 向 context 注入 trace_id。
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, keyTraceID, traceID)
}

// TraceID 从 context 中取 trace_id，不存在时返回空串。
func TraceID(ctx context.Context) string {
	if v, ok := ctx.Value(keyTraceID).(string); ok {
		return v
	}
	return ""
}

// WithClientIP 向 context 注入客户端 IP。
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, keyClientIP, ip)
}

// ClientIP 从 context 中取客户端 IP，不存在时返回空串。
func ClientIP(ctx context.Context) string {
	if v, ok := ctx.Value(keyClientIP).(string); ok {
		return v
	}
	return ""
}

// BuildContextFromGin 把 gin.Context 里的请求元信息（trace_id/ip）
// 转成标准 context，供 service/repository 层打日志使用。
func BuildContextFromGin(c *gin.Context) context.Context {
	ctx := c.Request.Context()
	if traceID := c.GetString(GinKeyTraceID); traceID != "" {
		ctx = WithTraceID(ctx, traceID)
	}
	if ip := c.GetString(GinKeyClientIP); ip != "" {
		ctx = WithClientIP(ctx, ip)
	} else {
		ctx = WithClientIP(ctx, c.ClientIP())
	}
	return ctx
}
