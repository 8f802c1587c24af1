package logger

import (
	"context"
	"time"

	"WxAIServer/pkg/ctxmeta"

	"go.uber.org/zap"
)

// Field 日志字段别名，调用方无需直接依赖 zap。
type Field = zap.Field

// 常用字段构造函数。
func String(key, val string) Field              { return zap.String(key, val) }
func Int(key string, val int) Field             { return zap.Int(key, val) }
func Int64(key string, val int64) Field         { return zap.Int64(key, val) }
func Float64(key string, val float64) Field     { return zap.Float64(key, val) }
func Bool(key string, val bool) Field           { return zap.Bool(key, val) }
func Duration(key string, val time.Duration) Field { return zap.Duration(key, val) }
func Any(key string, val interface{}) Field     { return zap.Any(key, val) }
func ErrorField(key string, err error) Field    { return zap.NamedError(key, err) }

// withTrace 在字段前追加 context 中的 trace_id（存在时）。
func withTrace(ctx context.Context, fields []Field) []Field {
	if traceID := ctxmeta.TraceID(ctx); traceID != "" {
		return append([]Field{zap.String("trace_id", traceID)}, fields...)
	}
	return fields
}

// Debug 输出 Debug 级别日志，自动附带 trace_id。
func Debug(ctx context.Context, msg string, fields ...Field) {
	if global == nil {
		return
	}
	global.Debug(msg, withTrace(ctx, fields)...)
}

// Info 输出 Info 级别日志，自动附带 trace_id。
func Info(ctx context.Context, msg string, fields ...Field) {
	if global == nil {
		return
	}
	global.Info(msg, withTrace(ctx, fields)...)
}

// Warn 输出 Warn 级别日志，自动附带 trace_id。
func Warn(ctx context.Context, msg string, fields ...Field) {
	if global == nil {
		return
	}
	global.Warn(msg, withTrace(ctx, fields)...)
}

// Error 输出 Error 级别日志，自动附带 trace_id。
func Error(ctx context.Context, msg string, fields ...Field) {
	if global == nil {
		return
	}
	global.Error(msg, withTrace(ctx, fields)...)
}
