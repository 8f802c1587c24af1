package middleware

import (
	"errors"
	"net"
	"net/http/httputil"
	"os"
	"runtime/debug"
	"strings"

	"WxAIServer/consts"
	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/logger"
	"WxAIServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// GinRecovery recover 项目可能出现的 panic
// stack: 是否打印堆栈信息
func GinRecovery(stack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				ctx := ctxmeta.BuildContextFromGin(c)

				// 判断是否是客户端断开连接（Broken Pipe）
				var brokenPipe bool
				if ne, ok := err.(*net.OpError); ok {
					var se *os.SyscallError
					if errors.As(ne.Err, &se) {
						errStr := strings.ToLower(se.Error())
						if strings.Contains(errStr, "broken pipe") || strings.Contains(errStr, "connection reset by peer") {
							brokenPipe = true
						}
					}
				}

				// 客户端断开连接：非服务端错误，连接已不可写
				if brokenPipe {
					logger.Warn(ctx, "客户端断开连接",
						logger.Any("error", err),
						logger.String("method", c.Request.Method),
						logger.String("path", c.Request.URL.Path),
						logger.String("ip", c.ClientIP()),
					)
					if e, ok := err.(error); ok {
						_ = c.Error(e)
					}
					c.Abort()
					return
				}

				// 真正的 Panic（代码 Bug）
				httpRequest, _ := httputil.DumpRequest(c.Request, false)
				fields := []logger.Field{
					logger.Any("error", err),
					logger.String("method", c.Request.Method),
					logger.String("path", c.Request.URL.Path),
					logger.String("query", c.Request.URL.RawQuery),
					logger.String("ip", c.ClientIP()),
					logger.String("request", string(httpRequest)),
				}
				if stack {
					fields = append(fields, logger.String("stack", string(debug.Stack())))
				}
				logger.Error(ctx, "panic recovered", fields...)

				result.Fail(c, nil, consts.CodeInternalError)
				c.Abort()
			}
		}()
		c.Next()
	}
}
