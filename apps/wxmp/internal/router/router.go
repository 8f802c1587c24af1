package router

import (
	"WxAIServer/apps/wxmp/internal/middleware"
	v1 "WxAIServer/apps/wxmp/internal/router/v1"
	"WxAIServer/pkg/jwtauth"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// InitRouter 初始化路由
// portalHandler: 微信回调处理器
// authHandler / ruleHandler / accountHandler / recordHandler: 管理后台处理器
// jwtMgr: 管理后台鉴权
// adminLimiter: 管理后台 IP 限流器
func InitRouter(
	portalHandler *v1.PortalHandler,
	authHandler *v1.AuthHandler,
	ruleHandler *v1.RuleHandler,
	accountHandler *v1.AccountHandler,
	recordHandler *v1.RecordHandler,
	jwtMgr *jwtauth.Manager,
	adminLimiter *middleware.IPRateLimiter,
) *gin.Engine {
	r := gin.New()

	// 恢复中间件
	r.Use(middleware.GinRecovery(true))

	// 追踪中间件 (生成 trace_id)
	r.Use(middleware.Trace())

	// 日志中间件
	r.Use(middleware.GinLogger())

	// Prometheus 监控中间件
	r.Use(middleware.PrometheusMiddleware())

	// 跨域中间件（服务管理后台前端）
	r.Use(middleware.CORSMiddleware(middleware.DefaultCORSConfig()))

	// 健康检查（无需认证）
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// Prometheus 指标暴露接口
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 微信服务器回调，鉴权走微信签名而非 JWT
	wx := r.Group("/wx")
	{
		wx.GET("/msg/:appId", portalHandler.Verify)
		wx.POST("/msg/:appId", portalHandler.Receive)
	}

	// 管理后台接口
	api := r.Group("/api/v1/admin")
	api.Use(middleware.IPRateLimitMiddleware(adminLimiter))
	{
		// 公开接口（不需要认证）
		api.POST("/login", authHandler.Login)

		// 需要认证的接口
		auth := api.Group("")
		auth.Use(middleware.JWTAuth(jwtMgr))
		{
			auth.GET("/rules", ruleHandler.List)
			auth.POST("/rules", ruleHandler.Create)
			auth.PUT("/rules/:ruleId", ruleHandler.Update)
			auth.DELETE("/rules/:ruleId", ruleHandler.Delete)

			auth.GET("/accounts", accountHandler.List)
			auth.POST("/accounts", accountHandler.Create)

			auth.GET("/records", recordHandler.List)
		}
	}

	return r
}
