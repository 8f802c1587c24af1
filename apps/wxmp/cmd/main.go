package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"WxAIServer/apps/wxmp/internal/middleware"
	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/apps/wxmp/internal/router"
	v1 "WxAIServer/apps/wxmp/internal/router/v1"
	"WxAIServer/apps/wxmp/internal/service"
	"WxAIServer/config"
	"WxAIServer/pkg/cache"
	"WxAIServer/pkg/db"
	"WxAIServer/pkg/jwtauth"
	"WxAIServer/pkg/limiter"
	"WxAIServer/pkg/lock"
	"WxAIServer/pkg/logger"
	pkgredis "WxAIServer/pkg/redis"

	"github.com/gin-gonic/gin"
)

func main() {
	ctx := context.Background()

	// 1. 初始化日志
	loggerCfg := config.DefaultLoggerConfig()
	l, err := logger.Build(loggerCfg)
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	logger.ReplaceGlobal(l)
	defer func() {
		// Sync 在输出到 stdout 时可能报错，忽略
		_ = logger.L().Sync()
	}()

	logger.Info(ctx, "wxmp 服务初始化中...")

	// 2. 初始化 MySQL
	mysqlCfg := config.DefaultMySQLConfig()
	gormDB, err := db.Build(mysqlCfg)
	if err != nil {
		logger.Error(ctx, "初始化 MySQL 失败", logger.ErrorField("error", err))
		os.Exit(1)
	}

	// 3. 初始化 Redis
	redisCfg := config.DefaultRedisConfig()
	redisClient, err := pkgredis.Build(redisCfg)
	if err != nil {
		logger.Error(ctx, "初始化 Redis 失败", logger.ErrorField("error", err))
		os.Exit(1)
	}
	pkgredis.ReplaceGlobal(redisClient)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error(ctx, "关闭 Redis 连接失败", logger.ErrorField("error", err))
		}
	}()

	// 4. 组装回复编排依赖
	replyCfg := config.DefaultReplyConfig()
	aiCfg := config.DefaultAIConfig()

	lockMgr := lock.NewManager(lock.NewRedisStore(redisClient), replyCfg.LockTTL)
	rateLimiter := limiter.NewFixedWindowLimiter(
		limiter.NewRedisCounter(redisClient), replyCfg.RateLimitMax, replyCfg.RateWindow)
	replyCache := cache.NewReplyCache(cache.NewRedisStore(redisClient), replyCfg.CacheTTL)

	recordRepo := repository.NewRecordRepository(gormDB)
	ruleRepo := repository.NewRuleRepository(gormDB, redisClient)
	accountRepo := repository.NewAccountRepository(gormDB, redisClient)

	chatClient := service.NewOpenAIChatClient(aiCfg)
	ruleSvc := service.NewRuleService(ruleRepo)
	aiReplySvc := service.NewAiReplyService(recordRepo, replyCache, rateLimiter, chatClient)
	replySvc := service.NewReplyService(lockMgr, ruleSvc, recordRepo, aiReplySvc)
	accountSvc := service.NewAccountService(accountRepo)

	// 5. 管理后台认证与限流
	adminCfg := config.DefaultAdminConfig()
	jwtMgr := jwtauth.NewManager(adminCfg.JWTSecret, adminCfg.TokenTTL, "wxmp")
	adminLimiter := middleware.NewIPRateLimiter(redisClient, 10.0, 20)

	// 本地兜底限流器定期清理，防止 IP 表无限增长
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			adminLimiter.CleanupLocal()
		}
	}()

	// 6. 初始化路由
	serverCfg := config.DefaultServerConfig()
	gin.SetMode(serverCfg.GinMode)
	r := router.InitRouter(
		v1.NewPortalHandler(accountSvc, replySvc),
		v1.NewAuthHandler(adminCfg, jwtMgr),
		v1.NewRuleHandler(ruleRepo),
		v1.NewAccountHandler(accountSvc),
		v1.NewRecordHandler(recordRepo),
		jwtMgr,
		adminLimiter,
	)

	srv := &http.Server{
		Addr:           serverCfg.Addr,
		Handler:        r,
		ReadTimeout:    serverCfg.ReadTimeout,
		WriteTimeout:   serverCfg.WriteTimeout,
		MaxHeaderBytes: serverCfg.MaxHeaderBytes,
	}

	// 7. 启动服务器（在 goroutine 中）
	go func() {
		logger.Info(ctx, "wxmp 服务器启动中",
			logger.String("address", serverCfg.Addr),
		)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "服务器启动失败", logger.ErrorField("error", err))
			os.Exit(1)
		}
	}()

	logger.Info(ctx, "wxmp 服务器启动成功，按 Ctrl+C 关闭")

	// 8. 优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	logger.Info(ctx, "收到关闭信号，开始优雅停机...",
		logger.String("signal", sig.String()),
	)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "服务器强制关闭", logger.ErrorField("error", err))
		os.Exit(1)
	}

	logger.Info(ctx, "wxmp 服务器已优雅退出")
}
