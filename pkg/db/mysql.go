package db

import (
	"errors"
	"strings"

	"WxAIServer/config"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

// Build 基于配置创建 gorm 实例。
// 配置了从库 DSN 时启用 dbresolver 读写分离，读请求走从库。
func Build(cfg config.MySQLConfig) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("mysql dsn is empty")
	}

	gdb, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(parseLogLevel(cfg.LogLevel)),
		// 微信回复记录写入频繁，跳过默认事务减少一次往返
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, err
	}

	// 从库配置存在时启用读写分离
	if len(cfg.ReadOnlyDSNs) > 0 {
		replicas := make([]gorm.Dialector, 0, len(cfg.ReadOnlyDSNs))
		for _, dsn := range cfg.ReadOnlyDSNs {
			replicas = append(replicas, mysql.Open(dsn))
		}
		if err := gdb.Use(dbresolver.Register(dbresolver.Config{
			Replicas: replicas,
			Policy:   dbresolver.RandomPolicy{},
		})); err != nil {
			return nil, err
		}
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdle)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)

	return gdb, nil
}

// parseLogLevel 将配置字符串转换为 gorm 日志级别，未知值回退 warn。
func parseLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "info":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
