package lock

import (
	"context"
	"time"

	"WxAIServer/pkg/id"
	"WxAIServer/pkg/logger"
)

// Store 锁存储的最小接口。
// TryAcquire 非阻塞抢占：key 未被占用时写入 token 并返回 true；
// Release 只有持有对应 token 的调用方才能删除 key。
type Store interface {
	TryAcquire(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key, token string) error
}

// Manager 分布式锁管理器。
// 锁的 TTL 仅兜底进程异常退出，正常路径靠 defer 释放。
type Manager struct {
	store Store
	ttl   time.Duration
}

// NewManager 创建锁管理器。
func NewManager(store Store, ttl time.Duration) *Manager {
	return &Manager{store: store, ttl: ttl}
}

// NonBlockExecute 非阻塞执行：
//   - 抢到锁：执行 run，无论正常返回还是 panic 都保证释放，返回 run 的结果；
//   - 未抢到锁：立即执行 fallback 并返回其结果，不等待不重试；
//   - 存储不可用：按未抢到锁处理（宁可让用户重试，也不跳过互斥）。
func NonBlockExecute[T any](ctx context.Context, m *Manager, key string, run func() T, fallback func() T) T {
	token := id.GenerateULID()
	ok, err := m.store.TryAcquire(ctx, key, token, m.ttl)
	if err != nil {
		logger.Warn(ctx, "锁存储不可用，按未获取到锁处理",
			logger.String("key", key),
			logger.ErrorField("error", err),
		)
		return fallback()
	}
	if !ok {
		logger.Info(ctx, "获取非阻塞锁失败", logger.String("key", key))
		return fallback()
	}

	defer func() {
		// 请求 ctx 可能已被取消（如微信 5 秒超时断开），释放必须照常走完，
		// 否则锁要挂到 TTL 过期，期间重试全部拿到占位回复
		releaseCtx := context.WithoutCancel(ctx)
		// 释放失败只记录：TTL 会兜底过期
		if err := m.store.Release(releaseCtx, key, token); err != nil {
			logger.Warn(releaseCtx, "释放锁失败",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		}
	}()
	return run()
}

// BlockExecute 阻塞执行：轮询抢锁直到成功或 ctx 结束。
// 通用原语，消息回复编排不使用（用户侧宁可快速返回“稍后再试”）。
func BlockExecute[T any](ctx context.Context, m *Manager, key string, run func() T) (T, error) {
	token := id.GenerateULID()
	var zero T
	for {
		ok, err := m.store.TryAcquire(ctx, key, token, m.ttl)
		if err != nil {
			return zero, err
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}

	defer func() {
		releaseCtx := context.WithoutCancel(ctx)
		if err := m.store.Release(releaseCtx, key, token); err != nil {
			logger.Warn(releaseCtx, "释放锁失败",
				logger.String("key", key),
				logger.ErrorField("error", err),
			)
		}
	}()
	return run(), nil
}
