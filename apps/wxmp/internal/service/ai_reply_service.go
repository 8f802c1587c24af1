package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/cache"
	"WxAIServer/pkg/limiter"
	"WxAIServer/pkg/logger"
)

// AiReplyService AI 回复解析服务：对一条给定记录完成"拿到回复文本"这件事。
// 调用链路（依次短路）：输入检查 -> 回复缓存 -> 限流 -> AI 调用。
// 只有成功拿到非空回复才会更新记录；失败时记录保持未回复，
// 用户重发同一条消息即是重试。
type AiReplyService struct {
	recordRepo repository.IRecordRepository
	replyCache *cache.ReplyCache
	limiter    *limiter.FixedWindowLimiter
	chatClient ChatClient
}

// NewAiReplyService 创建 AI 回复服务实例
func NewAiReplyService(
	recordRepo repository.IRecordRepository,
	replyCache *cache.ReplyCache,
	rateLimiter *limiter.FixedWindowLimiter,
	chatClient ChatClient,
) *AiReplyService {
	return &AiReplyService{
		recordRepo: recordRepo,
		replyCache: replyCache,
		limiter:    rateLimiter,
		chatClient: chatClient,
	}
}

// AiReply 为 record 解析 AI 回复，总是返回非空文案。
// 输入检查的短路分支不动记录也不耗限流额度：无效输入拒绝成本极低，
// 没必要为它做去重或限流。
func (s *AiReplyService) AiReply(ctx context.Context, appId, fromUser, message string, record *model.AiReplyRecord) string {
	// ==================== 0. 输入检查 ====================
	trimmed := strings.TrimSpace(message)
	if trimmed == "" {
		logger.Info(ctx, "收到空消息",
			logger.String("app_id", appId),
			logger.String("from_user", fromUser),
		)
		return consts.ReplyEmptyMessage
	}
	if _, ok := consts.PunctuationOnlyTokens[trimmed]; ok {
		logger.Info(ctx, "收到纯标点消息",
			logger.String("app_id", appId),
			logger.String("from_user", fromUser),
			logger.String("message", message),
		)
		return consts.ReplyPunctuationOnly
	}
	if utf8.RuneCountInString(message) > consts.MaxMessageLen {
		logger.Info(ctx, "收到超长消息",
			logger.String("app_id", appId),
			logger.String("from_user", fromUser),
			logger.Int("message_len", utf8.RuneCountInString(message)),
		)
		return consts.ReplyTooLong
	}

	// ==================== 1. 查回复缓存 ====================
	cacheKey := replyCacheKey(appId, fromUser, message)
	if cached, found := s.replyCache.Get(ctx, cacheKey); found {
		logger.Info(ctx, "返回缓存的AI回复",
			logger.String("app_id", appId),
			logger.String("from_user", fromUser),
		)
		// 缓存命中同样要收敛记录状态，跳过限流与 AI 调用
		if err := s.recordRepo.MarkReplied(ctx, record.Id, cached); err != nil {
			logger.Error(ctx, "缓存命中后更新记录失败",
				logger.String("record_id", record.Id),
				logger.ErrorField("error", err),
			)
		}
		return cached
	}

	// ==================== 2. 限流 ====================
	if !s.limiter.Allow(ctx, rateLimitKey(appId, fromUser)) {
		// 不动记录：下一分钟的重复消息仍可解析
		return consts.ReplyRateLimited
	}

	// ==================== 3. 调用 AI ====================
	start := time.Now()
	logger.Info(ctx, "开始调用AI模型",
		logger.String("app_id", appId),
		logger.String("from_user", fromUser),
		logger.Int("message_len", utf8.RuneCountInString(message)),
	)

	reply, err := s.chatClient.Generate(ctx, consts.SystemPrompt, message)
	if err != nil {
		logger.Error(ctx, "AI调用失败",
			logger.String("app_id", appId),
			logger.String("from_user", fromUser),
			logger.Duration("cost", time.Since(start)),
			logger.ErrorField("error", err),
		)
		return consts.ReplyAIFailure
	}
	if strings.TrimSpace(reply) == "" {
		logger.Error(ctx, "AI返回空回复",
			logger.String("app_id", appId),
			logger.String("from_user", fromUser),
			logger.Duration("cost", time.Since(start)),
		)
		return consts.ReplyAIFailure
	}
	logger.Info(ctx, "AI调用完成",
		logger.Duration("cost", time.Since(start)),
		logger.Int("reply_len", utf8.RuneCountInString(reply)),
	)

	// ==================== 4. 缓存回复并更新记录 ====================
	s.replyCache.Set(ctx, cacheKey, reply)
	if err := s.recordRepo.MarkReplied(ctx, record.Id, reply); err != nil {
		// 回复已产出且已入缓存，记录更新失败不该把失败传导给用户
		logger.Error(ctx, "更新回复记录失败",
			logger.String("record_id", record.Id),
			logger.ErrorField("error", err),
		)
	}
	return reply
}
