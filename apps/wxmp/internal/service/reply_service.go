package service

import (
	"context"

	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/lock"
	"WxAIServer/pkg/logger"
)

// ReplyService 消息回复编排服务。
//
// 两级防重：锁挡住同一时刻的并发重复消息；落库的回复记录挡住跨进程、
// 跨重启的重复调用——锁只在持有期间有效，记录才是"这条消息是否已回答"
// 的最终事实。回复缓存是第三层：记录闭环之后同一条消息再次出现时仍可复用。
type ReplyService struct {
	lockMgr    *lock.Manager
	ruleSvc    *RuleService
	recordRepo repository.IRecordRepository
	aiReplySvc *AiReplyService
}

// NewReplyService 创建回复编排服务实例
func NewReplyService(
	lockMgr *lock.Manager,
	ruleSvc *RuleService,
	recordRepo repository.IRecordRepository,
	aiReplySvc *AiReplyService,
) *ReplyService {
	return &ReplyService{
		lockMgr:    lockMgr,
		ruleSvc:    ruleSvc,
		recordRepo: recordRepo,
		aiReplySvc: aiReplySvc,
	}
}

// Reply 处理一条文本消息，总是返回非空回复文案。
// 针对 (appId, fromUser, 消息摘要) 加非阻塞锁，避免用户短时间内
// 发送同一条消息导致 AI 回复了多次；未抢到锁立即返回占位文案。
func (s *ReplyService) Reply(ctx context.Context, appId, fromUser, content string) string {
	lockKey := replyLockKey(appId, fromUser, content)

	return lock.NonBlockExecute(ctx, s.lockMgr, lockKey,
		// 获取锁成功时执行
		func() string {
			return s.replyLocked(ctx, appId, fromUser, content)
		},
		// 获取锁失败时执行
		func() string {
			logger.Info(ctx, "消息正在处理中，返回占位回复",
				logger.String("app_id", appId),
				logger.String("from_user", fromUser),
			)
			return consts.ReplyProcessing
		},
	)
}

// ReplySubscribe 处理关注事件，返回关注回复文案。
// 未配置规则或内容类型无法识别时回退默认文案；规则查询失败同样回退，
// 关注回复不值得让用户看到错误。
func (s *ReplyService) ReplySubscribe(ctx context.Context, appId string) string {
	ruleReply, err := s.ruleSvc.ReplySubscribe(ctx, appId)
	if err != nil {
		logger.Warn(ctx, "查询关注回复规则失败，返回默认回复",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		return consts.ReplySubscribeDefault
	}
	if ruleReply == nil || ruleReply.ContentType != model.ContentTypeText || ruleReply.Content == "" {
		return consts.ReplySubscribeDefault
	}
	return ruleReply.Content
}

// replyLocked 持有锁期间的处理流程。记录的读写都在锁内完成，
// 并发的第二个请求要么看到锁（busy），要么看到已更新的记录。
func (s *ReplyService) replyLocked(ctx context.Context, appId, fromUser, content string) string {
	// ==================== 1. 优先匹配自动回复规则 ====================
	ruleReply, err := s.ruleSvc.ReceiveMessageReply(ctx, appId, content)
	if err != nil {
		logger.Error(ctx, "规则匹配失败",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		return consts.ReplyFallback
	}
	if ruleReply != nil {
		// 命中规则直接回复：不缓存、不限流、不落记录
		if ruleReply.ContentType != model.ContentTypeText {
			logger.Warn(ctx, "规则内容类型无法识别",
				logger.String("app_id", appId),
				logger.Int("content_type", int(ruleReply.ContentType)),
			)
			return consts.ReplyUnknownContentType
		}
		return ruleReply.Content
	}

	// ==================== 2. 查找/创建回复记录 ====================
	record, err := s.recordRepo.FindNotReplied(ctx, appId, fromUser, content)
	if err != nil {
		logger.Error(ctx, "查询回复记录失败",
			logger.String("app_id", appId),
			logger.String("from_user", fromUser),
			logger.ErrorField("error", err),
		)
		return consts.ReplyFallback
	}

	switch {
	case record == nil:
		// 首次出现的消息：建档后走 AI 解析
		record, err = s.recordRepo.Create(ctx, appId, fromUser, content)
		if err != nil {
			logger.Error(ctx, "创建回复记录失败",
				logger.String("app_id", appId),
				logger.String("from_user", fromUser),
				logger.ErrorField("error", err),
			)
			return consts.ReplyFallback
		}
		return s.aiReplySvc.AiReply(ctx, appId, fromUser, content, record)

	case !record.Replied():
		// 上次解析失败或被中断的记录：重试路径
		logger.Info(ctx, "找到未回复的记录，重新调用AI服务",
			logger.String("record_id", record.Id),
			logger.String("from_user", fromUser),
		)
		return s.aiReplySvc.AiReply(ctx, appId, fromUser, content, record)

	default:
		// 另一条路径已经解析完：补状态位后直接复用存量回复
		if err := s.recordRepo.MarkStatusReplied(ctx, record.Id); err != nil {
			logger.Warn(ctx, "收敛记录状态失败",
				logger.String("record_id", record.Id),
				logger.ErrorField("error", err),
			)
		}
		return *record.ReplyMessage
	}
}
