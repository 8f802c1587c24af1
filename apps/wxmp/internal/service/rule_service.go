package service

import (
	"context"
	"strings"

	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/model"
)

// RuleService 自动回复规则匹配服务。
// 命中规则的消息直接回复规则内容：便宜且确定，不走 AI 编排。
type RuleService struct {
	ruleRepo repository.IRuleRepository
}

// NewRuleService 创建规则服务实例
func NewRuleService(ruleRepo repository.IRuleRepository) *RuleService {
	return &RuleService{ruleRepo: ruleRepo}
}

// ReceiveMessageReply 对收到的消息做规则匹配，未命中返回 (nil, nil)。
// 匹配顺序：先全匹配后半匹配，同类规则按创建时间先到先得。
func (s *RuleService) ReceiveMessageReply(ctx context.Context, appId, message string) (*model.WxReplyContent, error) {
	rules, err := s.ruleRepo.ListEnabled(ctx, appId)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(message)

	// 全匹配优先
	for i := range rules {
		rule := &rules[i]
		if rule.RuleType != model.RuleTypeMessage || rule.Keyword == "" {
			continue
		}
		if rule.MatchType == model.MatchTypeFull && trimmed == rule.Keyword {
			return &model.WxReplyContent{ContentType: rule.ContentType, Content: rule.Content}, nil
		}
	}
	for i := range rules {
		rule := &rules[i]
		if rule.RuleType != model.RuleTypeMessage || rule.Keyword == "" {
			continue
		}
		if rule.MatchType == model.MatchTypePartial && strings.Contains(trimmed, rule.Keyword) {
			return &model.WxReplyContent{ContentType: rule.ContentType, Content: rule.Content}, nil
		}
	}
	return nil, nil
}

// ReplySubscribe 查询关注事件回复规则，未配置返回 (nil, nil)。
func (s *RuleService) ReplySubscribe(ctx context.Context, appId string) (*model.WxReplyContent, error) {
	rules, err := s.ruleRepo.ListEnabled(ctx, appId)
	if err != nil {
		return nil, err
	}
	for i := range rules {
		rule := &rules[i]
		if rule.RuleType == model.RuleTypeSubscribe {
			return &model.WxReplyContent{ContentType: rule.ContentType, Content: rule.Content}, nil
		}
	}
	return nil, nil
}
