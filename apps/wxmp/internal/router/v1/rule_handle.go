package v1

import (
	"errors"

	"WxAIServer/apps/wxmp/internal/dto"
	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/logger"
	"WxAIServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// RuleHandler 回复规则管理处理器
type RuleHandler struct {
	ruleRepo repository.IRuleRepository
}

// NewRuleHandler 创建规则管理处理器
func NewRuleHandler(ruleRepo repository.IRuleRepository) *RuleHandler {
	return &RuleHandler{
		ruleRepo: ruleRepo,
	}
}

// List 查询指定公众号的全部规则
// GET /api/v1/admin/rules?app_id=xxx
func (h *RuleHandler) List(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)

	appId := c.Query("app_id")
	if appId == "" {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	rules, err := h.ruleRepo.ListByApp(ctx, appId)
	if err != nil {
		logger.Error(ctx, "查询规则列表失败",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, rules)
}

// Create 新建回复规则
// POST /api/v1/admin/rules
func (h *RuleHandler) Create(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)

	var req dto.RuleCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	rule, code := buildRule(&req)
	if code != consts.CodeSuccess {
		result.Fail(c, nil, code)
		return
	}
	rule.AppId = req.AppId

	if err := h.ruleRepo.Create(ctx, rule); err != nil {
		logger.Error(ctx, "创建规则失败",
			logger.String("app_id", req.AppId),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, rule)
}

// Update 更新回复规则
// PUT /api/v1/admin/rules/:ruleId
func (h *RuleHandler) Update(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)
	ruleId := c.Param("ruleId")

	var req dto.RuleUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	existing, err := h.ruleRepo.GetById(ctx, ruleId)
	if err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			result.Fail(c, nil, consts.CodeRuleNotFound)
			return
		}
		logger.Error(ctx, "查询规则失败",
			logger.String("rule_id", ruleId),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	rule, code := buildRule(&dto.RuleCreateRequest{
		RuleName:    req.RuleName,
		RuleType:    req.RuleType,
		MatchType:   req.MatchType,
		Keyword:     req.Keyword,
		ContentType: req.ContentType,
		Content:     req.Content,
		Enabled:     req.Enabled,
	})
	if code != consts.CodeSuccess {
		result.Fail(c, nil, code)
		return
	}
	rule.Id = ruleId
	rule.AppId = existing.AppId

	if err := h.ruleRepo.Update(ctx, rule); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			result.Fail(c, nil, consts.CodeRuleNotFound)
			return
		}
		logger.Error(ctx, "更新规则失败",
			logger.String("rule_id", ruleId),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, nil)
}

// Delete 删除回复规则
// DELETE /api/v1/admin/rules/:ruleId
func (h *RuleHandler) Delete(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)
	ruleId := c.Param("ruleId")

	if err := h.ruleRepo.Delete(ctx, ruleId); err != nil {
		if errors.Is(err, repository.ErrRecordNotFound) {
			result.Fail(c, nil, consts.CodeRuleNotFound)
			return
		}
		logger.Error(ctx, "删除规则失败",
			logger.String("rule_id", ruleId),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, nil)
}

// buildRule 校验并组装规则实体，返回业务错误码
func buildRule(req *dto.RuleCreateRequest) (*model.WxReplyRule, int) {
	ruleType := req.RuleType
	if ruleType == 0 {
		ruleType = model.RuleTypeMessage
	}
	if ruleType != model.RuleTypeMessage && ruleType != model.RuleTypeSubscribe {
		return nil, consts.CodeParamError
	}

	matchType := req.MatchType
	if matchType == 0 {
		matchType = model.MatchTypeFull
	}
	if matchType != model.MatchTypeFull && matchType != model.MatchTypePartial {
		return nil, consts.CodeRuleMatchTypeInvalid
	}

	// 消息规则必须有关键词，关注规则不需要
	if ruleType == model.RuleTypeMessage && req.Keyword == "" {
		return nil, consts.CodeRuleKeywordEmpty
	}

	contentType := req.ContentType
	if contentType == 0 {
		contentType = model.ContentTypeText
	}
	if req.Content == "" {
		return nil, consts.CodeRuleContentEmpty
	}

	enabled := int8(1)
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	return &model.WxReplyRule{
		RuleName:    req.RuleName,
		RuleType:    ruleType,
		MatchType:   matchType,
		Keyword:     req.Keyword,
		ContentType: contentType,
		Content:     req.Content,
		Enabled:     enabled,
	}, consts.CodeSuccess
}
