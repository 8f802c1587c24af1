package v1

import (
	"errors"

	"WxAIServer/apps/wxmp/internal/dto"
	"WxAIServer/apps/wxmp/internal/repository"
	"WxAIServer/apps/wxmp/internal/service"
	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/logger"
	"WxAIServer/pkg/result"
	"WxAIServer/pkg/wxcrypto"

	"github.com/gin-gonic/gin"
)

// AccountHandler 公众号账号管理处理器
type AccountHandler struct {
	accountService *service.AccountService
}

// NewAccountHandler 创建账号管理处理器
func NewAccountHandler(accountService *service.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// List 查询已接入的公众号列表
// GET /api/v1/admin/accounts
func (h *AccountHandler) List(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)

	accounts, err := h.accountService.List(ctx)
	if err != nil {
		logger.Error(ctx, "查询公众号列表失败",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, accounts)
}

// Create 接入新公众号
// POST /api/v1/admin/accounts
func (h *AccountHandler) Create(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)

	var req dto.AccountCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// AESKey 只在安全模式下配置，配置了就必须合法
	if req.AesKey != "" {
		if _, err := wxcrypto.NewMsgCrypt(req.AppId, req.AesKey); err != nil {
			result.FailWithMessage(c, "aes_key 无效", consts.CodeParamError)
			return
		}
	}

	account := &model.WxAccount{
		AppId:  req.AppId,
		Name:   req.Name,
		Token:  req.Token,
		AesKey: req.AesKey,
	}
	if err := h.accountService.Create(ctx, account); err != nil {
		if errors.Is(err, repository.ErrDuplicateKey) {
			result.Fail(c, nil, consts.CodeAccountAlreadyExist)
			return
		}
		logger.Error(ctx, "接入公众号失败",
			logger.String("app_id", req.AppId),
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, account)
}
