package v1

import (
	"crypto/subtle"

	"WxAIServer/apps/wxmp/internal/dto"
	"WxAIServer/config"
	"WxAIServer/consts"
	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/jwtauth"
	"WxAIServer/pkg/logger"
	"WxAIServer/pkg/result"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler 管理后台认证处理器
type AuthHandler struct {
	adminCfg config.AdminConfig
	jwtMgr   *jwtauth.Manager
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(adminCfg config.AdminConfig, jwtMgr *jwtauth.Manager) *AuthHandler {
	return &AuthHandler{
		adminCfg: adminCfg,
		jwtMgr:   jwtMgr,
	}
}

// Login 管理员登录接口
// 管理员账号由配置下发，密码只存 bcrypt 哈希。
func (h *AuthHandler) Login(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)

	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 参数错误由客户端输入导致,属于正常业务流程,不记录日志
		result.Fail(c, nil, consts.CodeParamError)
		return
	}

	// 未配置密码哈希时禁止登录（只读部署场景）
	if h.adminCfg.PasswordHash == "" {
		logger.Warn(ctx, "管理员密码未配置，拒绝登录",
			logger.String("username", req.Username),
		)
		result.Fail(c, nil, consts.CodePasswordError)
		return
	}

	usernameOk := subtle.ConstantTimeCompare([]byte(req.Username), []byte(h.adminCfg.Username)) == 1
	passwordErr := bcrypt.CompareHashAndPassword([]byte(h.adminCfg.PasswordHash), []byte(req.Password))
	if !usernameOk || passwordErr != nil {
		logger.Warn(ctx, "管理员登录失败",
			logger.String("username", req.Username),
			logger.String("ip", c.ClientIP()),
		)
		result.Fail(c, nil, consts.CodePasswordError)
		return
	}

	token, err := h.jwtMgr.GenerateToken(req.Username)
	if err != nil {
		logger.Error(ctx, "签发 token 失败",
			logger.ErrorField("error", err),
		)
		result.Fail(c, nil, consts.CodeInternalError)
		return
	}

	result.Success(c, dto.LoginResponse{
		Token:     token,
		ExpiresIn: int64(h.adminCfg.TokenTTL.Seconds()),
	})
}
