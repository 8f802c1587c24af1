package v1

import (
	"context"
	"io"
	"net/http"
	"time"

	"WxAIServer/apps/wxmp/internal/middleware"
	"WxAIServer/apps/wxmp/internal/service"
	"WxAIServer/consts"
	"WxAIServer/model"
	"WxAIServer/pkg/ctxmeta"
	"WxAIServer/pkg/logger"
	"WxAIServer/pkg/wxcrypto"

	"github.com/gin-gonic/gin"
)

// replyIllegalRequest 签名校验失败时回给微信服务器的固定文案
const replyIllegalRequest = "非法请求"

// maxWxBodySize 微信推送报文体积上限，防御异常大报文
const maxWxBodySize = 1 << 20

// PortalHandler 微信服务器回调处理器
type PortalHandler struct {
	accountService *service.AccountService
	replyService   *service.ReplyService
}

// NewPortalHandler 创建微信回调处理器
func NewPortalHandler(accountService *service.AccountService, replyService *service.ReplyService) *PortalHandler {
	return &PortalHandler{
		accountService: accountService,
		replyService:   replyService,
	}
}

// Verify 微信服务器接入校验（GET 回调）
// 签名通过则原样返回 echostr 并标记公众号已认证，否则返回固定文案。
func (h *PortalHandler) Verify(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)
	appId := c.Param("appId")

	signature := c.Query("signature")
	timestamp := c.Query("timestamp")
	nonce := c.Query("nonce")
	echostr := c.Query("echostr")

	account, err := h.accountService.GetByAppId(ctx, appId)
	if err != nil || account == nil {
		logger.Warn(ctx, "接入校验：公众号不存在",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		c.String(http.StatusOK, replyIllegalRequest)
		return
	}

	if !wxcrypto.CheckSignature(account.Token, timestamp, nonce, signature) {
		logger.Warn(ctx, "接入校验：签名不匹配",
			logger.String("app_id", appId),
		)
		c.String(http.StatusOK, replyIllegalRequest)
		return
	}

	// 校验通过即认为该公众号已完成微信服务器认证
	if err := h.accountService.MarkVerified(ctx, appId); err != nil {
		logger.Error(ctx, "标记公众号已认证失败",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
	}

	c.String(http.StatusOK, echostr)
}

// Receive 微信消息回调（POST）
// 支持明文与 aes 安全模式，按消息类型分发后回 XML 文本消息。
func (h *PortalHandler) Receive(c *gin.Context) {
	ctx := ctxmeta.BuildContextFromGin(c)
	appId := c.Param("appId")

	timestamp := c.Query("timestamp")
	nonce := c.Query("nonce")

	account, err := h.accountService.GetByAppId(ctx, appId)
	if err != nil || account == nil {
		logger.Warn(ctx, "消息回调：公众号不存在",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		c.String(http.StatusOK, replyIllegalRequest)
		return
	}

	if !wxcrypto.CheckSignature(account.Token, timestamp, nonce, c.Query("signature")) {
		logger.Warn(ctx, "消息回调：签名不匹配",
			logger.String("app_id", appId),
		)
		c.String(http.StatusOK, replyIllegalRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWxBodySize))
	if err != nil {
		logger.Error(ctx, "读取微信报文失败",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		c.String(http.StatusOK, "")
		return
	}

	msg, err := model.ParseWxXmlMessage(body)
	if err != nil {
		logger.Warn(ctx, "微信报文解析失败",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		c.String(http.StatusOK, "")
		return
	}

	// 安全模式：外层报文只有 Encrypt 字段，需要验签并解密出真实消息
	var crypt *wxcrypto.MsgCrypt
	if c.Query("encrypt_type") == "aes" {
		crypt, msg = h.decryptMessage(ctx, c, account, msg.Encrypt, timestamp, nonce)
		if msg == nil {
			c.String(http.StatusOK, "")
			return
		}
	}

	middleware.RecordWxMessage(msg.MsgType)

	reply := h.dispatch(ctx, appId, msg)
	if reply == "" {
		// 空串表示不回复，微信服务器接受空响应
		c.String(http.StatusOK, "")
		return
	}

	out := model.NewTextReply(msg.FromUser, msg.ToUser, reply, time.Now().Unix())
	plainXml, err := out.ToXml()
	if err != nil {
		logger.Error(ctx, "回复消息序列化失败",
			logger.String("app_id", appId),
			logger.ErrorField("error", err),
		)
		c.String(http.StatusOK, "")
		return
	}

	// 安全模式下回复也要加密打包
	if crypt != nil {
		encrypted, err := crypt.BuildEncryptedReply(account.Token, plainXml, nonce, time.Now().Unix())
		if err != nil {
			logger.Error(ctx, "回复消息加密失败",
				logger.String("app_id", appId),
				logger.ErrorField("error", err),
			)
			c.String(http.StatusOK, "")
			return
		}
		plainXml = encrypted
	}

	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.String(http.StatusOK, plainXml)
}

// decryptMessage 校验消息签名并解出安全模式下的真实报文。
// 任一步失败返回 nil，调用方回空响应。
func (h *PortalHandler) decryptMessage(ctx context.Context, c *gin.Context, account *model.WxAccount, encrypt, timestamp, nonce string) (*wxcrypto.MsgCrypt, *model.WxXmlMessage) {
	if !wxcrypto.CheckMsgSignature(account.Token, timestamp, nonce, encrypt, c.Query("msg_signature")) {
		logger.Warn(ctx, "消息签名不匹配",
			logger.String("app_id", account.AppId),
		)
		return nil, nil
	}

	crypt, err := wxcrypto.NewMsgCrypt(account.AppId, account.AesKey)
	if err != nil {
		logger.Error(ctx, "公众号 AESKey 无效",
			logger.String("app_id", account.AppId),
			logger.ErrorField("error", err),
		)
		return nil, nil
	}

	plain, err := crypt.Decrypt(encrypt)
	if err != nil {
		logger.Warn(ctx, "消息解密失败",
			logger.String("app_id", account.AppId),
			logger.ErrorField("error", err),
		)
		return nil, nil
	}

	msg, err := model.ParseWxXmlMessage(plain)
	if err != nil {
		logger.Warn(ctx, "解密后报文解析失败",
			logger.String("app_id", account.AppId),
			logger.ErrorField("error", err),
		)
		return nil, nil
	}
	return crypt, msg
}

// dispatch 按消息类型分发，返回要回复的文本，空串表示不回复
func (h *PortalHandler) dispatch(ctx context.Context, appId string, msg *model.WxXmlMessage) (reply string) {
	// 回复流程异常不能把 5xx 抛给微信服务器，兜底固定文案
	defer func() {
		if r := recover(); r != nil {
			logger.Error(ctx, "消息处理发生 panic",
				logger.String("app_id", appId),
				logger.String("from_user", msg.FromUser),
				logger.Any("panic", r),
			)
			reply = consts.ReplyFallback
		}
	}()

	switch msg.MsgType {
	case model.MsgTypeText:
		return h.replyService.Reply(ctx, appId, msg.FromUser, msg.Content)
	case model.MsgTypeEvent:
		if msg.Event == model.EventSubscribe {
			return h.replyService.ReplySubscribe(ctx, appId)
		}
		return ""
	default:
		return ""
	}
}
