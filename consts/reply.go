package consts

// Redis key 前缀。锁、限流、缓存各自独立命名空间，便于排查与清理。
const (
	// MessageReplyLockPrefix 消息回复分布式锁前缀，后接 appId:fromUser:md5(消息)
	MessageReplyLockPrefix = "wx:reply:lock:"
	// RateLimitKeyPrefix AI 调用限流计数前缀，后接 appId:fromUser
	RateLimitKeyPrefix = "wx:reply:rate:"
	// ReplyCacheKeyPrefix AI 回复缓存前缀，后接 appId:fromUser:md5(消息)
	ReplyCacheKeyPrefix = "wx:reply:cache:"
	// RuleCacheKeyPrefix 回复规则列表缓存前缀，后接 appId
	RuleCacheKeyPrefix = "wx:rule:list:"
	// AccountCacheKeyPrefix 公众号信息缓存前缀，后接 appId
	AccountCacheKeyPrefix = "wx:account:"
	// AdminRateLimitKeyPrefix 管理后台 IP 限流前缀，后接客户端 IP
	AdminRateLimitKeyPrefix = "wx:admin:rate:ip:"
)

// SystemPrompt AI 回复的系统预设。
const SystemPrompt = "我想让你充当微信公众号客服，回复内容控制在 200 字以内，在四秒内返回响应，" +
	"并且回答的内容不要使用 markdown 格式，如果有链接可以使用 HTML 格式展示。"

// 用户可见的固定回复文案。
const (
	// ReplyProcessing 未抢到锁（同一条消息正在处理中）时的占位回复
	ReplyProcessing = "正在处理您的请求，请稍后再试。"
	// ReplyEmptyMessage 空消息提示
	ReplyEmptyMessage = "请输入有效的消息内容，我将为您提供帮助"
	// ReplyPunctuationOnly 纯标点消息提示
	ReplyPunctuationOnly = "请输入具体的问题或需求，我将为您提供帮助"
	// ReplyTooLong 超长消息提示
	ReplyTooLong = "消息内容过长，请控制在500字以内，感谢您的理解"
	// ReplyRateLimited 触发限流提示
	ReplyRateLimited = "当前AI服务访问频繁，请稍后再试（每分钟最多可请求2次）"
	// ReplyAIFailure AI 调用失败提示
	ReplyAIFailure = "AI服务存在问题，请检查连接或稍后重试"
	// ReplyFallback 处理过程异常时的兜底回复
	ReplyFallback = "抱歉，我暂时无法处理您的请求，请稍后再试。"
	// ReplyUnknownContentType 规则内容类型无法识别时的回复
	ReplyUnknownContentType = "抱歉，我暂时无法理解您的问题。您可以尝试问其他问题，或者提供更多详细信息。"
	// ReplySubscribeDefault 关注事件默认回复
	ReplySubscribeDefault = "感谢关注"
)

// MaxMessageLen 用户消息长度上限（按字符计），超过不调用 AI。
const MaxMessageLen = 500

// PunctuationOnlyTokens 视为无效输入的纯标点消息集合。
var PunctuationOnlyTokens = map[string]struct{}{
	"？": {}, "?": {}, "！": {}, "!": {}, "。": {}, ".": {},
}
