package consts

// 通用错误码
const (
	// 成功
	CodeSuccess = 0 // 成功
)

// 客户端错误 (1xxxx)
const (
	// 参数验证失败
	CodeParamError = 10001 // 参数验证失败
	// 请求体格式错误
	CodeBodyError = 10002 // 请求体格式错误
	// 资源不存在
	CodeResourceNotFound = 10003 // 资源不存在
	// 请求过于频繁
	CodeTooManyRequests = 10005 // 请求过于频繁
)

// 认证错误 (2xxxx)
const (
	// 未认证
	CodeUnauthorized = 20001 // 未认证
	// Token 无效
	CodeInvalidToken = 20002 // Token 无效
	// Token 已过期
	CodeTokenExpired = 20003 // Token 已过期
	// 用户名或密码错误
	CodePasswordError = 20005 // 用户名或密码错误
)

// 公众号模块错误 (11xxx)
const (
	// 公众号不存在
	CodeAccountNotFound = 11001 // 公众号不存在
	// 公众号已存在
	CodeAccountAlreadyExist = 11002 // 公众号已存在
	// 签名校验失败
	CodeInvalidSignature = 11003 // 签名校验失败
)

// 回复规则模块错误 (12xxx)
const (
	// 规则不存在
	CodeRuleNotFound = 12001 // 规则不存在
	// 规则关键词为空
	CodeRuleKeywordEmpty = 12002 // 规则关键词为空
	// 规则内容为空
	CodeRuleContentEmpty = 12003 // 规则内容为空
	// 匹配类型无效
	CodeRuleMatchTypeInvalid = 12004 // 匹配类型无效
)

// 服务端错误 (3xxxx)
const (
	// 服务器内部错误
	CodeInternalError = 30001 // 服务器内部错误
	// 服务暂不可用
	CodeServiceUnavailable = 30002 // 服务暂不可用
	// 超时错误
	CodeTimeoutError = 30003 // 超时错误
)

// 错误消息映射
var CodeMessage = map[int]string{
	CodeSuccess: "success",

	// 客户端错误
	CodeParamError:       "参数验证失败",
	CodeBodyError:        "请求体格式错误",
	CodeResourceNotFound: "资源不存在",
	CodeTooManyRequests:  "请求过于频繁",

	// 认证错误
	CodeUnauthorized:  "未认证",
	CodeInvalidToken:  "Token 无效",
	CodeTokenExpired:  "Token 已过期",
	CodePasswordError: "用户名或密码错误",

	// 公众号模块
	CodeAccountNotFound:     "公众号不存在",
	CodeAccountAlreadyExist: "公众号已存在",
	CodeInvalidSignature:    "签名校验失败",

	// 回复规则模块
	CodeRuleNotFound:         "规则不存在",
	CodeRuleKeywordEmpty:     "规则关键词为空",
	CodeRuleContentEmpty:     "规则内容为空",
	CodeRuleMatchTypeInvalid: "匹配类型无效",

	// 服务端错误
	CodeInternalError:      "服务器内部错误",
	CodeServiceUnavailable: "服务暂不可用",
	CodeTimeoutError:       "超时错误",
}

// GetMessage 根据错误码获取错误消息
func GetMessage(code int) string {
	if msg, ok := CodeMessage[code]; ok {
		return msg
	}
	return "未知错误"
}

// 判断是不是非服务端错误（是返回true，否返回false）
func IsNonServerError(code int) bool {
	return code >= 10000 && code < 30000
}
