package dto

// LoginRequest 管理员登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse 管理员登录响应
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresIn int64  `json:"expires_in"` // 有效期（秒）
}

// RuleCreateRequest 创建回复规则请求
type RuleCreateRequest struct {
	AppId       string `json:"app_id" binding:"required"`
	RuleName    string `json:"rule_name" binding:"required"`
	RuleType    int8   `json:"rule_type"`    // 1 消息 2 关注，默认 1
	MatchType   int8   `json:"match_type"`   // 1 全匹配 2 半匹配，默认 1
	Keyword     string `json:"keyword"`      // 关注规则可为空
	ContentType int8   `json:"content_type"` // 1 文本，默认 1
	Content     string `json:"content" binding:"required"`
	Enabled     *int8  `json:"enabled"` // 不传默认启用
}

// RuleUpdateRequest 更新回复规则请求
type RuleUpdateRequest struct {
	RuleName    string `json:"rule_name" binding:"required"`
	RuleType    int8   `json:"rule_type"`
	MatchType   int8   `json:"match_type"`
	Keyword     string `json:"keyword"`
	ContentType int8   `json:"content_type"`
	Content     string `json:"content" binding:"required"`
	Enabled     *int8  `json:"enabled"`
}

// AccountCreateRequest 接入公众号请求
type AccountCreateRequest struct {
	AppId  string `json:"app_id" binding:"required"`
	Name   string `json:"name" binding:"required"`
	Token  string `json:"token" binding:"required"`
	AesKey string `json:"aes_key"` // 明文模式可为空
}

// PageQuery 分页查询参数
type PageQuery struct {
	Page     int `form:"page,default=1"`
	PageSize int `form:"page_size,default=20"`
}

// PageResponse 分页响应
type PageResponse struct {
	Total    int64       `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	List     interface{} `json:"list"`
}
