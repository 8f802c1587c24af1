package model

import "time"

// 规则匹配类型
const (
	// MatchTypeFull 全匹配：消息与关键词完全一致
	MatchTypeFull int8 = 1
	// MatchTypePartial 半匹配：消息包含关键词
	MatchTypePartial int8 = 2
)

// 规则触发类型
const (
	// RuleTypeMessage 收到消息时触发
	RuleTypeMessage int8 = 1
	// RuleTypeSubscribe 关注公众号时触发
	RuleTypeSubscribe int8 = 2
)

// 规则回复内容类型
const (
	// ContentTypeText 文本回复
	ContentTypeText int8 = 1
)

// WxReplyRule 公众号自动回复规则。
// 命中规则的消息直接回复规则内容，不走 AI、不计限流、不落记录。
type WxReplyRule struct {
	Id          string    `gorm:"column:id;primaryKey;type:char(26);comment:ULID主键"`
	AppId       string    `gorm:"column:app_id;index;type:varchar(32);not null;comment:公众号appId"`
	RuleName    string    `gorm:"column:rule_name;type:varchar(64);not null;comment:规则名称"`
	RuleType    int8      `gorm:"column:rule_type;not null;default:1;comment:触发类型,1.消息 2.关注"`
	MatchType   int8      `gorm:"column:match_type;not null;default:1;comment:匹配类型,1.全匹配 2.半匹配"`
	Keyword     string    `gorm:"column:keyword;type:varchar(128);comment:匹配关键词，关注规则可为空"`
	ContentType int8      `gorm:"column:content_type;not null;default:1;comment:回复内容类型,1.文本"`
	Content     string    `gorm:"column:content;type:text;not null;comment:回复内容"`
	Enabled     int8      `gorm:"column:enabled;not null;default:1;comment:是否启用,0.停用 1.启用"`
	CreatedAt   time.Time `gorm:"column:created_at;not null;comment:创建时间"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null;comment:更新时间"`
}

func (WxReplyRule) TableName() string {
	return "wx_reply_rule"
}

// WxReplyContent 规则命中后的回复内容（服务层 DTO）。
type WxReplyContent struct {
	ContentType int8   `json:"contentType"`
	Content     string `json:"content"`
}
