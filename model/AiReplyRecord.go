package model

import "time"

// AI 回复状态
const (
	// ReplyStatusNotReplied AI 尚未回复（含调用失败，可由后续重复消息重试）
	ReplyStatusNotReplied int8 = 0
	// ReplyStatusReplied AI 已回复，reply_message 为最终文案
	ReplyStatusReplied int8 = 1
)

// AiReplyRecord AI 回复内容记录。
// 逻辑唯一键为 (app_id, from_user, message)：同一条消息在任意时刻
// 至多存在一条 NOT_REPLIED 记录，由分布式锁保证，库表不做唯一约束。
type AiReplyRecord struct {
	Id           string     `gorm:"column:id;primaryKey;type:char(26);comment:ULID主键"`
	AppId        string     `gorm:"column:app_id;index:idx_reply_key;type:varchar(32);not null;comment:公众号appId"`
	FromUser     string     `gorm:"column:from_user;index:idx_reply_key;type:varchar(64);not null;comment:发送方openId"`
	Message      string     `gorm:"column:message;type:varchar(512);not null;comment:用户消息内容"`
	ReplyMessage *string    `gorm:"column:reply_message;type:text;comment:AI回复内容，未回复时为空"`
	ReplyStatus  int8       `gorm:"column:reply_status;not null;default:0;comment:回复状态,0.未回复 1.已回复"`
	CreatedAt    time.Time  `gorm:"column:created_at;index;not null;comment:创建时间"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null;comment:更新时间"`
}

func (AiReplyRecord) TableName() string {
	return "ai_reply_record"
}

// Replied 是否已有可复用的 AI 回复。
func (r *AiReplyRecord) Replied() bool {
	return r.ReplyMessage != nil && *r.ReplyMessage != ""
}
