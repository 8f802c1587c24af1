package model

import "time"

// WxAccount 接入的公众号账号。
// Token 用于微信服务器签名校验，AesKey 仅在安全模式（aes 加密传输）下需要。
type WxAccount struct {
	Id        string    `gorm:"column:id;primaryKey;type:char(26);comment:ULID主键"`
	AppId     string    `gorm:"column:app_id;uniqueIndex;type:varchar(32);not null;comment:公众号appId"`
	Name      string    `gorm:"column:name;type:varchar(64);not null;comment:公众号名称"`
	Token     string    `gorm:"column:token;type:varchar(64);not null;comment:服务器校验Token"`
	AesKey    string    `gorm:"column:aes_key;type:varchar(64);comment:消息加解密Key，明文模式为空"`
	Verified  int8      `gorm:"column:verified;not null;default:0;comment:是否通过微信服务器认证,0.否 1.是"`
	CreatedAt time.Time `gorm:"column:created_at;not null;comment:创建时间"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;comment:更新时间"`
}

func (WxAccount) TableName() string {
	return "wx_account"
}
