package model

import "encoding/xml"

// 微信消息类型
const (
	// MsgTypeText 文本消息
	MsgTypeText = "text"
	// MsgTypeEvent 事件消息
	MsgTypeEvent = "event"
	// EventSubscribe 关注事件
	EventSubscribe = "subscribe"
)

// WxXmlMessage 微信服务器推送的 XML 消息（明文或解密后）。
// 只保留本服务用到的字段，其余字段忽略。
type WxXmlMessage struct {
	XMLName      xml.Name `xml:"xml"`
	ToUser       string   `xml:"ToUserName"`   // 公众号原始 ID
	FromUser     string   `xml:"FromUserName"` // 发送方 openId
	CreateTime   int64    `xml:"CreateTime"`   // 消息创建时间（秒）
	MsgType      string   `xml:"MsgType"`      // 消息类型: text/event/...
	Content      string   `xml:"Content"`      // 文本消息内容
	MsgId        int64    `xml:"MsgId"`        // 消息 id
	Event        string   `xml:"Event"`        // 事件类型: subscribe/...
	Encrypt      string   `xml:"Encrypt"`      // 安全模式下的密文
}

// ParseWxXmlMessage 解析微信推送的 XML 报文。
func ParseWxXmlMessage(body []byte) (*WxXmlMessage, error) {
	var msg WxXmlMessage
	if err := xml.Unmarshal(body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// cdata 输出 <![CDATA[...]]> 包裹的文本。
type cdata struct {
	Text string `xml:",cdata"`
}

// WxXmlOutTextMessage 回复给微信服务器的文本消息。
type WxXmlOutTextMessage struct {
	XMLName    xml.Name `xml:"xml"`
	ToUser     cdata    `xml:"ToUserName"`
	FromUser   cdata    `xml:"FromUserName"`
	CreateTime int64    `xml:"CreateTime"`
	MsgType    cdata    `xml:"MsgType"`
	Content    cdata    `xml:"Content"`
}

// NewTextReply 构造文本回复：from/to 与入站消息互换。
func NewTextReply(toUser, fromUser, content string, createTime int64) *WxXmlOutTextMessage {
	return &WxXmlOutTextMessage{
		ToUser:     cdata{toUser},
		FromUser:   cdata{fromUser},
		CreateTime: createTime,
		MsgType:    cdata{MsgTypeText},
		Content:    cdata{content},
	}
}

// ToXml 序列化为微信要求的 XML 报文。
func (m *WxXmlOutTextMessage) ToXml() (string, error) {
	out, err := xml.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
