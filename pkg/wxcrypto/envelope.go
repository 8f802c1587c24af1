package wxcrypto

import (
	"encoding/xml"
	"strconv"
)

type cdata struct {
	Text string `xml:",cdata"`
}

// encryptedEnvelope 安全模式回复报文。
type encryptedEnvelope struct {
	XMLName      xml.Name `xml:"xml"`
	Encrypt      cdata    `xml:"Encrypt"`
	MsgSignature cdata    `xml:"MsgSignature"`
	TimeStamp    int64    `xml:"TimeStamp"`
	Nonce        cdata    `xml:"Nonce"`
}

// BuildEncryptedReply 加密明文回复并组装带签名的回复报文。
func (m *MsgCrypt) BuildEncryptedReply(token, plainXml, nonce string, timestamp int64) (string, error) {
	encrypt, err := m.Encrypt([]byte(plainXml))
	if err != nil {
		return "", err
	}

	envelope := encryptedEnvelope{
		Encrypt:      cdata{encrypt},
		MsgSignature: cdata{Signature(token, strconv.FormatInt(timestamp, 10), nonce, encrypt)},
		TimeStamp:    timestamp,
		Nonce:        cdata{nonce},
	}
	out, err := xml.Marshal(envelope)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
