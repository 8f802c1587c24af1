package wxcrypto

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"sort"
	"strings"
)

// Signature 计算微信接口签名：参数字典序排序后拼接做 sha1。
// 明文模式参与签名的是 (token, timestamp, nonce)，
// 安全模式校验消息体时额外加入密文（见 MsgSignature）。
func Signature(parts ...string) string {
	sort.Strings(parts)
	sum := sha1.Sum([]byte(strings.Join(parts, "")))
	return hex.EncodeToString(sum[:])
}

// CheckSignature 校验微信服务器请求签名，常量时间比较。
func CheckSignature(token, timestamp, nonce, signature string) bool {
	expected := Signature(token, timestamp, nonce)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// CheckMsgSignature 校验安全模式下的消息体签名（含密文）。
func CheckMsgSignature(token, timestamp, nonce, encrypt, msgSignature string) bool {
	expected := Signature(token, timestamp, nonce, encrypt)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(msgSignature)) == 1
}
