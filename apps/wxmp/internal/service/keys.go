package service

import (
	"crypto/md5"
	"encoding/hex"

	"WxAIServer/consts"
)

// contentDigest 消息内容摘要。只用于区分同一发送方的不同消息体，
// 要求分布均匀即可，不要求抗碰撞攻击，md5 足够且 key 长度可控。
func contentDigest(message string) string {
	sum := md5.Sum([]byte(message))
	return hex.EncodeToString(sum[:])
}

// replyLockKey 消息回复互斥锁 key：appId:fromUser:md5(消息)。
// 同一用户短时间重复发送同一条消息只会有一个请求进入编排流程。
func replyLockKey(appId, fromUser, message string) string {
	return consts.MessageReplyLockPrefix + appId + ":" + fromUser + ":" + contentDigest(message)
}

// replyCacheKey 回复缓存 key：与锁 key 同摘要，内容寻址。
func replyCacheKey(appId, fromUser, message string) string {
	return consts.ReplyCacheKeyPrefix + appId + ":" + fromUser + ":" + contentDigest(message)
}

// rateLimitKey 限流 key：按 (appId, fromUser) 计数，额度是用户级而非消息级。
func rateLimitKey(appId, fromUser string) string {
	return consts.RateLimitKeyPrefix + appId + ":" + fromUser
}
