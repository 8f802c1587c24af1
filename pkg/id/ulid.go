package id

import (
	"github.com/oklog/ulid/v2"
)

// GenerateULID 生成时间有序的唯一 ID。
//
// ULID (Universally Unique Lexicographically Sortable Identifier):
//   - 前 48 bit: 毫秒级时间戳 → 保证字典序按时间递增
//   - 后 80 bit: 加密随机数 → 保证分布式唯一性
//   - 编码为 26 字符 Crockford Base32 字符串
//
// MySQL B+ 树顺序写入无页分裂，回复记录按 id 排序即时间序。
// ulid.Make() 内部使用并发安全的全局熵池，高并发下可直接使用。
func GenerateULID() string {
	return ulid.Make().String()
}
