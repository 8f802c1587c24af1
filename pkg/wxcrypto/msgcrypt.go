package wxcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
)

// 安全模式消息加解密相关错误。
var (
	// ErrInvalidAESKey EncodingAESKey 非法（长度必须为 43）
	ErrInvalidAESKey = errors.New("wxcrypto: invalid encoding aes key")
	// ErrInvalidCiphertext 密文格式非法
	ErrInvalidCiphertext = errors.New("wxcrypto: invalid ciphertext")
	// ErrAppIdMismatch 明文尾部 appId 与当前公众号不一致
	ErrAppIdMismatch = errors.New("wxcrypto: appid mismatch")
	// ErrInvalidPadding PKCS7 填充非法
	ErrInvalidPadding = errors.New("wxcrypto: invalid pkcs7 padding")
)

// padBlockSize 官方方案按 32 字节分组做 PKCS7 填充（不是 AES 的 16）
const padBlockSize = 32

// MsgCrypt 公众号安全模式消息加解密器。
// 明文结构：16 字节随机串 + 4 字节网络序长度 + 消息体 + appId。
type MsgCrypt struct {
	appId  string
	aesKey []byte // 32 字节，EncodingAESKey + "=" 的 base64 解码结果
}

// NewMsgCrypt 创建加解密器。encodingAESKey 为公众号后台配置的 43 字符密钥。
func NewMsgCrypt(appId, encodingAESKey string) (*MsgCrypt, error) {
	if len(encodingAESKey) != 43 {
		return nil, ErrInvalidAESKey
	}
	key, err := base64.StdEncoding.DecodeString(encodingAESKey + "=")
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidAESKey
	}
	return &MsgCrypt{appId: appId, aesKey: key}, nil
}

// Decrypt 解密微信推送的密文，返回内部的明文 XML。
func (m *MsgCrypt) Decrypt(encrypt string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encrypt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	if len(ciphertext) < aes.BlockSize || len(ciphertext)%aes.BlockSize != 0 {
		return nil, ErrInvalidCiphertext
	}

	block, err := aes.NewCipher(m.aesKey)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	// 微信约定 IV 为 aesKey 前 16 字节
	cipher.NewCBCDecrypter(block, m.aesKey[:aes.BlockSize]).CryptBlocks(plain, ciphertext)

	plain, err = pkcs7Unpad(plain)
	if err != nil {
		return nil, err
	}
	if len(plain) < 20 {
		return nil, ErrInvalidCiphertext
	}

	// 跳过 16 字节随机串，读 4 字节长度
	msgLen := binary.BigEndian.Uint32(plain[16:20])
	if int(20+msgLen) > len(plain) {
		return nil, ErrInvalidCiphertext
	}
	msg := plain[20 : 20+msgLen]
	appId := string(plain[20+msgLen:])
	if appId != m.appId {
		return nil, ErrAppIdMismatch
	}
	return msg, nil
}

// Encrypt 加密待回复的明文 XML，返回 base64 密文。
func (m *MsgCrypt) Encrypt(msg []byte) (string, error) {
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", err
	}

	buf := make([]byte, 0, 20+len(msg)+len(m.appId))
	buf = append(buf, random...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(msg)))
	buf = append(buf, msg...)
	buf = append(buf, m.appId...)
	buf = pkcs7Pad(buf, padBlockSize)

	block, err := aes.NewCipher(m.aesKey)
	if err != nil {
		return "", err
	}
	ciphertext := make([]byte, len(buf))
	cipher.NewCBCEncrypter(block, m.aesKey[:aes.BlockSize]).CryptBlocks(ciphertext, buf)

	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	for i := 0; i < padding; i++ {
		data = append(data, byte(padding))
	}
	return data
}

func pkcs7Unpad(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, ErrInvalidPadding
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > padBlockSize || padding > len(data) {
		return nil, ErrInvalidPadding
	}
	return data[:len(data)-padding], nil
}
