package middleware

import (
	"errors"
	"strings"

	"WxAIServer/consts"
	"WxAIServer/pkg/jwtauth"
	"WxAIServer/pkg/result"

	"github.com/gin-gonic/gin"
)

// GinKeyUsername gin context 中存放登录用户名的 key
const GinKeyUsername = "username"

// JWTAuth 管理后台鉴权中间件。
// 从 Authorization: Bearer xxx 中取 token，校验通过后把用户名写入 context。
func JWTAuth(jwtMgr *jwtauth.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			result.Fail(c, nil, consts.CodeUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			result.Fail(c, nil, consts.CodeInvalidToken)
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			if errors.Is(err, jwtauth.ErrTokenExpired) {
				result.Fail(c, nil, consts.CodeTokenExpired)
			} else {
				result.Fail(c, nil, consts.CodeInvalidToken)
			}
			c.Abort()
			return
		}

		c.Set(GinKeyUsername, claims.Username)
		c.Next()
	}
}

// GetUsername 从 gin context 中取出登录用户名
func GetUsername(c *gin.Context) (string, bool) {
	v, exists := c.Get(GinKeyUsername)
	if !exists {
		return "", false
	}
	username, ok := v.(string)
	return username, ok
}
