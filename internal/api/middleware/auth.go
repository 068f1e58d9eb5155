package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/d60-Lab/tastegraph/pkg/auth"
	"github.com/d60-Lab/tastegraph/pkg/response"
)

const callerKey = "caller_id"

// Auth 要求合法 bearer token，校验通过后把 user id 写入上下文
func Auth(v auth.TokenVerifier) gin.HandlerFunc {
	return authenticate(v, true)
}

// OptionalAuth 无 Authorization 头时以匿名身份放行；带了但无效的 token 仍然拒绝
func OptionalAuth(v auth.TokenVerifier) gin.HandlerFunc {
	return authenticate(v, false)
}

func authenticate(v auth.TokenVerifier, required bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			if required {
				response.Unauthorized(c, "authorization header is required")
				return
			}
			c.Next()
			return
		}

		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			response.Unauthorized(c, "invalid authorization header")
			return
		}
		userID, err := v.Verify(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			response.Unauthorized(c, "invalid token")
			return
		}
		c.Set(callerKey, userID)
		c.Next()
	}
}

// CallerID 当前请求的调用者，匿名时为空
func CallerID(c *gin.Context) string {
	return c.GetString(callerKey)
}
