package middleware

import (
	"strings"

	"csr_chat_server/pkg/errorx"
	myjwt "csr_chat_server/pkg/util/jwt"

	"github.com/gin-gonic/gin"
)

// ContextUserIdKey 上下文中的当前用户 ID
const ContextUserIdKey = "user_id"

var (
	errTokenRequired = errorx.New(errorx.CodeUnauthorized, "Access token required")
	errTokenInvalid  = errorx.New(errorx.CodeUnauthorized, "Invalid or expired token")
)

// abortWithError 中断请求并按业务码写出与 handler 一致的错误响应
func abortWithError(c *gin.Context, err *errorx.CodeError) {
	c.AbortWithStatusJSON(errorx.HTTPStatus(err.Code), gin.H{
		"success": false,
		"message": err.Msg,
	})
}

// TokenParser 访问令牌校验
type TokenParser interface {
	ParseToken(tokenString string) (*myjwt.Claims, error)
}

// JWTAuth JWT 认证中间件
// 验证 Access Token 并将用户信息存入上下文
func JWTAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			abortWithError(c, errTokenRequired)
			return
		}

		claims, err := tokens.ParseToken(strings.TrimSpace(parts[1]))
		if err != nil || claims.UserID == "" {
			abortWithError(c, errTokenInvalid)
			return
		}

		c.Set(ContextUserIdKey, claims.UserID)
		c.Next()
	}
}
