package middleware

import (
	"csr_chat_server/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SecureHeaders 安全响应头，开启 sslRedirect 时同时把 HTTP 重定向到 HTTPS
// 开发模式下 secure 不做重定向与 HSTS
func SecureHeaders(conf config.SecurityConfig, mode string) gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		SSLRedirect:          conf.SSLRedirect,
		SSLHost:              conf.SSLHost,
		SSLProxyHeaders:      map[string]string{"X-Forwarded-Proto": "https"},
		FrameDeny:            true,
		ContentTypeNosniff:   true,
		BrowserXssFilter:     true,
		ReferrerPolicy:       "strict-origin-when-cross-origin",
		STSSeconds:           31536000,
		STSIncludeSubdomains: true,
		IsDevelopment:        mode == "debug" || mode == "dev",
	})

	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			// 重定向时 secure 已写入 3xx 响应
			zap.L().Info("secure middleware aborted request", zap.String("path", c.Request.URL.Path), zap.Error(err))
			c.Abort()
			return
		}
		c.Next()
	}
}
