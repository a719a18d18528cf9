// Package https_server 提供 HTTP/HTTPS 服务器的初始化和配置
// 负责创建 Gin 引擎实例并配置中间件、静态资源和路由
package https_server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"csr_chat_server/internal/config"
	"csr_chat_server/internal/handler"
	"csr_chat_server/internal/infrastructure/logger"
	"csr_chat_server/internal/infrastructure/middleware"
	"csr_chat_server/internal/router"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewEngine 创建 Gin 引擎
// 配置顺序：日志与恢复、CORS、安全头、静态附件目录、业务路由
func NewEngine(conf *config.Config, handlers *handler.Handlers, tokens middleware.TokenParser) *gin.Engine {
	switch conf.Mode {
	case "release", "prod":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	}

	// 不使用 gin.Default() 以便完全控制中间件
	engine := gin.New()
	engine.Use(logger.GinLogger())
	engine.Use(logger.GinRecovery(true))

	corsConfig := cors.DefaultConfig()
	if conf.FrontendUrl == "" || conf.FrontendUrl == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(conf.FrontendUrl, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	engine.Use(cors.New(corsConfig))

	engine.Use(middleware.SecureHeaders(conf.SecurityConfig, conf.Mode))

	// 本地附件
	engine.Static(conf.UploadUrlPrefix, conf.UploadPath)

	rt := router.NewRouter(handlers, middleware.JWTAuth(tokens))
	rt.RegisterRoutes(engine, middleware.RateLimit(conf.RateLimitConfig))
	return engine
}

// NewServer 包装为带超时的 http.Server
// WriteTimeout 不作用于已升级的 websocket 连接
func NewServer(conf config.MainConfig, engine http.Handler) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       conf.ReadTimeout * time.Second,
		WriteTimeout:      conf.WriteTimeout * time.Second,
	}
}
