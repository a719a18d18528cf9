// Package handler 提供 HTTP 请求处理器
// 本文件定义 Handler 聚合结构和构造函数
package handler

import (
	"csr_chat_server/internal/infrastructure/middleware"
	"csr_chat_server/internal/service"

	"github.com/gin-gonic/gin"
)

// Handlers 聚合所有 Handler 实例，Router 层通过此结构访问各个 Handler
type Handlers struct {
	Chat    *ChatHandler
	Message *MessageHandler
	Group   *GroupHandler
	Ws      *WsHandler
	Health  *HealthHandler
}

// Options Handler 层的外部依赖
type Options struct {
	Services      *service.Services
	Notifier      service.Notifier
	Connector     WsConnector
	MaxUploadSize int64
}

// NewHandlers 创建并注入所有 Handler 实例
func NewHandlers(opts Options) *Handlers {
	svc := opts.Services
	return &Handlers{
		Chat:    NewChatHandler(svc.Directory),
		Message: NewMessageHandler(svc.Message, opts.Notifier, opts.MaxUploadSize),
		Group:   NewGroupHandler(svc.Membership, opts.Notifier),
		Ws:      NewWsHandler(opts.Connector),
		Health:  NewHealthHandler(),
	}
}

// currentUserId 由 JWTAuth 中间件写入
func currentUserId(c *gin.Context) string {
	return c.GetString(middleware.ContextUserIdKey)
}
