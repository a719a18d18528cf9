// Package router 提供 HTTP 路由注册
// 本文件是路由注册的入口，聚合所有子模块的路由
package router

import (
	"csr_chat_server/internal/handler"

	"github.com/gin-gonic/gin"
)

// Router 路由管理器
type Router struct {
	handlers *handler.Handlers
	auth     gin.HandlerFunc
}

// NewRouter 创建路由管理器
// auth: JWT 认证中间件，除健康检查与 /ws 外的 /api 路由都需要
func NewRouter(handlers *handler.Handlers, auth gin.HandlerFunc) *Router {
	return &Router{handlers: handlers, auth: auth}
}

// RegisterRoutes 注册所有路由
// api 上挂载的中间件（如限流）由调用方传入
func (rt *Router) RegisterRoutes(engine *gin.Engine, apiMiddlewares ...gin.HandlerFunc) {
	api := engine.Group("/api", apiMiddlewares...)
	api.GET("/health", rt.handlers.Health.Health)

	authed := api.Group("", rt.auth)
	rt.RegisterChatRoutes(authed)

	// websocket 在升级后自行认证
	engine.GET("/ws", rt.handlers.Ws.Connect)
}

// RegisterChatRoutes 注册会话、消息与群成员路由
func (rt *Router) RegisterChatRoutes(rg *gin.RouterGroup) {
	chats := rg.Group("/chats")
	{
		chats.GET("", rt.handlers.Chat.ListChats)                     // 会话列表
		chats.POST("", rt.handlers.Chat.CreateChat)                   // 创建单聊或群聊
		chats.GET("/users/list", rt.handlers.Chat.ListAvailableUsers) // 用户目录，需先于 /:chatId 注册

		chats.GET("/:chatId/messages", rt.handlers.Message.GetMessages)  // 历史消息
		chats.POST("/:chatId/messages", rt.handlers.Message.SendMessage) // 发送消息
		chats.POST("/:chatId/upload", rt.handlers.Message.Upload)        // 上传附件
		chats.PUT("/:chatId/read", rt.handlers.Message.MarkRead)         // 标记已读

		chats.GET("/:chatId/details", rt.handlers.Group.GetDetails)                         // 群详情
		chats.POST("/:chatId/participants", rt.handlers.Group.AddParticipant)               // 添加成员
		chats.DELETE("/:chatId/participants/:userId", rt.handlers.Group.RemoveParticipant) // 移除成员
	}
}
