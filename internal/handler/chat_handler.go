// Package handler 提供 HTTP 请求处理器
// 本文件处理会话目录相关的 API 请求
package handler

import (
	"csr_chat_server/internal/dto/request"
	"csr_chat_server/internal/service"
	"csr_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
)

// ChatHandler 会话请求处理器
type ChatHandler struct {
	directorySvc service.DirectoryService
}

// NewChatHandler 创建会话处理器实例
func NewChatHandler(directorySvc service.DirectoryService) *ChatHandler {
	return &ChatHandler{directorySvc: directorySvc}
}

// ListChats 当前用户的会话列表
// GET /api/chats
// 响应: []respond.ChatListItemRespond
func (h *ChatHandler) ListChats(c *gin.Context) {
	data, err := h.directorySvc.ListChatsForUser(c.Request.Context(), currentUserId(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// CreateChat 创建会话
// POST /api/chats
// 请求体: request.CreateChatRequest
// 响应: 群聊与新建单聊 201，已存在的单聊 200
func (h *ChatHandler) CreateChat(c *gin.Context) {
	var req request.CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	userId := currentUserId(c)

	if req.IsGroup {
		data, err := h.directorySvc.CreateGroupChat(c.Request.Context(), userId, req.Name, req.ParticipantIds)
		if err != nil {
			HandleError(c, err)
			return
		}
		HandleCreated(c, data)
		return
	}

	target := req.DirectTarget()
	if target == "" {
		HandleError(c, errorx.New(errorx.CodeInvalidParam, "participantId is required"))
		return
	}
	data, err := h.directorySvc.FindOrCreateDirectChat(c.Request.Context(), userId, target)
	if err != nil {
		HandleError(c, err)
		return
	}
	if data.IsNew {
		HandleCreated(c, data)
		return
	}
	HandleSuccess(c, data)
}

// ListAvailableUsers 可发起会话的用户
// GET /api/chats/users/list
// 响应: []respond.UserBriefRespond
func (h *ChatHandler) ListAvailableUsers(c *gin.Context) {
	data, err := h.directorySvc.ListAvailableUsers(c.Request.Context(), currentUserId(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}
