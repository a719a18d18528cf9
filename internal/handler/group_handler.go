// Package handler 提供 HTTP 请求处理器
// 本文件处理群成员相关的 API 请求
package handler

import (
	"csr_chat_server/internal/dto/request"
	"csr_chat_server/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// GroupHandler 群组请求处理器
type GroupHandler struct {
	membershipSvc service.MembershipService
	notifier      service.Notifier
}

// NewGroupHandler 创建群组处理器实例
func NewGroupHandler(membershipSvc service.MembershipService, notifier service.Notifier) *GroupHandler {
	return &GroupHandler{membershipSvc: membershipSvc, notifier: notifier}
}

// GetDetails 群详情
// GET /api/chats/:chatId/details
// 响应: respond.GroupDetailRespond
func (h *GroupHandler) GetDetails(c *gin.Context) {
	data, err := h.membershipSvc.GetGroupDetails(c.Request.Context(), c.Param("chatId"), currentUserId(c))
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// AddParticipant 添加群成员
// POST /api/chats/:chatId/participants
// 请求体: request.AddParticipantRequest
// 响应: 201 respond.ParticipantRespond
func (h *GroupHandler) AddParticipant(c *gin.Context) {
	var req request.AddParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	ctx := c.Request.Context()
	chatId := c.Param("chatId")
	data, err := h.membershipSvc.AddParticipant(ctx, chatId, currentUserId(c), req.UserId)
	if err != nil {
		HandleError(c, err)
		return
	}
	if err := h.notifier.NotifyGroupUpdated(ctx, chatId, service.ActionParticipantAdded, req.UserId); err != nil {
		zap.L().Error("推送群成员变更失败", zap.String("chat_id", chatId), zap.Error(err))
	}
	HandleCreated(c, data)
}

// RemoveParticipant 移除群成员
// DELETE /api/chats/:chatId/participants/:userId
func (h *GroupHandler) RemoveParticipant(c *gin.Context) {
	ctx := c.Request.Context()
	chatId := c.Param("chatId")
	targetId := c.Param("userId")
	if err := h.membershipSvc.RemoveParticipant(ctx, chatId, currentUserId(c), targetId); err != nil {
		HandleError(c, err)
		return
	}
	if err := h.notifier.NotifyGroupUpdated(ctx, chatId, service.ActionParticipantRemoved, targetId); err != nil {
		zap.L().Error("推送群成员变更失败", zap.String("chat_id", chatId), zap.Error(err))
	}
	HandleMessage(c, "Participant removed")
}
