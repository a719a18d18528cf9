// Package handler 提供 HTTP 请求处理器
// 本文件处理消息相关的 API 请求
package handler

import (
	"errors"
	"net/http"
	"strings"

	"csr_chat_server/internal/dto/request"
	"csr_chat_server/internal/service"
	"csr_chat_server/internal/service/message"
	"csr_chat_server/pkg/constants"
	"csr_chat_server/pkg/errorx"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MessageHandler 消息请求处理器
type MessageHandler struct {
	messageSvc    service.MessageService
	notifier      service.Notifier
	maxUploadSize int64
}

// NewMessageHandler 创建消息处理器实例
// maxUploadSize: 附件上限（字节），请求体额外留出 1MB 给 multipart 头
func NewMessageHandler(messageSvc service.MessageService, notifier service.Notifier, maxUploadSize int64) *MessageHandler {
	return &MessageHandler{messageSvc: messageSvc, notifier: notifier, maxUploadSize: maxUploadSize}
}

// GetMessages 历史消息分页
// GET /api/chats/:chatId/messages?page=1&perPage=50
// 响应: respond.MessagePageRespond
func (h *MessageHandler) GetMessages(c *gin.Context) {
	var req request.GetMessagesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	data, err := h.messageSvc.GetMessages(c.Request.Context(), c.Param("chatId"), currentUserId(c), req.Page, req.PerPage)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleSuccess(c, data)
}

// SendMessage 发送消息，成功后推送 new_message
// POST /api/chats/:chatId/messages
// 请求体: request.SendMessageRequest
// 响应: 201 respond.MessageRespond
func (h *MessageHandler) SendMessage(c *gin.Context) {
	var req request.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		HandleParamError(c, err)
		return
	}
	ctx := c.Request.Context()
	data, err := h.messageSvc.SendMessage(ctx, message.SendMessageInput{
		ChatId:      c.Param("chatId"),
		SenderId:    currentUserId(c),
		Content:     req.Content,
		MessageType: req.MessageType,
		FileUrl:     req.FileUrl,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
	})
	if err != nil {
		HandleError(c, err)
		return
	}
	// 消息已落库，推送失败只记录日志
	if err := h.notifier.NotifyNewMessage(ctx, data); err != nil {
		zap.L().Error("推送新消息失败", zap.String("chat_id", data.ChatId), zap.Error(err))
	}
	HandleCreated(c, data)
}

// Upload 上传附件
// POST /api/chats/:chatId/upload (multipart, 字段名 file)
// 响应: 201 respond.UploadRespond
func (h *MessageHandler) Upload(c *gin.Context) {
	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+constants.MB)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxBytesErr), strings.Contains(err.Error(), "request body too large"):
			HandleError(c, errorx.New(errorx.CodeFileTooLarge, "file too large"))
		case errors.Is(err, http.ErrMissingFile):
			HandleError(c, errorx.New(errorx.CodeInvalidParam, "No file uploaded"))
		default:
			HandleParamError(c, err)
		}
		return
	}
	data, err := h.messageSvc.UploadAttachment(c.Request.Context(), c.Param("chatId"), currentUserId(c), fileHeader)
	if err != nil {
		HandleError(c, err)
		return
	}
	HandleCreated(c, data)
}

// MarkRead 未读清零
// PUT /api/chats/:chatId/read
func (h *MessageHandler) MarkRead(c *gin.Context) {
	if err := h.messageSvc.MarkChatAsRead(c.Request.Context(), c.Param("chatId"), currentUserId(c)); err != nil {
		HandleError(c, err)
		return
	}
	HandleMessage(c, "Chat marked as read")
}
