// Package handler 提供 HTTP 请求处理器
// 本文件处理 WebSocket 接入与健康检查
package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// WsConnector 接入 WebSocket 连接，由 chat.Server 实现
type WsConnector interface {
	Connect(w http.ResponseWriter, r *http.Request)
}

// WsHandler WebSocket 处理器
type WsHandler struct {
	connector WsConnector
}

// NewWsHandler 创建 WebSocket 处理器实例
func NewWsHandler(connector WsConnector) *WsHandler {
	return &WsHandler{connector: connector}
}

// Connect 升级为 WebSocket
// GET /ws?token=xxx 或 Authorization: Bearer xxx
// 认证在升级后进行，失败时以 1008 关闭
func (h *WsHandler) Connect(c *gin.Context) {
	h.connector.Connect(c.Writer, c.Request)
}

// HealthHandler 健康检查
type HealthHandler struct {
	now func() time.Time
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{now: time.Now}
}

// Health GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"message":   "Server is running",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}
