package request

// SendMessageRequest 发送消息请求
// 使用位置:
//   - internal/handler/message_handler.go: SendMessage
type SendMessageRequest struct {
	Content     string `json:"content" binding:"max=5000"`
	MessageType string `json:"messageType" binding:"omitempty,oneof=TEXT IMAGE FILE"`
	FileUrl     string `json:"fileUrl" binding:"omitempty,max=512"`
	FileName    string `json:"fileName" binding:"omitempty,max=255"`
	FileSize    int64  `json:"fileSize" binding:"omitempty,min=0"`
}

// WsSendMessageRequest websocket send_message 事件载荷
// 使用位置:
//   - internal/service/chat/server.go: handleSendMessage
type WsSendMessageRequest struct {
	ChatId string `json:"chatId"`
	SendMessageRequest
}
