package request

// GetMessagesRequest 历史消息分页参数，非法值由 service 归一化
// 使用位置:
//   - internal/handler/message_handler.go: GetMessages
type GetMessagesRequest struct {
	Page    int `form:"page"`
	PerPage int `form:"perPage"`
}
