package request

// AddParticipantRequest 添加群成员请求
// 使用位置:
//   - internal/handler/group_handler.go: AddParticipant
type AddParticipantRequest struct {
	UserId string `json:"userId" binding:"required,uuid"`
}
