package request

// CreateChatRequest 创建会话请求，isGroup 区分单聊与群聊
// 使用位置:
//   - internal/handler/chat_handler.go: CreateChat
type CreateChatRequest struct {
	IsGroup bool `json:"isGroup"`
	// ParticipantId 单聊对方用户 ID
	ParticipantId string `json:"participantId" binding:"omitempty,uuid"`
	// ParticipantIds 群聊成员（不含创建者），单聊时取第一个作为对方
	ParticipantIds []string `json:"participantIds" binding:"omitempty,dive,uuid"`
	Name           string   `json:"name" binding:"omitempty,max=100"`
}

// DirectTarget 单聊的对方用户 ID
func (r *CreateChatRequest) DirectTarget() string {
	if r.ParticipantId != "" {
		return r.ParticipantId
	}
	if len(r.ParticipantIds) > 0 {
		return r.ParticipantIds[0]
	}
	return ""
}
