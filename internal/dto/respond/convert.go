package respond

import (
	"strconv"

	"csr_chat_server/internal/model"
)

// NewUserBrief 由用户模型构造公开资料
func NewUserBrief(u model.UserInfo) UserBriefRespond {
	return UserBriefRespond{Id: u.Uuid, Name: u.Name, Email: u.Email, Role: u.Role}
}

// NewParticipant 合并用户资料与成员关系
func NewParticipant(u model.UserInfo, p model.ChatParticipant) ParticipantRespond {
	return ParticipantRespond{
		Id:              u.Uuid,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		ParticipantRole: p.Role,
		JoinedAt:        p.JoinedAt,
	}
}

// NewMessage 由消息模型与发送者构造消息响应
func NewMessage(m model.Message, sender model.UserInfo) MessageRespond {
	return MessageRespond{
		Id:          strconv.FormatInt(m.Id, 10),
		ChatId:      m.ChatId,
		SenderId:    m.SenderId,
		Sender:      SenderRespond{Id: m.SenderId, Name: sender.Name},
		Content:     m.Content,
		MessageType: m.MessageType,
		FileUrl:     m.FileUrl,
		FileName:    m.FileName,
		FileSize:    m.FileSize,
		CreatedAt:   m.CreatedAt,
	}
}
