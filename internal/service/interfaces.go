// Package service 定义业务层接口
// 本文件定义所有 Service 接口，供 Handler 层与实时推送层调用
package service

import (
	"context"
	"mime/multipart"

	"csr_chat_server/internal/dto/respond"
	"csr_chat_server/internal/model"
	"csr_chat_server/internal/service/message"
)

// DirectoryService 会话目录业务接口
type DirectoryService interface {
	// ListChatsForUser 用户的会话列表，按最近活跃时间倒序
	ListChatsForUser(ctx context.Context, userId string) ([]respond.ChatListItemRespond, error)
	// FindOrCreateDirectChat 查找或创建单聊
	FindOrCreateDirectChat(ctx context.Context, userId, otherUserId string) (*respond.DirectChatRespond, error)
	// CreateGroupChat 创建群聊
	CreateGroupChat(ctx context.Context, creatorId, name string, participantIds []string) (*respond.GroupChatRespond, error)
	// ListAvailableUsers 可发起会话的用户目录
	ListAvailableUsers(ctx context.Context, userId string) ([]respond.UserBriefRespond, error)
}

// MembershipService 成员权限业务接口
type MembershipService interface {
	// AssertParticipant 非成员返回 Access denied
	AssertParticipant(ctx context.Context, chatId, userId string) (*model.ChatParticipant, error)
	// AddParticipant 群管理员添加成员
	AddParticipant(ctx context.Context, chatId, requesterId, newUserId string) (*respond.ParticipantRespond, error)
	// RemoveParticipant 群管理员移除成员
	RemoveParticipant(ctx context.Context, chatId, requesterId, targetUserId string) error
	// GetGroupDetails 群详情
	GetGroupDetails(ctx context.Context, chatId, userId string) (*respond.GroupDetailRespond, error)
	// ParticipantUserIds 当前全部成员 ID
	ParticipantUserIds(ctx context.Context, chatId string) ([]string, error)
}

// MessageService 消息业务接口
type MessageService interface {
	// GetMessages 分页历史消息
	GetMessages(ctx context.Context, chatId, userId string, page, perPage int) (*respond.MessagePageRespond, error)
	// SendMessage 发送消息，REST 与 websocket 共用
	SendMessage(ctx context.Context, in message.SendMessageInput) (*respond.MessageRespond, error)
	// MarkChatAsRead 未读清零
	MarkChatAsRead(ctx context.Context, chatId, userId string) error
	// UploadAttachment 上传附件
	UploadAttachment(ctx context.Context, chatId, userId string, fileHeader *multipart.FileHeader) (*respond.UploadRespond, error)
}

// Notifier 实时推送接口，由 chat.Server 实现
type Notifier interface {
	// NotifyNewMessage 向会话全部成员推送 new_message
	NotifyNewMessage(ctx context.Context, msg *respond.MessageRespond) error
	// NotifyGroupUpdated 向其余成员推送 participant_xxx，向当事人推送 xxx_group
	NotifyGroupUpdated(ctx context.Context, chatId, action, targetUserId string) error
}

// 群成员变更动作
const (
	ActionParticipantAdded   = "participant_added"
	ActionParticipantRemoved = "participant_removed"
)
