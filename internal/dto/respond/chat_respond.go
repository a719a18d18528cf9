package respond

import "time"

// LastMessageRespond 会话列表中的最新消息摘要
type LastMessageRespond struct {
	Id          string    `json:"id"`
	Content     *string   `json:"content"`
	MessageType string    `json:"messageType"`
	SenderId    string    `json:"senderId"`
	SenderName  string    `json:"senderName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ChatListItemRespond 会话列表项
// 使用位置:
//   - internal/service/directory/service.go: ListChatsForUser
type ChatListItemRespond struct {
	Id      string  `json:"id"`
	IsGroup bool    `json:"isGroup"`
	Name    *string `json:"name"`
	// Participants 除自己以外的成员
	Participants []UserBriefRespond `json:"participants"`
	// OtherUser 单聊对方，群聊为 null
	OtherUser   *UserBriefRespond   `json:"otherUser"`
	LastMessage *LastMessageRespond `json:"lastMessage"`
	UnreadCount int                 `json:"unreadCount"`
	UpdatedAt   time.Time           `json:"updatedAt"`
}

// DirectChatRespond 查找或创建单聊的结果
type DirectChatRespond struct {
	Id        string           `json:"id"`
	IsGroup   bool             `json:"isGroup"`
	OtherUser UserBriefRespond `json:"otherUser"`
	IsNew     bool             `json:"isNew"`
}

// GroupChatRespond 创建群聊的结果
type GroupChatRespond struct {
	Id           string               `json:"id"`
	IsGroup      bool                 `json:"isGroup"`
	Name         string               `json:"name"`
	Participants []ParticipantRespond `json:"participants"`
	IsNew        bool                 `json:"isNew"`
}

// GroupDetailRespond 群详情
type GroupDetailRespond struct {
	Id           string               `json:"id"`
	Name         string               `json:"name"`
	CreatedById  string               `json:"createdById"`
	Participants []ParticipantRespond `json:"participants"`
}
