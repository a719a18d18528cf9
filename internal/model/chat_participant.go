package model

import "time"

// ChatParticipant 会话成员关联表
// (chat_id, user_id) 联合唯一；退群为物理删除，以便之后可以重新加入
type ChatParticipant struct {
	ID          uint      `gorm:"column:id;primaryKey;autoIncrement"`
	ChatId      string    `gorm:"column:chat_id;type:char(36);not null;uniqueIndex:idx_chat_user,priority:1;comment:会话id"`
	UserId      string    `gorm:"column:user_id;type:char(36);not null;uniqueIndex:idx_chat_user,priority:2;index;comment:用户id"`
	Role        string    `gorm:"column:role;type:varchar(16);not null;default:MEMBER;comment:ADMIN/MEMBER"`
	UnreadCount int       `gorm:"column:unread_count;not null;default:0;comment:未读数"`
	JoinedAt    time.Time `gorm:"column:joined_at;not null;comment:加入时间"`
}

func (ChatParticipant) TableName() string {
	return "chat_participant"
}
