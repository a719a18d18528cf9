package model

import (
	"time"

	"csr_chat_server/pkg/enum/chat/chat_type_enum"
)

// Chat 会话，单聊或群聊
// 对应数据库 chat 表
type Chat struct {
	Uuid    string  `gorm:"column:uuid;primaryKey;type:char(36);comment:会话id"`
	Type    string  `gorm:"column:type;type:varchar(16);not null;comment:ONE_ON_ONE/GROUP"`
	IsGroup bool    `gorm:"column:is_group;not null;default:false;comment:是否群聊"`
	Name    *string `gorm:"column:name;type:varchar(100);comment:群名，单聊为空"`

	// DirectKey 单聊双方用户 id 排序后以 "_" 拼接，群聊为 NULL
	// 唯一索引保证同一对用户之间只会存在一个单聊
	DirectKey *string `gorm:"column:direct_key;type:varchar(80);uniqueIndex;comment:单聊唯一键"`

	CreatedById string `gorm:"column:created_by_id;type:char(36);not null;comment:创建者"`

	// LastActivityAt 最近一条消息的时间，只向前推进，用于会话列表排序
	LastActivityAt time.Time `gorm:"column:last_activity_at;not null;index;comment:最近活跃时间"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (Chat) TableName() string {
	return "chat"
}

// IsGroupChat 以类型字段为准判断是否为群聊
func (c *Chat) IsGroupChat() bool {
	return chat_type_enum.IsGroup(c.Type)
}

// DirectKeyOf 计算两名用户之间单聊的唯一键，与参数顺序无关
func DirectKeyOf(userA, userB string) string {
	if userA > userB {
		userA, userB = userB, userA
	}
	return userA + "_" + userB
}
