package model

import "time"

// Message 聊天消息，创建后不可修改
// 对应数据库 message 表
type Message struct {
	// Id 雪花 ID，同一节点内随创建顺序递增，作为同一时间戳下的排序依据
	Id int64 `gorm:"column:id;primaryKey;autoIncrement:false;comment:消息id"`

	ChatId   string `gorm:"column:chat_id;type:char(36);not null;index:idx_chat_created,priority:1;comment:会话id"`
	SenderId string `gorm:"column:sender_id;type:char(36);not null;index;comment:发送者id"`

	// Content 文本内容，纯附件消息为空
	Content *string `gorm:"column:content;type:text;comment:消息内容"`

	// MessageType TEXT / IMAGE / FILE
	MessageType string `gorm:"column:message_type;type:varchar(16);not null;default:TEXT;comment:消息类型"`

	FileUrl  *string `gorm:"column:file_url;type:varchar(512);comment:附件地址"`
	FileName *string `gorm:"column:file_name;type:varchar(255);comment:附件原始文件名"`
	FileSize *int64  `gorm:"column:file_size;comment:附件大小（字节）"`

	CreatedAt time.Time `gorm:"column:created_at;not null;index:idx_chat_created,priority:2"`
}

func (Message) TableName() string {
	return "message"
}
