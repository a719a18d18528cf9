// Package repository 定义数据访问层接口和聚合结构
// 采用 Repository 模式将数据访问逻辑与业务逻辑分离
// 所有 Repository 接口在此文件定义，具体实现在各自的文件中
package repository

import (
	"context"
	"time"

	"csr_chat_server/internal/model"

	"gorm.io/gorm"
)

// UserRepository 用户数据访问接口，聊天模块只读
type UserRepository interface {
	// FindByUuid 根据 UUID 查找用户（不论是否启用）
	FindByUuid(ctx context.Context, uuid string) (*model.UserInfo, error)
	// FindActiveByUuid 查找启用中的用户，停用视为不存在
	FindActiveByUuid(ctx context.Context, uuid string) (*model.UserInfo, error)
	// FindActiveByUuids 批量查找启用中的用户
	FindActiveByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error)
	// FindByUuids 批量查找用户资料，用于拼装发送者与成员信息
	FindByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error)
	// FindAllActive 查找所有启用中的用户，按姓名升序
	FindAllActive(ctx context.Context) ([]model.UserInfo, error)
	// FindByEmail 根据邮箱查找用户
	FindByEmail(ctx context.Context, email string) (*model.UserInfo, error)
	// Create 创建用户（种子数据）
	Create(ctx context.Context, user *model.UserInfo) error
}

// ChatRepository 会话数据访问接口
type ChatRepository interface {
	// FindByUuid 根据 UUID 查找会话
	FindByUuid(ctx context.Context, uuid string) (*model.Chat, error)
	// FindByDirectKey 根据单聊唯一键查找
	FindByDirectKey(ctx context.Context, directKey string) (*model.Chat, error)
	// FindByUuids 批量查找会话，按最近活跃时间倒序
	FindByUuids(ctx context.Context, uuids []string) ([]model.Chat, error)
	// Create 创建会话，单聊唯一键冲突时返回 CodeConflict
	Create(ctx context.Context, chat *model.Chat) error
	// TouchActivity 将最近活跃时间推进到 at，已更新则不回退
	TouchActivity(ctx context.Context, uuid string, at time.Time) error
}

// ParticipantRepository 会话成员数据访问接口
type ParticipantRepository interface {
	// FindByChatAndUser 查找成员关系，不存在返回 CodeNotFound
	FindByChatAndUser(ctx context.Context, chatId, userId string) (*model.ChatParticipant, error)
	// FindByChatId 查找会话全部成员，按加入时间升序
	FindByChatId(ctx context.Context, chatId string) ([]model.ChatParticipant, error)
	// FindByChatIds 批量查找多个会话的成员
	FindByChatIds(ctx context.Context, chatIds []string) ([]model.ChatParticipant, error)
	// FindByUserId 查找用户加入的全部成员记录
	FindByUserId(ctx context.Context, userId string) ([]model.ChatParticipant, error)
	// Create 添加成员，重复加入返回 CodeConflict
	Create(ctx context.Context, participant *model.ChatParticipant) error
	// CreateBatch 批量添加成员
	CreateBatch(ctx context.Context, participants []model.ChatParticipant) error
	// Delete 删除成员，成员不存在返回 CodeNotFound
	Delete(ctx context.Context, chatId, userId string) error
	// IncrementUnreadExcept 除发送者外所有成员未读数 +1
	IncrementUnreadExcept(ctx context.Context, chatId, senderId string) error
	// ResetUnread 将成员未读数清零
	ResetUnread(ctx context.Context, chatId, userId string) error
}

// MessageRepository 消息数据访问接口
type MessageRepository interface {
	// Create 写入消息
	Create(ctx context.Context, message *model.Message) error
	// CountByChatId 统计会话消息总数
	CountByChatId(ctx context.Context, chatId string) (int64, error)
	// FindPageByChatId 按时间倒序分页读取
	FindPageByChatId(ctx context.Context, chatId string, offset, limit int) ([]model.Message, error)
	// FindLatestByChatIds 每个会话取最新一条消息
	FindLatestByChatIds(ctx context.Context, chatIds []string) ([]model.Message, error)
}

// TxFunc 在事务中执行 fn 的函数，fn 收到事务内的 Repositories
type TxFunc func(ctx context.Context, fn func(txRepos *Repositories) error) error

// Repositories 聚合所有 Repository 实例
// 作为依赖注入的入口，Service 层通过此结构访问数据层
type Repositories struct {
	User        UserRepository
	Chat        ChatRepository
	Participant ParticipantRepository
	Message     MessageRepository

	tx TxFunc
}

// NewRepositories 基于 GORM 实例创建所有 Repository
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Chat:        NewChatRepository(db),
		Participant: NewParticipantRepository(db),
		Message:     NewMessageRepository(db),
		tx: func(ctx context.Context, fn func(txRepos *Repositories) error) error {
			return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
				return fn(NewRepositories(tx))
			})
		},
	}
}

// Compose 由任意实现组装 Repositories，供内存实现与测试使用
func Compose(user UserRepository, chat ChatRepository, participant ParticipantRepository, message MessageRepository, tx TxFunc) *Repositories {
	return &Repositories{
		User:        user,
		Chat:        chat,
		Participant: participant,
		Message:     message,
		tx:          tx,
	}
}

// Transaction 在数据库事务中执行函数
// 事务内的所有操作要么全部成功，要么全部回滚
func (r *Repositories) Transaction(ctx context.Context, fn func(txRepos *Repositories) error) error {
	return r.tx(ctx, fn)
}
