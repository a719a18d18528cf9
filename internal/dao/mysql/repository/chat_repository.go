package repository

import (
	"context"
	"time"

	"csr_chat_server/internal/model"

	"gorm.io/gorm"
)

// chatRepository ChatRepository 接口的实现
type chatRepository struct {
	db *gorm.DB
}

// NewChatRepository 创建 ChatRepository 实例
func NewChatRepository(db *gorm.DB) ChatRepository {
	return &chatRepository{db: db}
}

// FindByUuid 根据 UUID 查找会话
func (r *chatRepository) FindByUuid(ctx context.Context, uuid string) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).First(&chat, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话 uuid=%s", uuid)
	}
	return &chat, nil
}

// FindByDirectKey 根据单聊唯一键查找
func (r *chatRepository) FindByDirectKey(ctx context.Context, directKey string) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.WithContext(ctx).First(&chat, "direct_key = ?", directKey).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询单聊 direct_key=%s", directKey)
	}
	return &chat, nil
}

// FindByUuids 批量查找会话，按最近活跃时间倒序
func (r *chatRepository) FindByUuids(ctx context.Context, uuids []string) ([]model.Chat, error) {
	var chats []model.Chat
	if len(uuids) == 0 {
		return chats, nil
	}
	if err := r.db.WithContext(ctx).
		Where("uuid IN ?", uuids).
		Order("last_activity_at DESC").
		Order("uuid ASC").
		Find(&chats).Error; err != nil {
		return nil, wrapDBError(err, "批量查询会话")
	}
	return chats, nil
}

// Create 创建会话
func (r *chatRepository) Create(ctx context.Context, chat *model.Chat) error {
	if err := r.db.WithContext(ctx).Create(chat).Error; err != nil {
		return wrapDBErrorf(err, "创建会话 uuid=%s", chat.Uuid)
	}
	return nil
}

// TouchActivity 条件更新保证活跃时间只前进不回退
func (r *chatRepository) TouchActivity(ctx context.Context, uuid string, at time.Time) error {
	if err := r.db.WithContext(ctx).Model(&model.Chat{}).
		Where("uuid = ? AND last_activity_at < ?", uuid, at).
		Update("last_activity_at", at).Error; err != nil {
		return wrapDBErrorf(err, "更新会话活跃时间 uuid=%s", uuid)
	}
	return nil
}
