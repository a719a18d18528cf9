package repository

import (
	"context"

	"csr_chat_server/internal/model"

	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息 Repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// Create 写入消息
func (r *messageRepository) Create(ctx context.Context, message *model.Message) error {
	if err := r.db.WithContext(ctx).Create(message).Error; err != nil {
		return wrapDBErrorf(err, "写入消息 chat_id=%s", message.ChatId)
	}
	return nil
}

// CountByChatId 统计会话消息总数
func (r *messageRepository) CountByChatId(ctx context.Context, chatId string) (int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Message{}).Where("chat_id = ?", chatId).Count(&total).Error; err != nil {
		return 0, wrapDBErrorf(err, "统计消息 chat_id=%s", chatId)
	}
	return total, nil
}

// FindPageByChatId 按创建时间倒序分页，同一时间戳以雪花 ID 倒序
func (r *messageRepository) FindPageByChatId(ctx context.Context, chatId string, offset, limit int) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatId).
		Order("created_at DESC").Order("id DESC").
		Offset(offset).Limit(limit).
		Find(&messages).Error; err != nil {
		return nil, wrapDBErrorf(err, "分页查询消息 chat_id=%s", chatId)
	}
	return messages, nil
}

// FindLatestByChatIds 每个会话取最新一条消息
// 雪花 ID 随时间递增，取每组最大 ID 即为最新消息
func (r *messageRepository) FindLatestByChatIds(ctx context.Context, chatIds []string) ([]model.Message, error) {
	var messages []model.Message
	if len(chatIds) == 0 {
		return messages, nil
	}
	latest := r.db.Model(&model.Message{}).
		Select("MAX(id)").
		Where("chat_id IN ?", chatIds).
		Group("chat_id")
	if err := r.db.WithContext(ctx).Where("id IN (?)", latest).Find(&messages).Error; err != nil {
		return nil, wrapDBError(err, "查询最新消息")
	}
	return messages, nil
}
