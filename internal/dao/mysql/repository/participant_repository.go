// Package repository 提供数据访问层的具体实现
// 本文件实现 ParticipantRepository 接口，处理会话成员与未读数相关的数据库操作
package repository

import (
	"context"

	"csr_chat_server/internal/model"
	"csr_chat_server/pkg/errorx"

	"gorm.io/gorm"
)

// participantRepository ParticipantRepository 接口的实现
type participantRepository struct {
	db *gorm.DB
}

// NewParticipantRepository 创建 ParticipantRepository 实例
func NewParticipantRepository(db *gorm.DB) ParticipantRepository {
	return &participantRepository{db: db}
}

// FindByChatAndUser 根据会话和用户查找成员关系
// 用于权限校验与重复加入检查
func (r *participantRepository) FindByChatAndUser(ctx context.Context, chatId, userId string) (*model.ChatParticipant, error) {
	var participant model.ChatParticipant
	if err := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatId, userId).
		First(&participant).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话成员 chat_id=%s user_id=%s", chatId, userId)
	}
	return &participant, nil
}

// FindByChatId 查找会话全部成员
func (r *participantRepository) FindByChatId(ctx context.Context, chatId string) ([]model.ChatParticipant, error) {
	var participants []model.ChatParticipant
	if err := r.db.WithContext(ctx).
		Where("chat_id = ?", chatId).
		Order("joined_at ASC").Order("id ASC").
		Find(&participants).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话成员 chat_id=%s", chatId)
	}
	return participants, nil
}

// FindByChatIds 批量查找多个会话的成员
func (r *participantRepository) FindByChatIds(ctx context.Context, chatIds []string) ([]model.ChatParticipant, error) {
	var participants []model.ChatParticipant
	if len(chatIds) == 0 {
		return participants, nil
	}
	if err := r.db.WithContext(ctx).
		Where("chat_id IN ?", chatIds).
		Order("joined_at ASC").Order("id ASC").
		Find(&participants).Error; err != nil {
		return nil, wrapDBError(err, "批量查询会话成员")
	}
	return participants, nil
}

// FindByUserId 查找用户加入的全部成员记录
func (r *participantRepository) FindByUserId(ctx context.Context, userId string) ([]model.ChatParticipant, error) {
	var participants []model.ChatParticipant
	if err := r.db.WithContext(ctx).Where("user_id = ?", userId).Find(&participants).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户会话 user_id=%s", userId)
	}
	return participants, nil
}

// Create 添加成员
func (r *participantRepository) Create(ctx context.Context, participant *model.ChatParticipant) error {
	if err := r.db.WithContext(ctx).Create(participant).Error; err != nil {
		return wrapDBErrorf(err, "添加会话成员 chat_id=%s user_id=%s", participant.ChatId, participant.UserId)
	}
	return nil
}

// CreateBatch 批量添加成员
func (r *participantRepository) CreateBatch(ctx context.Context, participants []model.ChatParticipant) error {
	if len(participants) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).Create(&participants).Error; err != nil {
		return wrapDBError(err, "批量添加会话成员")
	}
	return nil
}

// Delete 物理删除成员
func (r *participantRepository) Delete(ctx context.Context, chatId, userId string) error {
	res := r.db.WithContext(ctx).
		Where("chat_id = ? AND user_id = ?", chatId, userId).
		Delete(&model.ChatParticipant{})
	if res.Error != nil {
		return wrapDBErrorf(res.Error, "删除会话成员 chat_id=%s user_id=%s", chatId, userId)
	}
	if res.RowsAffected == 0 {
		return errorx.Newf(errorx.CodeNotFound, "会话成员不存在 chat_id=%s user_id=%s", chatId, userId)
	}
	return nil
}

// IncrementUnreadExcept 除发送者外所有成员未读数 +1
func (r *participantRepository) IncrementUnreadExcept(ctx context.Context, chatId, senderId string) error {
	if err := r.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id <> ?", chatId, senderId).
		Update("unread_count", gorm.Expr("unread_count + ?", 1)).Error; err != nil {
		return wrapDBErrorf(err, "累加未读数 chat_id=%s", chatId)
	}
	return nil
}

// ResetUnread 将成员未读数清零
func (r *participantRepository) ResetUnread(ctx context.Context, chatId, userId string) error {
	if err := r.db.WithContext(ctx).Model(&model.ChatParticipant{}).
		Where("chat_id = ? AND user_id = ?", chatId, userId).
		Update("unread_count", 0).Error; err != nil {
		return wrapDBErrorf(err, "清零未读数 chat_id=%s user_id=%s", chatId, userId)
	}
	return nil
}
