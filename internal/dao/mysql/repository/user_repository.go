package repository

import (
	"context"

	"csr_chat_server/internal/model"

	"gorm.io/gorm"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository 创建用户 Repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

// FindByUuid 按 UUID 查找用户
func (r *userRepository) FindByUuid(ctx context.Context, uuid string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).First(&user, "uuid = ?", uuid).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 uuid=%s", uuid)
	}
	return &user, nil
}

// FindActiveByUuid 按 UUID 查找启用中的用户
func (r *userRepository) FindActiveByUuid(ctx context.Context, uuid string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).First(&user, "uuid = ? AND is_active = ?", uuid, true).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询启用用户 uuid=%s", uuid)
	}
	return &user, nil
}

// FindActiveByUuids 按 UUID 列表查找启用中的用户
func (r *userRepository) FindActiveByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error) {
	var users []model.UserInfo
	if len(uuids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("uuid IN ? AND is_active = ?", uuids, true).Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "批量查询启用用户")
	}
	return users, nil
}

// FindByUuids 按 UUID 列表查找用户
func (r *userRepository) FindByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error) {
	var users []model.UserInfo
	if len(uuids) == 0 {
		return users, nil
	}
	if err := r.db.WithContext(ctx).Where("uuid IN ?", uuids).Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "批量查询用户")
	}
	return users, nil
}

// FindAllActive 查找所有启用中的用户，按姓名升序
func (r *userRepository) FindAllActive(ctx context.Context) ([]model.UserInfo, error) {
	var users []model.UserInfo
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&users).Error; err != nil {
		return nil, wrapDBError(err, "查询用户目录")
	}
	return users, nil
}

// FindByEmail 按邮箱查找用户
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	var user model.UserInfo
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户 email=%s", email)
	}
	return &user, nil
}

// Create 创建用户
func (r *userRepository) Create(ctx context.Context, user *model.UserInfo) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return wrapDBErrorf(err, "创建用户 email=%s", user.Email)
	}
	return nil
}
