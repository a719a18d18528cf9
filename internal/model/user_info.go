// Package model 定义数据库实体模型
// 本文件定义用户信息模型，用户由主系统维护，聊天模块只读取身份与启用状态
package model

import (
	"fmt"
	"time"

	"csr_chat_server/pkg/enum/user_info/user_role_enum"

	"golang.org/x/crypto/bcrypt" // 密码哈希库
	"gorm.io/gorm"
)

// UserInfo 用户信息模型
// 对应数据库 user_info 表
type UserInfo struct {
	// Uuid 用户唯一标识，UUID 字符串
	Uuid string `gorm:"column:uuid;primaryKey;type:char(36);comment:用户唯一id"`

	// Name 显示名称
	Name string `gorm:"column:name;type:varchar(100);not null;index;comment:姓名"`

	// Email 登录邮箱，全局唯一
	Email string `gorm:"column:email;type:varchar(191);uniqueIndex;not null;comment:邮箱"`

	// Password bcrypt 哈希后的密码，仅种子数据写入
	Password string `gorm:"column:password;type:varchar(100);not null;comment:密码" json:"-"`

	// Role 系统角色 ADMIN / EMPLOYEE
	Role string `gorm:"column:role;type:varchar(16);not null;default:EMPLOYEE;comment:角色"`

	// IsActive 停用的用户不可被加入会话，也不会出现在通讯录
	IsActive bool `gorm:"column:is_active;not null;default:true;index;comment:是否启用"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`

	// RawPassword 明文密码（不存入数据库），在 BeforeSave 中加密
	RawPassword string `gorm:"-" json:"-"`
}

// TableName 指定表名
func (UserInfo) TableName() string {
	return "user_info"
}

// BeforeSave GORM Hook：校验角色并将 RawPassword 加密后存入 Password
func (u *UserInfo) BeforeSave(tx *gorm.DB) error {
	if !user_role_enum.IsValid(u.Role) {
		return fmt.Errorf("invalid user role %q", u.Role)
	}
	if u.RawPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.RawPassword), bcrypt.DefaultCost)
		if err != nil {
			return err
		}
		u.Password = string(hash)
		u.RawPassword = ""
	}
	return nil
}

// CheckPassword 校验密码是否正确
func (u *UserInfo) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(plaintext)) == nil
}
