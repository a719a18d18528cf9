// Package service 提供业务逻辑层
// 本文件实现 Service 层的依赖注入和聚合
package service

import (
	"time"

	"csr_chat_server/internal/dao/mysql/repository"
	myredis "csr_chat_server/internal/dao/redis"
	"csr_chat_server/internal/infrastructure/storage"
	"csr_chat_server/internal/service/directory"
	"csr_chat_server/internal/service/membership"
	"csr_chat_server/internal/service/message"
)

// Services 聚合所有 Service 实例
type Services struct {
	Directory  DirectoryService
	Membership MembershipService
	Message    MessageService
}

// Deps Service 层的外部依赖
type Deps struct {
	Repos    *repository.Repositories
	Cache    myredis.AsyncCacheService // 可为 nil
	CacheTTL time.Duration
	IDs      message.IDGenerator
	Storage  storage.FileStorage
	Upload   message.UploadPolicy
}

// NewServices 创建并注入所有 Service 实例
func NewServices(deps Deps) *Services {
	return &Services{
		Directory:  directory.NewDirectoryService(deps.Repos, deps.Cache, deps.CacheTTL),
		Membership: membership.NewMembershipService(deps.Repos),
		Message:    message.NewMessageService(deps.Repos, deps.IDs, deps.Storage, deps.Upload),
	}
}
