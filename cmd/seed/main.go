// seed 写入本地开发用的用户，已存在的邮箱会跳过
// 同时打印每个用户的访问令牌，便于直接调用接口或连接 /ws
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"csr_chat_server/internal/config"
	dao "csr_chat_server/internal/dao/mysql"
	"csr_chat_server/internal/dao/mysql/repository"
	myredis "csr_chat_server/internal/dao/redis"
	"csr_chat_server/internal/infrastructure/logger"
	"csr_chat_server/internal/model"
	"csr_chat_server/pkg/constants"
	"csr_chat_server/pkg/enum/user_info/user_role_enum"
	"csr_chat_server/pkg/errorx"
	"csr_chat_server/pkg/util/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var seedUsers = []model.UserInfo{
	{Name: "Admin User", Email: "admin@csr.local", Role: user_role_enum.Admin, RawPassword: "admin123"},
	{Name: "Alice Employee", Email: "alice@csr.local", Role: user_role_enum.Employee, RawPassword: "employee123"},
	{Name: "Bob Employee", Email: "bob@csr.local", Role: user_role_enum.Employee, RawPassword: "employee123"},
	{Name: "Carol Employee", Email: "carol@csr.local", Role: user_role_enum.Employee, RawPassword: "employee123"},
}

func main() {
	conf, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := logger.Init(conf.LogConfig, conf.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	db, err := dao.Init(conf.DatabaseConfig)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}
	repos := repository.NewRepositories(db)
	tokens := jwt.NewManager(conf.JWTConfig.Secret, conf.JWTConfig.Issuer)
	ctx := context.Background()
	created := 0

	for _, u := range seedUsers {
		user := u
		existing, err := repos.User.FindByEmail(ctx, user.Email)
		switch {
		case err == nil:
			user = *existing
			zap.L().Info("用户已存在，跳过", zap.String("email", user.Email))
		case errorx.IsNotFound(err):
			user.Uuid = uuid.NewString()
			user.IsActive = true
			if err := repos.User.Create(ctx, &user); err != nil {
				zap.L().Fatal("写入用户失败", zap.String("email", user.Email), zap.Error(err))
			}
			zap.L().Info("写入用户", zap.String("email", user.Email), zap.String("uuid", user.Uuid))
			created++
		default:
			zap.L().Fatal("查询用户失败", zap.String("email", user.Email), zap.Error(err))
		}

		token, err := tokens.GenerateAccessToken(user.Uuid, user.Email, user.Role, 24*time.Hour)
		if err != nil {
			zap.L().Fatal("签发令牌失败", zap.Error(err))
		}
		fmt.Printf("%-18s %s %s\n", user.Email, user.Uuid, token)
	}

	if created > 0 {
		invalidateDirectory(ctx, conf.RedisConfig)
	}
}

// invalidateDirectory 清掉用户目录缓存，Redis 不可用时忽略
func invalidateDirectory(ctx context.Context, conf config.RedisConfig) {
	client, err := myredis.Init(conf)
	if err != nil {
		zap.L().Warn("Redis 不可用，跳过目录缓存清理", zap.Error(err))
		return
	}
	defer client.Close()

	cache := myredis.NewRedisCache(client, 1, 1)
	defer cache.Close()
	if err := cache.Delete(ctx, constants.USER_DIRECTORY_CACHE_KEY); err != nil {
		zap.L().Warn("目录缓存清理失败", zap.Error(err))
	}
}
