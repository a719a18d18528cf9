// Package redis 提供 Redis 缓存操作的封装
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"csr_chat_server/internal/config"

	"github.com/redis/go-redis/v9"
)

// Init 创建 Redis 客户端并检查连通性
func Init(conf config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         conf.Host + ":" + strconv.Itoa(conf.Port),
		Password:     conf.Password,
		DB:           conf.Db,
		PoolSize:     50,
		MinIdleConns: conf.Workers,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", client.Options().Addr, err)
	}
	return client, nil
}
