package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"csr_chat_server/internal/config"
	dao "csr_chat_server/internal/dao/mysql"
	"csr_chat_server/internal/dao/mysql/repository"
	myredis "csr_chat_server/internal/dao/redis"
	"csr_chat_server/internal/handler"
	"csr_chat_server/internal/https_server"
	"csr_chat_server/internal/infrastructure/logger"
	"csr_chat_server/internal/infrastructure/storage"
	"csr_chat_server/internal/service"
	"csr_chat_server/internal/service/chat"
	"csr_chat_server/internal/service/message"
	"csr_chat_server/pkg/constants"
	"csr_chat_server/pkg/util/jwt"
	"csr_chat_server/pkg/util/snowflake"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	conf, err := config.LoadConfig(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	// 2. 初始化日志
	if err := logger.Init(conf.LogConfig, conf.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer zap.L().Sync()
	zap.L().Info("日志初始化成功", zap.String("app", conf.AppName))

	if err := handler.InitTrans("en"); err != nil {
		zap.L().Fatal("初始化校验翻译器失败", zap.Error(err))
	}

	// 3. 初始化数据库
	db, err := dao.Init(conf.DatabaseConfig)
	if err != nil {
		zap.L().Fatal("数据库初始化失败", zap.Error(err))
	}
	repos := repository.NewRepositories(db)

	// 4. 初始化 Redis，channel 模式下 Redis 不可用时降级为无缓存
	var (
		redisClient *redis.Client
		cache       myredis.AsyncCacheService
		redisCache  *myredis.RedisCache
	)
	if client, err := myredis.Init(conf.RedisConfig); err != nil {
		if conf.MessageMode == "redis" {
			zap.L().Fatal("Redis 初始化失败", zap.Error(err))
		}
		zap.L().Warn("Redis 不可用，用户目录不做缓存", zap.Error(err))
	} else {
		redisClient = client
		redisCache = myredis.NewRedisCache(client, conf.Workers, constants.CHANNEL_SIZE)
		cache = redisCache
	}

	// 5. 初始化 Service 层
	ids, err := snowflake.NewGenerator(conf.MachineID)
	if err != nil {
		zap.L().Fatal("雪花算法初始化失败", zap.Error(err))
	}
	files, err := storage.NewLocalStorage(conf.UploadPath, conf.UploadUrlPrefix)
	if err != nil {
		zap.L().Fatal("附件目录初始化失败", zap.Error(err))
	}
	services := service.NewServices(service.Deps{
		Repos:    repos,
		Cache:    cache,
		CacheTTL: time.Duration(conf.CacheTTLMinutes) * time.Minute,
		IDs:      ids,
		Storage:  files,
		Upload: message.UploadPolicy{
			MaxSize:      conf.MaxSizeMB * constants.MB,
			AllowedTypes: conf.AllowedTypes,
		},
	})

	// 6. 初始化实时推送
	tokens := jwt.NewManager(conf.JWTConfig.Secret, conf.JWTConfig.Issuer)
	conns := chat.NewConnManager()
	broker, err := chat.NewBroker(conf.KafkaConfig, redisClient, conns)
	if err != nil {
		zap.L().Fatal("消息代理初始化失败", zap.Error(err))
	}
	realtime := chat.NewServer(chat.ServerDeps{
		Conns:         conns,
		Broker:        broker,
		Tokens:        tokens,
		Messages:      services.Message,
		Membership:    services.Membership,
		AllowedOrigin: conf.FrontendUrl,
	})
	ctx, cancel := context.WithCancel(context.Background())
	go realtime.Start(ctx)
	zap.L().Info("实时推送初始化成功", zap.String("mode", conf.MessageMode))

	// 7. 启动 HTTP 服务
	handlers := handler.NewHandlers(handler.Options{
		Services:      services,
		Notifier:      realtime,
		Connector:     realtime,
		MaxUploadSize: conf.MaxSizeMB * constants.MB,
	})
	engine := https_server.NewEngine(conf, handlers, tokens)
	srv := https_server.NewServer(conf.MainConfig, engine)
	go func() {
		zap.L().Info("服务启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("server running fault", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zap.L().Info("关闭服务器...")

	// 顺序：停止接收请求 → 断开 websocket → 停止代理 → 关闭缓存写入池与连接
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.L().Error("HTTP 服务关闭失败", zap.Error(err))
	}
	realtime.Close()
	cancel()
	if err := broker.Close(); err != nil {
		zap.L().Error("消息代理关闭失败", zap.Error(err))
	}
	if redisCache != nil {
		redisCache.Close()
	}
	if redisClient != nil {
		_ = redisClient.Close()
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	zap.L().Info("服务器已关闭")
}
