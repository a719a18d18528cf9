// Package mysql 负责建立关系型数据库连接并迁移表结构
// 默认使用 MySQL，配置 driver = "postgres" 时切换为 PostgreSQL
package mysql

import (
	"fmt"
	"time"

	"csr_chat_server/internal/config"
	"csr_chat_server/internal/model"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Init 打开数据库连接、配置连接池并执行 AutoMigrate
func Init(conf config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := dialectorOf(conf)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		// 将驱动的唯一约束错误翻译为 gorm.ErrDuplicatedKey
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", conf.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(conf.MaxOpenConns)
	sqlDB.SetMaxIdleConns(conf.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := Migrate(db); err != nil {
		return nil, err
	}
	zap.L().Info("数据库初始化完成", zap.String("driver", conf.Driver), zap.String("db", conf.DatabaseName))
	return db, nil
}

// Migrate 自动迁移聊天模块的表结构
// 如果表不存在则创建，如果字段变更则更新结构，不会删除已有字段或数据
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.UserInfo{},
		&model.Chat{},
		&model.ChatParticipant{},
		&model.Message{},
	); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

func dialectorOf(conf config.DatabaseConfig) (gorm.Dialector, error) {
	switch conf.Driver {
	case "mysql":
		dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
			conf.User, conf.Password, conf.Host, conf.Port, conf.DatabaseName)
		return mysqldriver.Open(dsn), nil
	case "postgres":
		dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=UTC",
			conf.Host, conf.Port, conf.User, conf.Password, conf.DatabaseName, conf.SSLMode)
		return postgres.Open(dsn), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", conf.Driver)
	}
}
