// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找，并允许环境变量覆盖敏感项
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
	"github.com/joho/godotenv"
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName      string        `toml:"appName"`      // 应用名称，用于日志标识等
	Host         string        `toml:"host"`         // 服务器监听地址，如 "0.0.0.0"
	Port         int           `toml:"port"`         // 服务器监听端口，如 8000
	Mode         string        `toml:"mode"`         // gin 运行模式：debug, release, test
	FrontendUrl  string        `toml:"frontendUrl"`  // 前端地址，CORS 白名单
	ReadTimeout  time.Duration `toml:"readTimeout"`  // HTTP 读超时（秒）
	WriteTimeout time.Duration `toml:"writeTimeout"` // HTTP 写超时（秒）
}

// DatabaseConfig 关系型数据库连接配置
type DatabaseConfig struct {
	Driver       string `toml:"driver"`       // 驱动："mysql" 或 "postgres"
	Host         string `toml:"host"`         // 数据库服务器地址
	Port         int    `toml:"port"`         // 端口
	User         string `toml:"user"`         // 用户名
	Password     string `toml:"password"`     // 密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
	SSLMode      string `toml:"sslMode"`      // postgres sslmode
	MaxOpenConns int    `toml:"maxOpenConns"` // 最大打开连接数
	MaxIdleConns int    `toml:"maxIdleConns"` // 最大空闲连接数
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host            string `toml:"host"`            // Redis 服务器地址
	Port            int    `toml:"port"`            // Redis 端口，默认 6379
	Password        string `toml:"password"`        // Redis 密码，无密码留空
	Db              int    `toml:"db"`              // Redis 数据库编号，默认 0
	CacheTTLMinutes int    `toml:"cacheTTLMinutes"` // 用户目录缓存有效期（分钟）
	Workers         int    `toml:"workers"`         // 异步缓存写入 worker 数量
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig 实时推送的跨实例分发配置
type KafkaConfig struct {
	MessageMode string        `toml:"messageMode"` // 分发模式："channel"、"kafka" 或 "redis"
	HostPort    string        `toml:"hostPort"`    // Kafka 服务器地址，如 "localhost:9092"
	FanoutTopic string        `toml:"fanoutTopic"` // 推送主题
	Partition   int           `toml:"partition"`   // 创建主题时的分区数
	GroupPrefix string        `toml:"groupPrefix"` // 消费组前缀，实际组名为 前缀-实例ID
	InstanceId  string        `toml:"instanceId"`  // 实例 ID，为空时使用主机名
	Timeout     time.Duration `toml:"timeout"`     // 超时时间（秒）
}

// StaticSrcConfig 静态资源路径配置
type StaticSrcConfig struct {
	UploadPath      string `toml:"uploadPath"`      // 附件本地存储目录
	UploadUrlPrefix string `toml:"uploadUrlPrefix"` // 附件对外访问前缀，如 "/uploads"
}

// UploadConfig 附件上传限制
type UploadConfig struct {
	MaxSizeMB    int64    `toml:"maxSizeMB"`    // 单个附件最大大小（MB）
	AllowedTypes []string `toml:"allowedTypes"` // 允许的 MIME 类型
}

// JWTConfig JWT 校验配置，令牌由认证服务签发
type JWTConfig struct {
	Secret string `toml:"secret"` // JWT 签名密钥
	Issuer string `toml:"issuer"` // 签发者，为空时不校验
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 节点 ID，范围 0-1023，分布式部署时每台机器需唯一
}

// RateLimitConfig /api 限流配置
type RateLimitConfig struct {
	Requests      int `toml:"requests"`      // 窗口内允许的请求数
	WindowMinutes int `toml:"windowMinutes"` // 窗口长度（分钟）
}

// SecurityConfig 安全响应头配置
type SecurityConfig struct {
	SSLRedirect bool   `toml:"sslRedirect"` // 是否将 HTTP 重定向到 HTTPS
	SSLHost     string `toml:"sslHost"`     // 重定向目标主机
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`
	DatabaseConfig  `toml:"databaseConfig"`
	RedisConfig     `toml:"redisConfig"`
	LogConfig       `toml:"logConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	StaticSrcConfig `toml:"staticSrcConfig"`
	UploadConfig    `toml:"uploadConfig"`
	JWTConfig       `toml:"jwtConfig"`
	SnowflakeConfig `toml:"snowflakeConfig"`
	RateLimitConfig `toml:"rateLimitConfig"`
	SecurityConfig  `toml:"securityConfig"`
}

// defaultPaths 未指定路径时依次尝试的候选配置文件
var defaultPaths = []string{
	"configs/config_local.toml",
	"configs/config.toml",
	"../../configs/config_local.toml",
	"../../configs/config.toml",
	"/etc/csr_chat_server/config.toml",
}

// LoadConfig 加载配置
// path 非空时只读取该文件；否则按候选路径查找第一个可用文件。
// 全部找不到时使用默认值启动，随后应用 .env 与环境变量覆盖。
func LoadConfig(path string) (*Config, error) {
	conf := new(Config)

	if path != "" {
		if _, err := toml.DecodeFile(path, conf); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	} else {
		for _, p := range defaultPaths {
			if _, err := toml.DecodeFile(p, conf); err == nil {
				break
			}
		}
	}

	// .env 不存在属于正常情况
	_ = godotenv.Load()
	applyEnv(conf)
	applyDefaults(conf)

	if conf.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret is required (jwtConfig.secret or JWT_SECRET)")
	}
	return conf, nil
}

// applyEnv 用环境变量覆盖配置文件中的值
func applyEnv(conf *Config) {
	if v := os.Getenv("JWT_SECRET"); v != "" {
		conf.JWTConfig.Secret = v
	}
	if v := os.Getenv("DB_HOST"); v != "" {
		conf.DatabaseConfig.Host = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		conf.DatabaseConfig.Password = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		conf.RedisConfig.Host = v
	}
	if v := os.Getenv("FRONTEND_URL"); v != "" {
		conf.MainConfig.FrontendUrl = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			conf.MainConfig.Port = port
		}
	}
}

// applyDefaults 为未配置的字段填充默认值
func applyDefaults(conf *Config) {
	if conf.AppName == "" {
		conf.AppName = "csr_chat_server"
	}
	if conf.MainConfig.Host == "" {
		conf.MainConfig.Host = "0.0.0.0"
	}
	if conf.MainConfig.Port == 0 {
		conf.MainConfig.Port = 8000
	}
	if conf.Mode == "" {
		conf.Mode = "debug"
	}
	if conf.FrontendUrl == "" {
		conf.FrontendUrl = "http://localhost:5173"
	}
	if conf.ReadTimeout == 0 {
		conf.ReadTimeout = 15
	}
	if conf.WriteTimeout == 0 {
		conf.WriteTimeout = 30
	}

	if conf.Driver == "" {
		conf.Driver = "mysql"
	}
	if conf.DatabaseConfig.Host == "" {
		conf.DatabaseConfig.Host = "127.0.0.1"
	}
	if conf.DatabaseConfig.Port == 0 {
		if conf.Driver == "postgres" {
			conf.DatabaseConfig.Port = 5432
		} else {
			conf.DatabaseConfig.Port = 3306
		}
	}
	if conf.SSLMode == "" {
		conf.SSLMode = "disable"
	}
	if conf.MaxOpenConns == 0 {
		conf.MaxOpenConns = 50
	}
	if conf.MaxIdleConns == 0 {
		conf.MaxIdleConns = 10
	}

	if conf.RedisConfig.Host == "" {
		conf.RedisConfig.Host = "127.0.0.1"
	}
	if conf.RedisConfig.Port == 0 {
		conf.RedisConfig.Port = 6379
	}
	if conf.CacheTTLMinutes == 0 {
		conf.CacheTTLMinutes = 1
	}
	if conf.Workers == 0 {
		conf.Workers = 4
	}

	if conf.LogPath == "" {
		conf.LogPath = "./logs"
	}
	if conf.FileName == "" {
		conf.FileName = "csr_chat_server.log"
	}
	if conf.MaxSize == 0 {
		conf.MaxSize = 100
	}
	if conf.MaxBackups == 0 {
		conf.MaxBackups = 5
	}
	if conf.MaxAge == 0 {
		conf.MaxAge = 30
	}
	if conf.Level == "" {
		conf.Level = "info"
	}

	if conf.MessageMode == "" {
		conf.MessageMode = "channel"
	}
	if conf.FanoutTopic == "" {
		conf.FanoutTopic = "chat_fanout"
	}
	if conf.Partition == 0 {
		conf.Partition = 1
	}
	if conf.GroupPrefix == "" {
		conf.GroupPrefix = "chat-fanout"
	}
	if conf.InstanceId == "" {
		if host, err := os.Hostname(); err == nil {
			conf.InstanceId = host
		} else {
			conf.InstanceId = "local"
		}
	}
	if conf.KafkaConfig.Timeout == 0 {
		conf.KafkaConfig.Timeout = 5
	}

	if conf.UploadPath == "" {
		conf.UploadPath = "./uploads"
	}
	if conf.UploadUrlPrefix == "" {
		conf.UploadUrlPrefix = "/uploads"
	}
	if conf.MaxSizeMB == 0 {
		conf.MaxSizeMB = 25
	}
	if len(conf.AllowedTypes) == 0 {
		conf.AllowedTypes = DefaultAllowedTypes
	}

	if conf.Requests == 0 {
		conf.Requests = 500
	}
	if conf.WindowMinutes == 0 {
		conf.WindowMinutes = 15
	}
}

// DefaultAllowedTypes 默认附件白名单：图片与常见办公文档
var DefaultAllowedTypes = []string{
	"image/jpeg",
	"image/png",
	"image/webp",
	"image/gif",
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"text/plain",
	"text/csv",
}
