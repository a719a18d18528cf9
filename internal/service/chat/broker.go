// Package chat 实现实时推送层
// broker.go
// 核心职责：定义跨实例投递抽象
// 1. Delivery 描述"把某个事件推给哪些用户"
// 2. Broker 负责把 Delivery 送到所有实例，各实例再交给本机 ConnManager
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"csr_chat_server/internal/config"
	"csr_chat_server/internal/infrastructure/mq"
	"csr_chat_server/pkg/constants"

	"github.com/redis/go-redis/v9"
)

// ErrBrokerClosed 代理已关闭
var ErrBrokerClosed = errors.New("broker closed")

// Delivery 一次推送：事件名、载荷与目标用户
type Delivery struct {
	UserIds []string        `json:"userIds"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
}

// NewDelivery 序列化载荷并构造 Delivery
func NewDelivery(userIds []string, event string, data any) (Delivery, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Delivery{}, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return Delivery{UserIds: userIds, Event: event, Data: raw}, nil
}

// Deliverer 本机投递目标，由 ConnManager 实现
type Deliverer interface {
	Deliver(d Delivery) int
}

// Broker 消息代理接口
// 支持多种实现：ChannelBroker (单机), KafkaBroker / RedisBroker (多实例)
type Broker interface {
	// Publish 发布一次投递
	Publish(ctx context.Context, d Delivery) error
	// Start 启动消费循环，阻塞直到 ctx 取消或代理关闭
	Start(ctx context.Context)
	// Close 关闭代理资源
	Close() error
}

// NewBroker 按 messageMode 选择代理实现
// redis 模式需要传入可用的 redis 客户端
func NewBroker(conf config.KafkaConfig, redisClient *redis.Client, local Deliverer) (Broker, error) {
	switch conf.MessageMode {
	case "", "channel":
		return NewChannelBroker(local), nil
	case "kafka":
		return NewKafkaBroker(mq.NewKafkaClient(conf), local), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis message mode requires a redis client")
		}
		return NewRedisBroker(redisClient, constants.REDIS_FANOUT_CHANNEL, local), nil
	default:
		return nil, fmt.Errorf("unsupported message mode %q", conf.MessageMode)
	}
}
