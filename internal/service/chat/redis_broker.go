// redis_broker.go
// 分布式模式：投递经 Redis Pub/Sub 广播，所有订阅实例各自推送给本机连接
package chat

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroker 基于 go-redis Pub/Sub 的代理
type RedisBroker struct {
	client  *redis.Client
	channel string
	local   Deliverer

	mu     sync.Mutex
	sub    *redis.PubSub
	closed bool
}

// NewRedisBroker 创建 Redis 代理
func NewRedisBroker(client *redis.Client, channel string, local Deliverer) *RedisBroker {
	return &RedisBroker{client: client, channel: channel, local: local}
}

// Publish 发布到频道
func (b *RedisBroker) Publish(ctx context.Context, d Delivery) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, payload).Err()
}

// Start 订阅频道并消费
func (b *RedisBroker) Start(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		_ = sub.Close()
		return
	}
	b.sub = sub
	b.mu.Unlock()

	zap.L().Info("redis broker start", zap.String("channel", b.channel))
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var d Delivery
			if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
				zap.L().Error("解析 redis 投递失败", zap.Error(err))
				continue
			}
			b.local.Deliver(d)
		}
	}
}

// Close 取消订阅，redis 客户端本身由调用方关闭
func (b *RedisBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	if b.sub == nil {
		return nil
	}
	err := b.sub.Close()
	b.sub = nil
	return err
}
