// kafka_broker.go
// 分布式模式：投递写入 Kafka 推送主题
// 每个实例使用独立消费组读取全量投递，再推送给本机在线连接
package chat

import (
	"context"
	"encoding/json"
	"time"

	"csr_chat_server/internal/infrastructure/mq"

	"go.uber.org/zap"
)

// KafkaBroker 基于 kafka-go 的代理
type KafkaBroker struct {
	client *mq.KafkaClient
	local  Deliverer
}

// NewKafkaBroker 创建 Kafka 代理
func NewKafkaBroker(client *mq.KafkaClient, local Deliverer) *KafkaBroker {
	return &KafkaBroker{client: client, local: local}
}

// Publish 序列化 Delivery 写入主题，以事件名作为分区键
func (b *KafkaBroker) Publish(ctx context.Context, d Delivery) error {
	value, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return b.client.WriteMessage(ctx, []byte(d.Event), value)
}

// Start 创建主题后进入消费循环
func (b *KafkaBroker) Start(ctx context.Context) {
	if err := b.client.CreateTopic(ctx); err != nil {
		zap.L().Warn("创建 kafka 推送主题失败", zap.Error(err))
	}
	zap.L().Info("kafka broker start", zap.String("group", b.client.Reader.Config().GroupID))
	for {
		record, err := b.client.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			zap.L().Error("读取 kafka 消息失败", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		var d Delivery
		if err := json.Unmarshal(record.Value, &d); err != nil {
			zap.L().Error("解析 kafka 投递失败", zap.Int64("offset", record.Offset), zap.Error(err))
			continue
		}
		b.local.Deliver(d)
	}
}

// Close 关闭 Kafka 连接
func (b *KafkaBroker) Close() error {
	return b.client.Close()
}
