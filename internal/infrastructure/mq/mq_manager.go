// Package mq 封装 Kafka 底层连接
// 只负责 Writer/Reader 的创建、主题初始化与关闭，不包含聊天业务逻辑
package mq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"csr_chat_server/internal/config"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// KafkaClient Kafka 客户端
type KafkaClient struct {
	Writer *kafka.Writer // 生产者
	Reader *kafka.Reader // 消费者
	conf   config.KafkaConfig
}

// GroupIdOf 每个实例独占一个消费组，保证每个实例都能收到全量投递
func GroupIdOf(conf config.KafkaConfig) string {
	return conf.GroupPrefix + "-" + conf.InstanceId
}

// NewKafkaClient 按配置创建 Writer 与 Reader，不会立即建立连接
func NewKafkaClient(conf config.KafkaConfig) *KafkaClient {
	timeout := conf.Timeout * time.Second
	return &KafkaClient{
		conf: conf,
		Writer: &kafka.Writer{
			Addr:                   kafka.TCP(conf.HostPort),
			Topic:                  conf.FanoutTopic,
			Balancer:               &kafka.Hash{},
			WriteTimeout:           timeout,
			RequiredAcks:           kafka.RequireOne,
			AllowAutoTopicCreation: false,
		},
		Reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        []string{conf.HostPort},
			Topic:          conf.FanoutTopic,
			GroupID:        GroupIdOf(conf),
			CommitInterval: timeout,
			StartOffset:    kafka.LastOffset,
		}),
	}
}

// CreateTopic 创建推送主题，主题已存在时 kafka 返回成功
func (k *KafkaClient) CreateTopic(ctx context.Context) error {
	dialer := &kafka.Dialer{Timeout: k.conf.Timeout * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", k.conf.HostPort)
	if err != nil {
		return fmt.Errorf("dial kafka %s: %w", k.conf.HostPort, err)
	}
	defer conn.Close()

	// 主题只能在 controller 节点上创建
	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	controllerConn, err := dialer.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	return controllerConn.CreateTopics(kafka.TopicConfig{
		Topic:             k.conf.FanoutTopic,
		NumPartitions:     k.conf.Partition,
		ReplicationFactor: 1,
	})
}

// WriteMessage 写入一条消息
func (k *KafkaClient) WriteMessage(ctx context.Context, key, value []byte) error {
	return k.Writer.WriteMessages(ctx, kafka.Message{Key: key, Value: value})
}

// ReadMessage 阻塞读取下一条消息，ctx 取消时返回错误
func (k *KafkaClient) ReadMessage(ctx context.Context) (kafka.Message, error) {
	return k.Reader.ReadMessage(ctx)
}

// Close 关闭 Writer 与 Reader
func (k *KafkaClient) Close() error {
	var errs []error
	if err := k.Writer.Close(); err != nil {
		zap.L().Error("关闭 kafka writer 失败", zap.Error(err))
		errs = append(errs, err)
	}
	if err := k.Reader.Close(); err != nil {
		zap.L().Error("关闭 kafka reader 失败", zap.Error(err))
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
