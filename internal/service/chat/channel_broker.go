// channel_broker.go
// 单机模式：投递经缓冲通道交给本机 ConnManager，不依赖外部消息队列
package chat

import (
	"context"
	"sync"

	"csr_chat_server/pkg/constants"

	"go.uber.org/zap"
)

// ChannelBroker 进程内代理
type ChannelBroker struct {
	transmit  chan Delivery
	done      chan struct{}
	closeOnce sync.Once
	local     Deliverer
}

// NewChannelBroker 创建进程内代理
func NewChannelBroker(local Deliverer) *ChannelBroker {
	return &ChannelBroker{
		transmit: make(chan Delivery, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
		local:    local,
	}
}

// Publish 写入转发通道，通道满时等待直到 ctx 取消
func (b *ChannelBroker) Publish(ctx context.Context, d Delivery) error {
	select {
	case <-b.done:
		return ErrBrokerClosed
	default:
	}
	select {
	case b.transmit <- d:
		return nil
	case <-b.done:
		return ErrBrokerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Start 消费转发通道
func (b *ChannelBroker) Start(ctx context.Context) {
	zap.L().Info("channel broker start")
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case d := <-b.transmit:
			b.local.Deliver(d)
		}
	}
}

// Close 停止消费，未投递的消息直接丢弃
func (b *ChannelBroker) Close() error {
	b.closeOnce.Do(func() { close(b.done) })
	return nil
}
