// ws_gateway.go
// 核心职责：单条 WebSocket 连接的读写协程
// 1. Read 循环读取客户端帧并交给 Server 分发
// 2. Write 循环消费 SendBack 缓冲写回客户端，同时负责心跳
package chat

import (
	"sync"
	"time"

	"csr_chat_server/pkg/constants"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// UserConn 表示一个已认证的 WebSocket 客户端连接
type UserConn struct {
	Conn     *websocket.Conn
	Uuid     string
	SendBack chan []byte // 发往前端的帧

	done      chan struct{}
	closeOnce sync.Once
}

// NewUserConn 包装已升级的连接
func NewUserConn(conn *websocket.Conn, userId string) *UserConn {
	return &UserConn{
		Conn:     conn,
		Uuid:     userId,
		SendBack: make(chan []byte, constants.CHANNEL_SIZE),
		done:     make(chan struct{}),
	}
}

// Send 非阻塞入队，连接已关闭或缓冲已满时丢弃该帧
func (c *UserConn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.SendBack <- frame:
		return true
	default:
		zap.L().Warn("发送缓冲已满，丢弃帧", zap.String("user_id", c.Uuid))
		return false
	}
}

// Read 读循环，返回即表示连接已断开
func (c *UserConn) Read(handle func(c *UserConn, payload []byte)) {
	c.Conn.SetReadLimit(constants.WS_MAX_MESSAGE)
	_ = c.Conn.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(constants.WS_PONG_WAIT))
	})
	for {
		_, payload, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				zap.L().Warn("ws 异常断开", zap.String("user_id", c.Uuid), zap.Error(err))
			}
			return
		}
		handle(c, payload)
	}
}

// Write 写循环
func (c *UserConn) Write() {
	ticker := time.NewTicker(constants.WS_PING_PERIOD)
	defer func() {
		ticker.Stop()
		c.Close()
	}()
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.SendBack:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(constants.WS_WRITE_WAIT))
			if err := c.Conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				zap.L().Warn("ws 写入失败", zap.String("user_id", c.Uuid), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(constants.WS_WRITE_WAIT))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// CloseWith 发送关闭帧后关闭连接
func (c *UserConn) CloseWith(code int, reason string) {
	deadline := time.Now().Add(constants.WS_WRITE_WAIT)
	_ = c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
	c.Close()
}

// Close 关闭连接，可重复调用
func (c *UserConn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.Conn.Close()
	})
}
