// conn_manager.go
// 核心职责：本机在线连接注册表
// 一个用户可以同时持有多条连接（多设备），推送时每条连接各收一份
package chat

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"
)

// Frame websocket 帧格式
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConnManager 用户 ID 到连接集合的映射
type ConnManager struct {
	mu    sync.RWMutex
	conns map[string]map[*UserConn]struct{}
}

// NewConnManager 创建连接注册表
func NewConnManager() *ConnManager {
	return &ConnManager{conns: make(map[string]map[*UserConn]struct{})}
}

// Register 注册连接
func (m *ConnManager) Register(c *UserConn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.conns[c.Uuid]
	if !ok {
		set = make(map[*UserConn]struct{})
		m.conns[c.Uuid] = set
	}
	set[c] = struct{}{}
}

// Unregister 注销连接，返回该用户剩余连接数
func (m *ConnManager) Unregister(c *UserConn) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.conns[c.Uuid]
	if !ok {
		return 0
	}
	delete(set, c)
	if len(set) == 0 {
		delete(m.conns, c.Uuid)
		return 0
	}
	return len(set)
}

// Online 用户当前连接数
func (m *ConnManager) Online(userId string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.conns[userId])
}

// SendToUsers 把同一帧发给多个用户的全部连接，重复的用户 ID 只发一次
// 返回成功入队的连接数
func (m *ConnManager) SendToUsers(userIds []string, frame []byte) int {
	m.mu.RLock()
	targets := make([]*UserConn, 0, len(userIds))
	seen := make(map[string]struct{}, len(userIds))
	for _, id := range userIds {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		for c := range m.conns[id] {
			targets = append(targets, c)
		}
	}
	m.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if c.Send(frame) {
			sent++
		}
	}
	return sent
}

// Deliver 实现 Deliverer，把 Delivery 编码为帧后推送
func (m *ConnManager) Deliver(d Delivery) int {
	frame, err := json.Marshal(Frame{Event: d.Event, Data: d.Data})
	if err != nil {
		zap.L().Error("编码推送帧失败", zap.String("event", d.Event), zap.Error(err))
		return 0
	}
	return m.SendToUsers(d.UserIds, frame)
}

// All 当前全部连接的快照
func (m *ConnManager) All() []*UserConn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	all := make([]*UserConn, 0, len(m.conns))
	for _, set := range m.conns {
		for c := range set {
			all = append(all, c)
		}
	}
	return all
}
