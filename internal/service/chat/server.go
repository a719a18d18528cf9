// server.go
// 核心职责：实时推送服务器
// 1. 认证并接入 WebSocket 连接
// 2. 分发客户端事件 send_message / join_chat
// 3. 实现 service.Notifier，REST 与 websocket 两条入口共用同一推送逻辑
package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"csr_chat_server/internal/dto/request"
	"csr_chat_server/internal/dto/respond"
	"csr_chat_server/internal/service"
	"csr_chat_server/internal/service/message"
	"csr_chat_server/pkg/errorx"
	myjwt "csr_chat_server/pkg/util/jwt"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 事件名
const (
	EventSendMessage   = "send_message"
	EventJoinChat      = "join_chat"
	EventNewMessage    = "new_message"
	EventUnreadUpdated = "unread_updated"
	EventGroupUpdated  = "group_updated"
	EventError         = "error"
)

// 当事人收到的群变更动作
const (
	ActionAddedToGroup     = "added_to_group"
	ActionRemovedFromGroup = "removed_from_group"
)

// 认证失败的关闭原因
const (
	ReasonTokenRequired = "Authentication token required"
	ReasonTokenInvalid  = "Invalid or expired token"
)

const eventTimeout = 10 * time.Second

// TokenParser 访问令牌校验
type TokenParser interface {
	ParseToken(tokenString string) (*myjwt.Claims, error)
}

// ServerDeps Server 的依赖
type ServerDeps struct {
	Conns      *ConnManager
	Broker     Broker
	Tokens     TokenParser
	Messages   service.MessageService
	Membership service.MembershipService
	// AllowedOrigin 允许的跨域来源，为空或 "*" 时不校验
	AllowedOrigin string
}

// Server 实时推送服务器
type Server struct {
	conns      *ConnManager
	broker     Broker
	tokens     TokenParser
	messages   service.MessageService
	membership service.MembershipService
	upgrader   websocket.Upgrader
}

var _ service.Notifier = (*Server)(nil)

// NewServer 创建实时推送服务器
func NewServer(deps ServerDeps) *Server {
	origin := strings.TrimRight(deps.AllowedOrigin, "/")
	return &Server{
		conns:      deps.Conns,
		broker:     deps.Broker,
		tokens:     deps.Tokens,
		messages:   deps.Messages,
		membership: deps.Membership,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			CheckOrigin: func(r *http.Request) bool {
				if origin == "" || origin == "*" {
					return true
				}
				reqOrigin := r.Header.Get("Origin")
				return reqOrigin == "" || strings.TrimRight(reqOrigin, "/") == origin
			},
		},
	}
}

// Start 启动代理消费循环，阻塞直到 ctx 取消
func (s *Server) Start(ctx context.Context) {
	s.broker.Start(ctx)
}

// Close 断开全部连接
func (s *Server) Close() {
	for _, c := range s.conns.All() {
		c.CloseWith(websocket.CloseGoingAway, "Server shutting down")
	}
}

// TokenFromRequest 依次读取 ?token= 与 Authorization: Bearer 头
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	auth := r.Header.Get("Authorization")
	if len(auth) > 7 && strings.EqualFold(auth[:7], "Bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// Connect 升级连接并认证，认证失败以 1008 关闭
func (s *Server) Connect(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.L().Warn("ws 升级失败", zap.Error(err))
		return
	}

	token := TokenFromRequest(r)
	if token == "" {
		rejectConn(conn, ReasonTokenRequired)
		return
	}
	claims, err := s.tokens.ParseToken(token)
	if err != nil || claims.UserID == "" {
		zap.L().Info("ws 认证失败", zap.Error(err))
		rejectConn(conn, ReasonTokenInvalid)
		return
	}

	client := NewUserConn(conn, claims.UserID)
	s.conns.Register(client)
	zap.L().Info("ws 连接成功", zap.String("user_id", client.Uuid), zap.Int("connections", s.conns.Online(client.Uuid)))

	go client.Write()
	go func() {
		client.Read(s.dispatch)
		remaining := s.conns.Unregister(client)
		client.Close()
		zap.L().Info("ws 连接断开", zap.String("user_id", client.Uuid), zap.Int("connections", remaining))
	}()
}

func rejectConn(conn *websocket.Conn, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason), deadline)
	_ = conn.Close()
}

// dispatch 单个事件的错误只回给当前连接，不断开连接
func (s *Server) dispatch(c *UserConn, payload []byte) {
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		s.sendError(c, "Invalid frame", "")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	switch frame.Event {
	case EventSendMessage:
		s.handleSendMessage(ctx, c, frame.Data)
	case EventJoinChat:
		s.handleJoinChat(ctx, c, frame.Data)
	default:
		s.sendError(c, "Unknown event", "")
	}
}

func (s *Server) handleSendMessage(ctx context.Context, c *UserConn, data json.RawMessage) {
	var req request.WsSendMessageRequest
	if err := json.Unmarshal(data, &req); err != nil || req.ChatId == "" {
		s.sendError(c, "Failed to send message", "chatId is required")
		return
	}
	msg, err := s.messages.SendMessage(ctx, message.SendMessageInput{
		ChatId:      req.ChatId,
		SenderId:    c.Uuid,
		Content:     req.Content,
		MessageType: req.MessageType,
		FileUrl:     req.FileUrl,
		FileName:    req.FileName,
		FileSize:    req.FileSize,
	})
	if err != nil {
		zap.L().Warn("ws 发送消息失败", zap.String("user_id", c.Uuid), zap.String("chat_id", req.ChatId), zap.Error(err))
		s.sendError(c, "Failed to send message", errorx.GetMsg(err))
		return
	}
	if err := s.NotifyNewMessage(ctx, msg); err != nil {
		zap.L().Error("推送新消息失败", zap.String("chat_id", msg.ChatId), zap.Error(err))
	}
}

// joinChatPayload 兼容 "chatId" 与 {"chatId": "..."} 两种载荷
func joinChatPayload(data json.RawMessage) string {
	var chatId string
	if err := json.Unmarshal(data, &chatId); err == nil {
		return chatId
	}
	var obj struct {
		ChatId string `json:"chatId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ChatId
	}
	return ""
}

func (s *Server) handleJoinChat(ctx context.Context, c *UserConn, data json.RawMessage) {
	chatId := joinChatPayload(data)
	if chatId == "" {
		s.sendError(c, "Failed to join chat", "chatId is required")
		return
	}
	if err := s.messages.MarkChatAsRead(ctx, chatId, c.Uuid); err != nil {
		zap.L().Warn("ws 标记已读失败", zap.String("user_id", c.Uuid), zap.String("chat_id", chatId), zap.Error(err))
		s.sendError(c, "Failed to join chat", errorx.GetMsg(err))
		return
	}
	s.sendTo(c, EventUnreadUpdated, respond.UnreadUpdatedRespond{ChatId: chatId, UnreadCount: 0})
}

func (s *Server) sendError(c *UserConn, msg, detail string) {
	s.sendTo(c, EventError, respond.ErrorEventRespond{Message: msg, Detail: detail})
}

// sendTo 只回给当前连接，不经过代理
func (s *Server) sendTo(c *UserConn, event string, data any) {
	raw, err := json.Marshal(data)
	if err == nil {
		var frame []byte
		if frame, err = json.Marshal(Frame{Event: event, Data: raw}); err == nil {
			c.Send(frame)
			return
		}
	}
	zap.L().Error("编码事件失败", zap.String("event", event), zap.Error(err))
}

func (s *Server) publish(ctx context.Context, userIds []string, event string, data any) error {
	if len(userIds) == 0 {
		return nil
	}
	d, err := NewDelivery(userIds, event, data)
	if err != nil {
		return err
	}
	return s.broker.Publish(ctx, d)
}

// NotifyNewMessage 推送给会话当前全部成员，包括发送者的其他设备
func (s *Server) NotifyNewMessage(ctx context.Context, msg *respond.MessageRespond) error {
	userIds, err := s.membership.ParticipantUserIds(ctx, msg.ChatId)
	if err != nil {
		return err
	}
	return s.publish(ctx, userIds, EventNewMessage, msg)
}

// NotifyGroupUpdated 在成员变更提交后调用
// 其余成员收到原动作，当事人收到 added_to_group / removed_from_group
func (s *Server) NotifyGroupUpdated(ctx context.Context, chatId, action, targetUserId string) error {
	userIds, err := s.membership.ParticipantUserIds(ctx, chatId)
	if err != nil {
		return err
	}
	others := make([]string, 0, len(userIds))
	for _, id := range userIds {
		if id != targetUserId {
			others = append(others, id)
		}
	}
	if err := s.publish(ctx, others, EventGroupUpdated, respond.GroupUpdatedRespond{
		ChatId: chatId,
		Action: action,
		UserId: targetUserId,
	}); err != nil {
		return err
	}

	targetAction := ActionAddedToGroup
	if action == service.ActionParticipantRemoved {
		targetAction = ActionRemovedFromGroup
	}
	return s.publish(ctx, []string{targetUserId}, EventGroupUpdated, respond.GroupUpdatedRespond{
		ChatId: chatId,
		Action: targetAction,
		UserId: targetUserId,
	})
}
