package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"csr_chat_server/internal/dao/mysql/repository/repotest"
	"csr_chat_server/internal/dto/respond"
	"csr_chat_server/internal/infrastructure/storage"
	"csr_chat_server/internal/model"
	"csr_chat_server/internal/service"
	"csr_chat_server/internal/service/message"
	"csr_chat_server/pkg/enum/chat/chat_type_enum"
	"csr_chat_server/pkg/enum/chat/participant_role_enum"
	myjwt "csr_chat_server/pkg/util/jwt"
	"csr_chat_server/pkg/util/snowflake"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	userA    = "11111111-1111-1111-1111-111111111111"
	userB    = "22222222-2222-2222-2222-222222222222"
	userC    = "33333333-3333-3333-3333-333333333333"
	directAB = "aaaaaaaa-0000-0000-0000-000000000001"
)

type harness struct {
	store  *repotest.Store
	conns  *ConnManager
	server *Server
	tokens *myjwt.Manager
	http   *httptest.Server
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	store := repotest.New()
	store.AddUser(
		model.UserInfo{Uuid: userA, Name: "Alice", Email: "a@example.com", Role: "EMPLOYEE", IsActive: true},
		model.UserInfo{Uuid: userB, Name: "Bob", Email: "b@example.com", Role: "EMPLOYEE", IsActive: true},
		model.UserInfo{Uuid: userC, Name: "Carol", Email: "c@example.com", Role: "ADMIN", IsActive: true},
	)
	key := model.DirectKeyOf(userA, userB)
	now := time.Now()
	store.PutChat(model.Chat{
		Uuid:           directAB,
		Type:           chat_type_enum.OneOnOne,
		DirectKey:      &key,
		CreatedById:    userA,
		LastActivityAt: now,
	},
		model.ChatParticipant{ChatId: directAB, UserId: userA, Role: participant_role_enum.Member, JoinedAt: now},
		model.ChatParticipant{ChatId: directAB, UserId: userB, Role: participant_role_enum.Member, JoinedAt: now},
	)

	ids, err := snowflake.NewGenerator(1)
	require.NoError(t, err)
	files, err := storage.NewLocalStorage(t.TempDir(), "/uploads")
	require.NoError(t, err)
	services := service.NewServices(service.Deps{
		Repos:   store.Repositories(),
		IDs:     ids,
		Storage: files,
		Upload:  message.UploadPolicy{MaxSize: 1 << 20},
	})

	conns := NewConnManager()
	broker := NewChannelBroker(conns)
	tokens := myjwt.NewManager("test-secret", "")
	server := NewServer(ServerDeps{
		Conns:      conns,
		Broker:     broker,
		Tokens:     tokens,
		Messages:   services.Message,
		Membership: services.Membership,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go server.Start(ctx)

	ts := httptest.NewServer(http.HandlerFunc(server.Connect))
	t.Cleanup(func() {
		server.Close()
		ts.Close()
		cancel()
		_ = broker.Close()
	})
	return &harness{store: store, conns: conns, server: server, tokens: tokens, http: ts}
}

func (h *harness) wsURL(query string) string {
	return "ws" + strings.TrimPrefix(h.http.URL, "http") + "/ws" + query
}

func (h *harness) dial(t *testing.T, userId string) *websocket.Conn {
	t.Helper()
	token, err := h.tokens.GenerateAccessToken(userId, userId+"@example.com", "EMPLOYEE", time.Hour)
	require.NoError(t, err)
	before := h.conns.Online(userId)
	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL("?token="+token), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return h.conns.Online(userId) == before+1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func send(t *testing.T, conn *websocket.Conn, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(Frame{Event: event, Data: raw}))
}

func readFrame(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))
	return frame
}

func assertSilent(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, payload, err := conn.ReadMessage()
	assert.Error(t, err, "unexpected frame: %s", payload)
}

func TestConnect_RejectsMissingToken(t *testing.T) {
	h := newHarness(t)

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL(""), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, ReasonTokenRequired, closeErr.Text)
}

func TestConnect_RejectsInvalidToken(t *testing.T) {
	h := newHarness(t)

	other := myjwt.NewManager("another-secret", "")
	token, err := other.GenerateAccessToken(userA, "a@example.com", "EMPLOYEE", time.Hour)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(h.wsURL("?token="+token), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	require.ErrorAs(t, err, &closeErr)
	assert.Equal(t, websocket.ClosePolicyViolation, closeErr.Code)
	assert.Equal(t, ReasonTokenInvalid, closeErr.Text)
	assert.Equal(t, 0, h.conns.Online(userA))
}

func TestSendMessage_FansOutOncePerConnection(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, userA)
	bob := h.dial(t, userB)

	send(t, alice, EventSendMessage, map[string]string{"chatId": directAB, "content": "hi"})

	frame := readFrame(t, bob)
	require.Equal(t, EventNewMessage, frame.Event)
	var msg respond.MessageRespond
	require.NoError(t, json.Unmarshal(frame.Data, &msg))
	require.NotNil(t, msg.Content)
	assert.Equal(t, "hi", *msg.Content)
	assert.Equal(t, userA, msg.SenderId)
	assert.Equal(t, "Alice", msg.Sender.Name)
	assertSilent(t, bob)

	// 发送者自己也会收到一份
	echo := readFrame(t, alice)
	assert.Equal(t, EventNewMessage, echo.Event)

	assert.Equal(t, 1, h.store.MessageCount(directAB))
	p, ok := h.store.Participant(directAB, userB)
	require.True(t, ok)
	assert.Equal(t, 1, p.UnreadCount)
}

func TestSendMessage_EveryDeviceReceives(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, userA)
	phone := h.dial(t, userB)
	laptop := h.dial(t, userB)

	send(t, alice, EventSendMessage, map[string]string{"chatId": directAB, "content": "hello"})

	assert.Equal(t, EventNewMessage, readFrame(t, phone).Event)
	assert.Equal(t, EventNewMessage, readFrame(t, laptop).Event)
}

func TestSendMessage_NonParticipantGetsErrorEvent(t *testing.T) {
	h := newHarness(t)
	carol := h.dial(t, userC)
	bob := h.dial(t, userB)

	send(t, carol, EventSendMessage, map[string]string{"chatId": directAB, "content": "intrude"})

	frame := readFrame(t, carol)
	require.Equal(t, EventError, frame.Event)
	var payload respond.ErrorEventRespond
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Failed to send message", payload.Message)
	assert.Equal(t, "Access denied", payload.Detail)
	assertSilent(t, bob)
	assert.Equal(t, 0, h.store.MessageCount(directAB))

	// 连接保持可用
	send(t, carol, "typing", nil)
	assert.Equal(t, EventError, readFrame(t, carol).Event)
}

func TestSendMessage_EmptyContentIsRejected(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, userA)

	send(t, alice, EventSendMessage, map[string]string{"chatId": directAB, "content": "   "})

	frame := readFrame(t, alice)
	require.Equal(t, EventError, frame.Event)
	var payload respond.ErrorEventRespond
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Message must have content or a file", payload.Detail)
}

func TestJoinChat_ResetsUnread(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, userA)
	bob := h.dial(t, userB)

	send(t, alice, EventSendMessage, map[string]string{"chatId": directAB, "content": "one"})
	require.Equal(t, EventNewMessage, readFrame(t, bob).Event)

	for _, payload := range []any{directAB, map[string]string{"chatId": directAB}} {
		send(t, bob, EventJoinChat, payload)
		frame := readFrame(t, bob)
		require.Equal(t, EventUnreadUpdated, frame.Event)
		var ack respond.UnreadUpdatedRespond
		require.NoError(t, json.Unmarshal(frame.Data, &ack))
		assert.Equal(t, respond.UnreadUpdatedRespond{ChatId: directAB, UnreadCount: 0}, ack)
	}

	p, ok := h.store.Participant(directAB, userB)
	require.True(t, ok)
	assert.Equal(t, 0, p.UnreadCount)
}

func TestUnknownEvent(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, userA)

	send(t, alice, "typing", map[string]string{"chatId": directAB})

	frame := readFrame(t, alice)
	require.Equal(t, EventError, frame.Event)
	var payload respond.ErrorEventRespond
	require.NoError(t, json.Unmarshal(frame.Data, &payload))
	assert.Equal(t, "Unknown event", payload.Message)
}

func TestDisconnectUnregisters(t *testing.T) {
	h := newHarness(t)
	alice := h.dial(t, userA)

	require.NoError(t, alice.Close())
	require.Eventually(t, func() bool { return h.conns.Online(userA) == 0 }, 2*time.Second, 10*time.Millisecond)
}

// recordingBroker 记录发布的投递
type recordingBroker struct {
	mu         sync.Mutex
	deliveries []Delivery
}

func (b *recordingBroker) Publish(_ context.Context, d Delivery) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.deliveries = append(b.deliveries, d)
	return nil
}
func (b *recordingBroker) Start(context.Context) {}
func (b *recordingBroker) Close() error          { return nil }

type stubMembership struct {
	service.MembershipService
	ids []string
}

func (s stubMembership) ParticipantUserIds(context.Context, string) ([]string, error) {
	return s.ids, nil
}

func TestNotifyGroupUpdated(t *testing.T) {
	const group = "bbbbbbbb-0000-0000-0000-000000000001"

	cases := []struct {
		name         string
		action       string
		members      []string
		others       []string
		targetAction string
	}{
		{
			name:         "added",
			action:       service.ActionParticipantAdded,
			members:      []string{userA, userB, userC},
			others:       []string{userA, userB},
			targetAction: ActionAddedToGroup,
		},
		{
			name:         "removed",
			action:       service.ActionParticipantRemoved,
			members:      []string{userA, userB},
			others:       []string{userA, userB},
			targetAction: ActionRemovedFromGroup,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			broker := &recordingBroker{}
			server := NewServer(ServerDeps{
				Conns:      NewConnManager(),
				Broker:     broker,
				Membership: stubMembership{ids: tc.members},
			})

			require.NoError(t, server.NotifyGroupUpdated(context.Background(), group, tc.action, userC))
			require.Len(t, broker.deliveries, 2)

			var payload respond.GroupUpdatedRespond
			assert.Equal(t, tc.others, broker.deliveries[0].UserIds)
			assert.Equal(t, EventGroupUpdated, broker.deliveries[0].Event)
			require.NoError(t, json.Unmarshal(broker.deliveries[0].Data, &payload))
			assert.Equal(t, respond.GroupUpdatedRespond{ChatId: group, Action: tc.action, UserId: userC}, payload)

			assert.Equal(t, []string{userC}, broker.deliveries[1].UserIds)
			require.NoError(t, json.Unmarshal(broker.deliveries[1].Data, &payload))
			assert.Equal(t, tc.targetAction, payload.Action)
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws?token=q", nil)
	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "q", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	r.Header.Set("Authorization", "Bearer h")
	assert.Equal(t, "h", TokenFromRequest(r))

	r = httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.Empty(t, TokenFromRequest(r))
}
