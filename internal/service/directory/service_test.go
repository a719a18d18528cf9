package directory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"csr_chat_server/internal/dao/mysql/repository/repotest"
	"csr_chat_server/internal/dto/respond"
	"csr_chat_server/internal/model"
	"csr_chat_server/internal/service/message"
	"csr_chat_server/pkg/constants"
	"csr_chat_server/pkg/enum/chat/participant_role_enum"
	"csr_chat_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	carol = "33333333-3333-3333-3333-333333333333"
	dave  = "44444444-4444-4444-4444-444444444444"
)

func newStore() *repotest.Store {
	store := repotest.New()
	store.AddUser(
		model.UserInfo{Uuid: alice, Name: "Alice", Email: "alice@example.com", Role: "EMPLOYEE", IsActive: true},
		model.UserInfo{Uuid: bob, Name: "Bob", Email: "bob@example.com", Role: "EMPLOYEE", IsActive: true},
		model.UserInfo{Uuid: carol, Name: "Carol", Email: "carol@example.com", Role: "ADMIN", IsActive: true},
		model.UserInfo{Uuid: dave, Name: "Dave", Email: "dave@example.com", Role: "EMPLOYEE", IsActive: false},
	)
	return store
}

func TestFindOrCreateDirectChat(t *testing.T) {
	store := newStore()
	svc := NewDirectoryService(store.Repositories(), nil, time.Minute)
	ctx := context.Background()

	created, err := svc.FindOrCreateDirectChat(ctx, alice, bob)
	require.NoError(t, err)
	assert.True(t, created.IsNew)
	assert.False(t, created.IsGroup)
	assert.Equal(t, bob, created.OtherUser.Id)

	// 反向调用命中同一会话
	again, err := svc.FindOrCreateDirectChat(ctx, bob, alice)
	require.NoError(t, err)
	assert.False(t, again.IsNew)
	assert.Equal(t, created.Id, again.Id)
	assert.Equal(t, alice, again.OtherUser.Id)
	assert.Equal(t, 1, store.ChatCount())

	for _, uid := range []string{alice, bob} {
		p, ok := store.Participant(created.Id, uid)
		require.True(t, ok)
		assert.Equal(t, participant_role_enum.Member, p.Role)
	}
}

func TestFindOrCreateDirectChat_Rejections(t *testing.T) {
	svc := NewDirectoryService(newStore().Repositories(), nil, time.Minute)
	ctx := context.Background()

	_, err := svc.FindOrCreateDirectChat(ctx, alice, alice)
	assert.True(t, errorx.IsConflict(err))

	_, err = svc.FindOrCreateDirectChat(ctx, alice, dave)
	assert.True(t, errorx.IsNotFound(err))

	_, err = svc.FindOrCreateDirectChat(ctx, alice, "55555555-5555-5555-5555-555555555555")
	assert.True(t, errorx.IsNotFound(err))
}

func TestFindOrCreateDirectChat_Concurrent(t *testing.T) {
	store := newStore()
	svc := NewDirectoryService(store.Repositories(), nil, time.Minute)

	const callers = 16
	results := make([]*respond.DirectChatRespond, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := alice, bob
			if i%2 == 1 {
				a, b = bob, alice
			}
			results[i], errs[i] = svc.FindOrCreateDirectChat(context.Background(), a, b)
		}(i)
	}
	wg.Wait()

	newCount := 0
	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0].Id, results[i].Id)
		if results[i].IsNew {
			newCount++
		}
	}
	assert.Equal(t, 1, newCount)
	assert.Equal(t, 1, store.ChatCount())
}

func TestFindOrCreateDirectChat_LosesRace(t *testing.T) {
	store := newStore()
	svc := NewDirectoryService(store.Repositories(), nil, time.Minute)
	key := model.DirectKeyOf(alice, bob)
	const winner = "aaaaaaaa-0000-0000-0000-000000000001"

	// 查询之后、写入之前另一个请求抢先提交
	store.BeforeChatCreate = func(*model.Chat) {
		store.BeforeChatCreate = nil
		now := time.Now()
		store.PutChat(model.Chat{Uuid: winner, Type: "ONE_ON_ONE", DirectKey: &key, CreatedById: bob, LastActivityAt: now},
			model.ChatParticipant{ChatId: winner, UserId: alice, Role: participant_role_enum.Member, JoinedAt: now},
			model.ChatParticipant{ChatId: winner, UserId: bob, Role: participant_role_enum.Member, JoinedAt: now},
		)
	}

	res, err := svc.FindOrCreateDirectChat(context.Background(), alice, bob)
	require.NoError(t, err)
	assert.Equal(t, winner, res.Id)
	assert.False(t, res.IsNew)
	assert.Equal(t, 1, store.ChatCount())
}

func TestCreateGroupChat(t *testing.T) {
	store := newStore()
	svc := NewDirectoryService(store.Repositories(), nil, time.Minute)
	ctx := context.Background()

	res, err := svc.CreateGroupChat(ctx, alice, "  Field Visit  ", []string{bob, carol, bob, alice})
	require.NoError(t, err)
	assert.True(t, res.IsGroup)
	assert.True(t, res.IsNew)
	assert.Equal(t, "Field Visit", res.Name)
	require.Len(t, res.Participants, 3)

	roles := map[string]string{}
	for _, p := range res.Participants {
		roles[p.Id] = p.ParticipantRole
	}
	assert.Equal(t, map[string]string{
		alice: participant_role_enum.Admin,
		bob:   participant_role_enum.Member,
		carol: participant_role_enum.Member,
	}, roles)
}

func TestCreateGroupChat_Rejections(t *testing.T) {
	store := newStore()
	svc := NewDirectoryService(store.Repositories(), nil, time.Minute)
	ctx := context.Background()

	cases := []struct {
		name    string
		title   string
		members []string
		code    int
	}{
		{"blank name", "   ", []string{bob, carol}, errorx.CodeInvalidParam},
		{"name too long", string(make([]rune, constants.GROUP_NAME_MAX_LENGTH+1)), []string{bob, carol}, errorx.CodeInvalidParam},
		{"too few after dedupe", "Team", []string{bob, bob, alice}, errorx.CodeInvalidParam},
		{"inactive member", "Team", []string{bob, dave}, errorx.CodeNotFound},
		{"unknown member", "Team", []string{bob, "55555555-5555-5555-5555-555555555555"}, errorx.CodeNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateGroupChat(ctx, alice, tc.title, tc.members)
			assert.Equal(t, tc.code, errorx.GetCode(err))
		})
	}
	assert.Equal(t, 0, store.ChatCount())
}

func TestListChatsForUser(t *testing.T) {
	store := newStore()
	svc := NewDirectoryService(store.Repositories(), nil, time.Minute)
	ctx := context.Background()

	direct, err := svc.FindOrCreateDirectChat(ctx, alice, bob)
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	group, err := svc.CreateGroupChat(ctx, alice, "Team", []string{bob, carol})
	require.NoError(t, err)

	list, err := svc.ListChatsForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, group.Id, list[0].Id)
	assert.Nil(t, list[0].OtherUser)
	assert.Len(t, list[0].Participants, 2)

	assert.Equal(t, direct.Id, list[1].Id)
	require.NotNil(t, list[1].OtherUser)
	assert.Equal(t, bob, list[1].OtherUser.Id)
	assert.Nil(t, list[1].LastMessage)
	assert.Zero(t, list[1].UnreadCount)

	none, err := svc.ListChatsForUser(ctx, dave)
	require.NoError(t, err)
	assert.Empty(t, none)
}

type counterIDs struct{ n atomic.Int64 }

func (c *counterIDs) NextID() int64 { return c.n.Add(1) }

func TestListChatsForUser_UnreadAfterMarkRead(t *testing.T) {
	store := newStore()
	svc := NewDirectoryService(store.Repositories(), nil, time.Minute)
	messages := message.NewMessageService(store.Repositories(), &counterIDs{}, nil, message.UploadPolicy{})
	ctx := context.Background()

	direct, err := svc.FindOrCreateDirectChat(ctx, alice, bob)
	require.NoError(t, err)
	for _, text := range []string{"one", "two"} {
		_, err := messages.SendMessage(ctx, message.SendMessageInput{ChatId: direct.Id, SenderId: alice, Content: text})
		require.NoError(t, err)
	}

	list, err := svc.ListChatsForUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 2, list[0].UnreadCount)
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "two", *list[0].LastMessage.Content)

	require.NoError(t, messages.MarkChatAsRead(ctx, direct.Id, bob))

	list, err = svc.ListChatsForUser(ctx, bob)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Zero(t, list[0].UnreadCount)
	// 已读不影响最新消息摘要
	require.NotNil(t, list[0].LastMessage)
	assert.Equal(t, "two", *list[0].LastMessage.Content)

	// 发送者自己始终为零
	mine, err := svc.ListChatsForUser(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Zero(t, mine[0].UnreadCount)
}

// memoryCache 同步执行任务的缓存
type memoryCache struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func (c *memoryCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memoryCache) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.data[key], nil
}

func (c *memoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func (c *memoryCache) SubmitTask(action func()) { action() }

func TestListAvailableUsers_UsesCache(t *testing.T) {
	store := newStore()
	cache := &memoryCache{data: map[string]string{}}
	svc := NewDirectoryService(store.Repositories(), cache, time.Minute)
	ctx := context.Background()

	users, err := svc.ListAvailableUsers(ctx, alice)
	require.NoError(t, err)
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	assert.Equal(t, []string{"Bob", "Carol"}, names)
	assert.Equal(t, 1, cache.sets)

	// 第二次命中缓存，新用户不可见直到缓存过期
	store.AddUser(model.UserInfo{Uuid: "66666666-6666-6666-6666-666666666666", Name: "Eve", Email: "eve@example.com", Role: "EMPLOYEE", IsActive: true})
	users, err = svc.ListAvailableUsers(ctx, bob)
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 1, cache.sets)
}
