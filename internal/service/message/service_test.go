package message

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"csr_chat_server/internal/config"
	"csr_chat_server/internal/dao/mysql/repository/repotest"
	"csr_chat_server/internal/model"
	"csr_chat_server/pkg/constants"
	"csr_chat_server/pkg/enum/chat/chat_type_enum"
	"csr_chat_server/pkg/enum/chat/participant_role_enum"
	"csr_chat_server/internal/service/membership"
	"csr_chat_server/pkg/enum/message/message_type_enum"
	"csr_chat_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	alice = "11111111-1111-1111-1111-111111111111"
	bob   = "22222222-2222-2222-2222-222222222222"
	carol = "33333333-3333-3333-3333-333333333333"
	dave  = "44444444-4444-4444-4444-444444444444"
	group = "bbbbbbbb-0000-0000-0000-000000000001"
)

type counterIDs struct{ n atomic.Int64 }

func (c *counterIDs) NextID() int64 { return c.n.Add(1) }

// memoryStorage 记录写入内容的附件存储
type memoryStorage struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memoryStorage) Save(_ context.Context, key string, src io.Reader) (string, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return "/uploads/" + key, nil
}

type fixture struct {
	store   *repotest.Store
	files   *memoryStorage
	svc     *messageService
	started time.Time
}

// 三人群聊：alice、bob、carol，dave 不在群内
func setup(t *testing.T) *fixture {
	t.Helper()
	store := repotest.New()
	store.AddUser(
		model.UserInfo{Uuid: alice, Name: "Alice", Email: "alice@example.com", Role: "EMPLOYEE", IsActive: true},
		model.UserInfo{Uuid: bob, Name: "Bob", Email: "bob@example.com", Role: "EMPLOYEE", IsActive: true},
		model.UserInfo{Uuid: carol, Name: "Carol", Email: "carol@example.com", Role: "EMPLOYEE", IsActive: true},
		model.UserInfo{Uuid: dave, Name: "Dave", Email: "dave@example.com", Role: "EMPLOYEE", IsActive: true},
	)
	started := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	name := "Field Team"
	store.PutChat(model.Chat{Uuid: group, Type: chat_type_enum.Group, IsGroup: true, Name: &name, CreatedById: alice, LastActivityAt: started},
		model.ChatParticipant{ChatId: group, UserId: alice, Role: participant_role_enum.Admin, JoinedAt: started},
		model.ChatParticipant{ChatId: group, UserId: bob, Role: participant_role_enum.Member, JoinedAt: started},
		model.ChatParticipant{ChatId: group, UserId: carol, Role: participant_role_enum.Member, JoinedAt: started},
	)

	files := &memoryStorage{files: map[string][]byte{}}
	svc := NewMessageService(store.Repositories(), &counterIDs{}, files, UploadPolicy{
		MaxSize:      1 * constants.MB,
		AllowedTypes: config.DefaultAllowedTypes,
	})
	// 每次取时间前进一秒，保证顺序可预期
	clock := started
	svc.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return &fixture{store: store, files: files, svc: svc, started: started}
}

func (f *fixture) unread(t *testing.T, userId string) int {
	t.Helper()
	p, ok := f.store.Participant(group, userId)
	require.True(t, ok)
	return p.UnreadCount
}

func TestSendMessage(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: alice, Content: "  hello  "})
	require.NoError(t, err)
	assert.Equal(t, "1", res.Id)
	require.NotNil(t, res.Content)
	assert.Equal(t, "hello", *res.Content)
	assert.Equal(t, message_type_enum.Text, res.MessageType)
	assert.Equal(t, "Alice", res.Sender.Name)
	assert.Nil(t, res.FileUrl)

	// 发送者未读数不变，其他成员各加一
	assert.Zero(t, f.unread(t, alice))
	assert.Equal(t, 1, f.unread(t, bob))
	assert.Equal(t, 1, f.unread(t, carol))

	chat, ok := f.store.Chat(group)
	require.True(t, ok)
	assert.Equal(t, res.CreatedAt, chat.LastActivityAt)
	assert.True(t, chat.LastActivityAt.After(f.started))

	_, err = f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: bob, Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.unread(t, alice))
	assert.Equal(t, 1, f.unread(t, bob))
	assert.Equal(t, 2, f.unread(t, carol))
}

func TestSendMessage_WithFile(t *testing.T) {
	f := setup(t)

	res, err := f.svc.SendMessage(context.Background(), SendMessageInput{
		ChatId:      group,
		SenderId:    alice,
		MessageType: message_type_enum.Image,
		FileUrl:     "/uploads/chat-images/x-photo.png",
		FileName:    "photo.png",
		FileSize:    2048,
	})
	require.NoError(t, err)
	assert.Nil(t, res.Content)
	require.NotNil(t, res.FileUrl)
	assert.Equal(t, "/uploads/chat-images/x-photo.png", *res.FileUrl)
	require.NotNil(t, res.FileSize)
	assert.Equal(t, int64(2048), *res.FileSize)
	assert.Equal(t, message_type_enum.Image, res.MessageType)
}

func TestSendMessage_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := []struct {
		name string
		in   SendMessageInput
		code int
	}{
		{"blank content", SendMessageInput{ChatId: group, SenderId: alice, Content: "   "}, errorx.CodeInvalidParam},
		{"too long", SendMessageInput{ChatId: group, SenderId: alice, Content: strings.Repeat("a", constants.MESSAGE_MAX_LENGTH+1)}, errorx.CodeInvalidParam},
		{"bad type", SendMessageInput{ChatId: group, SenderId: alice, Content: "x", MessageType: "VIDEO"}, errorx.CodeInvalidParam},
		{"not a participant", SendMessageInput{ChatId: group, SenderId: dave, Content: "x"}, errorx.CodeForbidden},
		// 成员校验先于内容校验
		{"not a participant and blank", SendMessageInput{ChatId: group, SenderId: dave, Content: "   "}, errorx.CodeForbidden},
		{"not a participant and bad type", SendMessageInput{ChatId: group, SenderId: dave, Content: "x", MessageType: "VIDEO"}, errorx.CodeForbidden},
		{"unknown chat", SendMessageInput{ChatId: "cccccccc-0000-0000-0000-000000000001", SenderId: alice, Content: "x"}, errorx.CodeForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.SendMessage(ctx, tc.in)
			assert.Equal(t, tc.code, errorx.GetCode(err))
		})
	}
	assert.Zero(t, f.store.MessageCount(group))
	assert.Zero(t, f.unread(t, bob))

	// 恰好达到上限的内容可以发送
	_, err := f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: alice, Content: strings.Repeat("é", constants.MESSAGE_MAX_LENGTH)})
	require.NoError(t, err)
}

func TestSendMessage_RollsBack(t *testing.T) {
	t.Run("message insert fails", func(t *testing.T) {
		f := setup(t)
		f.store.MessageCreateErr = errors.New("disk full")

		_, err := f.svc.SendMessage(context.Background(), SendMessageInput{ChatId: group, SenderId: alice, Content: "hello"})
		assert.ErrorIs(t, err, errorx.ErrServerBusy)
		assert.Zero(t, f.store.MessageCount(group))
		assert.Zero(t, f.unread(t, bob))
	})

	t.Run("unread increment fails", func(t *testing.T) {
		f := setup(t)
		f.store.IncrementUnreadErr = errors.New("deadlock")

		_, err := f.svc.SendMessage(context.Background(), SendMessageInput{ChatId: group, SenderId: alice, Content: "hello"})
		assert.ErrorIs(t, err, errorx.ErrServerBusy)
		assert.Zero(t, f.store.MessageCount(group))
		assert.Zero(t, f.unread(t, bob))
		chat, _ := f.store.Chat(group)
		assert.True(t, chat.LastActivityAt.Equal(f.started))
	})
}

func TestGetMessages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: alice, Content: string(rune('a' + i))})
		require.NoError(t, err)
	}

	// 第一页为最新的两条，页内升序
	page, err := f.svc.GetMessages(ctx, group, bob, 1, 2)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "d", *page.Items[0].Content)
	assert.Equal(t, "e", *page.Items[1].Content)
	assert.Equal(t, int64(5), page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)

	last, err := f.svc.GetMessages(ctx, group, bob, 3, 2)
	require.NoError(t, err)
	require.Len(t, last.Items, 1)
	assert.Equal(t, "a", *last.Items[0].Content)

	beyond, err := f.svc.GetMessages(ctx, group, bob, 9, 2)
	require.NoError(t, err)
	assert.Empty(t, beyond.Items)
	assert.NotNil(t, beyond.Items)
}

func TestGetMessages_WalkAllPages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const total = 23
	sent := make([]string, 0, total)
	for i := 0; i < total; i++ {
		res, err := f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: alice, Content: "msg"})
		require.NoError(t, err)
		sent = append(sent, res.Id)
	}

	// 倒序翻页后拼接，应与发送顺序完全一致
	first, err := f.svc.GetMessages(ctx, group, bob, 1, 5)
	require.NoError(t, err)
	require.Equal(t, 5, first.Pagination.TotalPages)

	var walked []string
	for page := first.Pagination.TotalPages; page >= 1; page-- {
		res, err := f.svc.GetMessages(ctx, group, bob, page, 5)
		require.NoError(t, err)
		for i, item := range res.Items {
			if i > 0 {
				assert.False(t, item.CreatedAt.Before(res.Items[i-1].CreatedAt))
			}
			walked = append(walked, item.Id)
		}
	}
	assert.Equal(t, sent, walked)
}

func TestGetMessages_AfterRemoval(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: bob, Content: "from bob"})
	require.NoError(t, err)

	require.NoError(t, membership.NewMembershipService(f.store.Repositories()).RemoveParticipant(ctx, group, alice, bob))

	_, err = f.svc.GetMessages(ctx, group, bob, 1, 10)
	assert.ErrorIs(t, err, errorx.ErrAccessDenied)
	_, err = f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: bob, Content: "still here?"})
	assert.ErrorIs(t, err, errorx.ErrAccessDenied)

	// 被移除者之前的消息对留下的成员依然可见
	for _, uid := range []string{alice, carol} {
		page, err := f.svc.GetMessages(ctx, group, uid, 1, 10)
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "from bob", *page.Items[0].Content)
		assert.Equal(t, bob, page.Items[0].Sender.Id)
	}
}

func TestGetMessages_Clamps(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	page, err := f.svc.GetMessages(ctx, group, alice, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, constants.DEFAULT_PAGE, page.Pagination.Page)
	assert.Equal(t, constants.DEFAULT_PER_PAGE, page.Pagination.PerPage)
	assert.Zero(t, page.Pagination.TotalPages)

	page, err = f.svc.GetMessages(ctx, group, alice, -3, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.Page)
	assert.Equal(t, constants.MAX_PER_PAGE, page.Pagination.PerPage)

	_, err = f.svc.GetMessages(ctx, group, dave, 1, 10)
	assert.ErrorIs(t, err, errorx.ErrAccessDenied)
}

func TestMarkChatAsRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := f.svc.SendMessage(ctx, SendMessageInput{ChatId: group, SenderId: alice, Content: "ping"})
		require.NoError(t, err)
	}
	require.Equal(t, 3, f.unread(t, bob))

	require.NoError(t, f.svc.MarkChatAsRead(ctx, group, bob))
	assert.Zero(t, f.unread(t, bob))
	require.NoError(t, f.svc.MarkChatAsRead(ctx, group, bob))
	assert.Zero(t, f.unread(t, bob))
	assert.Equal(t, 3, f.unread(t, carol))

	// 非成员调用不报错也不产生任何效果
	require.NoError(t, f.svc.MarkChatAsRead(ctx, group, dave))
}

// fileHeader 经由 multipart 编解码得到真实的 FileHeader
func fileHeader(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["file"][0]
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func TestUploadAttachment(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	res, err := f.svc.UploadAttachment(ctx, group, bob, fileHeader(t, "../../site photo.png", pngHeader))
	require.NoError(t, err)
	assert.Equal(t, message_type_enum.Image, res.MessageType)
	assert.Equal(t, "site photo.png", res.FileName)
	assert.True(t, strings.HasPrefix(res.FileKey, constants.IMAGE_FOLDER+"/"))
	assert.True(t, strings.HasSuffix(res.FileKey, "-site photo.png"))
	assert.Equal(t, "/uploads/"+res.FileKey, res.FileUrl)
	assert.Equal(t, int64(len(pngHeader)), res.FileSize)
	// 识别文件头后从头写入完整内容
	assert.Equal(t, pngHeader, f.files.files[res.FileKey])

	doc, err := f.svc.UploadAttachment(ctx, group, bob, fileHeader(t, "notes.txt", []byte("visit notes\n")))
	require.NoError(t, err)
	assert.Equal(t, message_type_enum.File, doc.MessageType)
	assert.True(t, strings.HasPrefix(doc.FileKey, constants.FILE_FOLDER+"/"))
}

func TestUploadAttachment_Rejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	// 扩展名伪装成图片的压缩包按内容识别
	zip := []byte("PK\x03\x04\x14\x00\x00\x00\x08\x00")
	_, err := f.svc.UploadAttachment(ctx, group, bob, fileHeader(t, "photo.png", zip))
	assert.Equal(t, errorx.CodeFileTypeNotAllowed, errorx.GetCode(err))

	big := append(append([]byte{}, pngHeader...), make([]byte, constants.MB)...)
	_, err = f.svc.UploadAttachment(ctx, group, bob, fileHeader(t, "big.png", big))
	assert.Equal(t, errorx.CodeFileTooLarge, errorx.GetCode(err))

	_, err = f.svc.UploadAttachment(ctx, group, dave, fileHeader(t, "a.png", pngHeader))
	assert.ErrorIs(t, err, errorx.ErrAccessDenied)

	_, err = f.svc.UploadAttachment(ctx, group, bob, nil)
	assert.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))

	assert.Empty(t, f.files.files)
}
