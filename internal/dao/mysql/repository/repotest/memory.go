// Package repotest 提供 repository 接口的内存实现，供 service 与 handler 测试使用
// 与数据库实现保持相同的约束：单聊唯一键、(chat_id,user_id) 联合唯一、事务失败回滚
package repotest

import (
	"context"
	"sort"
	"sync"
	"time"

	"csr_chat_server/internal/dao/mysql/repository"
	"csr_chat_server/internal/model"
	"csr_chat_server/pkg/errorx"

	"gorm.io/gorm"
)

// Store 内存数据源
type Store struct {
	mu   sync.Mutex
	txMu sync.Mutex

	users        map[string]model.UserInfo
	chats        map[string]model.Chat
	participants []model.ChatParticipant
	messages     []model.Message
	nextPid      uint

	// BeforeChatCreate 在写入会话前回调，测试可借此模拟另一个请求抢先建聊
	BeforeChatCreate func(chat *model.Chat)
	// MessageCreateErr 非空时写入消息失败
	MessageCreateErr error
	// IncrementUnreadErr 非空时累加未读数失败
	IncrementUnreadErr error
}

// New 创建空的内存数据源
func New() *Store {
	return &Store{
		users: make(map[string]model.UserInfo),
		chats: make(map[string]model.Chat),
	}
}

// txLog 记录事务内的撤销操作
type txLog struct {
	undo []func()
}

func (l *txLog) add(fn func()) {
	if l != nil {
		l.undo = append(l.undo, fn)
	}
}

// Repositories 返回基于本数据源的 Repositories
func (s *Store) Repositories() *repository.Repositories {
	return s.repos(nil)
}

func (s *Store) repos(log *txLog) *repository.Repositories {
	return repository.Compose(
		&userRepo{s: s, log: log},
		&chatRepo{s: s, log: log},
		&participantRepo{s: s, log: log},
		&messageRepo{s: s, log: log},
		s.transaction,
	)
}

// transaction 串行执行事务，fn 返回错误时按逆序撤销事务内的写入
func (s *Store) transaction(ctx context.Context, fn func(txRepos *repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	log := &txLog{}
	if err := fn(s.repos(log)); err != nil {
		s.mu.Lock()
		for i := len(log.undo) - 1; i >= 0; i-- {
			log.undo[i]()
		}
		s.mu.Unlock()
		return err
	}
	return nil
}

// ==================== 测试辅助 ====================

// AddUser 直接写入用户
func (s *Store) AddUser(users ...model.UserInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range users {
		s.users[u.Uuid] = u
	}
}

// PutChat 不经事务直接写入会话及成员，模拟其他请求已提交的数据
func (s *Store) PutChat(chat model.Chat, participants ...model.ChatParticipant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats[chat.Uuid] = chat
	for _, p := range participants {
		s.nextPid++
		p.ID = s.nextPid
		s.participants = append(s.participants, p)
	}
}

// Chat 读取会话快照
func (s *Store) Chat(id string) (model.Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chats[id]
	return c, ok
}

// ChatCount 会话总数
func (s *Store) ChatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chats)
}

// Participant 读取成员快照
func (s *Store) Participant(chatId, userId string) (model.ChatParticipant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.participants {
		if p.ChatId == chatId && p.UserId == userId {
			return p, true
		}
	}
	return model.ChatParticipant{}, false
}

// MessageCount 会话消息数
func (s *Store) MessageCount(chatId string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ChatId == chatId {
			n++
		}
	}
	return n
}

func notFound(msg string) error {
	return errorx.Wrap(gorm.ErrRecordNotFound, errorx.CodeNotFound, msg)
}

func duplicated(msg string) error {
	return errorx.Wrap(gorm.ErrDuplicatedKey, errorx.CodeConflict, msg)
}

// ==================== UserRepository ====================

type userRepo struct {
	s   *Store
	log *txLog
}

func (r *userRepo) FindByUuid(ctx context.Context, uuid string) (*model.UserInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[uuid]
	if !ok {
		return nil, notFound("用户不存在")
	}
	return &u, nil
}

func (r *userRepo) FindActiveByUuid(ctx context.Context, uuid string) (*model.UserInfo, error) {
	u, err := r.FindByUuid(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if !u.IsActive {
		return nil, notFound("用户不存在")
	}
	return u, nil
}

func (r *userRepo) FindActiveByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error) {
	users, _ := r.FindByUuids(ctx, uuids)
	active := make([]model.UserInfo, 0, len(users))
	for _, u := range users {
		if u.IsActive {
			active = append(active, u)
		}
	}
	return active, nil
}

func (r *userRepo) FindByUuids(ctx context.Context, uuids []string) ([]model.UserInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	seen := make(map[string]struct{}, len(uuids))
	users := make([]model.UserInfo, 0, len(uuids))
	for _, id := range uuids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if u, ok := r.s.users[id]; ok {
			users = append(users, u)
		}
	}
	return users, nil
}

func (r *userRepo) FindAllActive(ctx context.Context) ([]model.UserInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	users := make([]model.UserInfo, 0, len(r.s.users))
	for _, u := range r.s.users {
		if u.IsActive {
			users = append(users, u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Name < users[j].Name })
	return users, nil
}

func (r *userRepo) FindByEmail(ctx context.Context, email string) (*model.UserInfo, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, notFound("用户不存在")
}

func (r *userRepo) Create(ctx context.Context, user *model.UserInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[user.Uuid]; ok {
		return duplicated("用户已存在")
	}
	r.s.users[user.Uuid] = *user
	id := user.Uuid
	r.log.add(func() { delete(r.s.users, id) })
	return nil
}

// ==================== ChatRepository ====================

type chatRepo struct {
	s   *Store
	log *txLog
}

func (r *chatRepo) FindByUuid(ctx context.Context, uuid string) (*model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[uuid]
	if !ok {
		return nil, notFound("会话不存在")
	}
	return &c, nil
}

func (r *chatRepo) FindByDirectKey(ctx context.Context, directKey string) (*model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.chats {
		if c.DirectKey != nil && *c.DirectKey == directKey {
			return &c, nil
		}
	}
	return nil, notFound("单聊不存在")
}

func (r *chatRepo) FindByUuids(ctx context.Context, uuids []string) ([]model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	chats := make([]model.Chat, 0, len(uuids))
	for _, id := range uuids {
		if c, ok := r.s.chats[id]; ok {
			chats = append(chats, c)
		}
	}
	sort.SliceStable(chats, func(i, j int) bool {
		if !chats[i].LastActivityAt.Equal(chats[j].LastActivityAt) {
			return chats[i].LastActivityAt.After(chats[j].LastActivityAt)
		}
		return chats[i].Uuid < chats[j].Uuid
	})
	return chats, nil
}

func (r *chatRepo) Create(ctx context.Context, chat *model.Chat) error {
	if hook := r.s.BeforeChatCreate; hook != nil {
		hook(chat)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.chats[chat.Uuid]; ok {
		return duplicated("会话已存在")
	}
	if chat.DirectKey != nil {
		for _, c := range r.s.chats {
			if c.DirectKey != nil && *c.DirectKey == *chat.DirectKey {
				return duplicated("单聊已存在")
			}
		}
	}
	now := time.Now()
	if chat.CreatedAt.IsZero() {
		chat.CreatedAt = now
	}
	chat.UpdatedAt = now
	r.s.chats[chat.Uuid] = *chat
	id := chat.Uuid
	r.log.add(func() { delete(r.s.chats, id) })
	return nil
}

func (r *chatRepo) TouchActivity(ctx context.Context, uuid string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[uuid]
	if !ok || !c.LastActivityAt.Before(at) {
		return nil
	}
	prev := c
	c.LastActivityAt = at
	r.s.chats[uuid] = c
	r.log.add(func() { r.s.chats[uuid] = prev })
	return nil
}

// ==================== ParticipantRepository ====================

type participantRepo struct {
	s   *Store
	log *txLog
}

func (r *participantRepo) FindByChatAndUser(ctx context.Context, chatId, userId string) (*model.ChatParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.participants {
		if p.ChatId == chatId && p.UserId == userId {
			return &p, nil
		}
	}
	return nil, notFound("会话成员不存在")
}

func (r *participantRepo) FindByChatId(ctx context.Context, chatId string) ([]model.ChatParticipant, error) {
	return r.FindByChatIds(ctx, []string{chatId})
}

func (r *participantRepo) FindByChatIds(ctx context.Context, chatIds []string) ([]model.ChatParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]struct{}, len(chatIds))
	for _, id := range chatIds {
		want[id] = struct{}{}
	}
	var out []model.ChatParticipant
	for _, p := range r.s.participants {
		if _, ok := want[p.ChatId]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *participantRepo) FindByUserId(ctx context.Context, userId string) ([]model.ChatParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []model.ChatParticipant
	for _, p := range r.s.participants {
		if p.UserId == userId {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *participantRepo) Create(ctx context.Context, participant *model.ChatParticipant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.insertLocked(participant)
}

func (r *participantRepo) insertLocked(participant *model.ChatParticipant) error {
	for _, p := range r.s.participants {
		if p.ChatId == participant.ChatId && p.UserId == participant.UserId {
			return duplicated("会话成员已存在")
		}
	}
	r.s.nextPid++
	participant.ID = r.s.nextPid
	r.s.participants = append(r.s.participants, *participant)
	id := participant.ID
	r.log.add(func() { r.s.removeParticipantByID(id) })
	return nil
}

func (r *participantRepo) CreateBatch(ctx context.Context, participants []model.ChatParticipant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range participants {
		if err := r.insertLocked(&participants[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *participantRepo) Delete(ctx context.Context, chatId, userId string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, p := range r.s.participants {
		if p.ChatId == chatId && p.UserId == userId {
			r.s.participants = append(r.s.participants[:i:i], r.s.participants[i+1:]...)
			removed := p
			r.log.add(func() { r.s.participants = append(r.s.participants, removed) })
			return nil
		}
	}
	return errorx.New(errorx.CodeNotFound, "会话成员不存在")
}

func (r *participantRepo) IncrementUnreadExcept(ctx context.Context, chatId, senderId string) error {
	if r.s.IncrementUnreadErr != nil {
		return errorx.Wrap(r.s.IncrementUnreadErr, errorx.CodeDBError, "累加未读数")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.participants {
		p := &r.s.participants[i]
		if p.ChatId == chatId && p.UserId != senderId {
			p.UnreadCount++
			id := p.ID
			r.log.add(func() { r.s.adjustUnread(id, -1) })
		}
	}
	return nil
}

func (r *participantRepo) ResetUnread(ctx context.Context, chatId, userId string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.participants {
		p := &r.s.participants[i]
		if p.ChatId == chatId && p.UserId == userId {
			prev := p.UnreadCount
			p.UnreadCount = 0
			id := p.ID
			r.log.add(func() { r.s.adjustUnread(id, prev) })
		}
	}
	return nil
}

func (s *Store) removeParticipantByID(id uint) {
	for i, p := range s.participants {
		if p.ID == id {
			s.participants = append(s.participants[:i:i], s.participants[i+1:]...)
			return
		}
	}
}

func (s *Store) adjustUnread(id uint, delta int) {
	for i := range s.participants {
		if s.participants[i].ID == id {
			s.participants[i].UnreadCount += delta
			return
		}
	}
}

// ==================== MessageRepository ====================

type messageRepo struct {
	s   *Store
	log *txLog
}

func (r *messageRepo) Create(ctx context.Context, message *model.Message) error {
	if r.s.MessageCreateErr != nil {
		return errorx.Wrap(r.s.MessageCreateErr, errorx.CodeDBError, "写入消息")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.messages = append(r.s.messages, *message)
	id := message.Id
	r.log.add(func() {
		for i, m := range r.s.messages {
			if m.Id == id {
				r.s.messages = append(r.s.messages[:i:i], r.s.messages[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r *messageRepo) CountByChatId(ctx context.Context, chatId string) (int64, error) {
	return int64(r.s.MessageCount(chatId)), nil
}

func (r *messageRepo) FindPageByChatId(ctx context.Context, chatId string, offset, limit int) ([]model.Message, error) {
	r.s.mu.Lock()
	var all []model.Message
	for _, m := range r.s.messages {
		if m.ChatId == chatId {
			all = append(all, m)
		}
	}
	r.s.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].Id > all[j].Id
	})
	if offset >= len(all) {
		return []model.Message{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *messageRepo) FindLatestByChatIds(ctx context.Context, chatIds []string) ([]model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	want := make(map[string]struct{}, len(chatIds))
	for _, id := range chatIds {
		want[id] = struct{}{}
	}
	latest := make(map[string]model.Message)
	for _, m := range r.s.messages {
		if _, ok := want[m.ChatId]; !ok {
			continue
		}
		if cur, ok := latest[m.ChatId]; !ok || m.Id > cur.Id {
			latest[m.ChatId] = m
		}
	}
	out := make([]model.Message, 0, len(latest))
	for _, m := range latest {
		out = append(out, m)
	}
	return out, nil
}
