// Package directory 维护会话目录：会话列表、单聊查找或创建、建群、可联系用户
package directory

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"csr_chat_server/internal/dao/mysql/repository"
	myredis "csr_chat_server/internal/dao/redis"
	"csr_chat_server/internal/dto/respond"
	"csr_chat_server/internal/model"
	"csr_chat_server/pkg/constants"
	"csr_chat_server/pkg/enum/chat/chat_type_enum"
	"csr_chat_server/pkg/enum/chat/participant_role_enum"
	"csr_chat_server/pkg/errorx"
)

// directoryService 会话目录业务实现
// 通过构造函数注入 Repository 和 Cache 依赖，cache 为 nil 时直接读库
type directoryService struct {
	repos    *repository.Repositories
	cache    myredis.AsyncCacheService
	cacheTTL time.Duration
}

// NewDirectoryService 构造函数，注入所有依赖
func NewDirectoryService(repos *repository.Repositories, cache myredis.AsyncCacheService, cacheTTL time.Duration) *directoryService {
	if cacheTTL <= 0 {
		cacheTTL = constants.REDIS_TIMEOUT * time.Minute
	}
	return &directoryService{repos: repos, cache: cache, cacheTTL: cacheTTL}
}

// ListChatsForUser 用户参与的全部会话，按最近活跃时间倒序
func (s *directoryService) ListChatsForUser(ctx context.Context, userId string) ([]respond.ChatListItemRespond, error) {
	mine, err := s.repos.Participant.FindByUserId(ctx, userId)
	if err != nil {
		zap.L().Error("查询用户会话失败", zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	list := make([]respond.ChatListItemRespond, 0, len(mine))
	if len(mine) == 0 {
		return list, nil
	}

	chatIds := make([]string, 0, len(mine))
	unread := make(map[string]int, len(mine))
	for _, p := range mine {
		chatIds = append(chatIds, p.ChatId)
		unread[p.ChatId] = p.UnreadCount
	}

	chats, err := s.repos.Chat.FindByUuids(ctx, chatIds)
	if err != nil {
		zap.L().Error("批量查询会话失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	participants, err := s.repos.Participant.FindByChatIds(ctx, chatIds)
	if err != nil {
		zap.L().Error("批量查询会话成员失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	latest, err := s.repos.Message.FindLatestByChatIds(ctx, chatIds)
	if err != nil {
		zap.L().Error("查询最新消息失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	userIds := make([]string, 0, len(participants)+len(latest))
	membersOf := make(map[string][]string, len(chats))
	for _, p := range participants {
		userIds = append(userIds, p.UserId)
		if p.UserId != userId {
			membersOf[p.ChatId] = append(membersOf[p.ChatId], p.UserId)
		}
	}
	lastOf := make(map[string]model.Message, len(latest))
	for _, m := range latest {
		lastOf[m.ChatId] = m
		userIds = append(userIds, m.SenderId)
	}

	users, err := s.repos.User.FindByUuids(ctx, userIds)
	if err != nil {
		zap.L().Error("批量查询用户失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	profiles := make(map[string]model.UserInfo, len(users))
	for _, u := range users {
		profiles[u.Uuid] = u
	}

	for _, chat := range chats {
		item := respond.ChatListItemRespond{
			Id:           chat.Uuid,
			IsGroup:      chat.IsGroupChat(),
			Name:         chat.Name,
			Participants: make([]respond.UserBriefRespond, 0, len(membersOf[chat.Uuid])),
			UnreadCount:  unread[chat.Uuid],
			UpdatedAt:    chat.LastActivityAt,
		}
		for _, id := range membersOf[chat.Uuid] {
			item.Participants = append(item.Participants, respond.NewUserBrief(profileOf(profiles, id)))
		}
		if !item.IsGroup && len(item.Participants) > 0 {
			other := item.Participants[0]
			item.OtherUser = &other
		}
		if m, ok := lastOf[chat.Uuid]; ok {
			item.LastMessage = &respond.LastMessageRespond{
				Id:          strconv.FormatInt(m.Id, 10),
				Content:     m.Content,
				MessageType: m.MessageType,
				SenderId:    m.SenderId,
				SenderName:  profileOf(profiles, m.SenderId).Name,
				CreatedAt:   m.CreatedAt,
			}
		}
		list = append(list, item)
	}
	return list, nil
}

// FindOrCreateDirectChat 查找两名用户之间的单聊，不存在则创建
// direct_key 唯一索引保证并发调用只会有一个创建成功，失败方回读已提交的会话
func (s *directoryService) FindOrCreateDirectChat(ctx context.Context, userId, otherUserId string) (*respond.DirectChatRespond, error) {
	if userId == otherUserId {
		return nil, errorx.New(errorx.CodeConflict, "Cannot create chat with yourself")
	}
	other, err := s.repos.User.FindActiveByUuid(ctx, otherUserId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.New(errorx.CodeNotFound, "User not found")
		}
		zap.L().Error("查询用户失败", zap.String("user_id", otherUserId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	directKey := model.DirectKeyOf(userId, otherUserId)
	if existing, err := s.findDirect(ctx, directKey); err != nil || existing != nil {
		if err != nil {
			return nil, err
		}
		return &respond.DirectChatRespond{Id: existing.Uuid, OtherUser: respond.NewUserBrief(*other)}, nil
	}

	now := time.Now()
	chat := model.Chat{
		Uuid:           uuid.NewString(),
		Type:           chat_type_enum.OneOnOne,
		IsGroup:        false,
		DirectKey:      &directKey,
		CreatedById:    userId,
		LastActivityAt: now,
	}
	err = s.repos.Transaction(ctx, func(txRepos *repository.Repositories) error {
		if err := txRepos.Chat.Create(ctx, &chat); err != nil {
			return err
		}
		return txRepos.Participant.CreateBatch(ctx, []model.ChatParticipant{
			{ChatId: chat.Uuid, UserId: userId, Role: participant_role_enum.Member, JoinedAt: now},
			{ChatId: chat.Uuid, UserId: otherUserId, Role: participant_role_enum.Member, JoinedAt: now},
		})
	})
	if err != nil {
		if errorx.IsConflict(err) {
			existing, findErr := s.findDirect(ctx, directKey)
			if findErr == nil && existing != nil {
				zap.L().Info("并发创建单聊，复用已存在会话", zap.String("chat_id", existing.Uuid))
				return &respond.DirectChatRespond{Id: existing.Uuid, OtherUser: respond.NewUserBrief(*other)}, nil
			}
		}
		zap.L().Error("创建单聊失败", zap.String("direct_key", directKey), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	zap.L().Info("创建单聊", zap.String("chat_id", chat.Uuid), zap.String("user_id", userId), zap.String("other_id", otherUserId))
	return &respond.DirectChatRespond{Id: chat.Uuid, OtherUser: respond.NewUserBrief(*other), IsNew: true}, nil
}

// findDirect 按单聊唯一键查找，不存在时返回 nil, nil
func (s *directoryService) findDirect(ctx context.Context, directKey string) (*model.Chat, error) {
	chat, err := s.repos.Chat.FindByDirectKey(ctx, directKey)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, nil
		}
		zap.L().Error("查询单聊失败", zap.String("direct_key", directKey), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return chat, nil
}

// CreateGroupChat 创建群聊，成员与创建者去重后至少 3 人，创建者为 ADMIN
func (s *directoryService) CreateGroupChat(ctx context.Context, creatorId, name string, participantIds []string) (*respond.GroupChatRespond, error) {
	name = strings.TrimSpace(name)
	if name == "" || len([]rune(name)) > constants.GROUP_NAME_MAX_LENGTH {
		return nil, errorx.New(errorx.CodeInvalidParam, "Group name must be 1-100 characters")
	}

	memberIds := []string{creatorId}
	seen := map[string]struct{}{creatorId: {}}
	for _, id := range participantIds {
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		memberIds = append(memberIds, id)
	}
	if len(memberIds) < constants.GROUP_MIN_MEMBERS {
		return nil, errorx.New(errorx.CodeInvalidParam, "Group chat requires at least 2 other participants")
	}

	users, err := s.repos.User.FindActiveByUuids(ctx, memberIds)
	if err != nil {
		zap.L().Error("批量查询用户失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if len(users) != len(memberIds) {
		return nil, errorx.New(errorx.CodeNotFound, "One or more users not found")
	}
	profiles := make(map[string]model.UserInfo, len(users))
	for _, u := range users {
		profiles[u.Uuid] = u
	}

	now := time.Now()
	chat := model.Chat{
		Uuid:           uuid.NewString(),
		Type:           chat_type_enum.Group,
		IsGroup:        true,
		Name:           &name,
		CreatedById:    creatorId,
		LastActivityAt: now,
	}
	participants := make([]model.ChatParticipant, 0, len(memberIds))
	for _, id := range memberIds {
		role := participant_role_enum.Member
		if id == creatorId {
			role = participant_role_enum.Admin
		}
		participants = append(participants, model.ChatParticipant{ChatId: chat.Uuid, UserId: id, Role: role, JoinedAt: now})
	}

	err = s.repos.Transaction(ctx, func(txRepos *repository.Repositories) error {
		if err := txRepos.Chat.Create(ctx, &chat); err != nil {
			return err
		}
		return txRepos.Participant.CreateBatch(ctx, participants)
	})
	if err != nil {
		zap.L().Error("创建群聊失败", zap.String("creator", creatorId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	res := &respond.GroupChatRespond{
		Id:           chat.Uuid,
		IsGroup:      true,
		Name:         name,
		Participants: make([]respond.ParticipantRespond, 0, len(participants)),
		IsNew:        true,
	}
	for _, p := range participants {
		res.Participants = append(res.Participants, respond.NewParticipant(profiles[p.UserId], p))
	}
	zap.L().Info("创建群聊", zap.String("chat_id", chat.Uuid), zap.Int("members", len(participants)))
	return res, nil
}

// ListAvailableUsers 可发起会话的用户：启用中且不含自己，按姓名升序
// 全量目录缓存在 Redis，缓存不可用时直接读库
func (s *directoryService) ListAvailableUsers(ctx context.Context, userId string) ([]respond.UserBriefRespond, error) {
	all, err := s.cachedDirectory(ctx)
	if err != nil {
		return nil, err
	}
	list := make([]respond.UserBriefRespond, 0, len(all))
	for _, u := range all {
		if u.Id != userId {
			list = append(list, u)
		}
	}
	return list, nil
}

func (s *directoryService) cachedDirectory(ctx context.Context) ([]respond.UserBriefRespond, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, constants.USER_DIRECTORY_CACHE_KEY)
		if err != nil {
			zap.L().Warn("读取用户目录缓存失败", zap.Error(err))
		} else if raw != "" {
			var cached []respond.UserBriefRespond
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				return cached, nil
			}
			zap.L().Warn("用户目录缓存格式错误", zap.Error(err))
		}
	}

	users, err := s.repos.User.FindAllActive(ctx)
	if err != nil {
		zap.L().Error("查询用户目录失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	all := make([]respond.UserBriefRespond, 0, len(users))
	for _, u := range users {
		all = append(all, respond.NewUserBrief(u))
	}

	if s.cache != nil {
		if data, err := json.Marshal(all); err == nil {
			s.cache.SubmitTask(func() {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := s.cache.Set(ctx, constants.USER_DIRECTORY_CACHE_KEY, string(data), s.cacheTTL); err != nil {
					zap.L().Warn("写入用户目录缓存失败", zap.Error(err))
				}
			})
		}
	}
	return all, nil
}

func profileOf(profiles map[string]model.UserInfo, id string) model.UserInfo {
	if u, ok := profiles[id]; ok {
		return u
	}
	return model.UserInfo{Uuid: id}
}
