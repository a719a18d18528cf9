// Package membership 负责会话访问控制与群成员变更
package membership

import (
	"context"
	"time"

	"go.uber.org/zap"

	"csr_chat_server/internal/dao/mysql/repository"
	"csr_chat_server/internal/dto/respond"
	"csr_chat_server/internal/model"
	"csr_chat_server/pkg/enum/chat/participant_role_enum"
	"csr_chat_server/pkg/errorx"
)

// membershipService 成员权限业务实现
type membershipService struct {
	repos *repository.Repositories
}

// NewMembershipService 构造函数
func NewMembershipService(repos *repository.Repositories) *membershipService {
	return &membershipService{repos: repos}
}

// RequireParticipant 校验用户是会话成员，不论会话是否存在，非成员一律返回 Access denied
// 接收 Repositories 以便在事务内复用
func RequireParticipant(ctx context.Context, repos *repository.Repositories, chatId, userId string) (*model.ChatParticipant, error) {
	participant, err := repos.Participant.FindByChatAndUser(ctx, chatId, userId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.ErrAccessDenied
		}
		zap.L().Error("查询会话成员失败", zap.String("chat_id", chatId), zap.String("user_id", userId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return participant, nil
}

// AssertParticipant 校验用户是否为会话成员
func (s *membershipService) AssertParticipant(ctx context.Context, chatId, userId string) (*model.ChatParticipant, error) {
	return RequireParticipant(ctx, s.repos, chatId, userId)
}

// requireGroupAdmin 校验请求者为群管理员，并返回群聊
func (s *membershipService) requireGroupAdmin(ctx context.Context, chatId, requesterId, deniedMsg string) (*model.Chat, error) {
	requester, err := s.repos.Participant.FindByChatAndUser(ctx, chatId, requesterId)
	if err != nil && !errorx.IsNotFound(err) {
		zap.L().Error("查询会话成员失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if requester == nil || !participant_role_enum.CanManageMembers(requester.Role) {
		return nil, errorx.New(errorx.CodeForbidden, deniedMsg)
	}

	chat, err := s.repos.Chat.FindByUuid(ctx, chatId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.New(errorx.CodeNotFound, "Chat not found")
		}
		zap.L().Error("查询会话失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if !chat.IsGroupChat() {
		return nil, errorx.New(errorx.CodeInvalidParam, "Not a group chat")
	}
	return chat, nil
}

// AddParticipant 群管理员添加成员，新成员角色为 MEMBER
func (s *membershipService) AddParticipant(ctx context.Context, chatId, requesterId, newUserId string) (*respond.ParticipantRespond, error) {
	if _, err := s.requireGroupAdmin(ctx, chatId, requesterId, "Only group admins can add participants"); err != nil {
		return nil, err
	}

	user, err := s.repos.User.FindActiveByUuid(ctx, newUserId)
	if err != nil {
		if errorx.IsNotFound(err) {
			return nil, errorx.New(errorx.CodeNotFound, "User not found")
		}
		zap.L().Error("查询用户失败", zap.String("user_id", newUserId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	if _, err := s.repos.Participant.FindByChatAndUser(ctx, chatId, newUserId); err == nil {
		return nil, errorx.New(errorx.CodeConflict, "User is already a participant")
	} else if !errorx.IsNotFound(err) {
		zap.L().Error("查询会话成员失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	participant := model.ChatParticipant{
		ChatId:   chatId,
		UserId:   newUserId,
		Role:     participant_role_enum.Member,
		JoinedAt: time.Now(),
	}
	if err := s.repos.Participant.Create(ctx, &participant); err != nil {
		// 并发重复添加由联合唯一索引拦截
		if errorx.IsConflict(err) {
			return nil, errorx.New(errorx.CodeConflict, "User is already a participant")
		}
		zap.L().Error("添加群成员失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	zap.L().Info("添加群成员", zap.String("chat_id", chatId), zap.String("operator", requesterId), zap.String("user_id", newUserId))
	res := respond.NewParticipant(*user, participant)
	return &res, nil
}

// RemoveParticipant 群管理员移除成员，群创建者不可被移除
func (s *membershipService) RemoveParticipant(ctx context.Context, chatId, requesterId, targetUserId string) error {
	chat, err := s.requireGroupAdmin(ctx, chatId, requesterId, "Only group admins can remove participants")
	if err != nil {
		return err
	}
	if targetUserId == chat.CreatedById {
		return errorx.New(errorx.CodeForbidden, "Cannot remove the group creator")
	}

	if err := s.repos.Participant.Delete(ctx, chatId, targetUserId); err != nil {
		if errorx.IsNotFound(err) {
			return errorx.New(errorx.CodeNotFound, "User is not a participant")
		}
		zap.L().Error("移除群成员失败", zap.String("chat_id", chatId), zap.Error(err))
		return errorx.ErrServerBusy
	}

	zap.L().Info("移除群成员", zap.String("chat_id", chatId), zap.String("operator", requesterId), zap.String("user_id", targetUserId))
	return nil
}

// GetGroupDetails 群详情，调用者必须已是成员
func (s *membershipService) GetGroupDetails(ctx context.Context, chatId, userId string) (*respond.GroupDetailRespond, error) {
	if _, err := s.AssertParticipant(ctx, chatId, userId); err != nil {
		return nil, err
	}

	chat, err := s.repos.Chat.FindByUuid(ctx, chatId)
	if err != nil && !errorx.IsNotFound(err) {
		zap.L().Error("查询会话失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if chat == nil || !chat.IsGroupChat() {
		return nil, errorx.New(errorx.CodeNotFound, "Group not found")
	}

	participants, err := s.repos.Participant.FindByChatId(ctx, chatId)
	if err != nil {
		zap.L().Error("查询群成员失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	list, err := s.withProfiles(ctx, participants)
	if err != nil {
		return nil, err
	}

	name := ""
	if chat.Name != nil {
		name = *chat.Name
	}
	return &respond.GroupDetailRespond{
		Id:           chat.Uuid,
		Name:         name,
		CreatedById:  chat.CreatedById,
		Participants: list,
	}, nil
}

// ParticipantUserIds 会话当前全部成员的用户 ID
func (s *membershipService) ParticipantUserIds(ctx context.Context, chatId string) ([]string, error) {
	participants, err := s.repos.Participant.FindByChatId(ctx, chatId)
	if err != nil {
		zap.L().Error("查询会话成员失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserId)
	}
	return ids, nil
}

// withProfiles 为成员列表拼装用户资料
func (s *membershipService) withProfiles(ctx context.Context, participants []model.ChatParticipant) ([]respond.ParticipantRespond, error) {
	ids := make([]string, 0, len(participants))
	for _, p := range participants {
		ids = append(ids, p.UserId)
	}
	users, err := s.repos.User.FindByUuids(ctx, ids)
	if err != nil {
		zap.L().Error("批量查询用户失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	byId := make(map[string]model.UserInfo, len(users))
	for _, u := range users {
		byId[u.Uuid] = u
	}
	list := make([]respond.ParticipantRespond, 0, len(participants))
	for _, p := range participants {
		u, ok := byId[p.UserId]
		if !ok {
			u = model.UserInfo{Uuid: p.UserId}
		}
		list = append(list, respond.NewParticipant(u, p))
	}
	return list, nil
}
