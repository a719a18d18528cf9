// Package message 负责消息的写入、历史分页、已读与附件上传
package message

import (
	"context"
	"math"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"csr_chat_server/internal/dao/mysql/repository"
	"csr_chat_server/internal/dto/respond"
	"csr_chat_server/internal/infrastructure/storage"
	"csr_chat_server/internal/model"
	"csr_chat_server/internal/service/membership"
	"csr_chat_server/pkg/constants"
	"csr_chat_server/pkg/enum/message/message_type_enum"
	"csr_chat_server/pkg/errorx"
)

// IDGenerator 消息 ID 生成器，生成的 ID 须随调用顺序递增
type IDGenerator interface {
	NextID() int64
}

// UploadPolicy 附件限制
type UploadPolicy struct {
	MaxSize      int64    // 字节
	AllowedTypes []string // MIME 白名单
}

// SendMessageInput 发送消息参数，REST 与 websocket 共用
type SendMessageInput struct {
	ChatId      string
	SenderId    string
	Content     string
	MessageType string
	FileUrl     string
	FileName    string
	FileSize    int64
}

// messageService 消息业务实现
type messageService struct {
	repos   *repository.Repositories
	ids     IDGenerator
	storage storage.FileStorage
	policy  UploadPolicy
	now     func() time.Time
}

// NewMessageService 构造函数，注入所有依赖
func NewMessageService(repos *repository.Repositories, ids IDGenerator, fileStorage storage.FileStorage, policy UploadPolicy) *messageService {
	return &messageService{
		repos:   repos,
		ids:     ids,
		storage: fileStorage,
		policy:  policy,
		now:     time.Now,
	}
}

// GetMessages 分页读取历史消息
// 内部按时间倒序分页，返回前将本页反转为升序
func (s *messageService) GetMessages(ctx context.Context, chatId, userId string, page, perPage int) (*respond.MessagePageRespond, error) {
	if _, err := membership.RequireParticipant(ctx, s.repos, chatId, userId); err != nil {
		return nil, err
	}
	if page < 1 {
		page = constants.DEFAULT_PAGE
	}
	if perPage < 1 {
		perPage = constants.DEFAULT_PER_PAGE
	}
	if perPage > constants.MAX_PER_PAGE {
		perPage = constants.MAX_PER_PAGE
	}

	total, err := s.repos.Message.CountByChatId(ctx, chatId)
	if err != nil {
		zap.L().Error("统计消息失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	messages, err := s.repos.Message.FindPageByChatId(ctx, chatId, (page-1)*perPage, perPage)
	if err != nil {
		zap.L().Error("分页查询消息失败", zap.String("chat_id", chatId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	senderIds := make([]string, 0, len(messages))
	for _, m := range messages {
		senderIds = append(senderIds, m.SenderId)
	}
	senders, err := s.repos.User.FindByUuids(ctx, senderIds)
	if err != nil {
		zap.L().Error("批量查询发送者失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	byId := make(map[string]model.UserInfo, len(senders))
	for _, u := range senders {
		byId[u.Uuid] = u
	}

	items := make([]respond.MessageRespond, len(messages))
	for i, m := range messages {
		items[len(messages)-1-i] = respond.NewMessage(m, byId[m.SenderId])
	}
	return &respond.MessagePageRespond{
		Items: items,
		Pagination: respond.PaginationRespond{
			Total:      total,
			Page:       page,
			PerPage:    perPage,
			TotalPages: int(math.Ceil(float64(total) / float64(perPage))),
		},
	}, nil
}

// SendMessage 发送消息
// 写消息、推进会话活跃时间、累加其他成员未读数在同一事务内完成
func (s *messageService) SendMessage(ctx context.Context, in SendMessageInput) (*respond.MessageRespond, error) {
	// 成员校验先于内容校验
	if _, err := membership.RequireParticipant(ctx, s.repos, in.ChatId, in.SenderId); err != nil {
		return nil, err
	}
	content := strings.TrimSpace(in.Content)
	fileUrl := strings.TrimSpace(in.FileUrl)
	if content == "" && fileUrl == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "Message must have content or a file")
	}
	if len([]rune(content)) > constants.MESSAGE_MAX_LENGTH {
		return nil, errorx.New(errorx.CodeInvalidParam, "Message content is too long")
	}
	messageType := in.MessageType
	if messageType == "" {
		messageType = message_type_enum.Text
	}
	if !message_type_enum.IsValid(messageType) {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "invalid message type: %s", in.MessageType)
	}

	msg := model.Message{
		ChatId:      in.ChatId,
		SenderId:    in.SenderId,
		MessageType: messageType,
	}
	if content != "" {
		msg.Content = &content
	}
	if fileUrl != "" {
		msg.FileUrl = &fileUrl
		if in.FileName != "" {
			name := in.FileName
			msg.FileName = &name
		}
		if in.FileSize > 0 {
			size := in.FileSize
			msg.FileSize = &size
		}
	}

	var sender *model.UserInfo
	err := s.repos.Transaction(ctx, func(txRepos *repository.Repositories) error {
		if _, err := membership.RequireParticipant(ctx, txRepos, in.ChatId, in.SenderId); err != nil {
			return err
		}
		// ID 与时间在事务内分配，保证同一节点上的顺序一致
		msg.Id = s.ids.NextID()
		msg.CreatedAt = s.now()
		if err := txRepos.Message.Create(ctx, &msg); err != nil {
			return err
		}
		if err := txRepos.Chat.TouchActivity(ctx, in.ChatId, msg.CreatedAt); err != nil {
			return err
		}
		if err := txRepos.Participant.IncrementUnreadExcept(ctx, in.ChatId, in.SenderId); err != nil {
			return err
		}
		u, err := txRepos.User.FindByUuid(ctx, in.SenderId)
		if err != nil && !errorx.IsNotFound(err) {
			return err
		}
		sender = u
		return nil
	})
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeForbidden {
			return nil, err
		}
		zap.L().Error("发送消息失败", zap.String("chat_id", in.ChatId), zap.String("sender", in.SenderId), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	if sender == nil {
		sender = &model.UserInfo{Uuid: in.SenderId}
	}
	res := respond.NewMessage(msg, *sender)
	return &res, nil
}

// MarkChatAsRead 将调用者在该会话的未读数清零，幂等
func (s *messageService) MarkChatAsRead(ctx context.Context, chatId, userId string) error {
	if err := s.repos.Participant.ResetUnread(ctx, chatId, userId); err != nil {
		zap.L().Error("清零未读数失败", zap.String("chat_id", chatId), zap.String("user_id", userId), zap.Error(err))
		return errorx.ErrServerBusy
	}
	return nil
}

// UploadAttachment 校验并保存会话附件
// 大小在读取内容前校验，类型按文件头识别，不信任客户端声明的 Content-Type
func (s *messageService) UploadAttachment(ctx context.Context, chatId, userId string, fileHeader *multipart.FileHeader) (*respond.UploadRespond, error) {
	if _, err := membership.RequireParticipant(ctx, s.repos, chatId, userId); err != nil {
		return nil, err
	}
	if fileHeader == nil {
		return nil, errorx.New(errorx.CodeInvalidParam, "No file uploaded")
	}
	if s.policy.MaxSize > 0 && fileHeader.Size > s.policy.MaxSize {
		return nil, errorx.New(errorx.CodeFileTooLarge, "file too large")
	}

	src, err := fileHeader.Open()
	if err != nil {
		zap.L().Error("打开上传文件失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	defer src.Close()

	detected, err := mimetype.DetectReader(src)
	if err != nil {
		zap.L().Error("识别文件类型失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if !s.allowed(detected) {
		zap.L().Info("拒绝上传文件", zap.String("mime", detected.String()), zap.String("name", fileHeader.Filename))
		return nil, errorx.New(errorx.CodeFileTypeNotAllowed, "file type not allowed")
	}
	if _, err := src.Seek(0, 0); err != nil {
		zap.L().Error("重置文件指针失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	mediaType := strings.SplitN(detected.String(), ";", 2)[0]
	messageType := message_type_enum.ForMIME(mediaType)
	folder := constants.FILE_FOLDER
	if messageType == message_type_enum.Image {
		folder = constants.IMAGE_FOLDER
	}
	fileName := filepath.Base(fileHeader.Filename)
	key := folder + "/" + uuid.NewString() + "-" + fileName

	fileUrl, err := s.storage.Save(ctx, key, src)
	if err != nil {
		zap.L().Error("保存附件失败", zap.String("key", key), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}

	zap.L().Info("上传附件", zap.String("chat_id", chatId), zap.String("key", key), zap.Int64("size", fileHeader.Size))
	return &respond.UploadRespond{
		FileUrl:     fileUrl,
		FileKey:     key,
		FileName:    fileName,
		FileSize:    fileHeader.Size,
		MessageType: messageType,
	}, nil
}

func (s *messageService) allowed(detected *mimetype.MIME) bool {
	for _, t := range s.policy.AllowedTypes {
		if detected.Is(t) {
			return true
		}
	}
	return false
}
