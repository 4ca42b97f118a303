package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/events"
	"learnhub_backend/pkg/logger"

	"go.uber.org/zap"
)

// MessageView 推送与历史记录共用的消息结构
type MessageView struct {
	ID         string    `json:"id"`
	CourseID   uint      `json:"courseId"`
	SenderID   uint      `json:"senderId"`
	SenderName string    `json:"senderName"`
	ReceiverID uint      `json:"receiverId"`
	Message    string    `json:"message"`
	SentAt     time.Time `json:"sentAt"`
}

type HistoryQuery struct {
	Limit  int
	Before *time.Time
	// StudentID 仅讲师可用，按学生筛选会话
	StudentID uint
}

type ChatService struct {
	ChatRepo   *repository.ChatRepository
	UserRepo   *repository.UserRepository
	Authorizer *ChatAuthorizer
	Events     events.Publisher
	MaxLength  int
}

func NewChatService(chatRepo *repository.ChatRepository, userRepo *repository.UserRepository, authorizer *ChatAuthorizer, publisher events.Publisher, maxLength int) *ChatService {
	return &ChatService{
		ChatRepo:   chatRepo,
		UserRepo:   userRepo,
		Authorizer: authorizer,
		Events:     publisher,
		MaxLength:  maxLength,
	}
}

func (s *ChatService) Send(ctx context.Context, user UserContext, courseID, receiverID uint, text string) (*MessageView, error) {
	if _, err := s.Authorizer.AuthorizeSend(ctx, user, courseID, receiverID); err != nil {
		return nil, err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, util.Validation("message must not be empty")
	}
	if s.MaxLength > 0 && utf8.RuneCountInString(text) > s.MaxLength {
		return nil, util.Validation("message exceeds %d characters", s.MaxLength)
	}

	msg := &model.ChatMessage{
		CourseID:   courseID,
		SenderID:   user.UserID,
		ReceiverID: receiverID,
		Message:    text,
	}
	if err := s.ChatRepo.CreateMessage(ctx, msg); err != nil {
		logger.Log.Error("Failed to save chat message",
			zap.Error(err),
			zap.Uint("userId", user.UserID),
			zap.Uint("courseId", courseID))
		return nil, err
	}

	senderName := ""
	if sender, err := s.UserRepo.FindByID(ctx, user.UserID); err == nil {
		senderName = sender.Name
	}

	publishEvent(ctx, s.Events, events.ChatMessageSent, map[string]interface{}{
		"messageId":  msg.ID,
		"courseId":   courseID,
		"senderId":   user.UserID,
		"receiverId": receiverID,
	})
	return toMessageView(msg, senderName), nil
}

// History 学生只能看到自己与讲师的会话
func (s *ChatService) History(ctx context.Context, user UserContext, courseID uint, q HistoryQuery) ([]MessageView, error) {
	course, err := s.Authorizer.AuthorizeJoin(ctx, user, courseID)
	if err != nil {
		return nil, err
	}

	participant := user.UserID
	if course.CreatedBy == user.UserID {
		participant = q.StudentID
	}

	limit := q.Limit
	if limit <= 0 {
		limit = util.DefaultHistoryLimit
	}
	if limit > util.MaxHistoryLimit {
		limit = util.MaxHistoryLimit
	}

	messages, err := s.ChatRepo.ListMessages(ctx, repository.MessageQuery{
		CourseID:      courseID,
		ParticipantID: participant,
		Before:        q.Before,
		Limit:         limit,
	})
	if err != nil {
		return nil, err
	}

	senderIDs := make([]uint, 0, len(messages))
	seen := make(map[uint]struct{})
	for _, m := range messages {
		if _, ok := seen[m.SenderID]; !ok {
			seen[m.SenderID] = struct{}{}
			senderIDs = append(senderIDs, m.SenderID)
		}
	}
	users, err := s.UserRepo.FindByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}

	views := make([]MessageView, 0, len(messages))
	for i := range messages {
		views = append(views, *toMessageView(&messages[i], users[messages[i].SenderID].Name))
	}
	return views, nil
}

func toMessageView(m *model.ChatMessage, senderName string) *MessageView {
	return &MessageView{
		ID:         m.ID,
		CourseID:   m.CourseID,
		SenderID:   m.SenderID,
		SenderName: senderName,
		ReceiverID: m.ReceiverID,
		Message:    m.Message,
		SentAt:     m.SentAt,
	}
}
