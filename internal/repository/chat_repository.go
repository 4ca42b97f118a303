package repository

import (
	"context"
	"time"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type ChatRepository struct {
	DB *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{DB: db}
}

func (r *ChatRepository) CreateMessage(ctx context.Context, msg *model.ChatMessage) error {
	return r.DB.WithContext(ctx).Create(msg).Error
}

type MessageQuery struct {
	CourseID uint
	// ParticipantID 非 0 时只返回该用户收发的消息
	ParticipantID uint
	Before        *time.Time
	Limit         int
}

// ListMessages 返回最近 Limit 条，按时间正序
func (r *ChatRepository) ListMessages(ctx context.Context, q MessageQuery) ([]model.ChatMessage, error) {
	db := r.DB.WithContext(ctx).Where("course_id = ?", q.CourseID)
	if q.ParticipantID != 0 {
		db = db.Where("sender_id = ? OR receiver_id = ?", q.ParticipantID, q.ParticipantID)
	}
	if q.Before != nil {
		db = db.Where("sent_at < ?", *q.Before)
	}

	var messages []model.ChatMessage
	if err := db.Order("sent_at DESC, id DESC").Limit(q.Limit).Find(&messages).Error; err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}
