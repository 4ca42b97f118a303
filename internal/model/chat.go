package model

import (
	"time"

	"gorm.io/gorm"
)

// ChatMessage 课程聊天记录，只追加不修改
type ChatMessage struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CourseID   uint      `gorm:"index:idx_chat_course_sent;not null" json:"courseId"`
	SenderID   uint      `gorm:"index;not null" json:"senderId"`
	ReceiverID uint      `gorm:"index;not null" json:"receiverId"`
	Message    string    `gorm:"type:text;not null" json:"message"`
	SentAt     time.Time `gorm:"index:idx_chat_course_sent" json:"sentAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = GenerateUUID()
	}
	if m.SentAt.IsZero() {
		m.SentAt = time.Now()
	}
	return nil
}
