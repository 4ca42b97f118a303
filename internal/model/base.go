package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// swagger:model
type BaseModel struct {
	ID        uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func GenerateUUID() string {
	return uuid.New().String()
}

// All 返回需要迁移的模型，顺序即外键依赖顺序
func All() []interface{} {
	return []interface{}{
		&User{},
		&Course{},
		&Lesson{},
		&Quiz{},
		&Question{},
		&Answer{},
		&Enrollment{},
		&LessonCompletion{},
		&LessonVideoProgress{},
		&QuizAttempt{},
		&Certificate{},
		&ChatMessage{},
	}
}
