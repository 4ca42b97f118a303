package model

import (
	"time"
)

// LessonCompletion 完成标记，只追加，(lesson, user) 唯一
type LessonCompletion struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	LessonID    uint      `gorm:"uniqueIndex:idx_completion_lesson_user;not null" json:"lessonId"`
	UserID      uint      `gorm:"uniqueIndex:idx_completion_lesson_user;not null" json:"userId"`
	CourseID    uint      `gorm:"index;not null" json:"courseId"`
	CompletedAt time.Time `json:"completedAt"`
}

func (LessonCompletion) TableName() string {
	return "lesson_completions"
}

// LessonVideoProgress 按 (user, lesson) 覆盖更新
type LessonVideoProgress struct {
	ID              uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID          uint      `gorm:"uniqueIndex:idx_video_user_lesson;not null" json:"userId"`
	LessonID        uint      `gorm:"uniqueIndex:idx_video_user_lesson;not null" json:"lessonId"`
	WatchedSeconds  int       `gorm:"default:0" json:"watchedSeconds"`
	DurationSeconds int       `gorm:"default:0" json:"durationSeconds"`
	Percent         int       `gorm:"default:0" json:"percent"`
	Completed       bool      `gorm:"default:false" json:"completed"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

func (LessonVideoProgress) TableName() string {
	return "lesson_video_progress"
}
