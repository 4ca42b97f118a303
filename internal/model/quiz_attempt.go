package model

import (
	"time"
)

// QuizAttempt 一次评分提交，同一用户可多次作答
type QuizAttempt struct {
	ID          uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	QuizID      uint      `gorm:"index:idx_attempt_quiz_user;not null" json:"quizId"`
	UserID      uint      `gorm:"index:idx_attempt_quiz_user;not null" json:"userId"`
	Score       int       `gorm:"not null" json:"score"`
	Passed      bool      `gorm:"default:false" json:"passed"`
	AttemptDate time.Time `gorm:"index" json:"attemptDate"`
}

func (QuizAttempt) TableName() string {
	return "quiz_attempts"
}
