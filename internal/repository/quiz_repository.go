package repository

import (
	"context"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type QuizRepository struct {
	DB *gorm.DB
}

func NewQuizRepository(db *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: db}
}

func (r *QuizRepository) WithTx(tx *gorm.DB) *QuizRepository {
	return &QuizRepository{DB: tx}
}

// FindQuizContent 预加载题目与选项，题目按 sort_order 排序
func (r *QuizRepository) FindQuizContent(ctx context.Context, quizID uint) (*model.Quiz, error) {
	var quiz model.Quiz
	err := r.DB.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC, id ASC")
		}).
		Preload("Questions.Answers", func(db *gorm.DB) *gorm.DB {
			return db.Order("id ASC")
		}).
		First(&quiz, quizID).Error
	if err != nil {
		return nil, translate(err, "quiz")
	}
	return &quiz, nil
}

func (r *QuizRepository) CreateAttempt(ctx context.Context, attempt *model.QuizAttempt) error {
	return r.DB.WithContext(ctx).Create(attempt).Error
}

// ListAttempts 用户在一组测验上的全部作答
func (r *QuizRepository) ListAttempts(ctx context.Context, userID uint, quizIDs []uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	if len(quizIDs) == 0 {
		return attempts, nil
	}
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id IN ?", userID, quizIDs).
		Order("attempt_date ASC, id ASC").
		Find(&attempts).Error
	return attempts, err
}

func (r *QuizRepository) ListAttemptsForQuiz(ctx context.Context, userID, quizID uint) ([]model.QuizAttempt, error) {
	var attempts []model.QuizAttempt
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND quiz_id = ?", userID, quizID).
		Order("attempt_date DESC, id DESC").
		Find(&attempts).Error
	return attempts, err
}
