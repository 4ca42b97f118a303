package repository

import (
	"context"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CompletionRepository struct {
	DB *gorm.DB
}

func NewCompletionRepository(db *gorm.DB) *CompletionRepository {
	return &CompletionRepository{DB: db}
}

func (r *CompletionRepository) WithTx(tx *gorm.DB) *CompletionRepository {
	return &CompletionRepository{DB: tx}
}

// CompletedLessonIDs 该用户在课程下已完成的课时（去重）
func (r *CompletionRepository) CompletedLessonIDs(ctx context.Context, userID, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).
		Model(&model.LessonCompletion{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Distinct("lesson_id").
		Pluck("lesson_id", &ids).Error
	return ids, err
}

// MarkCompleted 已存在时不写入，created 表示本次是否新增
func (r *CompletionRepository) MarkCompleted(ctx context.Context, completion *model.LessonCompletion) (bool, error) {
	res := r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(completion)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *CompletionRepository) HasCompleted(ctx context.Context, userID, lessonID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&model.LessonCompletion{}).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		Count(&count).Error
	return count > 0, err
}

func (r *CompletionRepository) FindVideoProgress(ctx context.Context, userID, lessonID uint) (*model.LessonVideoProgress, error) {
	var progress model.LessonVideoProgress
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND lesson_id = ?", userID, lessonID).
		First(&progress).Error
	if err != nil {
		return nil, translate(err, "video progress")
	}
	return &progress, nil
}

// UpsertVideoProgress 依赖 (user_id, lesson_id) 唯一索引，重复写入即更新
func (r *CompletionRepository) UpsertVideoProgress(ctx context.Context, progress *model.LessonVideoProgress) error {
	return r.DB.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "lesson_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"watched_seconds", "duration_seconds", "percent", "completed", "updated_at"}),
		}).
		Create(progress).Error
}
