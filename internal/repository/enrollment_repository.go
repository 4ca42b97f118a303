package repository

import (
	"context"
	"time"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

// WithTx 返回绑定到事务的副本
func (r *EnrollmentRepository) WithTx(tx *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: tx}
}

func (r *EnrollmentRepository) Find(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, translate(err, "enrollment")
	}
	return &enrollment, nil
}

// Exists 仅判断是否存在，不把缺失当作错误
func (r *EnrollmentRepository) Exists(ctx context.Context, userID, courseID uint) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count > 0, err
}

func (r *EnrollmentRepository) ListByUser(ctx context.Context, userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("enrolled_at DESC, id DESC").
		Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) ListStudentIDs(ctx context.Context, courseID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("course_id = ?", courseID).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

func (r *EnrollmentRepository) Create(ctx context.Context, enrollment *model.Enrollment) error {
	return translate(r.DB.WithContext(ctx).Create(enrollment).Error, "enrollment")
}

// SaveProgress 只写状态相关列，避免覆盖并发写入的其他字段
func (r *EnrollmentRepository) SaveProgress(ctx context.Context, enrollment *model.Enrollment) error {
	return r.DB.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("id = ?", enrollment.ID).
		Updates(map[string]interface{}{
			"status":        enrollment.Status,
			"started_at":    enrollment.StartedAt,
			"last_accessed": enrollment.LastAccessed,
			"completed_at":  enrollment.CompletedAt,
		}).Error
}

func (r *EnrollmentRepository) Touch(ctx context.Context, enrollmentID uint, at time.Time) error {
	return r.DB.WithContext(ctx).
		Model(&model.Enrollment{}).
		Where("id = ?", enrollmentID).
		Update("last_accessed", at).Error
}

// ListCompletedWithoutCertificate 已完成但尚未发证的选课
func (r *EnrollmentRepository) ListCompletedWithoutCertificate(ctx context.Context, limit int) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.WithContext(ctx).
		Model(&model.Enrollment{}).
		Joins("LEFT JOIN certificates ON certificates.user_id = enrollments.user_id AND certificates.course_id = enrollments.course_id").
		Where("enrollments.status = ? AND certificates.id IS NULL", model.Completed).
		Order("enrollments.id ASC").
		Limit(limit).
		Find(&enrollments).Error
	return enrollments, err
}
