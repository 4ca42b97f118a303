package repository

import (
	"context"

	"learnhub_backend/internal/model"

	"gorm.io/gorm"
)

// CourseRepository 只读课程内容层级，进度引擎不修改内容
type CourseRepository struct {
	DB *gorm.DB
}

func NewCourseRepository(db *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: db}
}

func (r *CourseRepository) FindCourse(ctx context.Context, id uint) (*model.Course, error) {
	var course model.Course
	if err := r.DB.WithContext(ctx).First(&course, id).Error; err != nil {
		return nil, translate(err, "course")
	}
	return &course, nil
}

func (r *CourseRepository) FindCourses(ctx context.Context, ids []uint) (map[uint]model.Course, error) {
	result := make(map[uint]model.Course, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var courses []model.Course
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&courses).Error; err != nil {
		return nil, err
	}
	for _, c := range courses {
		result[c.ID] = c
	}
	return result, nil
}

// ListLessons 按 (sort_order, id) 升序
func (r *CourseRepository) ListLessons(ctx context.Context, courseID uint) ([]model.Lesson, error) {
	var lessons []model.Lesson
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("sort_order ASC, id ASC").
		Find(&lessons).Error
	return lessons, err
}

func (r *CourseRepository) FindLesson(ctx context.Context, id uint) (*model.Lesson, error) {
	var lesson model.Lesson
	if err := r.DB.WithContext(ctx).First(&lesson, id).Error; err != nil {
		return nil, translate(err, "lesson")
	}
	return &lesson, nil
}

func (r *CourseRepository) ListQuizzes(ctx context.Context, courseID uint) ([]model.Quiz, error) {
	var quizzes []model.Quiz
	err := r.DB.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("id ASC").
		Find(&quizzes).Error
	return quizzes, err
}

func (r *CourseRepository) UpdateLessonDuration(ctx context.Context, lessonID uint, seconds int) error {
	return r.DB.WithContext(ctx).
		Model(&model.Lesson{}).
		Where("id = ?", lessonID).
		Update("duration_seconds", seconds).Error
}

func (r *CourseRepository) WithTx(tx *gorm.DB) *CourseRepository {
	return &CourseRepository{DB: tx}
}
