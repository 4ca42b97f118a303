package service

import (
	"context"
	"errors"
	"math"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/events"
	"learnhub_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type DashboardCourse struct {
	CourseID     uint             `json:"courseId"`
	Title        string           `json:"title"`
	EnrolledAt   time.Time        `json:"enrolledAt"`
	LastAccessed *time.Time       `json:"lastAccessed,omitempty"`
	Progress     ProgressSnapshot `json:"progress"`
}

type DashboardSummary struct {
	TotalCourses      int     `json:"totalCourses"`
	CompletedCourses  int     `json:"completedCourses"`
	InProgressCourses int     `json:"inProgressCourses"`
	NotStartedCourses int     `json:"notStartedCourses"`
	AverageCompletion float64 `json:"averageCompletion"`
	Certificates      int     `json:"certificates"`
}

type Dashboard struct {
	Courses []DashboardCourse `json:"courses"`
	Summary DashboardSummary  `json:"summary"`
}

type ContinueResult struct {
	CourseCompleted bool  `json:"courseCompleted"`
	LessonID        *uint `json:"lessonId"`
}

type LessonCompletionResult struct {
	LessonID         uint             `json:"lessonId"`
	AlreadyCompleted bool             `json:"alreadyCompleted"`
	Progress         ProgressSnapshot `json:"progress"`
}

type StudentService struct {
	DB             *gorm.DB
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CompletionRepo *repository.CompletionRepository
	CertRepo       *repository.CertificateRepository
	Progress       *ProgressService
	Events         events.Publisher
}

func NewStudentService(
	db *gorm.DB,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	completionRepo *repository.CompletionRepository,
	certRepo *repository.CertificateRepository,
	progress *ProgressService,
	publisher events.Publisher,
) *StudentService {
	return &StudentService{
		DB:             db,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		CompletionRepo: completionRepo,
		CertRepo:       certRepo,
		Progress:       progress,
		Events:         publisher,
	}
}

func (s *StudentService) Dashboard(ctx context.Context, user UserContext) (*Dashboard, error) {
	enrollments, err := s.EnrollmentRepo.ListByUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	courseIDs := make([]uint, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	courses, err := s.CourseRepo.FindCourses(ctx, courseIDs)
	if err != nil {
		return nil, err
	}

	dashboard := &Dashboard{Courses: make([]DashboardCourse, 0, len(enrollments))}
	totalPercent := 0
	for i := range enrollments {
		e := &enrollments[i]
		course, ok := courses[e.CourseID]
		if !ok {
			// 课程已被删除
			continue
		}
		snap, err := s.Progress.compute(ctx, nil, e)
		if err != nil {
			return nil, err
		}
		dashboard.Courses = append(dashboard.Courses, DashboardCourse{
			CourseID:     course.ID,
			Title:        course.Title,
			EnrolledAt:   e.EnrolledAt,
			LastAccessed: e.LastAccessed,
			Progress:     snap,
		})

		totalPercent += snap.CompletionPercentage
		switch snap.Status {
		case model.Completed:
			dashboard.Summary.CompletedCourses++
		case model.InProgress:
			dashboard.Summary.InProgressCourses++
		default:
			dashboard.Summary.NotStartedCourses++
		}
	}

	dashboard.Summary.TotalCourses = len(dashboard.Courses)
	if dashboard.Summary.TotalCourses > 0 {
		avg := float64(totalPercent) / float64(dashboard.Summary.TotalCourses)
		dashboard.Summary.AverageCompletion = math.Round(avg*100) / 100
	}

	certs, err := s.CertRepo.ListByUser(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	dashboard.Summary.Certificates = len(certs)
	return dashboard, nil
}

// Continue 返回应继续学习的课时，已全部完成时回到第一课
func (s *StudentService) Continue(ctx context.Context, user UserContext, courseID uint) (*ContinueResult, error) {
	snap, err := s.Progress.Snapshot(ctx, user, courseID)
	if err != nil {
		return nil, err
	}

	result := &ContinueResult{
		CourseCompleted: snap.Status == model.Completed,
		LessonID:        snap.NextLessonID,
	}
	if result.LessonID == nil {
		lessons, err := s.CourseRepo.ListLessons(ctx, courseID)
		if err != nil {
			return nil, err
		}
		if len(lessons) > 0 {
			id := lessons[0].ID
			result.LessonID = &id
		}
	}

	enrollment, err := s.EnrollmentRepo.Find(ctx, user.UserID, courseID)
	if err == nil {
		if err := s.EnrollmentRepo.Touch(ctx, enrollment.ID, time.Now()); err != nil {
			logger.Log.Warn("Failed to update last accessed",
				zap.Error(err),
				zap.Uint("userId", user.UserID),
				zap.Uint("courseId", courseID))
		}
	}
	return result, nil
}

// StartCourse 幂等，已开始的课程只刷新访问时间
func (s *StudentService) StartCourse(ctx context.Context, user UserContext, courseID uint) (*model.Enrollment, error) {
	if _, err := s.CourseRepo.FindCourse(ctx, courseID); err != nil {
		return nil, err
	}
	enrollment, err := s.EnrollmentRepo.Find(ctx, user.UserID, courseID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if enrollment.Status == model.NotStarted {
		enrollment.Status = model.InProgress
	}
	if enrollment.StartedAt == nil {
		enrollment.StartedAt = &now
	}
	enrollment.LastAccessed = &now
	if err := s.EnrollmentRepo.SaveProgress(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

func (s *StudentService) Enroll(ctx context.Context, user UserContext, courseID uint) (*model.Enrollment, error) {
	course, err := s.CourseRepo.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !course.Published {
		return nil, util.Validation("course %d is not published", courseID)
	}
	if course.CreatedBy == user.UserID {
		return nil, util.Validation("instructors cannot enroll in their own course")
	}

	enrollment := &model.Enrollment{
		UserID:     user.UserID,
		CourseID:   courseID,
		Status:     model.NotStarted,
		EnrolledAt: time.Now(),
	}
	if err := s.EnrollmentRepo.Create(ctx, enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}

// CompleteLesson 重复完成不会产生新记录
func (s *StudentService) CompleteLesson(ctx context.Context, user UserContext, lessonID uint) (*LessonCompletionResult, error) {
	lesson, err := s.CourseRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.EnrollmentRepo.Find(ctx, user.UserID, lesson.CourseID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.Denied("user %d is not enrolled in course %d", user.UserID, lesson.CourseID)
		}
		return nil, err
	}

	now := time.Now()
	var (
		created      bool
		completedNow bool
		snap         ProgressSnapshot
	)
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		created, err = s.CompletionRepo.WithTx(tx).MarkCompleted(ctx, &model.LessonCompletion{
			LessonID:    lesson.ID,
			UserID:      user.UserID,
			CourseID:    lesson.CourseID,
			CompletedAt: now,
		})
		if err != nil {
			return err
		}
		snap, completedNow, err = s.Progress.recordActivity(ctx, tx, enrollment, now)
		return err
	})
	if err != nil {
		logger.Log.Error("Failed to complete lesson",
			zap.Error(err),
			zap.Uint("userId", user.UserID),
			zap.Uint("lessonId", lessonID))
		return nil, err
	}

	if created {
		publishEvent(ctx, s.Events, events.LessonCompleted, map[string]interface{}{
			"lessonId": lesson.ID,
			"courseId": lesson.CourseID,
			"userId":   user.UserID,
		})
	}
	if completedNow {
		publishEvent(ctx, s.Events, events.CourseCompleted, map[string]interface{}{
			"courseId": lesson.CourseID,
			"userId":   user.UserID,
		})
	}

	return &LessonCompletionResult{
		LessonID:         lesson.ID,
		AlreadyCompleted: !created,
		Progress:         snap,
	}, nil
}
