package service

import (
	"context"
	"path/filepath"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"

	"go.uber.org/zap"
)

// 观看比例达到该值即视为完成课时
const videoCompletePercent = 90

// VideoProber 探测视频时长，测试中可替换
type VideoProber func(path string) (*util.VideoInfo, error)

type VideoProgressService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CompletionRepo *repository.CompletionRepository
	Students       *StudentService
	MediaRoot      string
	Probe          VideoProber
}

func NewVideoProgressService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	completionRepo *repository.CompletionRepository,
	students *StudentService,
	mediaRoot string,
) *VideoProgressService {
	return &VideoProgressService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		CompletionRepo: completionRepo,
		Students:       students,
		MediaRoot:      mediaRoot,
		Probe:          util.GetVideoInfo,
	}
}

type VideoProgressInput struct {
	WatchedSeconds int `json:"watchedSeconds"`
	// DurationSeconds 仅在课时时长未知且无法探测时采用
	DurationSeconds int `json:"durationSeconds"`
}

// Record 按 (user, lesson) 覆盖写入，观看进度不回退
func (s *VideoProgressService) Record(ctx context.Context, user UserContext, lessonID uint, in VideoProgressInput) (*model.LessonVideoProgress, error) {
	if in.WatchedSeconds < 0 || in.DurationSeconds < 0 {
		return nil, util.Validation("watched and duration seconds must not be negative")
	}
	lesson, err := s.CourseRepo.FindLesson(ctx, lessonID)
	if err != nil {
		return nil, err
	}
	enrolled, err := s.EnrollmentRepo.Exists(ctx, user.UserID, lesson.CourseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.Denied("user %d is not enrolled in course %d", user.UserID, lesson.CourseID)
	}

	duration := s.lessonDuration(ctx, lesson)
	if duration == 0 {
		duration = in.DurationSeconds
	}

	progress := &model.LessonVideoProgress{
		UserID:          user.UserID,
		LessonID:        lesson.ID,
		WatchedSeconds:  in.WatchedSeconds,
		DurationSeconds: duration,
	}
	existing, err := s.CompletionRepo.FindVideoProgress(ctx, user.UserID, lesson.ID)
	switch {
	case err == nil:
		if existing.WatchedSeconds > progress.WatchedSeconds {
			progress.WatchedSeconds = existing.WatchedSeconds
		}
		progress.Completed = existing.Completed
	case util.KindOf(err) != util.KindNotFound:
		return nil, err
	}

	if duration > 0 && progress.WatchedSeconds > duration {
		progress.WatchedSeconds = duration
	}
	progress.Percent = percentOf(progress.WatchedSeconds, duration)
	wasCompleted := progress.Completed
	if progress.Percent >= videoCompletePercent {
		progress.Completed = true
	}
	progress.UpdatedAt = time.Now()

	// 完成标记先于观看记录落库，观看记录的 Completed 不作为已完课依据
	if progress.Completed {
		if err := s.ensureLessonCompleted(ctx, user, lesson.ID, wasCompleted); err != nil {
			return nil, err
		}
	}

	if err := s.CompletionRepo.UpsertVideoProgress(ctx, progress); err != nil {
		logger.Log.Error("Failed to save video progress",
			zap.Error(err),
			zap.Uint("userId", user.UserID),
			zap.Uint("lessonId", lesson.ID))
		return nil, err
	}
	if existing != nil {
		progress.ID = existing.ID
		progress.CreatedAt = existing.CreatedAt
	}
	return progress, nil
}

// ensureLessonCompleted 之前已达标时先查完成标记，缺失才补写
func (s *VideoProgressService) ensureLessonCompleted(ctx context.Context, user UserContext, lessonID uint, wasCompleted bool) error {
	if wasCompleted {
		done, err := s.CompletionRepo.HasCompleted(ctx, user.UserID, lessonID)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	_, err := s.Students.CompleteLesson(ctx, user, lessonID)
	return err
}

// lessonDuration 时长未知时探测本地视频并回写
func (s *VideoProgressService) lessonDuration(ctx context.Context, lesson *model.Lesson) int {
	if lesson.DurationSeconds > 0 || lesson.VideoPath == "" || s.Probe == nil {
		return lesson.DurationSeconds
	}

	path := lesson.VideoPath
	if !filepath.IsAbs(path) {
		path = filepath.Join(s.MediaRoot, path)
	}
	info, err := s.Probe(path)
	if err != nil {
		logger.Log.Warn("Failed to probe lesson video",
			zap.Error(err),
			zap.Uint("lessonId", lesson.ID),
			zap.String("path", path))
		return 0
	}

	seconds := info.DurationSeconds()
	if err := s.CourseRepo.UpdateLessonDuration(ctx, lesson.ID, seconds); err != nil {
		logger.Log.Warn("Failed to persist lesson duration", zap.Error(err), zap.Uint("lessonId", lesson.ID))
	}
	lesson.DurationSeconds = seconds
	return seconds
}
