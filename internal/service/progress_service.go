package service

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/pkg/monitoring"

	"gorm.io/gorm"
)

// QuizCountPolicy 决定 completedQuizzes 的统计口径
type QuizCountPolicy string

const (
	// CountDistinct 每个有作答记录的测验计一次
	CountDistinct QuizCountPolicy = "distinct"
	// CountAttempts 每次作答都计数
	CountAttempts QuizCountPolicy = "attempts"
)

func ParseQuizCountPolicy(s string) QuizCountPolicy {
	if QuizCountPolicy(s) == CountAttempts {
		return CountAttempts
	}
	return CountDistinct
}

type ProgressInput struct {
	Lessons            []model.Lesson
	CompletedLessonIDs []uint
	Quizzes            []model.Quiz
	Attempts           []model.QuizAttempt
	Enrollment         *model.Enrollment
}

type ProgressSnapshot struct {
	CourseID             uint                   `json:"courseId"`
	CompletedLessons     int                    `json:"completedLessons"`
	TotalLessons         int                    `json:"totalLessons"`
	CompletedQuizzes     int                    `json:"completedQuizzes"`
	PassedQuizzes        int                    `json:"passedQuizzes"`
	TotalQuizzes         int                    `json:"totalQuizzes"`
	CompletionPercentage int                    `json:"completionPercentage"`
	Status               model.EnrollmentStatus `json:"status"`
	NextLessonID         *uint                  `json:"nextLessonId"`
}

func percentOf(part, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(part) / float64(total)))
}

// ComputeProgress 纯函数，只依赖输入事实
func ComputeProgress(in ProgressInput, policy QuizCountPolicy) ProgressSnapshot {
	lessons := make([]model.Lesson, len(in.Lessons))
	copy(lessons, in.Lessons)
	sort.SliceStable(lessons, func(i, j int) bool {
		if lessons[i].Order != lessons[j].Order {
			return lessons[i].Order < lessons[j].Order
		}
		return lessons[i].ID < lessons[j].ID
	})

	done := make(map[uint]struct{}, len(in.CompletedLessonIDs))
	for _, id := range in.CompletedLessonIDs {
		done[id] = struct{}{}
	}

	snap := ProgressSnapshot{TotalLessons: len(lessons), TotalQuizzes: len(in.Quizzes)}
	if in.Enrollment != nil {
		snap.CourseID = in.Enrollment.CourseID
	}

	// 只统计属于本课程的完成记录
	for i := range lessons {
		if _, ok := done[lessons[i].ID]; ok {
			snap.CompletedLessons++
		} else if snap.NextLessonID == nil {
			id := lessons[i].ID
			snap.NextLessonID = &id
		}
	}

	passing := make(map[uint]int, len(in.Quizzes))
	for _, q := range in.Quizzes {
		passing[q.ID] = q.PassingScore
	}
	attempted := make(map[uint]struct{})
	passed := make(map[uint]struct{})
	attemptCount := 0
	for _, a := range in.Attempts {
		threshold, ok := passing[a.QuizID]
		if !ok {
			continue
		}
		attemptCount++
		attempted[a.QuizID] = struct{}{}
		if a.Score >= threshold {
			passed[a.QuizID] = struct{}{}
		}
	}
	snap.PassedQuizzes = len(passed)
	if policy == CountAttempts {
		snap.CompletedQuizzes = attemptCount
	} else {
		snap.CompletedQuizzes = len(attempted)
	}

	snap.CompletionPercentage = percentOf(snap.CompletedLessons, snap.TotalLessons)

	if snap.TotalLessons == 0 {
		// 无课时的课程只看选课记录
		snap.Status = model.NotStarted
		if in.Enrollment != nil && in.Enrollment.Status != "" {
			snap.Status = in.Enrollment.Status
		}
		return snap
	}

	active := snap.CompletedLessons > 0 || attemptCount > 0 ||
		(in.Enrollment != nil && in.Enrollment.StartedAt != nil)
	switch {
	case snap.CompletedLessons == snap.TotalLessons &&
		(snap.TotalQuizzes == 0 || snap.PassedQuizzes == snap.TotalQuizzes):
		snap.Status = model.Completed
	case !active:
		snap.Status = model.NotStarted
	default:
		snap.Status = model.InProgress
	}
	return snap
}

var statusRank = map[model.EnrollmentStatus]int{
	model.NotStarted: 0,
	model.InProgress: 1,
	model.Completed:  2,
}

// advanceEnrollment 状态只前进不回退，completedNow 表示本次进入 Completed
func advanceEnrollment(e *model.Enrollment, snap ProgressSnapshot, now time.Time) (completedNow bool) {
	target := snap.Status
	if target == model.NotStarted {
		target = model.InProgress
	}
	if e.StartedAt == nil {
		e.StartedAt = &now
	}
	e.LastAccessed = &now
	if statusRank[target] > statusRank[e.Status] {
		e.Status = target
		if target == model.Completed {
			e.CompletedAt = &now
			completedNow = true
		}
	}
	return completedNow
}

type ProgressService struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	CompletionRepo *repository.CompletionRepository
	QuizRepo       *repository.QuizRepository

	mu     sync.RWMutex
	policy QuizCountPolicy
}

func NewProgressService(
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	completionRepo *repository.CompletionRepository,
	quizRepo *repository.QuizRepository,
	policy QuizCountPolicy,
) *ProgressService {
	return &ProgressService{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		CompletionRepo: completionRepo,
		QuizRepo:       quizRepo,
		policy:         policy,
	}
}

func (s *ProgressService) Policy() QuizCountPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy
}

// SetPolicy 配置热更新时调用
func (s *ProgressService) SetPolicy(policy QuizCountPolicy) {
	s.mu.Lock()
	s.policy = policy
	s.mu.Unlock()
}

// Snapshot 每次请求都从当前数据重新计算
func (s *ProgressService) Snapshot(ctx context.Context, user UserContext, courseID uint) (*ProgressSnapshot, error) {
	if _, err := s.CourseRepo.FindCourse(ctx, courseID); err != nil {
		return nil, err
	}
	enrollment, err := s.EnrollmentRepo.Find(ctx, user.UserID, courseID)
	if err != nil {
		return nil, err
	}
	snap, err := s.compute(ctx, nil, enrollment)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// compute tx 非空时在事务内读取
func (s *ProgressService) compute(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment) (ProgressSnapshot, error) {
	start := time.Now()
	defer func() {
		monitoring.ProgressComputeDuration.Observe(time.Since(start).Seconds())
	}()

	courses, completions, quizzes := s.CourseRepo, s.CompletionRepo, s.QuizRepo
	if tx != nil {
		courses, completions, quizzes = courses.WithTx(tx), completions.WithTx(tx), quizzes.WithTx(tx)
	}

	lessons, err := courses.ListLessons(ctx, enrollment.CourseID)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	completed, err := completions.CompletedLessonIDs(ctx, enrollment.UserID, enrollment.CourseID)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	quizList, err := courses.ListQuizzes(ctx, enrollment.CourseID)
	if err != nil {
		return ProgressSnapshot{}, err
	}
	quizIDs := make([]uint, 0, len(quizList))
	for _, q := range quizList {
		quizIDs = append(quizIDs, q.ID)
	}
	attempts, err := quizzes.ListAttempts(ctx, enrollment.UserID, quizIDs)
	if err != nil {
		return ProgressSnapshot{}, err
	}

	snap := ComputeProgress(ProgressInput{
		Lessons:            lessons,
		CompletedLessonIDs: completed,
		Quizzes:            quizList,
		Attempts:           attempts,
		Enrollment:         enrollment,
	}, s.Policy())
	snap.CourseID = enrollment.CourseID
	return snap, nil
}

// recordActivity 在事务内重新计算并推进选课状态
func (s *ProgressService) recordActivity(ctx context.Context, tx *gorm.DB, enrollment *model.Enrollment, now time.Time) (ProgressSnapshot, bool, error) {
	snap, err := s.compute(ctx, tx, enrollment)
	if err != nil {
		return ProgressSnapshot{}, false, err
	}
	completedNow := advanceEnrollment(enrollment, snap, now)
	if snap.TotalLessons == 0 {
		snap.Status = enrollment.Status
	}
	if err := s.EnrollmentRepo.WithTx(tx).SaveProgress(ctx, enrollment); err != nil {
		return ProgressSnapshot{}, false, err
	}
	return snap, completedNow, nil
}
