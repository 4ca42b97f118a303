package service

import (
	"context"
	"strconv"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/events"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type SubmittedAnswer struct {
	QuestionID        uint   `json:"questionId" binding:"required"`
	SelectedAnswerIDs []uint `json:"selectedAnswerIds"`
}

type GradeResult struct {
	CorrectQuestions int  `json:"correctQuestions"`
	TotalQuestions   int  `json:"totalQuestions"`
	Score            int  `json:"score"`
	Passed           bool `json:"passed"`
}

// GradeQuiz 精确集合匹配，无部分得分，未作答的题目按错误计
func GradeQuiz(quiz *model.Quiz, answers []SubmittedAnswer) (GradeResult, error) {
	if len(quiz.Questions) == 0 {
		return GradeResult{}, util.Validation("quiz %d has no questions", quiz.ID)
	}

	questions := make(map[uint]*model.Question, len(quiz.Questions))
	for i := range quiz.Questions {
		questions[quiz.Questions[i].ID] = &quiz.Questions[i]
	}

	selected := make(map[uint]map[uint]struct{}, len(answers))
	for _, a := range answers {
		q, ok := questions[a.QuestionID]
		if !ok {
			return GradeResult{}, util.Validation("question %d does not belong to quiz %d", a.QuestionID, quiz.ID)
		}
		if _, dup := selected[a.QuestionID]; dup {
			return GradeResult{}, util.Validation("question %d answered more than once", a.QuestionID)
		}
		valid := make(map[uint]struct{}, len(q.Answers))
		for _, ans := range q.Answers {
			valid[ans.ID] = struct{}{}
		}
		set := make(map[uint]struct{}, len(a.SelectedAnswerIDs))
		for _, id := range a.SelectedAnswerIDs {
			if _, ok := valid[id]; !ok {
				return GradeResult{}, util.Validation("answer %d does not belong to question %d", id, a.QuestionID)
			}
			set[id] = struct{}{}
		}
		selected[a.QuestionID] = set
	}

	result := GradeResult{TotalQuestions: len(quiz.Questions)}
	for _, q := range quiz.Questions {
		if exactMatch(q.Answers, selected[q.ID]) {
			result.CorrectQuestions++
		}
	}
	result.Score = percentOf(result.CorrectQuestions, result.TotalQuestions)
	result.Passed = result.Score >= quiz.PassingScore
	return result, nil
}

func exactMatch(answers []model.Answer, chosen map[uint]struct{}) bool {
	correct := 0
	for _, a := range answers {
		_, picked := chosen[a.ID]
		if a.IsCorrect != picked {
			return false
		}
		if a.IsCorrect {
			correct++
		}
	}
	return correct == len(chosen)
}

type AttemptResult struct {
	AttemptID        uint                   `json:"attemptId"`
	Score            int                    `json:"score"`
	CorrectQuestions int                    `json:"correctQuestions"`
	TotalQuestions   int                    `json:"totalQuestions"`
	PassingScore     int                    `json:"passingScore"`
	Passed           bool                   `json:"passed"`
	AttemptDate      time.Time              `json:"attemptDate"`
	CourseStatus     model.EnrollmentStatus `json:"courseStatus"`
}

type QuizService struct {
	DB             *gorm.DB
	QuizRepo       *repository.QuizRepository
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Progress       *ProgressService
	Events         events.Publisher
}

func NewQuizService(
	db *gorm.DB,
	quizRepo *repository.QuizRepository,
	courseRepo *repository.CourseRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	progress *ProgressService,
	publisher events.Publisher,
) *QuizService {
	return &QuizService{
		DB:             db,
		QuizRepo:       quizRepo,
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		Progress:       progress,
		Events:         publisher,
	}
}

// SubmitAttempt 作答记录与选课状态推进在同一事务内完成
func (s *QuizService) SubmitAttempt(ctx context.Context, user UserContext, quizID uint, answers []SubmittedAnswer) (*AttemptResult, error) {
	quiz, err := s.QuizRepo.FindQuizContent(ctx, quizID)
	if err != nil {
		return nil, err
	}
	enrollment, err := s.requireEnrollment(ctx, user, quiz.CourseID)
	if err != nil {
		return nil, err
	}
	grade, err := GradeQuiz(quiz, answers)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	attempt := &model.QuizAttempt{
		QuizID:      quiz.ID,
		UserID:      user.UserID,
		Score:       grade.Score,
		Passed:      grade.Passed,
		AttemptDate: now,
	}
	var completedNow bool
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.QuizRepo.WithTx(tx).CreateAttempt(ctx, attempt); err != nil {
			return err
		}
		_, done, err := s.Progress.recordActivity(ctx, tx, enrollment, now)
		completedNow = done
		return err
	})
	if err != nil {
		logger.Log.Error("Failed to save quiz attempt",
			zap.Error(err),
			zap.Uint("userId", user.UserID),
			zap.Uint("quizId", quiz.ID))
		return nil, err
	}

	monitoring.QuizAttemptCounter.WithLabelValues(strconv.FormatBool(grade.Passed)).Inc()
	publishEvent(ctx, s.Events, events.QuizAttempted, map[string]interface{}{
		"attemptId": attempt.ID,
		"quizId":    quiz.ID,
		"courseId":  quiz.CourseID,
		"userId":    user.UserID,
		"score":     grade.Score,
		"passed":    grade.Passed,
	})
	if completedNow {
		publishEvent(ctx, s.Events, events.CourseCompleted, map[string]interface{}{
			"courseId": quiz.CourseID,
			"userId":   user.UserID,
		})
	}

	return &AttemptResult{
		AttemptID:        attempt.ID,
		Score:            grade.Score,
		CorrectQuestions: grade.CorrectQuestions,
		TotalQuestions:   grade.TotalQuestions,
		PassingScore:     quiz.PassingScore,
		Passed:           grade.Passed,
		AttemptDate:      attempt.AttemptDate,
		CourseStatus:     enrollment.Status,
	}, nil
}

// GetQuizForStudent 返回题目与选项，正确答案标记不会被序列化
func (s *QuizService) GetQuizForStudent(ctx context.Context, user UserContext, quizID uint) (*model.Quiz, error) {
	quiz, err := s.QuizRepo.FindQuizContent(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if err := s.canView(ctx, user, quiz.CourseID); err != nil {
		return nil, err
	}
	return quiz, nil
}

func (s *QuizService) ListAttempts(ctx context.Context, user UserContext, quizID uint) ([]model.QuizAttempt, error) {
	quiz, err := s.QuizRepo.FindQuizContent(ctx, quizID)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireEnrollment(ctx, user, quiz.CourseID); err != nil {
		return nil, err
	}
	return s.QuizRepo.ListAttemptsForQuiz(ctx, user.UserID, quizID)
}

func (s *QuizService) requireEnrollment(ctx context.Context, user UserContext, courseID uint) (*model.Enrollment, error) {
	enrollment, err := s.EnrollmentRepo.Find(ctx, user.UserID, courseID)
	if util.KindOf(err) == util.KindNotFound {
		return nil, util.Denied("user %d is not enrolled in course %d", user.UserID, courseID)
	}
	return enrollment, err
}

// canView 讲师可预览自己课程的测验
func (s *QuizService) canView(ctx context.Context, user UserContext, courseID uint) error {
	course, err := s.CourseRepo.FindCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if course.CreatedBy == user.UserID {
		return nil
	}
	_, err = s.requireEnrollment(ctx, user, courseID)
	return err
}

// publishEvent 事件发布失败只记录日志，不影响主流程
func publishEvent(ctx context.Context, publisher events.Publisher, routingKey string, payload interface{}) {
	if publisher == nil {
		return
	}
	if err := publisher.Publish(ctx, routingKey, payload); err != nil {
		logger.Log.Warn("Failed to publish event", zap.String("type", routingKey), zap.Error(err))
	}
}
