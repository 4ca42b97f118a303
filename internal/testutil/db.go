package testutil

import (
	"fmt"
	"testing"
	"time"

	"learnhub_backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDB 每个测试独立的内存库，单连接避免 sqlite 表锁
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(model.All()...))
	return db
}

func CreateUser(t *testing.T, db *gorm.DB, name string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Name:  name,
		Email: fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
		Role:  role,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateCourse 课时按给定标题依次编号，sort_order 从 1 开始
func CreateCourse(t *testing.T, db *gorm.DB, instructorID uint, lessonTitles ...string) (*model.Course, []model.Lesson) {
	t.Helper()
	course := &model.Course{
		Title:     "Course " + uuid.NewString()[:8],
		CreatedBy: instructorID,
		Published: true,
	}
	require.NoError(t, db.Create(course).Error)

	lessons := make([]model.Lesson, 0, len(lessonTitles))
	for i, title := range lessonTitles {
		lesson := model.Lesson{CourseID: course.ID, Title: title, Order: i + 1}
		require.NoError(t, db.Create(&lesson).Error)
		lessons = append(lessons, lesson)
	}
	return course, lessons
}

// QuestionSpec 每个选项以 true 标记正确答案
type QuestionSpec struct {
	Text    string
	Answers []bool
}

func CreateQuiz(t *testing.T, db *gorm.DB, courseID uint, passingScore int, questions ...QuestionSpec) *model.Quiz {
	t.Helper()
	quiz := &model.Quiz{
		CourseID:     courseID,
		Title:        "Quiz " + uuid.NewString()[:8],
		PassingScore: passingScore,
	}
	require.NoError(t, db.Create(quiz).Error)

	for i, spec := range questions {
		qType := model.SingleChoice
		correct := 0
		for _, ok := range spec.Answers {
			if ok {
				correct++
			}
		}
		if correct > 1 {
			qType = model.MultipleChoice
		}
		question := model.Question{QuizID: quiz.ID, Text: spec.Text, Type: qType, Order: i + 1}
		require.NoError(t, db.Create(&question).Error)
		for j, ok := range spec.Answers {
			answer := model.Answer{
				QuestionID: question.ID,
				Text:       fmt.Sprintf("%s-%c", spec.Text, 'A'+j),
				IsCorrect:  ok,
			}
			require.NoError(t, db.Create(&answer).Error)
			question.Answers = append(question.Answers, answer)
		}
		quiz.Questions = append(quiz.Questions, question)
	}
	return quiz
}

func Enroll(t *testing.T, db *gorm.DB, userID, courseID uint) *model.Enrollment {
	t.Helper()
	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		Status:     model.NotStarted,
		EnrolledAt: time.Now(),
	}
	require.NoError(t, db.Create(enrollment).Error)
	return enrollment
}

func CompleteLesson(t *testing.T, db *gorm.DB, userID uint, lesson model.Lesson) {
	t.Helper()
	require.NoError(t, db.Create(&model.LessonCompletion{
		LessonID:    lesson.ID,
		UserID:      userID,
		CourseID:    lesson.CourseID,
		CompletedAt: time.Now(),
	}).Error)
}
