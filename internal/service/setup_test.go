package service

import (
	"testing"

	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/pkg/events"

	"gorm.io/gorm"
)

type testEnv struct {
	DB         *gorm.DB
	Events     *events.Recorder
	Users      *repository.UserRepository
	Courses    *repository.CourseRepository
	Enrolls    *repository.EnrollmentRepository
	Completes  *repository.CompletionRepository
	Quizzes    *repository.QuizRepository
	Progress   *ProgressService
	Quiz       *QuizService
	Students   *StudentService
	Video      *VideoProgressService
	Certs      *CertificateService
	Storage    *StorageService
	Authorizer *ChatAuthorizer
	Chat       *ChatService
	MediaRoot  string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewDB(t)
	rec := &events.Recorder{}

	env := &testEnv{
		DB:        db,
		Events:    rec,
		Users:     repository.NewUserRepository(db),
		Courses:   repository.NewCourseRepository(db),
		Enrolls:   repository.NewEnrollmentRepository(db),
		Completes: repository.NewCompletionRepository(db),
		Quizzes:   repository.NewQuizRepository(db),
		Storage:   &StorageService{Provider: &LocalStorageProvider{Root: t.TempDir()}},
		MediaRoot: t.TempDir(),
	}
	certRepo := repository.NewCertificateRepository(db)

	env.Progress = NewProgressService(env.Courses, env.Enrolls, env.Completes, env.Quizzes, CountDistinct)
	env.Quiz = NewQuizService(db, env.Quizzes, env.Courses, env.Enrolls, env.Progress, rec)
	env.Students = NewStudentService(db, env.Courses, env.Enrolls, env.Completes, certRepo, env.Progress, rec)
	env.Video = NewVideoProgressService(env.Courses, env.Enrolls, env.Completes, env.Students, env.MediaRoot)
	env.Certs = NewCertificateService(certRepo, env.Enrolls, env.Courses, env.Users, env.Progress, env.Storage, rec)
	env.Authorizer = NewChatAuthorizer(env.Courses, env.Enrolls, env.Users)
	env.Chat = NewChatService(repository.NewChatRepository(db), env.Users, env.Authorizer, rec, 2000)
	return env
}

func countEvents(rec *events.Recorder, eventType string) int {
	n := 0
	for _, t := range rec.Types() {
		if t == eventType {
			n++
		}
	}
	return n
}
