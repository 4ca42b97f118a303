package app

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/service"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type envelope struct {
	Code  int             `json:"code"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

func newTestApp(t *testing.T) (*App, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test"},
		JWT:       config.JWTConfig{Secret: testSecret},
		Storage:   config.StorageConfig{Type: util.StorageLocal, LocalPath: t.TempDir()},
		Progress:  config.ProgressConfig{QuizCountPolicy: "distinct"},
		Chat:      config.ChatConfig{MaxMessageLength: 2000, RatePerSecond: 10, RateBurst: 20},
		RateLimit: config.RateLimitConfig{MaxRequests: 0},
	}
	db := testutil.NewDB(t)
	a := build(cfg, db, nil)
	t.Cleanup(a.shutdown)
	return a, db
}

func bearer(t *testing.T, user *model.User) string {
	t.Helper()
	tok, err := util.GenerateJWT(user, testSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func call(t *testing.T, a *App, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.Router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w.Code, env
}

func TestHealthIsPublic(t *testing.T) {
	a, _ := newTestApp(t)
	code, _ := call(t, a, http.MethodGet, "/api/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestStudentRoutesRequireToken(t *testing.T) {
	a, _ := newTestApp(t)
	code, _ := call(t, a, http.MethodGet, "/api/student/dashboard", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestCourseCompletionFlow(t *testing.T) {
	a, db := newTestApp(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	student := testutil.CreateUser(t, db, "alice", model.Student)
	course, lessons := testutil.CreateCourse(t, db, instructor.ID, "Intro", "Deep dive")
	quiz := testutil.CreateQuiz(t, db, course.ID, 50,
		testutil.QuestionSpec{Text: "Q1", Answers: []bool{true, false}},
	)
	tok := bearer(t, student)
	coursePath := fmt.Sprintf("/api/student/courses/%d", course.ID)

	code, _ := call(t, a, http.MethodPost, coursePath+"/enroll", tok, nil)
	require.Equal(t, http.StatusCreated, code)

	code, _ = call(t, a, http.MethodPost, coursePath+"/enroll", tok, nil)
	assert.Equal(t, http.StatusConflict, code)

	for _, lesson := range lessons {
		code, _ = call(t, a, http.MethodPost, fmt.Sprintf("/api/student/lessons/%d/complete", lesson.ID), tok, nil)
		require.Equal(t, http.StatusOK, code)
	}

	code, env := call(t, a, http.MethodGet, coursePath+"/progress", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var snap service.ProgressSnapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 2, snap.CompletedLessons)
	assert.Equal(t, model.InProgress, snap.Status)

	// 证书要求先完课
	code, _ = call(t, a, http.MethodPost, coursePath+"/certificate", tok, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	attempt := map[string]interface{}{
		"answers": []map[string]interface{}{
			{"questionId": quiz.Questions[0].ID, "selectedAnswerIds": []uint{quiz.Questions[0].Answers[0].ID}},
		},
	}
	code, env = call(t, a, http.MethodPost, fmt.Sprintf("/api/student/quizzes/%d/attempt", quiz.ID), tok, attempt)
	require.Equal(t, http.StatusOK, code)
	var result service.AttemptResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 100, result.Score)
	assert.True(t, result.Passed)
	assert.Equal(t, model.Completed, result.CourseStatus)

	code, env = call(t, a, http.MethodPost, coursePath+"/certificate", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var cert model.Certificate
	require.NoError(t, json.Unmarshal(env.Data, &cert))
	assert.NotEmpty(t, cert.Code)

	code, env = call(t, a, http.MethodGet, "/api/student/certificates", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var certs []model.Certificate
	require.NoError(t, json.Unmarshal(env.Data, &certs))
	assert.Len(t, certs, 1)

	code, env = call(t, a, http.MethodGet, "/api/student/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, code)
	var dash service.Dashboard
	require.NoError(t, json.Unmarshal(env.Data, &dash))
	assert.Equal(t, 1, dash.Summary.CompletedCourses)
	assert.Equal(t, 1, dash.Summary.Certificates)
}

func TestQuizAttemptErrors(t *testing.T) {
	a, db := newTestApp(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	outsider := testutil.CreateUser(t, db, "mallory", model.Student)
	course, _ := testutil.CreateCourse(t, db, instructor.ID, "Intro")
	quiz := testutil.CreateQuiz(t, db, course.ID, 60,
		testutil.QuestionSpec{Text: "Q1", Answers: []bool{true, false}},
	)
	tok := bearer(t, outsider)
	path := fmt.Sprintf("/api/student/quizzes/%d/attempt", quiz.ID)

	code, _ := call(t, a, http.MethodPost, path, tok, "{")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(t, a, http.MethodPost, path, tok, map[string]interface{}{"answers": []interface{}{}})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = call(t, a, http.MethodPost, "/api/student/quizzes/999999/attempt", tok, map[string]interface{}{"answers": []interface{}{}})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = call(t, a, http.MethodPost, "/api/student/quizzes/abc/attempt", tok, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChatVerifyWithoutAccess(t *testing.T) {
	a, db := newTestApp(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	stranger := testutil.CreateUser(t, db, "eve", model.Student)
	course, _ := testutil.CreateCourse(t, db, instructor.ID, "Intro")

	code, env := call(t, a, http.MethodGet, fmt.Sprintf("/api/chat/verify/%d", course.ID), bearer(t, stranger), nil)
	require.Equal(t, http.StatusOK, code)
	var access service.ChatAccess
	require.NoError(t, json.Unmarshal(env.Data, &access))
	assert.False(t, access.HasAccess)
}

func TestChatMessagesOverHTTP(t *testing.T) {
	a, db := newTestApp(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	student := testutil.CreateUser(t, db, "alice", model.Student)
	course, _ := testutil.CreateCourse(t, db, instructor.ID, "Intro")
	testutil.Enroll(t, db, student.ID, course.ID)
	path := fmt.Sprintf("/api/chat/messages/%d", course.ID)

	code, _ := call(t, a, http.MethodPost, path, bearer(t, student), map[string]interface{}{"receiverId": instructor.ID, "message": "hello"})
	require.Equal(t, http.StatusCreated, code)

	code, env := call(t, a, http.MethodGet, path, bearer(t, instructor), nil)
	require.Equal(t, http.StatusOK, code)
	var messages []service.MessageView
	require.NoError(t, json.Unmarshal(env.Data, &messages))
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Message)
	assert.Equal(t, instructor.ID, messages[0].ReceiverID)
}

func TestApplyConfigSwitchesQuizPolicy(t *testing.T) {
	a, _ := newTestApp(t)
	require.Equal(t, service.CountDistinct, a.services.progress.Policy())

	next := *a.Config
	next.Progress.QuizCountPolicy = "attempts"
	a.ApplyConfig(&next)
	assert.Equal(t, service.CountAttempts, a.services.progress.Policy())
}
