package service

import (
	"context"
	"testing"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnroll(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	student := testutil.CreateUser(t, env.DB, "student", model.Student)
	course, _ := testutil.CreateCourse(t, env.DB, instructor.ID, "L1")

	user := UserContext{UserID: student.ID, Role: model.Student}
	enrollment, err := env.Students.Enroll(ctx, user, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.NotStarted, enrollment.Status)

	_, err = env.Students.Enroll(ctx, user, course.ID)
	assert.ErrorIs(t, err, util.ErrConflict)

	_, err = env.Students.Enroll(ctx, UserContext{UserID: instructor.ID, Role: model.Instructor}, course.ID)
	assert.ErrorIs(t, err, util.ErrValidation)

	_, err = env.Students.Enroll(ctx, user, course.ID+100)
	assert.ErrorIs(t, err, util.ErrNotFound)

	draft := &model.Course{Title: "Draft", CreatedBy: instructor.ID, Published: false}
	require.NoError(t, env.DB.Create(draft).Error)
	stored, err := env.Courses.FindCourse(ctx, draft.ID)
	require.NoError(t, err)
	require.False(t, stored.Published)

	_, err = env.Students.Enroll(ctx, user, draft.ID)
	assert.ErrorIs(t, err, util.ErrValidation)
}

func TestStartCourseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	student := testutil.CreateUser(t, env.DB, "student", model.Student)
	course, _ := testutil.CreateCourse(t, env.DB, instructor.ID, "L1")
	user := UserContext{UserID: student.ID, Role: model.Student}

	_, err := env.Students.StartCourse(ctx, user, course.ID)
	assert.ErrorIs(t, err, util.ErrNotFound)

	testutil.Enroll(t, env.DB, student.ID, course.ID)
	first, err := env.Students.StartCourse(ctx, user, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InProgress, first.Status)
	require.NotNil(t, first.StartedAt)

	second, err := env.Students.StartCourse(ctx, user, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.InProgress, second.Status)
	assert.True(t, first.StartedAt.Equal(*second.StartedAt))
}

func TestCompleteLesson(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	student := testutil.CreateUser(t, env.DB, "student", model.Student)
	course, lessons := testutil.CreateCourse(t, env.DB, instructor.ID, "L1", "L2")
	user := UserContext{UserID: student.ID, Role: model.Student}

	_, err := env.Students.CompleteLesson(ctx, user, lessons[0].ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)

	testutil.Enroll(t, env.DB, student.ID, course.ID)
	res, err := env.Students.CompleteLesson(ctx, user, lessons[0].ID)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCompleted)
	assert.Equal(t, 50, res.Progress.CompletionPercentage)
	assert.Equal(t, model.InProgress, res.Progress.Status)

	res, err = env.Students.CompleteLesson(ctx, user, lessons[0].ID)
	require.NoError(t, err)
	assert.True(t, res.AlreadyCompleted)

	var count int64
	require.NoError(t, env.DB.Model(&model.LessonCompletion{}).Where("user_id = ?", student.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
	assert.Equal(t, 1, countEvents(env.Events, events.LessonCompleted))

	res, err = env.Students.CompleteLesson(ctx, user, lessons[1].ID)
	require.NoError(t, err)
	assert.Equal(t, model.Completed, res.Progress.Status)
	assert.Equal(t, 1, countEvents(env.Events, events.CourseCompleted))

	enrollment, err := env.Enrolls.Find(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Completed, enrollment.Status)
	assert.NotNil(t, enrollment.CompletedAt)

	_, err = env.Students.CompleteLesson(ctx, user, lessons[1].ID+100)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestContinue(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	student := testutil.CreateUser(t, env.DB, "student", model.Student)
	course, lessons := testutil.CreateCourse(t, env.DB, instructor.ID, "L1", "L2")
	testutil.Enroll(t, env.DB, student.ID, course.ID)
	user := UserContext{UserID: student.ID, Role: model.Student}

	res, err := env.Students.Continue(ctx, user, course.ID)
	require.NoError(t, err)
	assert.False(t, res.CourseCompleted)
	require.NotNil(t, res.LessonID)
	assert.Equal(t, lessons[0].ID, *res.LessonID)

	testutil.CompleteLesson(t, env.DB, student.ID, lessons[0])
	res, err = env.Students.Continue(ctx, user, course.ID)
	require.NoError(t, err)
	require.NotNil(t, res.LessonID)
	assert.Equal(t, lessons[1].ID, *res.LessonID)

	testutil.CompleteLesson(t, env.DB, student.ID, lessons[1])
	res, err = env.Students.Continue(ctx, user, course.ID)
	require.NoError(t, err)
	assert.True(t, res.CourseCompleted)
	require.NotNil(t, res.LessonID)
	assert.Equal(t, lessons[0].ID, *res.LessonID)

	enrollment, err := env.Enrolls.Find(ctx, student.ID, course.ID)
	require.NoError(t, err)
	assert.NotNil(t, enrollment.LastAccessed)
}

func TestContinueEmptyCourse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	student := testutil.CreateUser(t, env.DB, "student", model.Student)
	course, _ := testutil.CreateCourse(t, env.DB, instructor.ID)
	testutil.Enroll(t, env.DB, student.ID, course.ID)

	res, err := env.Students.Continue(ctx, UserContext{UserID: student.ID, Role: model.Student}, course.ID)
	require.NoError(t, err)
	assert.False(t, res.CourseCompleted)
	assert.Nil(t, res.LessonID)
}

func TestDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	student := testutil.CreateUser(t, env.DB, "student", model.Student)
	done, doneLessons := testutil.CreateCourse(t, env.DB, instructor.ID, "A1")
	half, halfLessons := testutil.CreateCourse(t, env.DB, instructor.ID, "B1", "B2")
	fresh, _ := testutil.CreateCourse(t, env.DB, instructor.ID, "C1")
	for _, c := range []*model.Course{done, half, fresh} {
		testutil.Enroll(t, env.DB, student.ID, c.ID)
	}
	testutil.CompleteLesson(t, env.DB, student.ID, doneLessons[0])
	testutil.CompleteLesson(t, env.DB, student.ID, halfLessons[0])

	dash, err := env.Students.Dashboard(ctx, UserContext{UserID: student.ID, Role: model.Student})
	require.NoError(t, err)
	require.Len(t, dash.Courses, 3)
	assert.Equal(t, 3, dash.Summary.TotalCourses)
	assert.Equal(t, 1, dash.Summary.CompletedCourses)
	assert.Equal(t, 1, dash.Summary.InProgressCourses)
	assert.Equal(t, 1, dash.Summary.NotStartedCourses)
	assert.Equal(t, 50.0, dash.Summary.AverageCompletion)
	assert.Equal(t, 0, dash.Summary.Certificates)

	byID := map[uint]DashboardCourse{}
	for _, c := range dash.Courses {
		byID[c.CourseID] = c
	}
	assert.Equal(t, 100, byID[done.ID].Progress.CompletionPercentage)
	assert.Equal(t, 50, byID[half.ID].Progress.CompletionPercentage)
	assert.Equal(t, model.NotStarted, byID[fresh.ID].Progress.Status)
}
