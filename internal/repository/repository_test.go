package repository

import (
	"context"
	"testing"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindCourseNotFound(t *testing.T) {
	repo := NewCourseRepository(testutil.NewDB(t))
	_, err := repo.FindCourse(context.Background(), 404)
	require.Error(t, err)
	assert.Equal(t, util.KindNotFound, util.KindOf(err))
}

func TestListLessonsOrderedBySortOrder(t *testing.T) {
	db := testutil.NewDB(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	course, _ := testutil.CreateCourse(t, db, instructor.ID)
	for _, l := range []model.Lesson{
		{CourseID: course.ID, Title: "third", Order: 3},
		{CourseID: course.ID, Title: "first", Order: 1},
		{CourseID: course.ID, Title: "second", Order: 2},
	} {
		lesson := l
		require.NoError(t, db.Create(&lesson).Error)
	}

	lessons, err := NewCourseRepository(db).ListLessons(context.Background(), course.ID)
	require.NoError(t, err)
	require.Len(t, lessons, 3)
	assert.Equal(t, []string{"first", "second", "third"}, []string{lessons[0].Title, lessons[1].Title, lessons[2].Title})
}

func TestEnrollmentDuplicateIsConflict(t *testing.T) {
	db := testutil.NewDB(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	student := testutil.CreateUser(t, db, "alice", model.Student)
	course, _ := testutil.CreateCourse(t, db, instructor.ID, "Intro")
	repo := NewEnrollmentRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &model.Enrollment{UserID: student.ID, CourseID: course.ID, Status: model.NotStarted, EnrolledAt: time.Now()}))
	err := repo.Create(ctx, &model.Enrollment{UserID: student.ID, CourseID: course.ID, Status: model.NotStarted, EnrolledAt: time.Now()})
	require.Error(t, err)
	assert.Equal(t, util.KindConflict, util.KindOf(err))
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	student := testutil.CreateUser(t, db, "alice", model.Student)
	_, lessons := testutil.CreateCourse(t, db, instructor.ID, "Intro")
	repo := NewCompletionRepository(db)
	ctx := context.Background()

	mark := func() bool {
		created, err := repo.MarkCompleted(ctx, &model.LessonCompletion{
			LessonID:    lessons[0].ID,
			UserID:      student.ID,
			CourseID:    lessons[0].CourseID,
			CompletedAt: time.Now(),
		})
		require.NoError(t, err)
		return created
	}
	assert.True(t, mark())
	assert.False(t, mark())

	ids, err := repo.CompletedLessonIDs(ctx, student.ID, lessons[0].CourseID)
	require.NoError(t, err)
	assert.Equal(t, []uint{lessons[0].ID}, ids)
}

func TestUpsertVideoProgressUpdatesInPlace(t *testing.T) {
	db := testutil.NewDB(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	student := testutil.CreateUser(t, db, "alice", model.Student)
	_, lessons := testutil.CreateCourse(t, db, instructor.ID, "Intro")
	repo := NewCompletionRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.UpsertVideoProgress(ctx, &model.LessonVideoProgress{
		UserID: student.ID, LessonID: lessons[0].ID, WatchedSeconds: 30, DurationSeconds: 100, Percent: 30,
	}))
	require.NoError(t, repo.UpsertVideoProgress(ctx, &model.LessonVideoProgress{
		UserID: student.ID, LessonID: lessons[0].ID, WatchedSeconds: 95, DurationSeconds: 100, Percent: 95, Completed: true,
	}))

	var count int64
	require.NoError(t, db.Model(&model.LessonVideoProgress{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	got, err := repo.FindVideoProgress(ctx, student.ID, lessons[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 95, got.WatchedSeconds)
	assert.True(t, got.Completed)
}

func TestListCompletedWithoutCertificate(t *testing.T) {
	db := testutil.NewDB(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	alice := testutil.CreateUser(t, db, "alice", model.Student)
	bob := testutil.CreateUser(t, db, "bob", model.Student)
	carol := testutil.CreateUser(t, db, "carol", model.Student)
	course, _ := testutil.CreateCourse(t, db, instructor.ID, "Intro")

	for _, e := range []model.Enrollment{
		{UserID: alice.ID, CourseID: course.ID, Status: model.Completed, EnrolledAt: time.Now()},
		{UserID: bob.ID, CourseID: course.ID, Status: model.Completed, EnrolledAt: time.Now()},
		{UserID: carol.ID, CourseID: course.ID, Status: model.InProgress, EnrolledAt: time.Now()},
	} {
		enrollment := e
		require.NoError(t, db.Create(&enrollment).Error)
	}
	require.NoError(t, NewCertificateRepository(db).Create(context.Background(), &model.Certificate{
		UserID: bob.ID, CourseID: course.ID, Code: "bob-code", IssuedAt: time.Now(),
	}))

	pending, err := NewEnrollmentRepository(db).ListCompletedWithoutCertificate(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice.ID, pending[0].UserID)
}

func TestListMessages(t *testing.T) {
	db := testutil.NewDB(t)
	instructor := testutil.CreateUser(t, db, "prof", model.Instructor)
	alice := testutil.CreateUser(t, db, "alice", model.Student)
	bob := testutil.CreateUser(t, db, "bob", model.Student)
	course, _ := testutil.CreateCourse(t, db, instructor.ID)
	repo := NewChatRepository(db)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	post := func(from, to uint, text string, minute int) {
		require.NoError(t, repo.CreateMessage(ctx, &model.ChatMessage{
			CourseID: course.ID, SenderID: from, ReceiverID: to, Message: text,
			SentAt: base.Add(time.Duration(minute) * time.Minute),
		}))
	}
	post(alice.ID, instructor.ID, "a1", 0)
	post(instructor.ID, alice.ID, "t1", 1)
	post(bob.ID, instructor.ID, "b1", 2)
	post(alice.ID, instructor.ID, "a2", 3)

	texts := func(msgs []model.ChatMessage) []string {
		out := make([]string, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, m.Message)
		}
		return out
	}

	all, err := repo.ListMessages(ctx, MessageQuery{CourseID: course.ID, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "t1", "b1", "a2"}, texts(all))

	mine, err := repo.ListMessages(ctx, MessageQuery{CourseID: course.ID, ParticipantID: alice.ID, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "t1", "a2"}, texts(mine))

	latest, err := repo.ListMessages(ctx, MessageQuery{CourseID: course.ID, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1", "a2"}, texts(latest))

	before := base.Add(2 * time.Minute)
	older, err := repo.ListMessages(ctx, MessageQuery{CourseID: course.ID, Before: &before, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "t1"}, texts(older))
}
