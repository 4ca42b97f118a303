package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueCertificate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	student := testutil.CreateUser(t, env.DB, "student", model.Student)
	course, lessons := testutil.CreateCourse(t, env.DB, instructor.ID, "L1")
	testutil.Enroll(t, env.DB, student.ID, course.ID)
	user := UserContext{UserID: student.ID, Role: model.Student}

	_, err := env.Certs.Issue(ctx, user, course.ID)
	assert.ErrorIs(t, err, util.ErrValidation)

	testutil.CompleteLesson(t, env.DB, student.ID, lessons[0])
	cert, err := env.Certs.Issue(ctx, user, course.ID)
	require.NoError(t, err)
	assert.Len(t, cert.Code, 36)
	assert.Equal(t, "/uploads/certificates/"+cert.Code+".json", cert.URL)

	root := env.Storage.Provider.(*LocalStorageProvider).Root
	raw, err := os.ReadFile(filepath.Join(root, "certificates", cert.Code+".json"))
	require.NoError(t, err)
	var cred CertificateCredential
	require.NoError(t, json.Unmarshal(raw, &cred))
	assert.Equal(t, cert.Code, cred.Code)
	assert.Equal(t, student.Name, cred.UserName)
	assert.Equal(t, course.Title, cred.CourseTitle)

	again, err := env.Certs.Issue(ctx, user, course.ID)
	require.NoError(t, err)
	assert.Equal(t, cert.Code, again.Code)

	list, err := env.Certs.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.Equal(t, 1, countEvents(env.Events, events.CertificateIssued))
}

func TestIssuePending(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	course, _ := testutil.CreateCourse(t, env.DB, instructor.ID, "L1")

	var completed []*model.User
	for _, name := range []string{"a", "b"} {
		u := testutil.CreateUser(t, env.DB, name, model.Student)
		e := testutil.Enroll(t, env.DB, u.ID, course.ID)
		require.NoError(t, env.DB.Model(e).Update("status", model.Completed).Error)
		completed = append(completed, u)
	}
	idle := testutil.CreateUser(t, env.DB, "idle", model.Student)
	testutil.Enroll(t, env.DB, idle.ID, course.ID)

	n, err := env.Certs.IssuePending(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = env.Certs.IssuePending(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, u := range completed {
		list, err := env.Certs.List(ctx, UserContext{UserID: u.ID})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, strings.HasPrefix(list[0].URL, "/uploads/certificates/"))
	}
	list, err := env.Certs.List(ctx, UserContext{UserID: idle.ID})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestLocalStorageProvider(t *testing.T) {
	p := &LocalStorageProvider{Root: t.TempDir()}
	url, err := p.Upload(context.Background(), "a/b.txt", strings.NewReader("hello"), 5, "text/plain")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/a/b.txt", url)

	raw, err := os.ReadFile(filepath.Join(p.Root, "a", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(raw))

	require.NoError(t, p.Delete(context.Background(), "a/b.txt"))
	_, err = os.Stat(filepath.Join(p.Root, "a", "b.txt"))
	assert.True(t, os.IsNotExist(err))
}
