package service

import (
	"context"
	"testing"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/testutil"
	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type chatCast struct {
	course     *model.Course
	instructor UserContext
	alice      UserContext
	bob        UserContext
	stranger   UserContext
}

// setupChatCourse 讲师 + 两名已选课学生 + 一名未选课用户
func setupChatCourse(t *testing.T, env *testEnv) chatCast {
	instructor := testutil.CreateUser(t, env.DB, "prof", model.Instructor)
	alice := testutil.CreateUser(t, env.DB, "alice", model.Student)
	bob := testutil.CreateUser(t, env.DB, "bob", model.Student)
	stranger := testutil.CreateUser(t, env.DB, "stranger", model.Student)
	course, _ := testutil.CreateCourse(t, env.DB, instructor.ID, "L1")
	testutil.Enroll(t, env.DB, alice.ID, course.ID)
	testutil.Enroll(t, env.DB, bob.ID, course.ID)

	return chatCast{
		course:     course,
		instructor: UserContext{UserID: instructor.ID, Role: model.Instructor},
		alice:      UserContext{UserID: alice.ID, Role: model.Student},
		bob:        UserContext{UserID: bob.ID, Role: model.Student},
		stranger:   UserContext{UserID: stranger.ID, Role: model.Student},
	}
}

func TestAuthorizeJoin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := setupChatCourse(t, env)

	_, err := env.Authorizer.AuthorizeJoin(ctx, c.instructor, c.course.ID)
	assert.NoError(t, err)
	_, err = env.Authorizer.AuthorizeJoin(ctx, c.alice, c.course.ID)
	assert.NoError(t, err)
	_, err = env.Authorizer.AuthorizeJoin(ctx, c.stranger, c.course.ID)
	assert.ErrorIs(t, err, util.ErrUnauthorized)
	_, err = env.Authorizer.AuthorizeJoin(ctx, c.alice, c.course.ID+100)
	assert.ErrorIs(t, err, util.ErrNotFound)
}

func TestAuthorizeSend(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := setupChatCourse(t, env)

	tests := []struct {
		name     string
		sender   UserContext
		receiver uint
		allowed  bool
	}{
		{"student to instructor", c.alice, c.instructor.UserID, true},
		{"student to student", c.alice, c.bob.UserID, false},
		{"student to self", c.alice, c.alice.UserID, false},
		{"instructor to enrolled student", c.instructor, c.bob.UserID, true},
		{"instructor to unenrolled user", c.instructor, c.stranger.UserID, false},
		{"instructor to self", c.instructor, c.instructor.UserID, false},
		{"stranger to instructor", c.stranger, c.instructor.UserID, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Authorizer.AuthorizeSend(ctx, tt.sender, c.course.ID, tt.receiver)
			if tt.allowed {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, util.ErrUnauthorized)
			}
		})
	}
}

func TestChatAccess(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	c := setupChatCourse(t, env)

	access, err := env.Authorizer.Access(ctx, c.instructor, c.course.ID)
	require.NoError(t, err)
	assert.True(t, access.HasAccess)
	assert.Equal(t, ChatRoleInstructor, access.Role)
	require.Len(t, access.EnrolledStudents, 2)
	assert.Equal(t, "alice", access.EnrolledStudents[0].Name)
	assert.Nil(t, access.OtherPartyID)

	access, err = env.Authorizer.Access(ctx, c.alice, c.course.ID)
	require.NoError(t, err)
	assert.True(t, access.HasAccess)
	assert.Equal(t, ChatRoleStudent, access.Role)
	require.NotNil(t, access.OtherPartyID)
	assert.Equal(t, c.instructor.UserID, *access.OtherPartyID)

	access, err = env.Authorizer.Access(ctx, c.stranger, c.course.ID)
	require.NoError(t, err)
	assert.False(t, access.HasAccess)
	assert.Empty(t, access.Role)

	_, err = env.Authorizer.Access(ctx, c.alice, c.course.ID+100)
	assert.ErrorIs(t, err, util.ErrNotFound)
}
