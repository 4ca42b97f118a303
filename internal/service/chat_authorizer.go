package service

import (
	"context"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
)

const (
	ChatRoleInstructor = "instructor"
	ChatRoleStudent    = "student"
)

type ChatParticipant struct {
	UserID uint   `json:"userId"`
	Name   string `json:"name"`
	Online bool   `json:"online"`
}

type ChatAccess struct {
	CourseID         uint              `json:"courseId"`
	HasAccess        bool              `json:"hasAccess"`
	Role             string            `json:"role,omitempty"`
	OtherPartyID     *uint             `json:"otherPartyId,omitempty"`
	EnrolledStudents []ChatParticipant `json:"enrolledStudents,omitempty"`
}

// ChatAuthorizer 课程聊天室准入：讲师为课程创建者，学生需有选课记录
type ChatAuthorizer struct {
	CourseRepo     *repository.CourseRepository
	EnrollmentRepo *repository.EnrollmentRepository
	UserRepo       *repository.UserRepository
}

func NewChatAuthorizer(courseRepo *repository.CourseRepository, enrollmentRepo *repository.EnrollmentRepository, userRepo *repository.UserRepository) *ChatAuthorizer {
	return &ChatAuthorizer{
		CourseRepo:     courseRepo,
		EnrollmentRepo: enrollmentRepo,
		UserRepo:       userRepo,
	}
}

func (a *ChatAuthorizer) Access(ctx context.Context, user UserContext, courseID uint) (*ChatAccess, error) {
	course, err := a.CourseRepo.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	access := &ChatAccess{CourseID: courseID}

	if course.CreatedBy == user.UserID {
		ids, err := a.EnrollmentRepo.ListStudentIDs(ctx, courseID)
		if err != nil {
			return nil, err
		}
		users, err := a.UserRepo.FindByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		access.HasAccess = true
		access.Role = ChatRoleInstructor
		access.EnrolledStudents = make([]ChatParticipant, 0, len(ids))
		for _, id := range ids {
			access.EnrolledStudents = append(access.EnrolledStudents, ChatParticipant{UserID: id, Name: users[id].Name})
		}
		return access, nil
	}

	enrolled, err := a.EnrollmentRepo.Exists(ctx, user.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		instructor := course.CreatedBy
		access.HasAccess = true
		access.Role = ChatRoleStudent
		access.OtherPartyID = &instructor
	}
	return access, nil
}

// AuthorizeJoin 返回课程供后续判断角色
func (a *ChatAuthorizer) AuthorizeJoin(ctx context.Context, user UserContext, courseID uint) (*model.Course, error) {
	course, err := a.CourseRepo.FindCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if course.CreatedBy == user.UserID {
		return course, nil
	}
	enrolled, err := a.EnrollmentRepo.Exists(ctx, user.UserID, courseID)
	if err != nil {
		return nil, err
	}
	if !enrolled {
		return nil, util.Denied("user %d has no access to course %d chat", user.UserID, courseID)
	}
	return course, nil
}

// AuthorizeSend 学生只能发给讲师，讲师只能发给已选课的学生
func (a *ChatAuthorizer) AuthorizeSend(ctx context.Context, user UserContext, courseID, receiverID uint) (*model.Course, error) {
	course, err := a.AuthorizeJoin(ctx, user, courseID)
	if err != nil {
		return nil, err
	}
	if receiverID == user.UserID {
		return nil, util.Denied("cannot send a message to yourself")
	}

	if course.CreatedBy == user.UserID {
		enrolled, err := a.EnrollmentRepo.Exists(ctx, receiverID, courseID)
		if err != nil {
			return nil, err
		}
		if !enrolled {
			return nil, util.Denied("user %d is not enrolled in course %d", receiverID, courseID)
		}
		return course, nil
	}

	if receiverID != course.CreatedBy {
		return nil, util.Denied("students may only message the course instructor")
	}
	return course, nil
}
