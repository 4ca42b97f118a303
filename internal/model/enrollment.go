package model

import (
	"time"
)

type EnrollmentStatus string

const (
	NotStarted EnrollmentStatus = "NotStarted"
	InProgress EnrollmentStatus = "InProgress"
	Completed  EnrollmentStatus = "Completed"
)

// Enrollment 每个 (user, course) 至多一条
type Enrollment struct {
	BaseModel
	UserID       uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"userId"`
	CourseID     uint             `gorm:"uniqueIndex:idx_enrollment_user_course;not null" json:"courseId"`
	Status       EnrollmentStatus `gorm:"size:20;default:'NotStarted'" json:"status"`
	EnrolledAt   time.Time        `json:"enrolledAt"`
	StartedAt    *time.Time       `json:"startedAt,omitempty"`
	LastAccessed *time.Time       `json:"lastAccessed,omitempty"`
	CompletedAt  *time.Time       `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
