package model

import (
	"time"
)

type Certificate struct {
	ID       uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   uint      `gorm:"uniqueIndex:idx_certificate_user_course;not null" json:"userId"`
	CourseID uint      `gorm:"uniqueIndex:idx_certificate_user_course;not null" json:"courseId"`
	Code     string    `gorm:"size:36;uniqueIndex;not null" json:"code"`
	URL      string    `gorm:"size:500" json:"url"`
	IssuedAt time.Time `json:"issuedAt"`
}

func (Certificate) TableName() string {
	return "certificates"
}
