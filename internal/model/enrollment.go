package model

import "time"

// Enrollment 记录用户报名的课程，(user, course) 唯一
// swagger:model Enrollment
type Enrollment struct {
	BaseModel
	UserID      uint       `gorm:"index:idx_user_course,unique;type:bigint unsigned;not null" json:"userId"`
	CourseID    uint       `gorm:"index:idx_user_course,unique;type:bigint unsigned;not null" json:"courseId"`
	EnrolledAt  time.Time  `gorm:"not null" json:"enrolledAt"`
	Completed   bool       `gorm:"default:false" json:"completed"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
