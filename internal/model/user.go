package model

import (
	"time"
)

type UserRole string

const (
	Student UserRole = "student"
	Teacher UserRole = "teacher"
	Admin   UserRole = "admin"
)

// swagger:model User
type User struct {
	BaseModel
	Name     string   `gorm:"size:100;not null" json:"name"`
	Email    string   `gorm:"size:100;unique;not null" json:"email"`
	Password string   `gorm:"size:100;not null" json:"-"`
	Role     UserRole `gorm:"size:20;default:'student'" json:"role"`
	Language string   `gorm:"size:10;default:'en'" json:"language"`
	Avatar   string   `gorm:"size:255" json:"avatar"`
	Disabled bool     `gorm:"default:false" json:"disabled"`
	// LessonsCompleted 冗余的已完成课时计数，由进度服务在完成跳变时递增
	LessonsCompleted int       `gorm:"default:0" json:"lessonsCompleted"`
	LastLogin        time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"lastLogin"`
	LastSeen         time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"lastSeen"`
}

func (User) TableName() string {
	return "users"
}
