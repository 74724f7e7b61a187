package repository

import (
	"learnhub_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type EnrollmentRepository struct {
	DB *gorm.DB
}

func NewEnrollmentRepository(db *gorm.DB) *EnrollmentRepository {
	return &EnrollmentRepository{DB: db}
}

func (r *EnrollmentRepository) Create(enrollment *model.Enrollment) error {
	return r.DB.Create(enrollment).Error
}

func (r *EnrollmentRepository) FindByUserAndCourse(userID, courseID uint) (*model.Enrollment, error) {
	var enrollment model.Enrollment
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (r *EnrollmentRepository) FindByUser(userID uint) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	err := r.DB.Where("user_id = ?", userID).Order("enrolled_at DESC").Find(&enrollments).Error
	return enrollments, err
}

func (r *EnrollmentRepository) CountByUser(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *EnrollmentRepository) CountCompletedByUser(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Enrollment{}).
		Where("user_id = ? AND completed = ?", userID, true).
		Count(&count).Error
	return count, err
}

// MarkCompleted 课程下全部课时完成时由进度服务调用
func (r *EnrollmentRepository) MarkCompleted(userID, courseID uint) error {
	now := time.Now()
	return r.DB.Model(&model.Enrollment{}).
		Where("user_id = ? AND course_id = ? AND completed = ?", userID, courseID, false).
		Updates(map[string]interface{}{"completed": true, "completed_at": &now}).
		Error
}
