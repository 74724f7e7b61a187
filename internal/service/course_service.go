package service

import (
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"

	"gorm.io/gorm"
)

// CourseService 课程目录的薄CRUD，进度子系统只依赖它提供的课时口径
type CourseService struct {
	CourseRepo     *repository.CourseRepository
	LessonRepo     *repository.LessonRepository
	EnrollmentRepo *repository.EnrollmentRepository
}

func NewCourseService(
	courseRepo *repository.CourseRepository,
	lessonRepo *repository.LessonRepository,
	enrollmentRepo *repository.EnrollmentRepository,
) *CourseService {
	return &CourseService{
		CourseRepo:     courseRepo,
		LessonRepo:     lessonRepo,
		EnrollmentRepo: enrollmentRepo,
	}
}

func (s *CourseService) GetCourses(page, limit int) ([]model.Course, int64, error) {
	return s.CourseRepo.FindPublished(page, limit)
}

func (s *CourseService) GetCourse(id uint) (*model.Course, error) {
	course, err := s.CourseRepo.FindByID(id)
	if err == gorm.ErrRecordNotFound {
		return nil, util.ErrCourseNotFound
	}
	if err != nil {
		return nil, err
	}
	return course, nil
}

func (s *CourseService) CreateCourse(course *model.Course) error {
	return s.CourseRepo.Create(course)
}

func (s *CourseService) Enroll(userID, courseID uint) (*model.Enrollment, error) {
	if _, err := s.GetCourse(courseID); err != nil {
		return nil, err
	}

	if _, err := s.EnrollmentRepo.FindByUserAndCourse(userID, courseID); err == nil {
		return nil, util.ErrAlreadyEnrolled
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	enrollment := &model.Enrollment{
		UserID:     userID,
		CourseID:   courseID,
		EnrolledAt: time.Now(),
	}
	if err := s.EnrollmentRepo.Create(enrollment); err != nil {
		return nil, err
	}
	return enrollment, nil
}
