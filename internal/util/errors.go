package util

import "errors"

var (
	ErrUserNotFound          = errors.New("用户不存在")
	ErrEmailRegistered       = errors.New("该邮箱已被注册")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrPermissionDenied      = errors.New("permission denied")
	ErrCourseNotFound        = errors.New("course not found")
	ErrLessonNotFound        = errors.New("lesson not found")
	ErrAlreadyEnrolled       = errors.New("already enrolled in this course")
	ErrInvalidPercentage     = errors.New("percentage must be between 0 and 100")
	ErrNegativeDuration      = errors.New("watched duration and total duration must be non-negative")
	ErrBatchTooLarge         = errors.New("batch exceeds maximum of 50 updates")
	ErrEmptyBatch            = errors.New("batch contains no updates")
	ErrProgressRecordMissing = errors.New("progress record not found")
)
