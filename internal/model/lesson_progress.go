package model

import "time"

// LessonProgress 按 (user, lesson) 记录的累计观看状态。
// 每次被接受的上报都通过合并策略落到这一行上；行创建后不会被物理删除，
// 重置进度只清零计数并保留该行。
// swagger:model LessonProgress
type LessonProgress struct {
	BaseModel
	UserID   uint `gorm:"index:idx_user_lesson,unique;type:bigint unsigned;not null" json:"userId"`
	LessonID uint `gorm:"index:idx_user_lesson,unique;type:bigint unsigned;not null" json:"lessonId"`
	// 冗余课程/章节ID，便于按章节、按课程的索引扫描
	CourseID uint `gorm:"index;type:bigint unsigned;not null" json:"courseId"`
	ModuleID uint `gorm:"index;type:bigint unsigned;not null" json:"moduleId"`

	// WatchedDuration 实际观看秒数，合并后单调不减
	WatchedDuration float64 `gorm:"default:0" json:"watchedDuration"`
	// TotalDuration 最近一次上报的媒体总时长，元数据变化时允许被覆盖
	TotalDuration float64 `gorm:"default:0" json:"totalDuration"`
	// Percentage 观看百分比 [0,100]，以最后一次被接受的写入为准
	Percentage float64 `gorm:"default:0" json:"percentage"`
	// MaxWatchedPosition 播放头到达过的最远位置，单调不减
	MaxWatchedPosition float64 `gorm:"default:0" json:"maxWatchedPosition"`

	IsCompleted bool       `gorm:"default:false;index" json:"isCompleted"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// SeekEvents/PauseCount 累加计数器，按每次上报携带的增量递增
	SeekEvents    int     `gorm:"default:0" json:"seekEvents"`
	PauseCount    int     `gorm:"default:0" json:"pauseCount"`
	PlaybackSpeed float64 `gorm:"default:1" json:"playbackSpeed"`

	FirstWatchedAt   time.Time  `json:"firstWatchedAt"`
	LastWatchedAt    time.Time  `gorm:"index" json:"lastWatchedAt"`
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	SessionDuration  float64    `gorm:"default:0" json:"sessionDuration"`
}

func (LessonProgress) TableName() string {
	return "lesson_progress"
}

// ModuleProgressSummary 按章节聚合的进度
// swagger:model ModuleProgressSummary
type ModuleProgressSummary struct {
	ModuleID           uint    `json:"moduleId"`
	TotalLessons       int     `json:"totalLessons"`
	CompletedLessons   int     `json:"completedLessons"`
	ProgressPercentage float64 `json:"progressPercentage"`
	TotalWatchTime     float64 `json:"totalWatchTime"`
}

// CourseProgressSummary 按课程聚合的进度
// swagger:model CourseProgressSummary
type CourseProgressSummary struct {
	CourseID           uint    `json:"courseId"`
	TotalLessons       int     `json:"totalLessons"`
	CompletedLessons   int     `json:"completedLessons"`
	ProgressPercentage float64 `json:"progressPercentage"`
	TotalWatchTime     float64 `json:"totalWatchTime"`
}

// LearningAnalytics 用户学习总览，由进度记录按需扫描得出，无持久化状态
// swagger:model LearningAnalytics
type LearningAnalytics struct {
	TotalCoursesEnrolled  int     `json:"totalCoursesEnrolled"`
	TotalCoursesCompleted int     `json:"totalCoursesCompleted"`
	TotalLessonsCompleted int     `json:"totalLessonsCompleted"`
	TotalWatchTime        float64 `json:"totalWatchTime"`
	CurrentStreak         int     `json:"currentStreak"`
	LongestStreak         int     `json:"longestStreak"`
}
