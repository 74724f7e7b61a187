package model

// CourseStatus 课程发布状态
type CourseStatus string

const (
	CourseDraft     CourseStatus = "draft"
	CoursePublished CourseStatus = "published"
	CourseArchived  CourseStatus = "archived"
)

// swagger:model Course
type Course struct {
	BaseModel
	Title       string         `gorm:"size:255;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	CoverURL    string         `gorm:"size:255" json:"coverUrl"`
	AuthorID    uint           `gorm:"index;type:bigint unsigned" json:"authorId"`
	Status      CourseStatus   `gorm:"size:20;default:'draft'" json:"status"`
	Modules     []CourseModule `gorm:"foreignKey:CourseID" json:"modules,omitempty"`
}

func (Course) TableName() string {
	return "courses"
}

// CourseModule 课程下的章节
// swagger:model CourseModule
type CourseModule struct {
	BaseModel
	CourseID uint     `gorm:"index;type:bigint unsigned;not null" json:"courseId"`
	Title    string   `gorm:"size:255;not null" json:"title"`
	Order    int      `gorm:"default:0" json:"order"`
	Lessons  []Lesson `gorm:"foreignKey:ModuleID" json:"lessons,omitempty"`
}

func (CourseModule) TableName() string {
	return "course_modules"
}

// Lesson 章节下的课时，视频播放进度以课时为粒度记录
// swagger:model Lesson
type Lesson struct {
	BaseModel
	CourseID uint   `gorm:"index;type:bigint unsigned;not null" json:"courseId"`
	ModuleID uint   `gorm:"index;type:bigint unsigned;not null" json:"moduleId"`
	Title    string `gorm:"size:255;not null" json:"title"`
	VideoURL string `gorm:"size:255" json:"videoUrl"`
	// DurationSeconds 视频时长（秒），由上传端上报，可能被更准确的元数据覆盖
	DurationSeconds float64 `gorm:"default:0" json:"durationSeconds"`
	Order           int     `gorm:"default:0" json:"order"`
}

func (Lesson) TableName() string {
	return "lessons"
}
