package repository

import (
	"learnhub_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressRepository 进度记录的存取层。
// 记录按 (user_id, lesson_id) 唯一，写入方在事务内用 FindForUpdate
// 实现单行原子的读-改-写；不加跨行锁，批量写入逐行串行处理。
type ProgressRepository struct {
	DB *gorm.DB
}

func NewProgressRepository(db *gorm.DB) *ProgressRepository {
	return &ProgressRepository{DB: db}
}

func (r *ProgressRepository) FindByUserAndLesson(userID, lessonID uint) (*model.LessonProgress, error) {
	var record model.LessonProgress
	err := r.DB.Where("user_id = ? AND lesson_id = ?", userID, lessonID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// FindForUpdate 在给定事务内带行锁读取，配合 Save 构成原子读-改-写。
// sqlite 不支持 SELECT ... FOR UPDATE，事务本身已是串行化的，跳过锁子句。
func (r *ProgressRepository) FindForUpdate(tx *gorm.DB, userID, lessonID uint) (*model.LessonProgress, error) {
	query := tx.Where("user_id = ? AND lesson_id = ?", userID, lessonID)
	if tx.Dialector.Name() == "mysql" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var record model.LessonProgress
	err := query.First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *ProgressRepository) Create(tx *gorm.DB, record *model.LessonProgress) error {
	return tx.Create(record).Error
}

func (r *ProgressRepository) Save(tx *gorm.DB, record *model.LessonProgress) error {
	return tx.Save(record).Error
}

func (r *ProgressRepository) FindByUserAndModule(userID, moduleID uint) ([]model.LessonProgress, error) {
	var records []model.LessonProgress
	err := r.DB.Where("user_id = ? AND module_id = ?", userID, moduleID).Find(&records).Error
	return records, err
}

func (r *ProgressRepository) FindByUserAndCourse(userID, courseID uint) ([]model.LessonProgress, error) {
	var records []model.LessonProgress
	err := r.DB.Where("user_id = ? AND course_id = ?", userID, courseID).Find(&records).Error
	return records, err
}

func (r *ProgressRepository) FindByUser(userID uint) ([]model.LessonProgress, error) {
	var records []model.LessonProgress
	err := r.DB.Where("user_id = ?", userID).Find(&records).Error
	return records, err
}

func (r *ProgressRepository) CountCompletedByUser(userID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.LessonProgress{}).
		Where("user_id = ? AND is_completed = ?", userID, true).
		Count(&count).Error
	return count, err
}

func (r *ProgressRepository) CountCompletedByUserAndCourse(userID, courseID uint) (int64, error) {
	var count int64
	err := r.DB.Model(&model.LessonProgress{}).
		Where("user_id = ? AND course_id = ? AND is_completed = ?", userID, courseID, true).
		Count(&count).Error
	return count, err
}

// SumWatchTimeByUser 用户全部记录的累计观看秒数
func (r *ProgressRepository) SumWatchTimeByUser(userID uint) (float64, error) {
	var total float64
	err := r.DB.Model(&model.LessonProgress{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(watched_duration), 0)").
		Scan(&total).Error
	return total, err
}
