package service

import (
	"testing"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/database"
	"learnhub_backend/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	logger.Log = zap.NewNop()
	m.Run()
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	// 内存库只允许一个连接，避免连接池拿到不同的库
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db))
	return db
}

func newProgressService(t *testing.T) (*ProgressService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewProgressService(
		repository.NewProgressRepository(db),
		repository.NewUserRepository(db),
		repository.NewLessonRepository(db),
		repository.NewEnrollmentRepository(db),
		db,
		nil,
	)
	return svc, db
}

func TestUpdateProgressFreshStart(t *testing.T) {
	svc, db := newProgressService(t)

	recordID, err := svc.UpdateProgress(1, ProgressSample{
		LessonID:        10,
		CourseID:        1,
		ModuleID:        2,
		WatchedDuration: 30,
		TotalDuration:   60,
		Percentage:      50,
	})
	require.NoError(t, err)
	require.NotZero(t, recordID)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.Equal(t, 30.0, record.WatchedDuration)
	assert.Equal(t, 50.0, record.Percentage)
	assert.False(t, record.IsCompleted)
}

func TestUpdateProgressCrossingThreshold(t *testing.T) {
	svc, db := newProgressService(t)

	user := &model.User{Name: "w", Email: "w@test.dev", Password: "x"}
	require.NoError(t, db.Create(user).Error)

	_, err := svc.UpdateProgress(user.ID, ProgressSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		WatchedDuration: 30, TotalDuration: 60, Percentage: 50,
	})
	require.NoError(t, err)

	recordID, err := svc.UpdateProgress(user.ID, ProgressSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		WatchedDuration: 58, TotalDuration: 60, Percentage: 96,
	})
	require.NoError(t, err)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.True(t, record.IsCompleted)
	require.NotNil(t, record.CompletedAt)

	// 完成跳变只递增一次冗余计数
	var fresh model.User
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 1, fresh.LessonsCompleted)

	_, err = svc.UpdateProgress(user.ID, ProgressSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		WatchedDuration: 60, TotalDuration: 60, Percentage: 100,
	})
	require.NoError(t, err)
	require.NoError(t, db.First(&fresh, user.ID).Error)
	assert.Equal(t, 1, fresh.LessonsCompleted)
}

func TestMarkCompleteWithoutPriorRecord(t *testing.T) {
	svc, db := newProgressService(t)

	recordID, err := svc.MarkComplete(1, 10, 1, 2)
	require.NoError(t, err)
	require.NotZero(t, recordID)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.Equal(t, 100.0, record.Percentage)
	assert.Equal(t, 0.0, record.WatchedDuration)
	assert.True(t, record.IsCompleted)
	require.NotNil(t, record.CompletedAt)
}

func TestResetProgressPreservesRow(t *testing.T) {
	svc, db := newProgressService(t)

	recordID, err := svc.UpdateProgress(1, ProgressSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		WatchedDuration: 58, TotalDuration: 60, Percentage: 96,
		SeekEvents: 3, PauseEvents: 2,
	})
	require.NoError(t, err)

	resetID, err := svc.ResetProgress(1, 10)
	require.NoError(t, err)
	assert.Equal(t, recordID, resetID)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.Equal(t, 0.0, record.WatchedDuration)
	assert.Equal(t, 0.0, record.Percentage)
	assert.Equal(t, 0, record.SeekEvents)
	assert.Equal(t, 0, record.PauseCount)
	assert.False(t, record.IsCompleted)
	assert.Nil(t, record.CompletedAt)
}

func TestResetProgressWithoutRecord(t *testing.T) {
	svc, _ := newProgressService(t)

	recordID, err := svc.ResetProgress(1, 999)
	require.NoError(t, err)
	assert.Zero(t, recordID)
}

func TestGetProgressAbsent(t *testing.T) {
	svc, _ := newProgressService(t)

	record, err := svc.GetProgress(1, 999)
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestBatchDeduplicatesByTimestamp(t *testing.T) {
	svc, db := newProgressService(t)

	t1 := time.Now().Add(-time.Minute)
	t2 := time.Now()

	result, err := svc.UpdateProgressBatch(1, []ProgressSample{
		{LessonID: 10, CourseID: 1, ModuleID: 2, WatchedDuration: 20, TotalDuration: 100, Percentage: 20, Timestamp: t2},
		{LessonID: 10, CourseID: 1, ModuleID: 2, WatchedDuration: 10, TotalDuration: 100, Percentage: 10, Timestamp: t1},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.SkippedCount)
	assert.Equal(t, 0, result.ErrorCount)
	assert.True(t, result.Success)
	require.Len(t, result.Results, 1)

	// 只有时间戳更大的样本被提交
	var record model.LessonProgress
	require.NoError(t, db.First(&record, result.Results[0]).Error)
	assert.Equal(t, 20.0, record.WatchedDuration)
	assert.Equal(t, 20.0, record.Percentage)
}

func TestBatchPartialFailureIsolation(t *testing.T) {
	svc, db := newProgressService(t)

	result, err := svc.UpdateProgressBatch(1, []ProgressSample{
		{LessonID: 10, CourseID: 1, ModuleID: 2, WatchedDuration: 20, TotalDuration: 100, Percentage: 150, Timestamp: time.Now()},
		{LessonID: 11, CourseID: 1, ModuleID: 2, WatchedDuration: 30, TotalDuration: 100, Percentage: 30, Timestamp: time.Now()},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, result.ProcessedCount)
	assert.Equal(t, 1, result.ErrorCount)
	assert.Equal(t, 0, result.SkippedCount)
	assert.False(t, result.Success)

	// 非法样本不影响其它课时的提交
	var record model.LessonProgress
	require.NoError(t, db.Where("user_id = ? AND lesson_id = ?", 1, 11).First(&record).Error)
	assert.Equal(t, 30.0, record.WatchedDuration)

	err = db.Where("user_id = ? AND lesson_id = ?", 1, 10).First(&model.LessonProgress{}).Error
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestBatchSizeLimit(t *testing.T) {
	svc, _ := newProgressService(t)

	samples := make([]ProgressSample, MaxBatchSize+1)
	for i := range samples {
		samples[i] = ProgressSample{LessonID: uint(i + 1), Percentage: 10, Timestamp: time.Now()}
	}

	_, err := svc.UpdateProgressBatch(1, samples)
	assert.ErrorIs(t, err, util.ErrBatchTooLarge)

	_, err = svc.UpdateProgressBatch(1, nil)
	assert.ErrorIs(t, err, util.ErrEmptyBatch)
}

func TestCompressedDelta(t *testing.T) {
	svc, db := newProgressService(t)

	_, err := svc.UpdateProgress(1, ProgressSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		WatchedDuration: 20, TotalDuration: 100, Percentage: 20,
	})
	require.NoError(t, err)

	recordID, err := svc.UpdateProgressCompressed(1, CompressedSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		DeltaWatchedDuration: 10,
		TotalDuration:        100,
	})
	require.NoError(t, err)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.Equal(t, 30.0, record.WatchedDuration)
	assert.Equal(t, 30.0, record.Percentage)
}

func TestCompressedDeltaClampsToZero(t *testing.T) {
	svc, db := newProgressService(t)

	_, err := svc.UpdateProgress(1, ProgressSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		WatchedDuration: 5, TotalDuration: 100, Percentage: 5,
	})
	require.NoError(t, err)

	// 负增量收底到0；观看秒数单调不减，保持原值
	recordID, err := svc.UpdateProgressCompressed(1, CompressedSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		DeltaWatchedDuration: -50,
		TotalDuration:        100,
	})
	require.NoError(t, err)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.Equal(t, 5.0, record.WatchedDuration)
}

func TestCompressedDeltaCreatesRecord(t *testing.T) {
	svc, db := newProgressService(t)

	recordID, err := svc.UpdateProgressCompressed(1, CompressedSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		DeltaWatchedDuration: 15,
		TotalDuration:        60,
	})
	require.NoError(t, err)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.Equal(t, 15.0, record.WatchedDuration)
	assert.InDelta(t, 25.0, record.Percentage, 0.001)
}

func TestCompressedDeltaUnknownDurationKeepsPercentage(t *testing.T) {
	svc, db := newProgressService(t)

	_, err := svc.UpdateProgress(1, ProgressSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		WatchedDuration: 20, TotalDuration: 100, Percentage: 20,
	})
	require.NoError(t, err)

	recordID, err := svc.UpdateProgressCompressed(1, CompressedSample{
		LessonID: 10, CourseID: 1, ModuleID: 2,
		DeltaWatchedDuration: 10,
		TotalDuration:        0,
	})
	require.NoError(t, err)

	var record model.LessonProgress
	require.NoError(t, db.First(&record, recordID).Error)
	assert.Equal(t, 30.0, record.WatchedDuration)
	assert.Equal(t, 20.0, record.Percentage)
}

func TestCourseCompletionMarksEnrollment(t *testing.T) {
	svc, db := newProgressService(t)

	require.NoError(t, db.Create(&model.Lesson{CourseID: 1, ModuleID: 2, Title: "a"}).Error)
	require.NoError(t, db.Create(&model.Lesson{CourseID: 1, ModuleID: 2, Title: "b"}).Error)
	require.NoError(t, db.Create(&model.Enrollment{UserID: 1, CourseID: 1, EnrolledAt: time.Now()}).Error)

	var lessons []model.Lesson
	require.NoError(t, db.Find(&lessons).Error)

	for _, lesson := range lessons {
		_, err := svc.MarkComplete(1, lesson.ID, 1, 2)
		require.NoError(t, err)
	}

	var enrollment model.Enrollment
	require.NoError(t, db.Where("user_id = ? AND course_id = ?", 1, 1).First(&enrollment).Error)
	assert.True(t, enrollment.Completed)
	require.NotNil(t, enrollment.CompletedAt)
}
