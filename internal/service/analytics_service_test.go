package service

import (
	"testing"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newAnalyticsService(t *testing.T) (*AnalyticsService, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	svc := NewAnalyticsService(
		repository.NewProgressRepository(db),
		repository.NewLessonRepository(db),
		repository.NewEnrollmentRepository(db),
		nil,
		time.Minute,
	)
	return svc, db
}

// 固定时钟，避免跨 UTC 午夜时日期漂移
var streakNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return streakNow.AddDate(0, 0, offset)
}

func TestComputeStreaksConsecutiveEndingToday(t *testing.T) {
	current, longest := computeStreaks([]time.Time{day(-2), day(-1), day(0)}, streakNow)
	assert.Equal(t, 3, current)
	assert.Equal(t, 3, longest)
}

func TestComputeStreaksGraceDay(t *testing.T) {
	// 最后活动在昨天，连续段仍算有效
	current, longest := computeStreaks([]time.Time{day(-3), day(-2), day(-1)}, streakNow)
	assert.Equal(t, 3, current)
	assert.Equal(t, 3, longest)
}

func TestComputeStreaksBrokenStreak(t *testing.T) {
	current, longest := computeStreaks([]time.Time{day(-5), day(-4), day(-3)}, streakNow)
	assert.Equal(t, 0, current)
	assert.Equal(t, 3, longest)
}

func TestComputeStreaksGapInMiddle(t *testing.T) {
	current, longest := computeStreaks([]time.Time{day(-6), day(-5), day(-4), day(-1), day(0)}, streakNow)
	assert.Equal(t, 2, current)
	assert.Equal(t, 3, longest)
}

func TestComputeStreaksDedupesSameDay(t *testing.T) {
	morning := day(0).Add(-8 * time.Hour)
	evening := day(0).Add(4 * time.Hour)
	current, longest := computeStreaks([]time.Time{morning, evening, day(0)}, streakNow)
	assert.Equal(t, 1, current)
	assert.Equal(t, 1, longest)
}

func TestComputeStreaksEmpty(t *testing.T) {
	current, longest := computeStreaks(nil, time.Now())
	assert.Zero(t, current)
	assert.Zero(t, longest)

	current, longest = computeStreaks([]time.Time{{}}, time.Now())
	assert.Zero(t, current)
	assert.Zero(t, longest)
}

func TestGetModuleProgress(t *testing.T) {
	svc, db := newAnalyticsService(t)

	for i := 0; i < 4; i++ {
		require.NoError(t, db.Create(&model.Lesson{CourseID: 1, ModuleID: 2, Title: "l"}).Error)
	}

	now := time.Now()
	require.NoError(t, db.Create(&model.LessonProgress{
		UserID: 1, LessonID: 1, CourseID: 1, ModuleID: 2,
		WatchedDuration: 60, Percentage: 100, IsCompleted: true, CompletedAt: &now,
		FirstWatchedAt: now, LastWatchedAt: now, PlaybackSpeed: 1,
	}).Error)
	require.NoError(t, db.Create(&model.LessonProgress{
		UserID: 1, LessonID: 2, CourseID: 1, ModuleID: 2,
		WatchedDuration: 30, Percentage: 50,
		FirstWatchedAt: now, LastWatchedAt: now, PlaybackSpeed: 1,
	}).Error)

	summary, err := svc.GetModuleProgress(1, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalLessons)
	assert.Equal(t, 1, summary.CompletedLessons)
	assert.Equal(t, 90.0, summary.TotalWatchTime)
	assert.Equal(t, 25.0, summary.ProgressPercentage)
}

func TestGetCourseProgressEmptyCourse(t *testing.T) {
	svc, _ := newAnalyticsService(t)

	summary, err := svc.GetCourseProgress(1, 99)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.TotalLessons)
	assert.Equal(t, 0.0, summary.ProgressPercentage)
}

func TestGetLearningAnalytics(t *testing.T) {
	svc, db := newAnalyticsService(t)

	now := time.Now()
	completedAt := now
	require.NoError(t, db.Create(&model.Enrollment{UserID: 1, CourseID: 1, EnrolledAt: now}).Error)
	require.NoError(t, db.Create(&model.Enrollment{
		UserID: 1, CourseID: 2, EnrolledAt: now, Completed: true, CompletedAt: &completedAt,
	}).Error)

	require.NoError(t, db.Create(&model.LessonProgress{
		UserID: 1, LessonID: 1, CourseID: 2, ModuleID: 1,
		WatchedDuration: 120, Percentage: 100, IsCompleted: true, CompletedAt: &completedAt,
		FirstWatchedAt: now, LastWatchedAt: now, PlaybackSpeed: 1,
	}).Error)
	require.NoError(t, db.Create(&model.LessonProgress{
		UserID: 1, LessonID: 2, CourseID: 1, ModuleID: 1,
		WatchedDuration: 45, Percentage: 40,
		FirstWatchedAt: now.AddDate(0, 0, -1), LastWatchedAt: now.AddDate(0, 0, -1), PlaybackSpeed: 1,
	}).Error)

	analytics, err := svc.GetLearningAnalytics(1)
	require.NoError(t, err)
	assert.Equal(t, 2, analytics.TotalCoursesEnrolled)
	assert.Equal(t, 1, analytics.TotalCoursesCompleted)
	assert.Equal(t, 1, analytics.TotalLessonsCompleted)
	assert.Equal(t, 165.0, analytics.TotalWatchTime)
	assert.Equal(t, 2, analytics.CurrentStreak)
	assert.Equal(t, 2, analytics.LongestStreak)
}
