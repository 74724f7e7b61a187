package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/pkg/logger"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// AnalyticsService 只读聚合：章节/课程完成度和学习连续天数
// 全部由进度记录按需扫描得出，不维护任何持久化的聚合状态。
type AnalyticsService struct {
	ProgressRepo   *repository.ProgressRepository
	LessonRepo     *repository.LessonRepository
	EnrollmentRepo *repository.EnrollmentRepository
	Redis          *redis.Client
	CacheTTL       time.Duration
}

func NewAnalyticsService(
	progressRepo *repository.ProgressRepository,
	lessonRepo *repository.LessonRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	rdb *redis.Client,
	cacheTTL time.Duration,
) *AnalyticsService {
	return &AnalyticsService{
		ProgressRepo:   progressRepo,
		LessonRepo:     lessonRepo,
		EnrollmentRepo: enrollmentRepo,
		Redis:          rdb,
		CacheTTL:       cacheTTL,
	}
}

// GetModuleProgress 章节完成度：完成课时数 / 章节课时总数
func (s *AnalyticsService) GetModuleProgress(userID, moduleID uint) (*model.ModuleProgressSummary, error) {
	total, err := s.LessonRepo.CountByModule(moduleID)
	if err != nil {
		return nil, err
	}

	records, err := s.ProgressRepo.FindByUserAndModule(userID, moduleID)
	if err != nil {
		return nil, err
	}

	summary := &model.ModuleProgressSummary{
		ModuleID:     moduleID,
		TotalLessons: int(total),
	}

	for _, record := range records {
		if record.IsCompleted {
			summary.CompletedLessons++
		}
		summary.TotalWatchTime += record.WatchedDuration
	}

	if total > 0 {
		summary.ProgressPercentage = float64(summary.CompletedLessons) / float64(total) * 100
	}
	return summary, nil
}

// GetCourseProgress 课程完成度，口径与章节一致
func (s *AnalyticsService) GetCourseProgress(userID, courseID uint) (*model.CourseProgressSummary, error) {
	total, err := s.LessonRepo.CountByCourse(courseID)
	if err != nil {
		return nil, err
	}

	records, err := s.ProgressRepo.FindByUserAndCourse(userID, courseID)
	if err != nil {
		return nil, err
	}

	summary := &model.CourseProgressSummary{
		CourseID:     courseID,
		TotalLessons: int(total),
	}

	for _, record := range records {
		if record.IsCompleted {
			summary.CompletedLessons++
		}
		summary.TotalWatchTime += record.WatchedDuration
	}

	if total > 0 {
		summary.ProgressPercentage = float64(summary.CompletedLessons) / float64(total) * 100
	}
	return summary, nil
}

// GetLearningAnalytics 用户学习总览，结果在Redis短暂缓存，
// 进度写入的完成跳变会使缓存失效
func (s *AnalyticsService) GetLearningAnalytics(userID uint) (*model.LearningAnalytics, error) {
	cacheKey := fmt.Sprintf("analytics:learning:%d", userID)

	if s.Redis != nil {
		cached, err := s.Redis.Get(context.Background(), cacheKey).Result()
		if err == nil {
			var analytics model.LearningAnalytics
			if jsonErr := json.Unmarshal([]byte(cached), &analytics); jsonErr == nil {
				return &analytics, nil
			}
		} else if err != redis.Nil {
			logger.Log.Debug("analytics cache read failed", zap.Error(err))
		}
	}

	analytics, err := s.computeLearningAnalytics(userID, time.Now())
	if err != nil {
		return nil, err
	}

	if s.Redis != nil {
		if payload, jsonErr := json.Marshal(analytics); jsonErr == nil {
			if err := s.Redis.Set(context.Background(), cacheKey, payload, s.CacheTTL).Err(); err != nil {
				logger.Log.Debug("analytics cache write failed", zap.Error(err))
			}
		}
	}
	return analytics, nil
}

func (s *AnalyticsService) computeLearningAnalytics(userID uint, now time.Time) (*model.LearningAnalytics, error) {
	enrolled, err := s.EnrollmentRepo.CountByUser(userID)
	if err != nil {
		return nil, err
	}

	coursesCompleted, err := s.EnrollmentRepo.CountCompletedByUser(userID)
	if err != nil {
		return nil, err
	}

	lessonsCompleted, err := s.ProgressRepo.CountCompletedByUser(userID)
	if err != nil {
		return nil, err
	}

	watchTime, err := s.ProgressRepo.SumWatchTimeByUser(userID)
	if err != nil {
		return nil, err
	}

	records, err := s.ProgressRepo.FindByUser(userID)
	if err != nil {
		return nil, err
	}

	activityDays := make([]time.Time, 0, len(records))
	for _, record := range records {
		activityDays = append(activityDays, record.LastWatchedAt)
	}
	current, longest := computeStreaks(activityDays, now)

	return &model.LearningAnalytics{
		TotalCoursesEnrolled:  int(enrolled),
		TotalCoursesCompleted: int(coursesCompleted),
		TotalLessonsCompleted: int(lessonsCompleted),
		TotalWatchTime:        watchTime,
		CurrentStreak:         current,
		LongestStreak:         longest,
	}, nil
}

// computeStreaks 从活动时间戳推导连续学习天数。
// 按日历日去重后升序扫描：longest 为最长连续日期段，
// current 为以今天或昨天收尾的连续段（允许一天宽限），否则为 0。
func computeStreaks(timestamps []time.Time, now time.Time) (current, longest int) {
	if len(timestamps) == 0 {
		return 0, 0
	}

	daySet := make(map[time.Time]struct{}, len(timestamps))
	for _, ts := range timestamps {
		if ts.IsZero() {
			continue
		}
		day := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC)
		daySet[day] = struct{}{}
	}
	if len(daySet) == 0 {
		return 0, 0
	}

	days := make([]time.Time, 0, len(daySet))
	for day := range daySet {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	run := 1
	longest = 1
	for i := 1; i < len(days); i++ {
		if days[i].Sub(days[i-1]) == 24*time.Hour {
			run++
		} else {
			run = 1
		}
		if run > longest {
			longest = run
		}
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	lastDay := days[len(days)-1]
	gap := today.Sub(lastDay)
	if gap == 0 || gap == 24*time.Hour {
		current = run
	}
	return current, longest
}
