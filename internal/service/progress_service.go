package service

import (
	"context"
	"fmt"
	"time"

	"learnhub_backend/internal/model"
	"learnhub_backend/internal/repository"
	"learnhub_backend/internal/util"
	"learnhub_backend/pkg/logger"
	"learnhub_backend/pkg/monitoring"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxBatchSize 批量端点单次最多接受的样本数
const MaxBatchSize = 50

// ProgressService 进度同步核心：三个写入端点共用同一套合并策略，
// 每个被接受的样本都在单行事务内完成读-改-写。
type ProgressService struct {
	ProgressRepo   *repository.ProgressRepository
	UserRepo       *repository.UserRepository
	LessonRepo     *repository.LessonRepository
	EnrollmentRepo *repository.EnrollmentRepository
	DB             *gorm.DB
	Redis          *redis.Client
}

func NewProgressService(
	progressRepo *repository.ProgressRepository,
	userRepo *repository.UserRepository,
	lessonRepo *repository.LessonRepository,
	enrollmentRepo *repository.EnrollmentRepository,
	db *gorm.DB,
	rdb *redis.Client,
) *ProgressService {
	return &ProgressService{
		ProgressRepo:   progressRepo,
		UserRepo:       userRepo,
		LessonRepo:     lessonRepo,
		EnrollmentRepo: enrollmentRepo,
		DB:             db,
		Redis:          rdb,
	}
}

// BatchResult 批量写入的逐项与汇总结果
type BatchResult struct {
	Success        bool   `json:"success"`
	ProcessedCount int    `json:"processedCount"`
	SkippedCount   int    `json:"skippedCount"`
	ErrorCount     int    `json:"errorCount"`
	Results        []uint `json:"results"`
}

// CompressedSample 增量压缩上报：携带观看秒数增量而非绝对量，
// 供高频低带宽调用方使用
type CompressedSample struct {
	LessonID             uint     `json:"lessonId" binding:"required"`
	CourseID             uint     `json:"courseId"`
	ModuleID             uint     `json:"moduleId"`
	DeltaWatchedDuration float64  `json:"deltaWatchedDuration"`
	TotalDuration        float64  `json:"totalDuration"`
	CurrentPosition      *float64 `json:"currentPosition,omitempty"`
	SeekEvents           int      `json:"seekEvents"`
	PauseEvents          int      `json:"pauseEvents"`
	PlaybackSpeed        *float64 `json:"playbackSpeed,omitempty"`
}

// UpdateProgress 单条上报：查找现有记录，按合并策略写回
func (s *ProgressService) UpdateProgress(userID uint, sample ProgressSample) (uint, error) {
	recordID, flipped, err := s.applySample(userID, sample)
	if err != nil {
		monitoring.ProgressSamplesRejected.WithLabelValues("single").Inc()
		return 0, err
	}

	monitoring.ProgressSamplesApplied.WithLabelValues("single").Inc()
	if flipped {
		s.onLessonCompleted(userID, sample.CourseID)
	}
	return recordID, nil
}

// UpdateProgressBatch 批量上报：先按课时去重（保留时间戳最大的样本），
// 再逐项独立校验和合并。单项失败只计入 errorCount，不中断整批。
func (s *ProgressService) UpdateProgressBatch(userID uint, samples []ProgressSample) (*BatchResult, error) {
	if len(samples) == 0 {
		return nil, util.ErrEmptyBatch
	}
	if len(samples) > MaxBatchSize {
		return nil, util.ErrBatchTooLarge
	}

	// 去重：同一课时只保留时间戳最大的样本，时间戳相同时后出现的胜出
	winners := make(map[uint]int, len(samples))
	for i, sample := range samples {
		if j, ok := winners[sample.LessonID]; ok {
			if !sample.Timestamp.Before(samples[j].Timestamp) {
				winners[sample.LessonID] = i
			}
		} else {
			winners[sample.LessonID] = i
		}
	}

	result := &BatchResult{
		SkippedCount: len(samples) - len(winners),
		Results:      make([]uint, 0, len(winners)),
	}
	if result.SkippedCount > 0 {
		monitoring.ProgressSamplesSkipped.Add(float64(result.SkippedCount))
	}

	for i, sample := range samples {
		if winners[sample.LessonID] != i {
			continue
		}

		recordID, flipped, err := s.applySample(userID, sample)
		if err != nil {
			logger.Log.Warn("batch progress item rejected",
				zap.Uint("userID", userID),
				zap.Uint("lessonID", sample.LessonID),
				zap.Error(err))
			monitoring.ProgressSamplesRejected.WithLabelValues("batch").Inc()
			result.ErrorCount++
			continue
		}

		monitoring.ProgressSamplesApplied.WithLabelValues("batch").Inc()
		result.ProcessedCount++
		result.Results = append(result.Results, recordID)
		if flipped {
			s.onLessonCompleted(userID, sample.CourseID)
		}
	}

	result.Success = result.ErrorCount == 0
	return result, nil
}

// UpdateProgressCompressed 增量上报：在事务内把增量还原为绝对量，
// 再走与单条上报相同的合并规则
func (s *ProgressService) UpdateProgressCompressed(userID uint, req CompressedSample) (uint, error) {
	if req.TotalDuration < 0 {
		monitoring.ProgressSamplesRejected.WithLabelValues("compressed").Inc()
		return 0, util.ErrNegativeDuration
	}

	var recordID uint
	var flipped bool

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.ProgressRepo.FindForUpdate(tx, userID, req.LessonID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		var prevWatched, prevPercentage float64
		if existing != nil {
			prevWatched = existing.WatchedDuration
			prevPercentage = existing.Percentage
		}

		newWatched := prevWatched + req.DeltaWatchedDuration
		if newWatched < 0 {
			newWatched = 0
		}

		// 总时长已知时重新推导百分比并封顶，否则保持原值
		percentage := prevPercentage
		if req.TotalDuration > 0 {
			percentage = newWatched / req.TotalDuration * 100
			if percentage > 100 {
				percentage = 100
			}
		}

		sample := ProgressSample{
			LessonID:        req.LessonID,
			CourseID:        req.CourseID,
			ModuleID:        req.ModuleID,
			WatchedDuration: newWatched,
			TotalDuration:   req.TotalDuration,
			Percentage:      percentage,
			CurrentPosition: req.CurrentPosition,
			SeekEvents:      req.SeekEvents,
			PauseEvents:     req.PauseEvents,
			PlaybackSpeed:   req.PlaybackSpeed,
		}

		recordID, flipped, err = s.mergeAndWrite(tx, existing, userID, sample)
		return err
	})
	if err != nil {
		monitoring.ProgressSamplesRejected.WithLabelValues("compressed").Inc()
		return 0, err
	}

	monitoring.ProgressSamplesApplied.WithLabelValues("compressed").Inc()
	if flipped {
		s.onLessonCompleted(userID, req.CourseID)
	}
	return recordID, nil
}

// MarkComplete 手动完成：无视进度直接置 percentage=100 并闩锁完成位。
// 没有记录时创建一条 watchedDuration=0 的完成记录。
func (s *ProgressService) MarkComplete(userID, lessonID, courseID, moduleID uint) (uint, error) {
	var recordID uint
	var flipped bool
	now := time.Now()

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.ProgressRepo.FindForUpdate(tx, userID, lessonID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		if existing == nil {
			record := &model.LessonProgress{
				UserID:         userID,
				LessonID:       lessonID,
				CourseID:       courseID,
				ModuleID:       moduleID,
				Percentage:     100,
				IsCompleted:    true,
				CompletedAt:    &now,
				PlaybackSpeed:  1,
				FirstWatchedAt: now,
				LastWatchedAt:  now,
			}
			if err := s.ProgressRepo.Create(tx, record); err != nil {
				return err
			}
			recordID = record.ID
			flipped = true
			return nil
		}

		existing.Percentage = 100
		if !existing.IsCompleted {
			existing.IsCompleted = true
			existing.CompletedAt = &now
			flipped = true
		}
		existing.LastWatchedAt = now

		if err := s.ProgressRepo.Save(tx, existing); err != nil {
			return err
		}
		recordID = existing.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	if flipped {
		s.onLessonCompleted(userID, courseID)
	}
	return recordID, nil
}

// ResetProgress 重置进度：清零计数但保留记录行。
// 没有记录时返回 0，调用方视作空结果而非错误。
func (s *ProgressService) ResetProgress(userID, lessonID uint) (uint, error) {
	var recordID uint

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.ProgressRepo.FindForUpdate(tx, userID, lessonID)
		if err == gorm.ErrRecordNotFound {
			return nil
		}
		if err != nil {
			return err
		}

		existing.WatchedDuration = 0
		existing.Percentage = 0
		existing.MaxWatchedPosition = 0
		existing.SeekEvents = 0
		existing.PauseCount = 0
		existing.SessionDuration = 0
		existing.IsCompleted = false
		existing.CompletedAt = nil
		existing.LastWatchedAt = time.Now()

		if err := s.ProgressRepo.Save(tx, existing); err != nil {
			return err
		}
		recordID = existing.ID
		return nil
	})
	if err != nil {
		return 0, err
	}

	if recordID != 0 {
		s.invalidateAnalyticsCache(userID)
	}
	return recordID, nil
}

// GetProgress 查询单条记录，不存在时返回 (nil, nil)
func (s *ProgressService) GetProgress(userID, lessonID uint) (*model.LessonProgress, error) {
	record, err := s.ProgressRepo.FindByUserAndLesson(userID, lessonID)
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// applySample 一个样本的完整写入路径：事务内锁行、合并、写回
func (s *ProgressService) applySample(userID uint, sample ProgressSample) (uint, bool, error) {
	var recordID uint
	var flipped bool

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		existing, err := s.ProgressRepo.FindForUpdate(tx, userID, sample.LessonID)
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}

		recordID, flipped, err = s.mergeAndWrite(tx, existing, userID, sample)
		return err
	})
	return recordID, flipped, err
}

func (s *ProgressService) mergeAndWrite(tx *gorm.DB, existing *model.LessonProgress, userID uint, sample ProgressSample) (uint, bool, error) {
	merged, err := mergeProgress(existing, userID, sample, time.Now())
	if err != nil {
		return 0, false, err
	}

	flipped := merged.IsCompleted && (existing == nil || !existing.IsCompleted)

	if existing == nil {
		if err := s.ProgressRepo.Create(tx, merged); err != nil {
			return 0, false, err
		}
	} else {
		if err := s.ProgressRepo.Save(tx, merged); err != nil {
			return 0, false, err
		}
	}
	return merged.ID, flipped, nil
}

// onLessonCompleted 完成跳变后的冗余簿记，全部尽力而为：
// 失败只记日志，绝不影响已提交的进度写入
func (s *ProgressService) onLessonCompleted(userID, courseID uint) {
	if err := s.UserRepo.IncrementLessonsCompleted(userID); err != nil {
		logger.Log.Warn("failed to bump lessons_completed counter",
			zap.Uint("userID", userID), zap.Error(err))
	}

	if courseID != 0 {
		if err := s.maybeCompleteCourse(userID, courseID); err != nil {
			logger.Log.Warn("failed to update course completion",
				zap.Uint("userID", userID), zap.Uint("courseID", courseID), zap.Error(err))
		}
	}

	s.invalidateAnalyticsCache(userID)
}

// maybeCompleteCourse 课程内全部课时完成时把报名记录标记为已完成
func (s *ProgressService) maybeCompleteCourse(userID, courseID uint) error {
	total, err := s.LessonRepo.CountByCourse(courseID)
	if err != nil {
		return err
	}
	if total == 0 {
		return nil
	}

	completed, err := s.ProgressRepo.CountCompletedByUserAndCourse(userID, courseID)
	if err != nil {
		return err
	}
	if completed < total {
		return nil
	}

	return s.EnrollmentRepo.MarkCompleted(userID, courseID)
}

func (s *ProgressService) invalidateAnalyticsCache(userID uint) {
	if s.Redis == nil {
		return
	}
	key := fmt.Sprintf("analytics:learning:%d", userID)
	if err := s.Redis.Del(context.Background(), key).Err(); err != nil && err != redis.Nil {
		logger.Log.Debug("analytics cache invalidation failed",
			zap.Uint("userID", userID), zap.Error(err))
	}
}
