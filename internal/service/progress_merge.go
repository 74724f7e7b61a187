package service

import (
	"learnhub_backend/internal/model"
	"learnhub_backend/internal/util"
	"time"
)

// CompletionThresholdPercent 服务端判定完成的百分比阈值。
// 客户端会话用自己的本地阈值（更低），两者刻意独立，见 pkg/progressclient。
const CompletionThresholdPercent = 95.0

// ProgressSample 一次播放状态上报。绝对量（观看秒数、总时长、百分比）
// 加增量计数（拖动/暂停次数），合并时绝对量取max或覆盖，增量累加。
type ProgressSample struct {
	LessonID        uint     `json:"lessonId" binding:"required"`
	CourseID        uint     `json:"courseId"`
	ModuleID        uint     `json:"moduleId"`
	WatchedDuration float64  `json:"watchedDuration"`
	TotalDuration   float64  `json:"totalDuration"`
	Percentage      float64  `json:"percentage"`
	CurrentPosition *float64 `json:"currentPosition,omitempty"`
	SeekEvents      int      `json:"seekEvents"`
	PauseEvents     int      `json:"pauseEvents"`
	PlaybackSpeed   *float64 `json:"playbackSpeed,omitempty"`
	SessionDuration float64  `json:"sessionDuration"`
	// SessionStartedAt 本次播放会话的开始时间，客户端可选上报
	SessionStartedAt *time.Time `json:"sessionStartedAt,omitempty"`
	// Timestamp 客户端采样时间，批量端点按课时去重时取最大值
	Timestamp time.Time `json:"timestamp"`
}

// validateSample 写入前的数值校验，任何端点都先过这一步
func validateSample(s ProgressSample) error {
	if s.Percentage < 0 || s.Percentage > 100 {
		return util.ErrInvalidPercentage
	}
	if s.WatchedDuration < 0 || s.TotalDuration < 0 {
		return util.ErrNegativeDuration
	}
	return nil
}

// mergeProgress 合并策略：纯函数，不做任何I/O。
// existing 为 nil 时创建记录，否则返回合并后的副本（不修改入参）。
//
// 合并规则：
//   - watchedDuration、maxWatchedPosition 取 max，单调不减
//   - totalDuration、percentage、playbackSpeed 覆盖（最后写入者胜）
//   - seekEvents、pauseCount 按增量累加
//   - isCompleted 单向闩锁，completedAt 仅在 false→true 跳变时落值
func mergeProgress(existing *model.LessonProgress, userID uint, s ProgressSample, now time.Time) (*model.LessonProgress, error) {
	if err := validateSample(s); err != nil {
		return nil, err
	}

	if existing == nil {
		watched := s.WatchedDuration
		if watched < 0 {
			watched = 0
		}

		position := watched
		if s.CurrentPosition != nil {
			position = *s.CurrentPosition
		}

		speed := 1.0
		if s.PlaybackSpeed != nil {
			speed = *s.PlaybackSpeed
		}

		record := &model.LessonProgress{
			UserID:             userID,
			LessonID:           s.LessonID,
			CourseID:           s.CourseID,
			ModuleID:           s.ModuleID,
			WatchedDuration:    watched,
			TotalDuration:      s.TotalDuration,
			Percentage:         s.Percentage,
			MaxWatchedPosition: position,
			SeekEvents:         s.SeekEvents,
			PauseCount:         s.PauseEvents,
			PlaybackSpeed:      speed,
			FirstWatchedAt:     now,
			LastWatchedAt:      now,
			SessionDuration:    s.SessionDuration,
			SessionStartedAt:   s.SessionStartedAt,
		}

		if s.Percentage >= CompletionThresholdPercent {
			record.IsCompleted = true
			record.CompletedAt = &now
		}

		return record, nil
	}

	merged := *existing

	if s.WatchedDuration > merged.WatchedDuration {
		merged.WatchedDuration = s.WatchedDuration
	}
	merged.TotalDuration = s.TotalDuration
	merged.Percentage = s.Percentage

	if s.CurrentPosition != nil && *s.CurrentPosition > merged.MaxWatchedPosition {
		merged.MaxWatchedPosition = *s.CurrentPosition
	}

	merged.SeekEvents += s.SeekEvents
	merged.PauseCount += s.PauseEvents

	if s.PlaybackSpeed != nil {
		merged.PlaybackSpeed = *s.PlaybackSpeed
	}

	if !merged.IsCompleted && s.Percentage >= CompletionThresholdPercent {
		merged.IsCompleted = true
		merged.CompletedAt = &now
	}

	merged.LastWatchedAt = now
	if s.SessionDuration > 0 {
		merged.SessionDuration = s.SessionDuration
	}
	if s.SessionStartedAt != nil {
		merged.SessionStartedAt = s.SessionStartedAt
	}

	return &merged, nil
}
