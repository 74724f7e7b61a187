package service

import (
	"testing"
	"time"

	"learnhub_backend/internal/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func baseSample() ProgressSample {
	return ProgressSample{
		LessonID:        10,
		CourseID:        1,
		ModuleID:        2,
		WatchedDuration: 30,
		TotalDuration:   60,
		Percentage:      50,
	}
}

func TestMergeProgressCreatesRecord(t *testing.T) {
	now := time.Now()
	record, err := mergeProgress(nil, 7, baseSample(), now)
	require.NoError(t, err)

	assert.Equal(t, uint(7), record.UserID)
	assert.Equal(t, uint(10), record.LessonID)
	assert.Equal(t, 30.0, record.WatchedDuration)
	assert.Equal(t, 50.0, record.Percentage)
	assert.False(t, record.IsCompleted)
	assert.Nil(t, record.CompletedAt)
	assert.Equal(t, now, record.FirstWatchedAt)
	assert.Equal(t, now, record.LastWatchedAt)
	// 没有显式播放位置时回退到观看秒数
	assert.Equal(t, 30.0, record.MaxWatchedPosition)
	assert.Equal(t, 1.0, record.PlaybackSpeed)
}

func TestMergeProgressCreateAboveThreshold(t *testing.T) {
	sample := baseSample()
	sample.Percentage = 96
	now := time.Now()

	record, err := mergeProgress(nil, 7, sample, now)
	require.NoError(t, err)
	assert.True(t, record.IsCompleted)
	require.NotNil(t, record.CompletedAt)
	assert.Equal(t, now, *record.CompletedAt)
}

func TestMergeProgressWatchedDurationMonotonic(t *testing.T) {
	now := time.Now()
	record, err := mergeProgress(nil, 7, baseSample(), now)
	require.NoError(t, err)

	// 更小的观看秒数不会让记录回退
	stale := baseSample()
	stale.WatchedDuration = 10
	merged, err := mergeProgress(record, 7, stale, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 30.0, merged.WatchedDuration)

	ahead := baseSample()
	ahead.WatchedDuration = 45
	merged, err = mergeProgress(merged, 7, ahead, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 45.0, merged.WatchedDuration)
}

func TestMergeProgressMaxPositionMonotonic(t *testing.T) {
	now := time.Now()
	sample := baseSample()
	sample.CurrentPosition = floatPtr(40)

	record, err := mergeProgress(nil, 7, sample, now)
	require.NoError(t, err)
	assert.Equal(t, 40.0, record.MaxWatchedPosition)

	back := baseSample()
	back.CurrentPosition = floatPtr(15)
	merged, err := mergeProgress(record, 7, back, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 40.0, merged.MaxWatchedPosition)

	// 缺省播放位置时保持原值
	noPos := baseSample()
	noPos.CurrentPosition = nil
	merged, err = mergeProgress(merged, 7, noPos, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 40.0, merged.MaxWatchedPosition)
}

func TestMergeProgressCompletionLatch(t *testing.T) {
	now := time.Now()
	sample := baseSample()
	sample.Percentage = 96

	record, err := mergeProgress(nil, 7, sample, now)
	require.NoError(t, err)
	require.True(t, record.IsCompleted)
	completedAt := *record.CompletedAt

	// 后续低百分比样本不会撤销完成位，也不会改写 completedAt
	low := baseSample()
	low.Percentage = 20
	merged, err := mergeProgress(record, 7, low, now.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, merged.IsCompleted)
	assert.Equal(t, completedAt, *merged.CompletedAt)
	assert.Equal(t, 20.0, merged.Percentage)
}

func TestMergeProgressIdempotent(t *testing.T) {
	now := time.Now()
	sample := baseSample()
	sample.SeekEvents = 0
	sample.PauseEvents = 0

	first, err := mergeProgress(nil, 7, sample, now)
	require.NoError(t, err)

	second, err := mergeProgress(first, 7, sample, now.Add(time.Minute))
	require.NoError(t, err)

	// 除 lastWatchedAt 外全部字段不变
	assert.Equal(t, first.WatchedDuration, second.WatchedDuration)
	assert.Equal(t, first.Percentage, second.Percentage)
	assert.Equal(t, first.MaxWatchedPosition, second.MaxWatchedPosition)
	assert.Equal(t, first.SeekEvents, second.SeekEvents)
	assert.Equal(t, first.PauseCount, second.PauseCount)
	assert.Equal(t, first.IsCompleted, second.IsCompleted)
	assert.NotEqual(t, first.LastWatchedAt, second.LastWatchedAt)
}

func TestMergeProgressCountersAdditive(t *testing.T) {
	now := time.Now()
	sample := baseSample()
	sample.SeekEvents = 2
	sample.PauseEvents = 1

	record, err := mergeProgress(nil, 7, sample, now)
	require.NoError(t, err)
	assert.Equal(t, 2, record.SeekEvents)
	assert.Equal(t, 1, record.PauseCount)

	next := baseSample()
	next.SeekEvents = 3
	next.PauseEvents = 2
	merged, err := mergeProgress(record, 7, next, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 5, merged.SeekEvents)
	assert.Equal(t, 3, merged.PauseCount)
}

func TestMergeProgressPlaybackSpeed(t *testing.T) {
	now := time.Now()
	sample := baseSample()
	sample.PlaybackSpeed = floatPtr(1.5)

	record, err := mergeProgress(nil, 7, sample, now)
	require.NoError(t, err)
	assert.Equal(t, 1.5, record.PlaybackSpeed)

	// 样本缺省倍速时保留原值
	next := baseSample()
	merged, err := mergeProgress(record, 7, next, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1.5, merged.PlaybackSpeed)

	next.PlaybackSpeed = floatPtr(2.0)
	merged, err = mergeProgress(merged, 7, next, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 2.0, merged.PlaybackSpeed)
}

func TestMergeProgressSessionFields(t *testing.T) {
	now := time.Now()
	started := now.Add(-10 * time.Minute)

	sample := baseSample()
	sample.SessionDuration = 120
	sample.SessionStartedAt = &started

	record, err := mergeProgress(nil, 7, sample, now)
	require.NoError(t, err)
	assert.Equal(t, 120.0, record.SessionDuration)
	require.NotNil(t, record.SessionStartedAt)
	assert.Equal(t, started, *record.SessionStartedAt)

	// 样本缺省会话字段时保留原值
	next := baseSample()
	merged, err := mergeProgress(record, 7, next, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 120.0, merged.SessionDuration)
	require.NotNil(t, merged.SessionStartedAt)
	assert.Equal(t, started, *merged.SessionStartedAt)

	laterStart := now.Add(-time.Minute)
	next.SessionStartedAt = &laterStart
	next.SessionDuration = 30
	merged, err = mergeProgress(merged, 7, next, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 30.0, merged.SessionDuration)
	assert.Equal(t, laterStart, *merged.SessionStartedAt)
}

func TestMergeProgressRejectsInvalidSamples(t *testing.T) {
	now := time.Now()

	over := baseSample()
	over.Percentage = 150
	_, err := mergeProgress(nil, 7, over, now)
	assert.ErrorIs(t, err, util.ErrInvalidPercentage)

	negative := baseSample()
	negative.WatchedDuration = -5
	_, err = mergeProgress(nil, 7, negative, now)
	assert.ErrorIs(t, err, util.ErrNegativeDuration)

	// 对已有记录同样拒绝且不修改入参
	record, err := mergeProgress(nil, 7, baseSample(), now)
	require.NoError(t, err)
	before := *record
	_, err = mergeProgress(record, 7, over, now)
	assert.ErrorIs(t, err, util.ErrInvalidPercentage)
	assert.Equal(t, before, *record)
}

func TestMergeProgressDoesNotMutateExisting(t *testing.T) {
	now := time.Now()
	record, err := mergeProgress(nil, 7, baseSample(), now)
	require.NoError(t, err)
	before := *record

	next := baseSample()
	next.WatchedDuration = 50
	next.SeekEvents = 4
	_, err = mergeProgress(record, 7, next, now.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, before, *record)
}
