// Package progressclient 实现绑定在单个课时播放视图上的进度同步会话。
// 会话在本地乐观地维护观看状态，按节流窗口把累积的最新状态同步到服务端，
// 同步失败时保留未发送的增量等待重试。
package progressclient

import (
	"sync"
	"time"
)

// LocalCompletionThresholdPercent 客户端本地判定完成的阈值。
// 比服务端阈值更宽松，避免本地UI和权威记录竞争同一个临界点。
const LocalCompletionThresholdPercent = 90.0

// DefaultSyncInterval 默认节流窗口
const DefaultSyncInterval = 5 * time.Second

// LowBandwidthSyncInterval 供带宽敏感调用方使用的长去抖窗口
const LowBandwidthSyncInterval = 3 * time.Minute

// State 会话状态机
type State int

const (
	StateLoading State = iota
	StateIdle
	StateDirty
	StateSyncing
	StateError
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateIdle:
		return "idle"
	case StateDirty:
		return "dirty"
	case StateSyncing:
		return "syncing"
	case StateError:
		return "error"
	}
	return "unknown"
}

// Record 服务端进度记录的客户端视图
type Record struct {
	ID              uint    `json:"id"`
	LessonID        uint    `json:"lessonId"`
	WatchedDuration float64 `json:"watchedDuration"`
	TotalDuration   float64 `json:"totalDuration"`
	Percentage      float64 `json:"percentage"`
	IsCompleted     bool    `json:"isCompleted"`
}

// UpdateRequest 发往服务端的同步请求
type UpdateRequest struct {
	LessonID        uint     `json:"lessonId"`
	CourseID        uint     `json:"courseId"`
	ModuleID        uint     `json:"moduleId"`
	WatchedDuration float64  `json:"watchedDuration"`
	TotalDuration   float64  `json:"totalDuration"`
	Percentage      float64  `json:"percentage"`
	CurrentPosition *float64 `json:"currentPosition,omitempty"`
	SeekEvents      int      `json:"seekEvents"`
	PauseEvents     int      `json:"pauseEvents"`
	PlaybackSpeed   *float64 `json:"playbackSpeed,omitempty"`
}

// Syncer 会话依赖的服务端操作面
type Syncer interface {
	GetProgress(lessonID uint) (*Record, error)
	UpdateProgress(req UpdateRequest) (uint, error)
	MarkComplete(lessonID, courseID, moduleID uint) (uint, error)
	ResetProgress(lessonID uint) (uint, error)
}

// Session 单课时的进度同步会话。
// 所有本地状态变更都来自播放器回调；网络调用在后台goroutine里执行，
// 调用方只通过 IsDirty/Err 观察同步状况，从不阻塞等待。
type Session struct {
	mu sync.Mutex

	syncer   Syncer
	lessonID uint
	courseID uint
	moduleID uint

	state        State
	err          error
	lastSyncedAt time.Time

	progressSeconds float64
	totalDuration   float64
	percentage      float64
	maxPosition     float64
	completed       bool
	dirty           bool

	// 未发送的增量缓冲：同步成功后清空，失败时保留等待重试
	pendingSeeks  int
	pendingPauses int
	pendingSpeed  *float64

	throttle *throttle
}

// Option 会话配置
type Option func(*Session)

// WithSyncInterval 调整节流窗口，带宽敏感的调用方可以传 LowBandwidthSyncInterval
func WithSyncInterval(interval time.Duration) Option {
	return func(s *Session) {
		s.throttle.interval = interval
	}
}

// NewSession 创建会话，初始状态为 Loading，调用 Start 拉取服务端记录
func NewSession(syncer Syncer, lessonID, courseID, moduleID uint, opts ...Option) *Session {
	s := &Session{
		syncer:   syncer,
		lessonID: lessonID,
		courseID: courseID,
		moduleID: moduleID,
		state:    StateLoading,
	}
	s.throttle = newThrottle(DefaultSyncInterval, s.syncNow)

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start 拉取服务端已有记录作为本地初值。记录不存在不算错误，
// 只有网络层失败才会返回，此时会话仍可用（从零开始）。
func (s *Session) Start() error {
	record, err := s.syncer.GetProgress(s.lessonID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.state = StateIdle
		return err
	}

	if record != nil {
		s.progressSeconds = record.WatchedDuration
		s.totalDuration = record.TotalDuration
		s.percentage = record.Percentage
		s.completed = record.IsCompleted
		s.maxPosition = record.WatchedDuration
	}
	s.state = StateIdle
	return nil
}

// OnPosition 播放位置回调：乐观更新本地状态并安排一次节流同步
func (s *Session) OnPosition(positionSeconds, durationSeconds float64) {
	s.mu.Lock()

	if positionSeconds > s.progressSeconds {
		s.progressSeconds = positionSeconds
	}
	if positionSeconds > s.maxPosition {
		s.maxPosition = positionSeconds
	}
	if durationSeconds > 0 {
		s.totalDuration = durationSeconds
		pct := s.progressSeconds / durationSeconds * 100
		if pct > 100 {
			pct = 100
		}
		s.percentage = pct
	}
	if s.percentage >= LocalCompletionThresholdPercent {
		s.completed = true
	}

	s.markDirtyLocked()
	s.mu.Unlock()

	s.throttle.Trigger()
}

// OnSeek 拖动回调：累加到增量缓冲
func (s *Session) OnSeek() {
	s.mu.Lock()
	s.pendingSeeks++
	s.markDirtyLocked()
	s.mu.Unlock()

	s.throttle.Trigger()
}

// OnPause 暂停回调：累加到增量缓冲
func (s *Session) OnPause() {
	s.mu.Lock()
	s.pendingPauses++
	s.markDirtyLocked()
	s.mu.Unlock()

	s.throttle.Trigger()
}

// OnSpeedChange 倍速回调：只保留最新值
func (s *Session) OnSpeedChange(speed float64) {
	s.mu.Lock()
	s.pendingSpeed = &speed
	s.markDirtyLocked()
	s.mu.Unlock()

	s.throttle.Trigger()
}

// Complete 手动完成：本地立即置满并绕过节流同步
func (s *Session) Complete() error {
	s.mu.Lock()
	s.percentage = 100
	s.completed = true
	s.state = StateSyncing
	s.mu.Unlock()

	s.throttle.Cancel()

	_, err := s.syncer.MarkComplete(s.lessonID, s.courseID, s.moduleID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		s.state = StateError
		return err
	}
	s.err = nil
	s.lastSyncedAt = time.Now()

	// 完成请求不携带增量缓冲，窗口内累积的拖动/暂停计数
	// 保持脏标记，交给下一个节流周期补发
	if s.pendingSeeks > 0 || s.pendingPauses > 0 || s.pendingSpeed != nil {
		s.state = StateDirty
		s.throttle.Trigger()
		return nil
	}

	s.dirty = false
	s.state = StateIdle
	return nil
}

// Reset 重置进度：清零本地状态并绕过节流同步
func (s *Session) Reset() error {
	s.mu.Lock()
	s.progressSeconds = 0
	s.percentage = 0
	s.maxPosition = 0
	s.completed = false
	s.pendingSeeks = 0
	s.pendingPauses = 0
	s.pendingSpeed = nil
	s.state = StateSyncing
	s.mu.Unlock()

	s.throttle.Cancel()

	_, err := s.syncer.ResetProgress(s.lessonID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.err = err
		s.state = StateError
		return err
	}
	s.err = nil
	s.dirty = false
	s.lastSyncedAt = time.Now()
	s.state = StateIdle
	return nil
}

// Flush 强制立即同步，绕过节流窗口
func (s *Session) Flush() {
	s.throttle.Fire()
}

// Close 视图卸载时调用：取消挂起的节流调用，若仍有未同步状态
// 则发起一次尽力而为的最终同步，调用方不等待其结果
func (s *Session) Close() {
	s.throttle.Cancel()

	s.mu.Lock()
	dirty := s.dirty
	s.mu.Unlock()

	if dirty {
		go s.syncNow()
	}
}

// State 当前状态
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IsDirty 本地是否有未同步变更
func (s *Session) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// Err 最近一次同步错误，成功后清空
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// LastSyncedAt 最近一次成功同步的时间
func (s *Session) LastSyncedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSyncedAt
}

// Progress 本地乐观视图：观看秒数、百分比、是否完成
func (s *Session) Progress() (seconds, percentage float64, completed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progressSeconds, s.percentage, s.completed
}

func (s *Session) markDirtyLocked() {
	s.dirty = true
	if s.state != StateSyncing {
		s.state = StateDirty
	}
}

// syncNow 执行一次同步，由节流器或 Close 在后台goroutine里调用。
// 发送时快照当前累积状态；成功后只扣除已发送的增量，
// 同步期间新到的事件保持脏标记、等待下一个节流周期。
func (s *Session) syncNow() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}

	s.state = StateSyncing

	position := s.maxPosition
	req := UpdateRequest{
		LessonID:        s.lessonID,
		CourseID:        s.courseID,
		ModuleID:        s.moduleID,
		WatchedDuration: s.progressSeconds,
		TotalDuration:   s.totalDuration,
		Percentage:      s.percentage,
		CurrentPosition: &position,
		SeekEvents:      s.pendingSeeks,
		PauseEvents:     s.pendingPauses,
		PlaybackSpeed:   s.pendingSpeed,
	}
	sentSeeks := s.pendingSeeks
	sentPauses := s.pendingPauses
	sentWatched := s.progressSeconds
	s.mu.Unlock()

	_, err := s.syncer.UpdateProgress(req)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		// 失败时不清增量缓冲，下一个节流周期或强制同步带着它们重试
		s.err = err
		s.state = StateError
		return
	}

	s.err = nil
	s.pendingSeeks -= sentSeeks
	s.pendingPauses -= sentPauses
	s.pendingSpeed = nil
	s.lastSyncedAt = time.Now()

	// 同步期间有新事件到达则保持脏标记
	if s.pendingSeeks > 0 || s.pendingPauses > 0 || s.progressSeconds > sentWatched {
		s.state = StateDirty
		s.throttle.Trigger()
		return
	}

	s.dirty = false
	s.state = StateIdle
}
