package progressclient

import (
	"sync"
	"time"
)

// throttle 显式的节流调度器：一个挂起槽位加上次触发时间戳。
// 窗口内到达的触发被合并成窗口末尾的一次尾随调用，只合并、不丢弃。
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	lastFire time.Time
	pending  *time.Timer
	fn       func()
	now      func() time.Time
}

func newThrottle(interval time.Duration, fn func()) *throttle {
	return &throttle{
		interval: interval,
		fn:       fn,
		now:      time.Now,
	}
}

// Trigger 请求一次执行。窗口外立即执行；窗口内且无挂起调用时，
// 安排在窗口结束处执行一次；已有挂起调用则合并，什么都不做。
func (t *throttle) Trigger() {
	t.mu.Lock()

	now := t.now()
	elapsed := now.Sub(t.lastFire)

	if elapsed >= t.interval {
		t.lastFire = now
		t.mu.Unlock()
		go t.fn()
		return
	}

	if t.pending == nil {
		wait := t.interval - elapsed
		t.pending = time.AfterFunc(wait, func() {
			t.mu.Lock()
			t.pending = nil
			t.lastFire = t.now()
			t.mu.Unlock()
			t.fn()
		})
	}
	t.mu.Unlock()
}

// Fire 绕过窗口立即执行，并取消挂起的尾随调用
func (t *throttle) Fire() {
	t.mu.Lock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.lastFire = t.now()
	t.mu.Unlock()
	go t.fn()
}

// Cancel 取消挂起的尾随调用，已在执行中的调用不受影响
func (t *throttle) Cancel() {
	t.mu.Lock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
	t.mu.Unlock()
}
