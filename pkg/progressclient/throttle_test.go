package progressclient

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottleFirstTriggerFiresImmediately(t *testing.T) {
	var calls int32
	th := newThrottle(100*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	th.Trigger()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestThrottleCoalescesWindow(t *testing.T) {
	var calls int32
	th := newThrottle(80*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	// 窗口内的多次触发合并成窗口末尾的一次尾随调用
	for i := 0; i < 5; i++ {
		th.Trigger()
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 5*time.Millisecond)

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestThrottleFireBypassesWindow(t *testing.T) {
	var calls int32
	th := newThrottle(200*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	th.Trigger()
	th.Trigger()
	th.Fire()

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 5*time.Millisecond)

	// Fire 取消了挂起的尾随调用，窗口结束后不再补发
	time.Sleep(250 * time.Millisecond)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestThrottleCancelDropsPending(t *testing.T) {
	var calls int32
	th := newThrottle(80*time.Millisecond, func() { atomic.AddInt32(&calls, 1) })

	th.Trigger()
	th.Trigger()
	th.Cancel()

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
