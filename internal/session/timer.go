package session

import (
	"sync"
	"time"
)

// TimerController 由绝对截止时间驱动的倒计时
// 剩余时间总是从 deadline 重新计算，从不依赖本地累加，
// 因此会话被重建（页面刷新、进程重启）后到期时刻不变
type TimerController struct {
	deadline   time.Time
	warnBefore time.Duration

	onWarning func(remaining time.Duration)
	onExpire  func()

	warnOnce   sync.Once
	expireOnce sync.Once
}

// NewTimerController timeLimit<=0 表示不限时，返回 nil
func NewTimerController(startedAt time.Time, timeLimit, warnBefore time.Duration, onWarning func(time.Duration), onExpire func()) *TimerController {
	if timeLimit <= 0 {
		return nil
	}
	return &TimerController{
		deadline:   startedAt.Add(timeLimit),
		warnBefore: warnBefore,
		onWarning:  onWarning,
		onExpire:   onExpire,
	}
}

func (t *TimerController) Deadline() time.Time {
	return t.deadline
}

// Remaining 剩余时间，不小于零
func (t *TimerController) Remaining(now time.Time) time.Duration {
	r := t.deadline.Sub(now)
	if r < 0 {
		return 0
	}
	return r
}

func (t *TimerController) Expired(now time.Time) bool {
	return t.Remaining(now) == 0
}

// Tick 推进一次；到期回调保证只触发一次
func (t *TimerController) Tick(now time.Time) {
	remaining := t.Remaining(now)

	if remaining == 0 {
		t.expireOnce.Do(func() {
			if t.onExpire != nil {
				t.onExpire()
			}
		})
		return
	}

	if t.warnBefore > 0 && remaining <= t.warnBefore {
		t.warnOnce.Do(func() {
			if t.onWarning != nil {
				t.onWarning(remaining)
			}
		})
	}
}
