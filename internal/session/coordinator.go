package session

import (
	"context"
	"edulearn_backend/internal/util"
	"edulearn_backend/pkg/logger"
	"edulearn_backend/pkg/monitoring"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SubmissionCoordinator 保证一次尝试至多发生一次持久化的提交转换
// 手动提交与定时自动提交并发时收敛为一个在途调用：先到者执行转换，
// 后到者等待并拿到缓存的既有结果（幂等空操作，不是冲突错误）。
// 边界调用与重试退避都在锁外进行，在途提交不阻塞作答编辑
type SubmissionCoordinator struct {
	attemptID string
	store     *AnswerStore
	boundary  Boundary

	maxRetries int
	backoff    time.Duration

	mu       sync.Mutex
	inflight chan struct{} // 非空表示有在途提交，结束时关闭
	done     bool
	outcome  *SubmitOutcome
	err      error
}

func NewSubmissionCoordinator(attemptID string, store *AnswerStore, boundary Boundary, maxRetries int, backoff time.Duration) *SubmissionCoordinator {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &SubmissionCoordinator{
		attemptID:  attemptID,
		store:      store,
		boundary:   boundary,
		maxRetries: maxRetries,
		backoff:    backoff,
	}
}

// Submit 幂等提交当前作答快照
// 定时触发时不经任何确认语义，快照原样提交（包括未作答的必答题）；
// 重试预算耗尽后，定时提交把尝试置为过期而不是无限挂起
func (c *SubmissionCoordinator) Submit(ctx context.Context, trigger SubmitTrigger) (*SubmitOutcome, error) {
	for {
		c.mu.Lock()
		if c.done {
			outcome, err := c.outcome, c.err
			c.mu.Unlock()
			return outcome, err
		}
		if wait := c.inflight; wait != nil {
			c.mu.Unlock()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-wait:
			}
			// 在途提交落定则下一轮取缓存结果；
			// 可重试的手动失败则由本次调用接手发起新的提交
			continue
		}
		wait := make(chan struct{})
		c.inflight = wait
		c.mu.Unlock()

		outcome, err := c.deliver(ctx, trigger)

		c.mu.Lock()
		c.inflight = nil
		c.mu.Unlock()
		close(wait)
		return outcome, err
	}
}

// deliver 在锁外执行一次带重试预算的提交
func (c *SubmissionCoordinator) deliver(ctx context.Context, trigger SubmitTrigger) (*SubmitOutcome, error) {
	version := c.store.Version()
	snapshot := c.store.Snapshot()

	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		outcome, err := c.boundary.SubmitAttempt(ctx, c.attemptID, snapshot, trigger)
		if err == nil {
			c.latch(outcome, nil)
			c.store.MarkSaved(version)
			monitoring.SubmissionCounter.WithLabelValues(string(trigger), "ok").Inc()
			return outcome, nil
		}
		lastErr = err
		logger.Log.Warn("Submit attempt failed",
			zap.String("attemptId", c.attemptID),
			zap.String("trigger", string(trigger)),
			zap.Int("try", i+1),
			zap.Error(err))

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.backoff):
			}
		}
	}

	if trigger == TriggerTimer {
		// 自动提交重试预算耗尽：强制过期，终态，向用户报告"时间已到，答卷未能保存"
		if err := c.boundary.MarkExpired(ctx, c.attemptID); err != nil {
			logger.Log.Error("Failed to mark attempt expired",
				zap.String("attemptId", c.attemptID),
				zap.Error(err))
		}
		c.latch(nil, util.ErrAttemptExpiredUnsaved)
		monitoring.SubmissionCounter.WithLabelValues(string(trigger), "expired").Inc()
		return nil, util.ErrAttemptExpiredUnsaved
	}

	// 手动提交失败不进入终态，用户可重试
	monitoring.SubmissionCounter.WithLabelValues(string(trigger), "error").Inc()
	return nil, lastErr
}

// latch 记录终局结果，此后所有提交返回同一结果
func (c *SubmissionCoordinator) latch(outcome *SubmitOutcome, err error) {
	c.mu.Lock()
	c.done = true
	c.outcome = outcome
	c.err = err
	c.mu.Unlock()
}

// Done 是否已有终局结果
func (c *SubmissionCoordinator) Done() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}
