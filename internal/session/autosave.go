package session

import (
	"context"
	"edulearn_backend/pkg/logger"
	"edulearn_backend/pkg/monitoring"
	"sync"

	"go.uber.org/zap"
)

// AutosaveScheduler 周期性把作答草稿冲刷到持久化边界
// 同一时刻至多一个冲刷在途：在途期间的新请求被合并掉而不是并行排队，
// 避免乱序写到达存储；失败只记日志，等下个周期重试，绝不打断答题
type AutosaveScheduler struct {
	attemptID string
	store     *AnswerStore
	boundary  Boundary

	mu       sync.Mutex
	inFlight bool
}

func NewAutosaveScheduler(attemptID string, store *AnswerStore, boundary Boundary) *AutosaveScheduler {
	return &AutosaveScheduler{
		attemptID: attemptID,
		store:     store,
		boundary:  boundary,
	}
}

// Flush 冲刷一次；无脏数据或已有在途冲刷时直接返回
// 只有边界确认成功后才清除脏标记
func (a *AutosaveScheduler) Flush(ctx context.Context) error {
	a.mu.Lock()
	if a.inFlight {
		a.mu.Unlock()
		monitoring.AutosaveCounter.WithLabelValues("coalesced").Inc()
		return nil
	}
	if !a.store.Dirty() {
		a.mu.Unlock()
		return nil
	}
	a.inFlight = true
	a.mu.Unlock()

	version := a.store.Version()
	snapshot := a.store.Snapshot()

	err := a.boundary.SaveAnswers(ctx, a.attemptID, snapshot)

	a.mu.Lock()
	a.inFlight = false
	a.mu.Unlock()

	if err != nil {
		monitoring.AutosaveCounter.WithLabelValues("error").Inc()
		return err
	}

	a.store.MarkSaved(version)
	monitoring.AutosaveCounter.WithLabelValues("ok").Inc()
	return nil
}

// Tick 定时触发的冲刷，失败只记警告
func (a *AutosaveScheduler) Tick(ctx context.Context) {
	if err := a.Flush(ctx); err != nil {
		logger.Log.Warn("Autosave flush failed, will retry on next tick",
			zap.String("attemptId", a.attemptID),
			zap.Error(err))
	}
}
