package session

import (
	"context"
	"edulearn_backend/internal/model"
	"edulearn_backend/internal/util"
	"edulearn_backend/pkg/logger"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Config 会话引擎时序参数
type Config struct {
	AutosaveInterval time.Duration
	TimerTick        time.Duration
	TimeWarning      time.Duration
	SubmitMaxRetries int
	SubmitBackoff    time.Duration
}

// State 暴露给展示层的会话快照
type State struct {
	AttemptID        string           `json:"attemptId"`
	QuizID           string           `json:"quizId"`
	RemainingSeconds *int             `json:"remainingSeconds,omitempty"` // 不限时为空
	Deadline         *time.Time       `json:"deadline,omitempty"`
	AnsweredCount    int              `json:"answeredCount"`
	QuestionCount    int              `json:"questionCount"`
	Questions        []QuestionStatus `json:"questions"`
	TimeWarning      bool             `json:"timeWarning"`
	Expired          bool             `json:"expired"`
	Submitted        bool             `json:"submitted"`
}

// Session 一次进行中尝试的活动会话
// 计时、作答与自动保存协同运行在同一个会话里；网络调用全部异步，
// 不会阻塞计时或按键级别的作答编辑
type Session struct {
	Quiz    *model.Quiz
	Attempt *model.QuizAttempt
	Store   *AnswerStore

	timer       *TimerController
	autosave    *AutosaveScheduler
	coordinator *SubmissionCoordinator
	cfg         Config
	clock       func() time.Time

	cancel   context.CancelFunc
	onRemove func(attemptID string)

	mu          sync.Mutex
	warnFired   bool
	expireFired bool
}

// New 构建会话；persisted 为恢复会话时已落库的作答
func New(quiz *model.Quiz, attempt *model.QuizAttempt, persisted []model.QuestionAnswer, boundary Boundary, cfg Config, clock func() time.Time) *Session {
	if clock == nil {
		clock = time.Now
	}

	store := NewAnswerStore(quiz.Questions)
	store.Seed(persisted)

	s := &Session{
		Quiz:        quiz,
		Attempt:     attempt,
		Store:       store,
		autosave:    NewAutosaveScheduler(attempt.ID, store, boundary),
		coordinator: NewSubmissionCoordinator(attempt.ID, store, boundary, cfg.SubmitMaxRetries, cfg.SubmitBackoff),
		cfg:         cfg,
		clock:       clock,
	}

	// 截止时间由开始时刻加限时推得，会话重建后保持不变
	s.timer = NewTimerController(attempt.StartedAt, quiz.TimeLimit(), cfg.TimeWarning,
		func(remaining time.Duration) {
			s.mu.Lock()
			s.warnFired = true
			s.mu.Unlock()
			logger.Log.Info("Attempt time warning",
				zap.String("attemptId", attempt.ID),
				zap.Duration("remaining", remaining))
		},
		func() {
			s.mu.Lock()
			s.expireFired = true
			s.mu.Unlock()
			go s.autoSubmit()
		},
	)

	return s
}

// Start 启动会话的驱动循环
func (s *Session) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	// 恢复会话时截止时间可能已过，立即推进一次
	if s.timer != nil {
		s.timer.Tick(s.clock())
	}

	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	autosaveTicker := time.NewTicker(s.cfg.AutosaveInterval)
	defer autosaveTicker.Stop()

	var timerC <-chan time.Time
	if s.timer != nil {
		timerTicker := time.NewTicker(s.cfg.TimerTick)
		defer timerTicker.Stop()
		timerC = timerTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-timerC:
			s.timer.Tick(now)
		case <-autosaveTicker.C:
			s.autosave.Tick(ctx)
		}
	}
}

func (s *Session) autoSubmit() {
	// 到期信号不可撤销，提交当前快照原样送出
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.Submit(ctx, TriggerTimer); err != nil {
		logger.Log.Error("Timer-driven auto submit failed",
			zap.String("attemptId", s.Attempt.ID),
			zap.Error(err))
	}
}

// UpsertAnswer 合并更新一题作答；提交落定后拒绝编辑
func (s *Session) UpsertAnswer(questionID string, patch AnswerPatch) error {
	if s.coordinator.Done() {
		return util.ErrAttemptNotInProgress
	}
	return s.Store.Upsert(questionID, patch)
}

// SaveNow 用户主动保存；失败作为软性警告返回
func (s *Session) SaveNow(ctx context.Context) error {
	return s.autosave.Flush(ctx)
}

// Flag 标记题目待复查
func (s *Session) Flag(questionID string) error {
	return s.Store.Flag(questionID)
}

func (s *Session) Unflag(questionID string) error {
	return s.Store.Unflag(questionID)
}

// Submit 提交；幂等，先到的转换获胜
func (s *Session) Submit(ctx context.Context, trigger SubmitTrigger) (*SubmitOutcome, error) {
	outcome, err := s.coordinator.Submit(ctx, trigger)

	if s.coordinator.Done() {
		s.Close()
		if s.onRemove != nil {
			s.onRemove(s.Attempt.ID)
		}
	}
	return outcome, err
}

// State 会话当前状态快照
func (s *Session) State() State {
	now := s.clock()

	st := State{
		AttemptID:     s.Attempt.ID,
		QuizID:        s.Quiz.ID,
		AnsweredCount: s.Store.AnsweredCount(),
		QuestionCount: s.Store.QuestionCount(),
		Questions:     s.Store.Statuses(),
		Submitted:     s.coordinator.Done(),
	}

	if s.timer != nil {
		remaining := int(s.timer.Remaining(now).Seconds())
		deadline := s.timer.Deadline()
		st.RemainingSeconds = &remaining
		st.Deadline = &deadline
		st.Expired = s.timer.Expired(now)
	}

	s.mu.Lock()
	st.TimeWarning = s.warnFired
	s.mu.Unlock()

	return st
}

// Close 停止驱动循环；不触发任何状态转换
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}
