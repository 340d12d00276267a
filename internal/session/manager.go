package session

import (
	"edulearn_backend/internal/model"
	"edulearn_backend/pkg/monitoring"
	"sync"
	"time"
)

// Manager 活动会话注册表，按尝试ID索引
// 每个用户同一尝试只有一个活动会话；跨会话的约束（次数上限、
// 单个进行中尝试）由持久化边界保证，这里不做跨会话加锁
type Manager struct {
	boundary Boundary
	clock    func() time.Time

	mu       sync.RWMutex
	cfg      Config
	sessions map[string]*Session
}

func NewManager(boundary Boundary, cfg Config) *Manager {
	return &Manager{
		boundary: boundary,
		clock:    time.Now,
		cfg:      cfg,
		sessions: make(map[string]*Session),
	}
}

// UpdateConfig 热更新时序参数，对之后创建的会话生效
func (m *Manager) UpdateConfig(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = cfg
}

// Start 创建（或复用）尝试的活动会话
// persisted 传入已落库的作答，恢复会话时计时从绝对截止时间重新推算
func (m *Manager) Start(quiz *model.Quiz, attempt *model.QuizAttempt, persisted []model.QuestionAnswer) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[attempt.ID]; ok {
		return existing
	}

	s := New(quiz, attempt, persisted, m.boundary, m.cfg, m.clock)
	s.onRemove = m.Remove
	m.sessions[attempt.ID] = s
	s.Start()
	monitoring.ActiveSessions.Set(float64(len(m.sessions)))
	return s
}

// Get 查找活动会话
func (m *Manager) Get(attemptID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[attemptID]
	return s, ok
}

// Has 是否存在活动会话（遗弃清扫用）
func (m *Manager) Has(attemptID string) bool {
	_, ok := m.Get(attemptID)
	return ok
}

// Remove 注销会话
func (m *Manager) Remove(attemptID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[attemptID]; ok {
		s.Close()
		delete(m.sessions, attemptID)
		monitoring.ActiveSessions.Set(float64(len(m.sessions)))
	}
}

// CloseAll 服务停机时关闭全部会话
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		s.Close()
		delete(m.sessions, id)
	}
	monitoring.ActiveSessions.Set(0)
}
