package session

import (
	"sync"

	"cdppage/internal/logger"
	"cdppage/pkg/domain"

	"github.com/google/uuid"
)

// Manager 全局会话管理器，独立会话之间不共享可变状态
type Manager struct {
	mu       sync.RWMutex
	sessions map[domain.SessionID]*Session
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[domain.SessionID]*Session),
		log:      l,
	}
}

// Create 连接目标并注册新会话
func (m *Manager) Create(devtoolsURL string, target domain.TargetID) (*Session, error) {
	s, err := dial(devtoolsURL, target)
	if err != nil {
		return nil, err
	}
	s.ID = domain.SessionID(uuid.NewString())

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Info("创建业务会话", "sessionID", string(s.ID), "target", string(s.Target))
	return s, nil
}

// Get 获取会话
func (m *Manager) Get(id domain.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 关闭并销毁会话
func (m *Manager) Delete(id domain.SessionID) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if ok {
		if err := s.Close(); err != nil {
			m.log.Warn("关闭会话连接失败", "sessionID", string(id), "error", err)
		}
	}
	m.log.Info("销毁业务会话", "sessionID", string(id))
}

// List 返回所有活动会话
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		list = append(list, s)
	}
	return list
}
