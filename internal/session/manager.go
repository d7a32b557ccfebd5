package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"idlemsg/internal/domx"
	"idlemsg/internal/intercept"
	"idlemsg/internal/logger"
	"idlemsg/internal/message"
	"idlemsg/internal/verify"
	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
)

// Session 一个自动化会话：浏览器会话加上它独占的缓存与引擎。
// 缓存生命周期与会话一致，不存在跨会话共享的全局状态。
type Session struct {
	ID        model.SessionID
	Browser   browser.Session
	Cache     *intercept.Cache
	Engine    *message.Engine
	CreatedAt time.Time
}

// Options 会话构建选项
type Options struct {
	IMURL               string
	VerificationTimeout time.Duration
	PollCount           int
	PollInterval        time.Duration
	PayloadMaxAge       time.Duration
	Archive             intercept.Archiver
}

// Manager 会话管理器
type Manager struct {
	mu       sync.RWMutex
	sessions map[model.SessionID]*Session
	opts     Options
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(opts Options, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		sessions: make(map[model.SessionID]*Session),
		opts:     opts,
		log:      l,
	}
}

// Create 基于一个浏览器会话创建并注册自动化会话
func (m *Manager) Create(b browser.Session) *Session {
	cache := intercept.New(m.opts.PayloadMaxAge, m.opts.Archive, m.log)
	cache.Register(b)

	checker := verify.New(b, m.opts.VerificationTimeout, m.log)
	dom := domx.New(b, m.log)
	engine := message.New(b, cache, checker, dom, m.log, message.Options{
		IMURL:        m.opts.IMURL,
		PollCount:    m.opts.PollCount,
		PollInterval: m.opts.PollInterval,
	})

	s := &Session{
		ID:        model.SessionID(uuid.NewString()),
		Browser:   b,
		Cache:     cache,
		Engine:    engine,
		CreatedAt: time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.log.Info("创建自动化会话", "sessionID", string(s.ID))
	return s
}

// Get 获取会话
func (m *Manager) Get(id model.SessionID) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 销毁会话
func (m *Manager) Delete(id model.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.log.Info("销毁自动化会话", "sessionID", string(id))
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
