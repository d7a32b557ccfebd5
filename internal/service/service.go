package service

import (
	"context"
	"fmt"
	"time"

	"idlemsg/internal/config"
	"idlemsg/internal/intercept"
	"idlemsg/internal/logger"
	"idlemsg/internal/session"
	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"

	cdpadapter "idlemsg/internal/adapter/cdp"
)

// Dialer 建立浏览器会话的函数，测试中可替换为假实现
type Dialer func(ctx context.Context) (browser.Session, error)

// Option 服务构建选项
type Option func(*Service)

// WithDialer 指定浏览器会话拨号器
func WithDialer(d Dialer) Option {
	return func(s *Service) { s.dial = d }
}

// WithArchiver 指定抓包归档存储
func WithArchiver(a intercept.Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// Service 服务实现
type Service struct {
	cfg      *config.Config
	log      logger.Logger
	dial     Dialer
	archive  intercept.Archiver
	sessions *session.Manager
}

// New 创建服务
func New(cfg *config.Config, l logger.Logger, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	if l == nil {
		l = logger.NewNop()
	}
	s := &Service{cfg: cfg, log: l}
	for _, opt := range opts {
		opt(s)
	}
	if s.dial == nil {
		s.dial = func(ctx context.Context) (browser.Session, error) {
			return cdpadapter.Dial(ctx, cdpadapter.Options{
				DevToolsURL: cfg.Browser.DevToolsURL,
				Headless:    cfg.Browser.Headless,
			}, l)
		}
	}
	s.sessions = session.NewManager(session.Options{
		IMURL:               cfg.Message.IMURL,
		VerificationTimeout: time.Duration(cfg.Message.VerificationTimeoutS) * time.Second,
		PollCount:           cfg.Message.MessagePollCount,
		PollInterval:        time.Duration(cfg.Message.MessagePollIntervalMS) * time.Millisecond,
		PayloadMaxAge:       time.Duration(cfg.Message.PayloadMaxAgeS) * time.Second,
		Archive:             s.archive,
	}, l)
	return s
}

// StartSession 连接浏览器并启动自动化会话
func (s *Service) StartSession(ctx context.Context) (model.SessionID, error) {
	b, err := s.dial(ctx)
	if err != nil {
		return "", fmt.Errorf("连接浏览器失败: %w", err)
	}
	sess := s.sessions.Create(b)
	return sess.ID, nil
}

// StopSession 停止会话
func (s *Service) StopSession(id model.SessionID) error {
	if _, ok := s.sessions.Get(id); !ok {
		return fmt.Errorf("会话不存在: %s", id)
	}
	s.sessions.Delete(id)
	return nil
}

func (s *Service) get(id model.SessionID) (*session.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("会话不存在: %s", id)
	}
	return sess, nil
}

// GetConversations 获取会话列表
func (s *Service) GetConversations(id model.SessionID, limit int) (model.ConversationResult, error) {
	sess, err := s.get(id)
	if err != nil {
		return model.ConversationResult{}, err
	}
	return sess.Engine.GetConversations(limit)
}

// GetMessages 获取指定会话的消息列表
func (s *Service) GetMessages(id model.SessionID, conversationID string, limit int) (model.MessageResult, error) {
	sess, err := s.get(id)
	if err != nil {
		return model.MessageResult{}, err
	}
	return sess.Engine.GetMessages(conversationID, limit)
}

// WarmContext 预热指定会话的商品上下文
func (s *Service) WarmContext(id model.SessionID, conversationID string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	_, err = sess.Engine.WarmContext(conversationID)
	return err
}

// UnreadCount 获取未读消息总数
func (s *Service) UnreadCount(id model.SessionID) (model.UnreadResult, error) {
	sess, err := s.get(id)
	if err != nil {
		return model.UnreadResult{}, err
	}
	return sess.Engine.UnreadCount()
}

// SendReply 向指定会话发送回复
func (s *Service) SendReply(id model.SessionID, conversationID, content string) (bool, string, error) {
	sess, err := s.get(id)
	if err != nil {
		return false, "", err
	}
	return sess.Engine.SendReply(conversationID, content)
}

// MarkAsRead 将指定会话标记为已读
func (s *Service) MarkAsRead(id model.SessionID, conversationID string) error {
	sess, err := s.get(id)
	if err != nil {
		return err
	}
	return sess.Engine.MarkAsRead(conversationID)
}
