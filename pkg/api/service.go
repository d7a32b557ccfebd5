package api

import (
	"context"

	"idlemsg/internal/config"
	"idlemsg/internal/logger"
	"idlemsg/internal/service"
	"idlemsg/pkg/model"
)

// Service 服务接口
type Service interface {
	// StartSession 连接浏览器并启动自动化会话
	StartSession(ctx context.Context) (model.SessionID, error)

	// StopSession 停止会话
	StopSession(id model.SessionID) error

	// GetConversations 获取会话列表
	GetConversations(id model.SessionID, limit int) (model.ConversationResult, error)

	// GetMessages 获取指定会话的消息列表
	GetMessages(id model.SessionID, conversationID string, limit int) (model.MessageResult, error)

	// WarmContext 预热指定会话的商品上下文
	WarmContext(id model.SessionID, conversationID string) error

	// UnreadCount 获取未读消息总数
	UnreadCount(id model.SessionID) (model.UnreadResult, error)

	// SendReply 向指定会话发送回复
	SendReply(id model.SessionID, conversationID, content string) (bool, string, error)

	// MarkAsRead 将指定会话标记为已读
	MarkAsRead(id model.SessionID, conversationID string) error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, l logger.Logger, opts ...service.Option) Service {
	return service.New(cfg, l, opts...)
}
