package model

import "time"

type SessionID string

// Source 数据来源标记
type Source string

const (
	SourceAPI Source = "api"
	SourceDOM Source = "dom"
)

// 系统/通知会话的 sessionType 标记，这类会话不可发送消息
const SessionTypeSystem = 3

// Conversation 规范化后的会话记录
type Conversation struct {
	ID              string     `json:"id"`
	UserID          string     `json:"user_id"`
	UserName        string     `json:"user_name"`
	UserAvatarURL   string     `json:"user_avatar_url,omitempty"`
	LastMessage     string     `json:"last_message"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	ItemID          string     `json:"item_id"`
	ItemTitle       string     `json:"item_title"`
	SessionType     int        `json:"session_type"`
	CanSend         bool       `json:"can_send"`
	Source          Source     `json:"source"`
	HasContext      bool       `json:"has_context"`
	LastOpenedAt    *time.Time `json:"last_opened_at,omitempty"`
}

// Message 规范化后的消息记录
type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"conversation_id"`
	FromUserID     string     `json:"from_user_id"`
	FromUserName   string     `json:"from_user_name"`
	FromUserAvatar string     `json:"from_user_avatar,omitempty"`
	Content        string     `json:"content"`
	Timestamp      *time.Time `json:"timestamp,omitempty"`
	IsRead         bool       `json:"is_read"`
	IsFromMe       bool       `json:"is_from_me"`
	ItemID         string     `json:"item_id"`
	ItemTitle      string     `json:"item_title"`
	MessageType    string     `json:"message_type"`
	Source         Source     `json:"source"`
}

// Valid 判断消息是否携带任何可用信息；id、发送者、内容全空的消息必须丢弃
func (m Message) Valid() bool {
	return m.ID != "" || m.FromUserName != "" || m.Content != ""
}

// ItemContext 会话关联的商品上下文
type ItemContext struct {
	ItemID    string `json:"item_id"`
	ItemTitle string `json:"item_title"`
}

// Empty 上下文是否为空
func (c ItemContext) Empty() bool { return c.ItemID == "" && c.ItemTitle == "" }

// ConversationResult 会话读取结果；BlockReason 为空表示页面状态可信
type ConversationResult struct {
	Conversations []Conversation `json:"conversations"`
	BlockReason   string         `json:"block_reason,omitempty"`
}

// RequiresManualVerification 只有在既被拦截又无任何数据时才要求人工验证
func (r ConversationResult) RequiresManualVerification() bool {
	return r.BlockReason != "" && len(r.Conversations) == 0
}

// MessageResult 消息读取结果
type MessageResult struct {
	Messages    []Message `json:"messages"`
	BlockReason string    `json:"block_reason,omitempty"`
}

// RequiresManualVerification 同 ConversationResult
func (r MessageResult) RequiresManualVerification() bool {
	return r.BlockReason != "" && len(r.Messages) == 0
}

// UnreadResult 未读数读取结果
type UnreadResult struct {
	Total       int    `json:"total"`
	BlockReason string `json:"block_reason,omitempty"`
}
