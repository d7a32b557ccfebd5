package message

import (
	"sort"

	"idlemsg/pkg/model"
)

// rank 按可操作性对会话降序排序：可发送 > 有商品上下文 > 有未读，
// 并列时按最近打开时间、最后消息时间。这是业务优先级排序，
// 不是单纯的时间排序。
func rank(convs []model.Conversation) []model.Conversation {
	sort.SliceStable(convs, func(i, j int) bool {
		return rankKey(convs[i]).greater(rankKey(convs[j]))
	})
	return convs
}

type sortKey struct {
	canSend     int
	hasContext  int
	hasUnread   int
	lastOpened  int64
	lastMessage int64
}

func rankKey(conv model.Conversation) sortKey {
	key := sortKey{}
	if conv.CanSend {
		key.canSend = 1
	}
	if conv.HasContext {
		key.hasContext = 1
	}
	if conv.UnreadCount > 0 {
		key.hasUnread = 1
	}
	if conv.LastOpenedAt != nil {
		key.lastOpened = conv.LastOpenedAt.UnixNano()
	}
	if conv.LastMessageTime != nil {
		key.lastMessage = conv.LastMessageTime.UnixNano()
	}
	return key
}

func (a sortKey) greater(b sortKey) bool {
	if a.canSend != b.canSend {
		return a.canSend > b.canSend
	}
	if a.hasContext != b.hasContext {
		return a.hasContext > b.hasContext
	}
	if a.hasUnread != b.hasUnread {
		return a.hasUnread > b.hasUnread
	}
	if a.lastOpened != b.lastOpened {
		return a.lastOpened > b.lastOpened
	}
	return a.lastMessage > b.lastMessage
}
