package domx

import (
	"fmt"
	"strconv"
	"strings"

	"idlemsg/internal/normalize"
	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
)

// Conversations 从会话列表 DOM 提取会话记录。
// 找不到主容器时等待一次后回退到全页查询；单项失败只跳过该项。
func (e *Extractor) Conversations(limit int) []model.Conversation {
	items, err := e.sess.QuerySelectorAll(convItemsPrimary)
	if err != nil || len(items) == 0 {
		e.sess.WaitMS(2000)
		items, err = e.sess.QuerySelectorAll(convItemsFallback)
		if err != nil {
			e.log.Debug("查询会话列表失败", "error", err)
			return nil
		}
	}

	var out []model.Conversation
	for i, item := range items {
		if limit > 0 && len(out) >= limit {
			break
		}
		conv, ok := e.parseConversation(item)
		if !ok {
			continue
		}
		// 页面未暴露稳定 id 时用列表索引占位
		if conv.ID == "" {
			conv.ID = fmt.Sprintf("dom:%d", i)
		}
		out = append(out, conv)
	}
	return out
}

// parseConversation 解析单个会话项。
// 会话项文本结构一般为：用户名 / 最后一条消息 / 时间。
func (e *Extractor) parseConversation(item browser.ElementHandle) (model.Conversation, bool) {
	text, err := item.Text()
	if err != nil {
		e.log.Debug("读取会话项文本失败", "error", err)
		return model.Conversation{}, false
	}
	lines := splitLines(text)
	if len(lines) == 0 {
		return model.Conversation{}, false
	}

	conv := model.Conversation{Source: model.SourceDOM, CanSend: true}

	for _, attr := range IDAttributes {
		if v, err := item.Attribute(attr); err == nil && v != "" {
			conv.ID = v
			break
		}
	}

	conv.UserName = lines[0]
	switch {
	case len(lines) >= 3:
		if t, ok := normalize.ParseTimeText(lines[len(lines)-1], e.now()); ok {
			conv.LastMessageTime = &t
		}
		conv.LastMessage = strings.TrimSpace(strings.Join(lines[1:len(lines)-1], " "))
	case len(lines) == 2:
		if t, ok := normalize.ParseTimeText(lines[1], e.now()); ok {
			conv.LastMessageTime = &t
		} else {
			conv.LastMessage = lines[1]
		}
	}

	if badges, err := item.QuerySelectorAll(unreadBadgeSelector); err == nil && len(badges) > 0 {
		if badgeText, err := badges[0].Text(); err == nil {
			if m := reNumber.FindString(badgeText); m != "" {
				if n, err := strconv.Atoi(m); err == nil {
					conv.UnreadCount = n
				}
			}
		}
	}

	if avatars, err := item.QuerySelectorAll("img"); err == nil && len(avatars) > 0 {
		if src, err := avatars[0].Attribute("src"); err == nil {
			conv.UserAvatarURL = src
		}
	}

	// DOM 会话没有稳定 session 元数据时，按常见系统会话名称做保守推断
	if _, isSystem := systemSessionNames[conv.UserName]; isSystem {
		conv.CanSend = false
		conv.SessionType = model.SessionTypeSystem
	}

	return conv, true
}

// splitLines 返回去掉首尾空白后的非空行
func splitLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
