package message

import (
	"regexp"
	"strconv"
	"strings"

	"idlemsg/internal/intercept"
	"idlemsg/internal/normalize"
	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
)

// 消息输入框候选选择器，按优先级排列
var messageInputSelectors = []string{
	"textarea[placeholder*='输入消息']",
	"textarea[placeholder*='请输入消息']",
	"textarea[placeholder*='输入']",
	"textarea",
	"div[contenteditable='true']",
	"[role='textbox']",
	"input[name='message']",
}

// 发送按钮候选选择器
var sendButtonSelectors = []string{
	"[class*='sendbox'] button",
	"[class*='send-button']",
	"button[type='submit']",
}

const unreadBadgePageSelector = ".ant-badge-count, [class*='badge-count'], [class*='conversation-item'] sup"

var reBadgeNumber = regexp.MustCompile(`\d+`)

// UnreadCount 获取未读消息总数：优先取 redpoint.query 接口缓存，
// 缓存未命中且页面未被拦截时回退到 DOM 角标求和。
func (e *Engine) UnreadCount() (model.UnreadResult, error) {
	if err := e.ensurePage(); err != nil {
		return model.UnreadResult{}, err
	}

	if payload, ok := e.cache.Payload(intercept.APIRedpointQuery); ok {
		if total, ok := normalize.UnreadTotalFromRedpoint(payload); ok {
			return model.UnreadResult{Total: total}, nil
		}
	}

	if reason := e.BlockReason(); reason != "" {
		e.log.Warn(reason)
		return model.UnreadResult{BlockReason: reason}, nil
	}

	badges, err := e.sess.QuerySelectorAll(unreadBadgePageSelector)
	if err != nil {
		return model.UnreadResult{}, nil
	}
	total := 0
	for _, badge := range badges {
		text, err := badge.Text()
		if err != nil {
			continue
		}
		if m := reBadgeNumber.FindString(text); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				total += n
			}
		}
	}
	return model.UnreadResult{Total: total}, nil
}

// SendReply 在指定会话里发送一条消息。
// 系统/通知会话直接拒绝；验证被拦截时返回拦截原因。
func (e *Engine) SendReply(target, content string) (bool, string, error) {
	if err := e.ensurePage(); err != nil {
		return false, "", err
	}

	if conv, _ := e.findCachedConversation(target); conv != nil && !conv.CanSend {
		return false, "当前会话是系统消息或不可发送会话，请换一个普通聊天会话", nil
	}

	if !e.checker.EnsureReady() {
		reason := e.checker.LastReason()
		e.setReason(reason)
		return false, reason, nil
	}
	e.setReason("")

	if err := e.openConversation(target); err != nil {
		return false, "", err
	}
	e.sess.WaitMS(1000)

	input := e.findMessageInput()
	if input == nil {
		return false, "未找到输入框", nil
	}
	if err := e.sess.Fill(input, content); err != nil {
		return false, "", err
	}
	e.sess.WaitMS(500)

	if btn := e.findSendButton(); btn != nil {
		if err := e.sess.Click(btn); err != nil {
			e.log.Debug("点击发送按钮失败，尝试回车发送", "error", err)
			if err := e.sess.PressKey("Enter"); err != nil {
				return false, "", err
			}
		}
	} else {
		if err := e.sess.PressKey("Enter"); err != nil {
			return false, "", err
		}
	}

	e.sess.WaitMS(1000)
	e.log.Info("发送成功", "conversation", target)
	return true, "发送成功", nil
}

// MarkAsRead 打开会话以触发页面侧的已读上报
func (e *Engine) MarkAsRead(conversationID string) error {
	if err := e.ensurePage(); err != nil {
		return err
	}
	if err := e.openConversation(conversationID); err != nil {
		return err
	}
	e.sess.WaitMS(1000)
	return nil
}

// findMessageInput 按优先级定位消息输入框
func (e *Engine) findMessageInput() browser.ElementHandle {
	for _, selector := range messageInputSelectors {
		els, err := e.sess.QuerySelectorAll(selector)
		if err == nil && len(els) > 0 {
			return els[0]
		}
	}
	return nil
}

// findSendButton 定位发送按钮；结构选择器都未命中时按钮文案兜底
func (e *Engine) findSendButton() browser.ElementHandle {
	for _, selector := range sendButtonSelectors {
		els, err := e.sess.QuerySelectorAll(selector)
		if err == nil && len(els) > 0 {
			return els[0]
		}
	}

	buttons, err := e.sess.QuerySelectorAll("button")
	if err != nil {
		return nil
	}
	for _, btn := range buttons {
		text, err := btn.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, "发送") || strings.Contains(text, "发 送") {
			return btn
		}
	}
	return nil
}
