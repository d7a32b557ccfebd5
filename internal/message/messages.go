package message

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"idlemsg/internal/domx"
	"idlemsg/internal/intercept"
	"idlemsg/internal/normalize"
	"idlemsg/pkg/browser"
	"idlemsg/pkg/model"
)

const conversationItemSelector = "[class*='conversation-item']"

// GetMessages 获取指定会话的消息。优先走按会话缓存的接口载荷；
// 缓存为空时打开会话触发页面发起同步请求，再做有界轮询等待，
// 最终回退到 DOM 提取。
func (e *Engine) GetMessages(conversationID string, limit int) (model.MessageResult, error) {
	if err := e.ensurePage(); err != nil {
		return model.MessageResult{}, err
	}

	if msgs := e.messagesFromCache(conversationID, limit); len(msgs) > 0 {
		e.log.Info("通过接口缓存获取到消息", "conversation", conversationID, "count", len(msgs))
		return model.MessageResult{Messages: e.enrichMessages(conversationID, msgs)}, nil
	}

	if !e.checker.EnsureReady() {
		reason := e.checker.LastReason()
		e.setReason(reason)
		e.log.Warn(reason)
		return model.MessageResult{BlockReason: reason}, nil
	}
	e.setReason("")

	if err := e.openConversation(conversationID); err != nil {
		return model.MessageResult{}, err
	}

	// 打开会话会促使页面发起 message.sync 请求，这里是对异步副作用
	// 的有界等待，不是固定睡眠
	for i := 0; i < e.pollCount; i++ {
		e.sess.WaitMS(int(e.pollInterval.Milliseconds()))
		if msgs := e.messagesFromCache(conversationID, limit); len(msgs) > 0 {
			e.log.Info("轮询期间拿到接口缓存", "conversation", conversationID, "count", len(msgs))
			return model.MessageResult{Messages: e.enrichMessages(conversationID, msgs)}, nil
		}
	}

	e.cacheCurrentContext(conversationID)

	msgs := e.dom.Messages(limit)
	e.log.Info("DOM 兜底解析到消息", "conversation", conversationID, "count", len(msgs))
	return model.MessageResult{Messages: e.enrichMessages(conversationID, msgs)}, nil
}

// messagesFromCache 从消息同步缓存解析消息列表。
// 先查按会话索引的条目；未命中时回退到顶层 message.sync 载荷
// （单会话 data 或批量 data.fetchs）。
func (e *Engine) messagesFromCache(conversationID string, limit int) []model.Message {
	payload, ok := e.cache.SessionPayload(conversationID)
	if !ok {
		fallback, exists := e.cache.Payload(intercept.APIMessageSync)
		if exists {
			data := fallback.Get("data")
			if data.Get("sessionId").String() == conversationID {
				payload, ok = data, true
			} else {
				data.Get("fetchs").ForEach(func(_, entry gjson.Result) bool {
					if entry.Get("sessionId").String() == conversationID {
						payload, ok = entry, true
						return false
					}
					return true
				})
			}
		}
	}
	if !ok {
		return nil
	}

	raw := payload.Get("messages")
	if !raw.IsArray() {
		return nil
	}
	entries := raw.Array()
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	sessionCtx := payload.Get("sessionInfo")
	var msgs []model.Message
	for _, entry := range entries {
		if msg, valid := normalize.BuildMessage(conversationID, entry, sessionCtx); valid {
			msgs = append(msgs, msg)
		}
	}
	return msgs
}

// enrichMessages 补全会话 id 和商品上下文；已有值不覆盖
func (e *Engine) enrichMessages(conversationID string, msgs []model.Message) []model.Message {
	e.mu.RLock()
	ctx := e.contextCache[conversationID]
	e.mu.RUnlock()

	for i := range msgs {
		if msgs[i].ConversationID == "" {
			msgs[i].ConversationID = conversationID
		}
		if msgs[i].ItemID == "" {
			msgs[i].ItemID = ctx.ItemID
		}
		if msgs[i].ItemTitle == "" {
			msgs[i].ItemTitle = ctx.ItemTitle
		}
	}
	return msgs
}

// openConversation 在会话列表里定位并点击目标会话。
// 优先按稳定属性和已缓存会话信息匹配，最后才按索引回退。
func (e *Engine) openConversation(target string) error {
	items, err := e.sess.QuerySelectorAll(conversationItemSelector)
	if err != nil || len(items) == 0 {
		e.sess.WaitMS(2000)
		items, _ = e.sess.QuerySelectorAll(conversationItemSelector)
	}
	if len(items) == 0 {
		return fmt.Errorf("未找到会话列表")
	}

	cachedConv, cachedIndex := e.findCachedConversation(target)
	domIndex := -1
	if strings.HasPrefix(target, "dom:") {
		if n, err := strconv.Atoi(strings.TrimPrefix(target, "dom:")); err == nil {
			domIndex = n
		}
	}

	var targetItem browser.ElementHandle
	for _, item := range items {
		if matchesAttribute(item, target) {
			targetItem = item
			break
		}

		text, err := item.Text()
		if err != nil {
			continue
		}
		if strings.Contains(text, target) {
			targetItem = item
			break
		}
		if cachedConv != nil && cachedConv.UserName != "" && strings.Contains(text, cachedConv.UserName) {
			targetItem = item
			break
		}
	}

	if targetItem == nil && cachedIndex >= 0 && cachedIndex < len(items) {
		targetItem = items[cachedIndex]
	}
	if targetItem == nil && domIndex >= 0 && domIndex < len(items) {
		targetItem = items[domIndex]
	}
	if targetItem == nil && cachedConv == nil {
		if idx, err := strconv.Atoi(target); err == nil && idx >= 0 && idx < len(items) {
			targetItem = items[idx]
		}
	}
	if targetItem == nil {
		return fmt.Errorf("未找到会话：%s", target)
	}

	if err := e.sess.Click(targetItem); err != nil {
		return err
	}
	e.MarkOpened(target)
	e.log.Debug("打开会话", "conversation", target)
	return nil
}

func matchesAttribute(item browser.ElementHandle, target string) bool {
	for _, attr := range domx.IDAttributes {
		if v, err := item.Attribute(attr); err == nil && v != "" && v == target {
			return true
		}
	}
	return false
}

// findCachedConversation 在接口缓存里按会话 id 或用户 id 查找，
// 并返回其顺序索引；未命中时返回 (nil, -1)
func (e *Engine) findCachedConversation(target string) (*model.Conversation, int) {
	for index, conv := range e.conversationsFromCache(200) {
		if conv.ID == target || (conv.UserID != "" && conv.UserID == target) {
			found := conv
			return &found, index
		}
	}
	return nil, -1
}
